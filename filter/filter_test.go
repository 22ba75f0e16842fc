package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/store"
)

func track(id, artist, genre string, popularity, energy float64) *core.Item {
	it := core.NewTrackItem(core.Track{ID: id, Artist: artist, Genre: genre, Popularity: popularity})
	it.Features["energy"] = energy
	return it
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func testContext() *core.RecommendContext {
	rctx := &core.RecommendContext{UserID: "u1", User: core.NewUserProfile("u1")}
	rctx.User.SetHistory([]core.ListenEvent{{TrackID: "t1", Timestamp: time.Unix(1, 0)}})
	return rctx
}

func TestFilterNode_History(t *testing.T) {
	node := &FilterNode{Filters: []Filter{HistoryFilter{}}}
	items := []*core.Item{track("t1", "a", "g", 0.1, 0.1), track("t2", "b", "g", 0.1, 0.1)}

	out, err := node.Process(context.Background(), testContext(), items)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids(out))
	assert.Equal(t, "filter.history", items[0].Labels[LabelFiltered].Source)
}

func TestRuleFilter(t *testing.T) {
	items := []*core.Item{
		track("t2", "a", "rock", 0.9, 0.9),
		track("t3", "b", "jazz", 0.2, 0.3),
		track("t4", "c", "rock", 0.5, 0.2),
	}

	tests := []struct {
		name string
		expr string
		rule string
		want []string
	}{
		{name: "no rule keeps all", want: []string{"t2", "t3", "t4"}},
		{name: "genre", expr: `track.genre == "rock"`, want: []string{"t2", "t4"}},
		{name: "features", expr: `track.features.energy > 0.5`, want: []string{"t2"}},
		{name: "param rule", rule: `track.popularity < 0.6`, want: []string{"t3", "t4"}},
		{name: "invalid rule is ignored", expr: `track.genre ==`, want: []string{"t2", "t3", "t4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := testContext()
			if tt.rule != "" {
				rctx.Params = map[string]any{ParamRule: tt.rule}
			}
			node := &FilterNode{Filters: []Filter{&RuleFilter{Expr: tt.expr}}}
			out, err := node.Process(context.Background(), rctx, items)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestValidateRule(t *testing.T) {
	assert.NoError(t, ValidateRule(""))
	assert.NoError(t, ValidateRule(`ctx.mood == "happy"`))

	err := ValidateRule(`track.genre ==`)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(store.WithSweepInterval(0))
	defer s.Close()
	require.NoError(t, s.Set(ctx, "blacklist:tracks", []byte(`["t3"]`)))
	require.NoError(t, s.Set(ctx, "blocks:u1", []byte(`["t4"]`)))

	f := NewBlacklistFilter([]string{"t2"}, []string{"banned"}, s, "blacklist:tracks", "blocks")
	node := &FilterNode{Filters: []Filter{f}}
	items := []*core.Item{
		track("t2", "a", "g", 0, 0),
		track("t3", "b", "g", 0, 0),
		track("t4", "c", "g", 0, 0),
		track("t5", "banned", "g", 0, 0),
		track("t6", "d", "g", 0, 0),
	}

	out, err := node.Process(ctx, testContext(), items)
	require.NoError(t, err)
	assert.Equal(t, []string{"t6"}, ids(out))

	other := testContext()
	other.UserID = "u2"
	out, err = node.Process(ctx, other, []*core.Item{track("t4", "c", "g", 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"t4"}, ids(out))
}

type brokenFilter struct{}

func (brokenFilter) Name() string { return "broken" }
func (brokenFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return true, errors.New("backend down")
}

func TestFilterNode_ErrorKeepsItem(t *testing.T) {
	node := &FilterNode{Filters: []Filter{brokenFilter{}}}
	out, err := node.Process(context.Background(), testContext(), []*core.Item{track("t9", "a", "g", 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"t9"}, ids(out))
}
