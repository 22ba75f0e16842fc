package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/core"
)

func item(id, artist, genre string, score float64) *core.Item {
	it := core.NewTrackItem(core.Track{ID: id, Artist: artist, Genre: genre})
	it.Score = score
	return it
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestDiversity(t *testing.T) {
	items := func() []*core.Item {
		return []*core.Item{
			item("t1", "a1", "rock", 0.9),
			item("t2", "a1", "pop", 0.8),
			item("t3", "a2", "rock", 0.7),
			item("t4", "a3", "jazz", 0.6),
			item("t5", "", "", 0.5),
			item("t6", "", "", 0.4),
			item("t7", "a4", "pop", 0.3),
		}
	}

	tests := []struct {
		name string
		node *Diversity
		want []string
	}{
		{name: "default caps", node: &Diversity{}, want: []string{"t1", "t4", "t5", "t6", "t7"}},
		{name: "two per artist", node: &Diversity{MaxPerArtist: 2}, want: []string{"t1", "t2", "t4", "t5", "t6"}},
		{name: "two per genre", node: &Diversity{MaxPerGenre: 2}, want: []string{"t1", "t3", "t4", "t5", "t6", "t7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.node.Process(context.Background(), nil, items())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestTopNNode(t *testing.T) {
	items := []*core.Item{item("a", "", "", 3), item("b", "", "", 2), item("c", "", "", 1)}

	out, err := (&TopNNode{N: 2}).Process(context.Background(), nil, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))

	out, err = (&TopNNode{}).Process(context.Background(), &core.RecommendContext{Limit: 1}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(out))

	out, err = (&TopNNode{}).Process(context.Background(), nil, items)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestScoreSortAndDedup(t *testing.T) {
	items := []*core.Item{
		item("b", "", "", 1),
		item("c", "", "", 2),
		item("a", "", "", 1),
		item("c", "", "", 0.5),
	}
	out, err := Dedup{}.Process(context.Background(), nil, items)
	require.NoError(t, err)
	out, err = ScoreSort{}.Process(context.Background(), nil, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(out))
	assert.Equal(t, 2.0, out[0].Score)
}
