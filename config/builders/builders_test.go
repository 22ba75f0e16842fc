package builders

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/config"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/store"
)

const pipelineYAML = `
pipeline:
  name: post-merge
  nodes:
    - type: rerank.dedup
    - type: filter
      config:
        filters:
          - type: history
          - type: rule
            expr: track.features.energy > 0.3
          - type: blacklist
            artists: [banned]
    - type: rerank.sort
    - type: rerank.diversity
      config:
        max_per_artist: 1
        max_per_genre: 2
    - type: rerank.topn
      config:
        n: 2
`

func item(id, artist, genre string, score, energy float64) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.Meta[core.MetaArtist] = artist
	it.Meta[core.MetaGenre] = genre
	it.Features = map[string]float64{"energy": energy}
	return it
}

func TestRegisteredTypes(t *testing.T) {
	types := config.SupportedTypes()
	for _, want := range []string{
		"filter", "filter.history", "filter.rule", "filter.blacklist",
		"rerank.diversity", "rerank.topn", "rerank.sort", "rerank.dedup",
	} {
		assert.Contains(t, types, want)
	}
}

func TestLoadPipeline_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o600))

	p, err := config.LoadPipeline(path)
	require.NoError(t, err)

	rctx := &core.RecommendContext{UserID: "u1", User: core.NewUserProfile("u1"), Limit: 10}
	rctx.User.SetHistory([]core.ListenEvent{{TrackID: "heard"}})
	items := []*core.Item{
		item("a", "x", "pop", 0.5, 0.9),
		item("heard", "y", "pop", 0.9, 0.9),
		item("quiet", "z", "rock", 0.8, 0.1),
		item("b", "banned", "rock", 0.7, 0.9),
		item("c", "x", "rock", 0.6, 0.9),
		item("d", "w", "jazz", 0.4, 0.9),
		item("a", "x", "pop", 0.5, 0.9),
	}

	out, err := p.Run(context.Background(), rctx, items)
	require.NoError(t, err)
	ids := make([]string, 0, len(out))
	for _, it := range out {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"c", "d"}, ids)
}

func TestBuildFilterNode_Errors(t *testing.T) {
	_, err := BuildFilterNode(map[string]interface{}{})
	assert.Error(t, err)

	_, err = BuildFilterNode(map[string]interface{}{"filters": []interface{}{
		map[string]interface{}{"type": "unknown"},
	}})
	assert.Error(t, err)

	_, err = BuildRuleNode(map[string]interface{}{"expr": "track.energy >"})
	assert.Error(t, err)
}

func TestBuildBlacklistNode_RequiresStore(t *testing.T) {
	SetStore(nil)
	_, err := BuildBlacklistNode(map[string]interface{}{"key": "blacklist:global"})
	assert.Error(t, err)

	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	t.Cleanup(func() { _ = kv.Close() })
	SetStore(kv)
	t.Cleanup(func() { SetStore(nil) })
	node, err := BuildBlacklistNode(map[string]interface{}{"key": "blacklist:global"})
	require.NoError(t, err)
	assert.Equal(t, "filter", string(node.Kind()))
}
