package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pipeline"
)

// ScoreSort 按分数降序排序，分数相同按 ID 升序。
type ScoreSort struct{}

func (ScoreSort) Name() string        { return "rerank.sort" }
func (ScoreSort) Kind() pipeline.Kind { return pipeline.KindReRank }

func (ScoreSort) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Dedup 按 ID 去重，保留首次出现的曲目。
type Dedup struct{}

func (Dedup) Name() string        { return "rerank.dedup" }
func (Dedup) Kind() pipeline.Kind { return pipeline.KindReRank }

func (Dedup) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if it == nil {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}
