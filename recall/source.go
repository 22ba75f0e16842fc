package recall

import (
	"context"
	"sort"

	"github.com/rushteam/tunekit/core"
)

// Source 表示一个可复用的召回源（协同/内容/场景/热度/...）。
// 你可以把它理解为“可并发 fan-out 的策略单元”。
// 召回源只读 RecommendContext，不得修改其中的共享数据。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// newCandidate 以曲目目录与原始音频特征构造候选。
func newCandidate(rctx *core.RecommendContext, t core.Track, score float64) *core.Item {
	it := core.NewTrackItem(t)
	it.Score = score
	if f, ok := rctx.Features[t.ID]; ok {
		it.Features = f.Map()
	}
	return it
}

// SortByScore 按分数降序排序，分数相同按 ID 升序，保证结果确定。
func SortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

// topN 排序后截断，n<=0 表示不截断。
func topN(items []*core.Item, n int) []*core.Item {
	SortByScore(items)
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
