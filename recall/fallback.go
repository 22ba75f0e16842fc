package recall

import (
	"context"

	"github.com/rushteam/tunekit/core"
)

// PopularityFallback 是兜底召回：所有召回源都失败或合并结果为空时，
// 按全局流行度排序候选目录（排除历史），来源标记为 fallback。
type PopularityFallback struct{}

func (PopularityFallback) Name() string { return core.SourceFallback }

func (PopularityFallback) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil {
		return nil, nil
	}
	out := make([]*core.Item, 0, len(rctx.Candidates))
	for _, t := range rctx.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rctx.InHistory(t.ID) {
			continue
		}
		out = append(out, newCandidate(rctx, t, t.Popularity))
	}
	SortByScore(out)
	return out, nil
}
