package recall

import (
	"context"
	"math"

	"github.com/rushteam/tunekit/core"
)

// TrendingSource 提供归一化热度榜，trend.Tracker 实现了它。
type TrendingSource interface {
	Top(ctx context.Context, n int) ([]core.ScoredMember, error)
}

// DefaultTrendingShare 热度召回最多占最终列表的比例。
const DefaultTrendingShare = 0.1

// TrendingRecall 是热度召回：从按时间衰减的热度榜读取，
// 只保留候选目录中、不在历史里的曲目，数量上限为 max(1, floor(Share*limit))。
type TrendingRecall struct {
	Tracker TrendingSource
	Share   float64
	// Depth 读取热度榜的深度，默认 200
	Depth int
}

func (r *TrendingRecall) Name() string { return core.SourceTrending }

// Cap 返回给定 limit 下的条数上限。
func (r *TrendingRecall) Cap(limit int) int {
	share := r.Share
	if share <= 0 {
		share = DefaultTrendingShare
	}
	n := int(math.Floor(share * float64(limit)))
	if n < 1 {
		n = 1
	}
	return n
}

func (r *TrendingRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if r.Tracker == nil || rctx == nil {
		return nil, nil
	}
	depth := r.Depth
	if depth <= 0 {
		depth = 200
	}
	top, err := r.Tracker.Top(ctx, depth)
	if err != nil {
		return nil, err
	}
	limit := r.Cap(rctx.Limit)
	out := make([]*core.Item, 0, limit)
	for _, m := range top {
		if len(out) >= limit {
			break
		}
		t, ok := rctx.Track(m.Member)
		if !ok || rctx.InHistory(t.ID) {
			continue
		}
		out = append(out, newCandidate(rctx, t, m.Score))
	}
	return out, nil
}
