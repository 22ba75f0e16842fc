package recall

import (
	"context"
	"math"

	"github.com/rushteam/tunekit/core"
)

// ContextRecall 是场景召回：按候选特征与场景目标特征的接近程度打分。
//
//	score = 1 - Σ w_d·|x_d - t_d| / Σ w_d   （d 为目标中出现的特征）
//
// 场景无法映射为目标（rctx.Target 为空）时不产出候选。
type ContextRecall struct {
	// Weights 按特征名加权，未出现的特征权重为 1
	Weights map[string]float64
	// MinScore 低于该分数的候选被丢弃
	MinScore float64
	TopN     int
}

func (r *ContextRecall) Name() string { return core.SourceContext }

func (r *ContextRecall) weight(name string) float64 {
	if w, ok := r.Weights[name]; ok {
		return w
	}
	return 1
}

// Score 计算单个归一化向量与目标的接近程度，位于 [0,1]（向量各维在 [0,1] 时）。
func (r *ContextRecall) Score(vec []float64, target map[string]float64) float64 {
	var dist, wsum float64
	for name, tv := range target {
		idx := core.FeatureIndex(name)
		if idx < 0 || idx >= len(vec) {
			continue
		}
		w := r.weight(name)
		dist += w * math.Abs(vec[idx]-tv)
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return 1 - dist/wsum
}

func (r *ContextRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || len(rctx.Target) == 0 {
		return nil, nil
	}
	out := make([]*core.Item, 0)
	for _, t := range rctx.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rctx.InHistory(t.ID) {
			continue
		}
		vec, ok := rctx.Vector(t.ID)
		if !ok {
			continue
		}
		score := r.Score(vec, rctx.Target)
		if score < r.MinScore {
			continue
		}
		out = append(out, newCandidate(rctx, t, score))
	}
	return topN(out, r.TopN), nil
}
