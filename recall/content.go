package recall

import (
	"context"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/vecmath"
)

// DefaultContentWeights 内容相似度的特征权重（FeatureNames 顺序），speechiness/liveness 不参与。
var DefaultContentWeights = []float64{0.25, 0.25, 0.20, 0.15, 0.10, 0, 0, 0.05}

const DefaultContentThreshold = 0.6

// ContentRecall 是基于内容的召回源（Content-Based Recommendation）。
//
// 核心思想："用户喜欢具有某些音频特征的曲目，推荐特征相近的其他曲目"
// 相似度为候选特征与用户偏好向量的加权余弦，低于 Threshold 的候选被丢弃。
// 没有偏好向量（历史全无特征）或候选缺失特征时不参与计算。
type ContentRecall struct {
	Weights   []float64
	Threshold float64
	TopN      int
}

func (r *ContentRecall) Name() string { return core.SourceContent }

func (r *ContentRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.User == nil || len(rctx.User.PreferenceVector) != core.FeatureDim {
		return nil, nil
	}
	weights := r.Weights
	if len(weights) != core.FeatureDim {
		weights = DefaultContentWeights
	}
	pref := rctx.User.PreferenceVector

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
		sim := vecmath.WeightedCosine(pref, vec, weights)
		if sim < r.Threshold {
			continue
		}
		out = append(out, newCandidate(rctx, t, sim))
	}
	return topN(out, r.TopN), nil
}
