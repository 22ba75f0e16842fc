package recall

import (
	"context"

	"github.com/rushteam/tunekit/core"
)

// Predictor 是协同过滤打分接口，model.MatrixFactorization 实现了它。
type Predictor interface {
	Predict(userID, itemID string) float64
}

// CollaborativeRecall 是矩阵分解召回：
// 对每个不在历史中的候选计算 dot(p_u, q_i) + b，取 TopN。
type CollaborativeRecall struct {
	Model Predictor
	TopN  int
}

func (r *CollaborativeRecall) Name() string { return core.SourceCollaborative }

func (r *CollaborativeRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if r.Model == nil || rctx == nil || rctx.UserID == "" {
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
		out = append(out, newCandidate(rctx, t, r.Model.Predict(rctx.UserID, t.ID)))
	}
	return topN(out, r.TopN), nil
}
