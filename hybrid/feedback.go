package hybrid

import (
	"context"
	"strings"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pkg/logging"
)

// 反馈处理结果的 status 标签值
const (
	FeedbackApplied = "applied"
	FeedbackInvalid = "invalid"
)

// Feedback 把一次评分反馈应用到模型：
//   - 协同过滤模型做一步 SGD
//   - rating > 0 时计入热度榜
//   - 只失效该用户的推荐缓存
//
// 热度榜与缓存失败只记录日志。
func (r *Recommender) Feedback(ctx context.Context, userID, trackID string, rating float64) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(trackID) == "" {
		metrics.FeedbackEvents.WithLabelValues(FeedbackInvalid).Inc()
		return core.InvalidInput(core.ModuleRecommend, "hybrid: user id and track id are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.model != nil {
		e := r.model.Update(userID, trackID, rating)
		r.logger.Debug("model updated",
			logging.String("user_id", userID),
			logging.String("track_id", trackID),
			logging.Float64("error", e))
	}
	if rating > 0 && r.trending != nil {
		if err := r.trending.RecordPlay(ctx, trackID, r.now()); err != nil {
			r.logger.Warn("record trending play failed", logging.String("track_id", trackID), logging.Err(err))
		}
	}
	r.Invalidate(ctx, userID)
	metrics.FeedbackEvents.WithLabelValues(FeedbackApplied).Inc()
	return nil
}

// Invalidate 失效该用户的推荐缓存。
func (r *Recommender) Invalidate(ctx context.Context, userID string) {
	if err := r.cache.Invalidate(ctx, cache.NSRecommendations, userID); err != nil {
		r.logger.Warn("invalidate recommendations failed", logging.String("user_id", userID), logging.Err(err))
	}
}
