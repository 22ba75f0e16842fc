package feature

import (
	"context"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/logging"
)

// FallbackStore 是降级特征源：主源（如 Feast）失败或缺失的曲目由备用源补齐。
// 收听历史同样先查主源，失败时回退。
type FallbackStore struct {
	primary   core.FeatureStore
	secondary core.FeatureStore
	logger    logging.Logger
}

func NewFallbackStore(primary, secondary core.FeatureStore, logger logging.Logger) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary, logger: logging.OrNop(logger)}
}

func (f *FallbackStore) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackStore) GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]core.AudioFeatures, error) {
	out, err := f.primary.GetAudioFeatures(ctx, trackIDs)
	if err != nil {
		f.logger.Warn("primary feature store failed, falling back",
			logging.String("primary", f.primary.Name()), logging.Err(err))
		return f.secondary.GetAudioFeatures(ctx, trackIDs)
	}
	var missing []string
	for _, id := range trackIDs {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	extra, err := f.secondary.GetAudioFeatures(ctx, missing)
	if err != nil {
		f.logger.Warn("secondary feature store failed", logging.String("secondary", f.secondary.Name()), logging.Err(err))
		return out, nil
	}
	for id, feat := range extra {
		out[id] = feat
	}
	return out, nil
}

func (f *FallbackStore) GetListeningHistory(ctx context.Context, userID string, limit int) ([]core.ListenEvent, error) {
	h, err := f.primary.GetListeningHistory(ctx, userID, limit)
	if err == nil && len(h) > 0 {
		return h, nil
	}
	if err != nil {
		f.logger.Warn("primary history lookup failed, falling back",
			logging.String("user_id", userID), logging.Err(err))
	}
	return f.secondary.GetListeningHistory(ctx, userID, limit)
}

var _ core.FeatureStore = (*FallbackStore)(nil)
