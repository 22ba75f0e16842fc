package feature

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/logging"
)

// CachedStore 用 cache.Layer 装饰 FeatureStore：音频特征按曲目缓存（features 命名空间，6h）。
// 收听历史不缓存，反馈会持续改变它。
type CachedStore struct {
	inner  core.FeatureStore
	cache  *cache.Layer
	logger logging.Logger
}

// NewCachedStore 创建带缓存的特征源；layer 为 nil 时直接透传。
func NewCachedStore(inner core.FeatureStore, layer *cache.Layer, logger logging.Logger) *CachedStore {
	return &CachedStore{inner: inner, cache: layer, logger: logging.OrNop(logger)}
}

func (c *CachedStore) Name() string { return "cached(" + c.inner.Name() + ")" }

func (c *CachedStore) GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]core.AudioFeatures, error) {
	out := make(map[string]core.AudioFeatures, len(trackIDs))
	missing := trackIDs
	if hits := c.cache.GetMany(ctx, cache.NSFeatures, cache.GlobalScope, trackIDs); len(hits) > 0 {
		missing = make([]string, 0, len(trackIDs)-len(hits))
		for _, id := range trackIDs {
			raw, ok := hits[id]
			if !ok {
				missing = append(missing, id)
				continue
			}
			var f core.AudioFeatures
			if err := json.Unmarshal(raw, &f); err != nil {
				missing = append(missing, id)
				continue
			}
			out[id] = f
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.GetAudioFeatures(ctx, missing)
	if err != nil {
		if len(out) == 0 {
			return nil, err
		}
		// 已命中的缓存照常返回，未取到的曲目视为缺少特征
		c.logger.Warn("feature fetch failed, serving cached subset",
			logging.Int("cached", len(out)),
			logging.Int("missing", len(missing)),
			logging.Err(err))
		return out, nil
	}
	toCache := make(map[string]any, len(fetched))
	for id, f := range fetched {
		out[id] = f
		toCache[id] = f
	}
	if err := c.cache.SetMany(ctx, cache.NSFeatures, cache.GlobalScope, toCache); err != nil {
		c.logger.Warn("feature cache write failed", logging.Err(err))
	}
	return out, nil
}

func (c *CachedStore) GetListeningHistory(ctx context.Context, userID string, limit int) ([]core.ListenEvent, error) {
	return c.inner.GetListeningHistory(ctx, userID, limit)
}

// CachedCatalog 缓存候选曲目列表（candidates 命名空间，2h，按用户）。
type CachedCatalog struct {
	inner  core.Catalog
	cache  *cache.Layer
	logger logging.Logger
}

func NewCachedCatalog(inner core.Catalog, layer *cache.Layer, logger logging.Logger) *CachedCatalog {
	return &CachedCatalog{inner: inner, cache: layer, logger: logging.OrNop(logger)}
}

func (c *CachedCatalog) CandidateTracks(ctx context.Context, userID string) ([]core.Track, error) {
	var tracks []core.Track
	gen, hit := c.cache.Lookup(ctx, cache.NSCandidates, userID, "all", &tracks)
	if hit {
		return tracks, nil
	}
	tracks, err := c.inner.CandidateTracks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetAt(ctx, cache.NSCandidates, userID, gen, "all", tracks); err != nil {
		c.logger.Warn("candidate cache write failed", logging.String("user_id", userID), logging.Err(err))
	}
	return tracks, nil
}

var (
	_ core.FeatureStore = (*CachedStore)(nil)
	_ core.Catalog      = (*CachedCatalog)(nil)
)
