package filter

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉被屏蔽的曲目或艺人。
//
// 黑名单来源：
//   - TrackIDs / Artists：静态配置
//   - Store 中 Key 对应的 JSON 数组：全局屏蔽的曲目 ID
//   - Store 中 {UserKeyPrefix}:{UserID} 对应的 JSON 数组：用户拉黑的曲目 ID
//
// Store 中 key 不存在视为空黑名单。
type BlacklistFilter struct {
	TrackIDs []string
	Artists  []string

	Store         core.Store
	Key           string
	UserKeyPrefix string

	tracks  map[string]struct{}
	artists map[string]struct{}
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(trackIDs, artists []string, store core.Store, key, userKeyPrefix string) *BlacklistFilter {
	f := &BlacklistFilter{
		TrackIDs:      trackIDs,
		Artists:       artists,
		Store:         store,
		Key:           key,
		UserKeyPrefix: userKeyPrefix,
		tracks:        make(map[string]struct{}, len(trackIDs)),
		artists:       make(map[string]struct{}, len(artists)),
	}
	for _, id := range trackIDs {
		f.tracks[id] = struct{}{}
	}
	for _, a := range artists {
		f.artists[a] = struct{}{}
	}
	return f
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if _, ok := f.tracks[item.ID]; ok {
		return true, nil
	}
	if artist := item.MetaString(core.MetaArtist); artist != "" {
		if _, ok := f.artists[artist]; ok {
			return true, nil
		}
	}
	if f.Store == nil {
		return false, nil
	}

	if f.Key != "" {
		hit, err := f.inList(ctx, f.Key, item.ID)
		if err != nil || hit {
			return hit, err
		}
	}
	if f.UserKeyPrefix != "" && rctx != nil && rctx.UserID != "" {
		return f.inList(ctx, f.UserKeyPrefix+":"+rctx.UserID, item.ID)
	}
	return false, nil
}

func (f *BlacklistFilter) inList(ctx context.Context, key, id string) (bool, error) {
	ids, err := LoadIDList(ctx, f.Store, key)
	if err != nil {
		return false, err
	}
	for _, v := range ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

// LoadIDList 从 Store 读取 JSON 数组形式的 ID 列表，key 不存在返回 nil。
func LoadIDList(ctx context.Context, s core.Store, key string) ([]string, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("filter: load %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("filter: decode %s: %w", key, err)
	}
	return ids, nil
}
