package feast

import (
	"context"
	"fmt"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/conv"
)

// DefaultFeatureView 存放音频特征的特征视图名。
const DefaultFeatureView = "track_audio_features"

// DefaultEntityKey 曲目实体的 join key。
const DefaultEntityKey = "track_id"

// FeatureStore 以 Feast 为音频特征来源，实现 core.FeatureStore。
// 收听历史不在 Feast 中，委托给 History（为空时返回空历史）。
type FeatureStore struct {
	client    Client
	view      string
	entityKey string
	history   core.FeatureStore
	batchSize int
}

// StoreOption 配置 FeatureStore。
type StoreOption func(*FeatureStore)

// WithFeatureView 设置特征视图名。
func WithFeatureView(view string) StoreOption { return func(s *FeatureStore) { s.view = view } }

// WithEntityKey 设置实体 join key。
func WithEntityKey(key string) StoreOption { return func(s *FeatureStore) { s.entityKey = key } }

// WithHistory 设置收听历史来源。
func WithHistory(h core.FeatureStore) StoreOption { return func(s *FeatureStore) { s.history = h } }

// WithBatchSize 设置单次请求的实体数，默认 100。
func WithBatchSize(n int) StoreOption { return func(s *FeatureStore) { s.batchSize = n } }

func NewFeatureStore(client Client, opts ...StoreOption) *FeatureStore {
	s := &FeatureStore{
		client:    client,
		view:      DefaultFeatureView,
		entityKey: DefaultEntityKey,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	return s
}

func (s *FeatureStore) Name() string { return "feast" }

func (s *FeatureStore) featureRefs() []string {
	refs := make([]string, len(core.FeatureNames))
	for i, name := range core.FeatureNames {
		refs[i] = s.view + ":" + name
	}
	return refs
}

// GetAudioFeatures 分批读取在线特征。一行中任一特征缺失时视为该曲目没有特征。
func (s *FeatureStore) GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]core.AudioFeatures, error) {
	out := make(map[string]core.AudioFeatures, len(trackIDs))
	refs := s.featureRefs()
	for start := 0; start < len(trackIDs); start += s.batchSize {
		end := min(start+s.batchSize, len(trackIDs))
		rows := make([]map[string]interface{}, 0, end-start)
		for _, id := range trackIDs[start:end] {
			rows = append(rows, map[string]interface{}{s.entityKey: id})
		}
		resp, err := s.client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{Features: refs, EntityRows: rows})
		if err != nil {
			return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable,
				fmt.Sprintf("feast: get audio features: %v", err))
		}
		for i, fv := range resp.FeatureVectors {
			if i >= len(rows) {
				break
			}
			id := trackIDs[start+i]
			if f, ok := s.decode(fv.Values, refs); ok {
				out[id] = f
			}
		}
	}
	return out, nil
}

func (s *FeatureStore) decode(values map[string]interface{}, refs []string) (core.AudioFeatures, bool) {
	m := make(map[string]float64, len(refs))
	for i, ref := range refs {
		raw, ok := values[ref]
		if !ok {
			return core.AudioFeatures{}, false
		}
		v, ok := conv.ToFloat64(raw)
		if !ok {
			return core.AudioFeatures{}, false
		}
		m[core.FeatureNames[i]] = v
	}
	return core.AudioFeaturesFromMap(m), true
}

func (s *FeatureStore) GetListeningHistory(ctx context.Context, userID string, limit int) ([]core.ListenEvent, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.GetListeningHistory(ctx, userID, limit)
}

var _ core.FeatureStore = (*FeatureStore)(nil)
