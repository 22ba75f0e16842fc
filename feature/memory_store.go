package feature

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/tunekit/core"
)

// MemoryStore 是内存实现的特征/目录/用户数据源，用于测试与单机运行（数据集文件）。
// 同时实现 core.FeatureStore、core.Catalog、core.UserDirectory。
type MemoryStore struct {
	mu       sync.RWMutex
	tracks   map[string]core.Track
	order    []string
	features map[string]core.AudioFeatures
	history  map[string][]core.ListenEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tracks:   make(map[string]core.Track),
		features: make(map[string]core.AudioFeatures),
		history:  make(map[string][]core.ListenEvent),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

// PutTrack 写入曲目；features 为 nil 表示该曲目没有音频特征。
func (m *MemoryStore) PutTrack(t core.Track, features *core.AudioFeatures) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.tracks[t.ID] = t
	if features != nil {
		m.features[t.ID] = *features
	} else {
		delete(m.features, t.ID)
	}
}

// AddListen 追加收听记录。
func (m *MemoryStore) AddListen(userID string, ev core.ListenEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[userID] = append(m.history[userID], ev)
}

func (m *MemoryStore) GetAudioFeatures(_ context.Context, trackIDs []string) (map[string]core.AudioFeatures, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]core.AudioFeatures, len(trackIDs))
	for _, id := range trackIDs {
		if f, ok := m.features[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

// GetListeningHistory 返回时间升序的最近 limit 条记录。
func (m *MemoryStore) GetListeningHistory(_ context.Context, userID string, limit int) ([]core.ListenEvent, error) {
	m.mu.RLock()
	h := make([]core.ListenEvent, len(m.history[userID]))
	copy(h, m.history[userID])
	m.mu.RUnlock()

	core.SortChronological(h)
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return h, nil
}

// CandidateTracks 返回整个目录（按写入顺序）。
func (m *MemoryStore) CandidateTracks(_ context.Context, _ string) ([]core.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Track, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tracks[id])
	}
	return out, nil
}

// ListUsers 返回有收听记录的用户（排序后）。
func (m *MemoryStore) ListUsers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.history))
	for u := range m.history {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// TrackIDs 返回全部曲目 ID（写入顺序），用于全量聚类。
func (m *MemoryStore) TrackIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

var (
	_ core.FeatureStore  = (*MemoryStore)(nil)
	_ core.Catalog       = (*MemoryStore)(nil)
	_ core.UserDirectory = (*MemoryStore)(nil)
)
