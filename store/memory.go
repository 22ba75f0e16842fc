package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/tunekit/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/单机运行。
// 过期由读路径惰性判断，并由后台 sweep 定期回收；进程重启后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]entry
	zsets map[string]map[string]float64 // zset key -> member -> score

	interval time.Duration
	sweep    *time.Ticker
	done     chan struct{}
	once     sync.Once
	now      func() time.Time
}

type entry struct {
	value    []byte
	expireAt time.Time // 零值表示永不过期
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryOption 配置 MemoryStore。
type MemoryOption func(*MemoryStore)

// WithClock 替换时钟，测试中用来推进时间。
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// WithSweepInterval 设置过期回收周期，<=0 关闭后台回收。
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.interval = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	ms := &MemoryStore{
		data:     make(map[string]entry),
		zsets:    make(map[string]map[string]float64),
		done:     make(chan struct{}),
		now:      time.Now,
		interval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(ms)
	}
	if ms.interval > 0 {
		ms.sweep = time.NewTicker(ms.interval)
		go ms.sweepLoop()
	}
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) expireAt(ttl []int) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return m.now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return time.Time{}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return nil, core.ErrStoreNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = entry{value: value, expireAt: m.expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := m.now()
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok || e.expired(now) {
			continue
		}
		result[k] = e.value
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expire := m.expireAt(ttl)
	for k, v := range kvs {
		m.data[k] = entry{value: v, expireAt: expire}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		if m.sweep != nil {
			m.sweep.Stop()
		}
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) sweepLoop() {
	for {
		select {
		case <-m.done:
			return
		case <-m.sweep.C:
			m.purgeExpired()
		}
	}
}

func (m *MemoryStore) purgeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
		}
	}
}

var _ core.KeyValueStore = (*MemoryStore)(nil)

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *MemoryStore) ZIncrBy(_ context.Context, key string, increment float64, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] += increment
	return m.zsets[key][member], nil
}

// sortedDesc 按分数降序，分数相同按 member 降序（与 Redis ZREVRANGE 一致）。
func (m *MemoryStore) sortedDesc(key string) []core.ScoredMember {
	zset := m.zsets[key]
	out := make([]core.ScoredMember, 0, len(zset))
	for member, score := range zset {
		out = append(out, core.ScoredMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member > out[j].Member
	})
	return out
}

// rangeBounds 按 Redis 语义处理 start/stop（支持负数下标）。
func rangeBounds(n int, start, stop int64) (int, int, bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if size == 0 || start > stop {
		return 0, 0, false
	}
	return int(start), int(stop), true
}

func (m *MemoryStore) ZRangeWithScores(_ context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := m.sortedDesc(key)
	lo, hi, ok := rangeBounds(len(sorted), start, stop)
	if !ok {
		return nil, nil
	}
	return sorted[lo : hi+1], nil
}

func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	scored, err := m.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Member
	}
	return out, nil
}

func (m *MemoryStore) ZScore(_ context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}
