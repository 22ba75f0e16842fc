// Package cache 是建立在 core.Store 之上的命名空间缓存。
//
// key 结构：{prefix}:{ns}:{scope}:{generation}:{key}
//
// 失效按 (namespace, scope) 进行：写入新的 generation 后旧 key 不可达，
// 由底层 Store 的 TTL 自然回收，因此不依赖 SCAN/KEYS 之类的后端能力。
//
// nil *Layer 是合法的空实现：Get 总是 miss，Set/Invalidate 什么都不做。
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pkg/logging"
)

// 命名空间
const (
	NSRecommendations = "recommendations"
	NSFeatures        = "features"
	NSCandidates      = "candidates"
)

// GlobalScope 用于不区分用户的条目（如音频特征）。
const GlobalScope = "_"

// DefaultTTLs 是各命名空间的默认 TTL。
var DefaultTTLs = map[string]time.Duration{
	NSRecommendations: 15 * time.Minute,
	NSFeatures:        6 * time.Hour,
	NSCandidates:      2 * time.Hour,
}

const defaultTTL = 15 * time.Minute

// Layer 是命名空间缓存。
type Layer struct {
	store  core.Store
	prefix string
	ttls   map[string]time.Duration
	logger logging.Logger
}

// Option 配置 Layer。
type Option func(*Layer)

// WithPrefix 设置 key 前缀，默认 "tunekit"。
func WithPrefix(prefix string) Option {
	return func(l *Layer) { l.prefix = prefix }
}

// WithTTL 覆盖某个命名空间的 TTL。
func WithTTL(ns string, ttl time.Duration) Option {
	return func(l *Layer) {
		if ttl > 0 {
			l.ttls[ns] = ttl
		}
	}
}

// WithLogger 注入 Logger。
func WithLogger(logger logging.Logger) Option {
	return func(l *Layer) { l.logger = logging.OrNop(logger) }
}

// New 创建缓存层；store 为 nil 时返回 nil（即空实现）。
func New(store core.Store, opts ...Option) *Layer {
	if store == nil {
		return nil
	}
	l := &Layer{
		store:  store,
		prefix: "tunekit",
		ttls:   make(map[string]time.Duration, len(DefaultTTLs)),
		logger: logging.NewNopLogger(),
	}
	for ns, ttl := range DefaultTTLs {
		l.ttls[ns] = ttl
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TTL 返回命名空间的 TTL。
func (l *Layer) TTL(ns string) time.Duration {
	if l == nil {
		return 0
	}
	if ttl, ok := l.ttls[ns]; ok {
		return ttl
	}
	return defaultTTL
}

func (l *Layer) ttlSeconds(ns string) int {
	secs := int(l.TTL(ns) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *Layer) genKey(ns, scope string) string {
	return strings.Join([]string{l.prefix, ns, scope, "gen"}, ":")
}

func (l *Layer) dataKey(ns, scope, gen, key string) string {
	return strings.Join([]string{l.prefix, ns, scope, gen, key}, ":")
}

// generation 读取当前 generation，不存在时为 "0"。
func (l *Layer) generation(ctx context.Context, ns, scope string) (string, error) {
	raw, err := l.store.Get(ctx, l.genKey(ns, scope))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return "0", nil
		}
		return "", err
	}
	return string(raw), nil
}

// Get 读取并反序列化到 dst，返回是否命中。存储错误按 miss 处理并记录日志。
func (l *Layer) Get(ctx context.Context, ns, scope, key string, dst any) bool {
	_, hit := l.Lookup(ctx, ns, scope, key, dst)
	return hit
}

// Lookup 与 Get 相同，另外返回读取时的 generation。
// 未命中后计算出的结果应通过 SetAt 写回该 generation：
// 期间发生的 Invalidate 会让这次写入不可达。generation 读取失败时返回空串。
func (l *Layer) Lookup(ctx context.Context, ns, scope, key string, dst any) (string, bool) {
	if l == nil {
		return "", false
	}
	gen, err := l.generation(ctx, ns, scope)
	if err != nil {
		l.logger.Warn("cache generation lookup failed", logging.String("namespace", ns), logging.Err(err))
		metrics.CacheMisses.WithLabelValues(ns).Inc()
		return "", false
	}
	raw, err := l.store.Get(ctx, l.dataKey(ns, scope, gen, key))
	if err != nil {
		if !core.IsStoreNotFound(err) {
			l.logger.Warn("cache get failed", logging.String("namespace", ns), logging.Err(err))
		}
		metrics.CacheMisses.WithLabelValues(ns).Inc()
		return gen, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		l.logger.Warn("cache decode failed", logging.String("namespace", ns), logging.Err(err))
		metrics.CacheMisses.WithLabelValues(ns).Inc()
		return gen, false
	}
	metrics.CacheHits.WithLabelValues(ns).Inc()
	return gen, true
}

// Set 序列化后写入当前 generation，TTL 取命名空间配置。
func (l *Layer) Set(ctx context.Context, ns, scope, key string, value any) error {
	if l == nil {
		return nil
	}
	gen, err := l.generation(ctx, ns, scope)
	if err != nil {
		return fmt.Errorf("cache: generation %s/%s: %w", ns, scope, err)
	}
	return l.SetAt(ctx, ns, scope, gen, key, value)
}

// SetAt 写入指定 generation（来自 Lookup）。gen 为空时不写。
func (l *Layer) SetAt(ctx context.Context, ns, scope, gen, key string, value any) error {
	if l == nil || gen == "" {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", ns, err)
	}
	return l.store.Set(ctx, l.dataKey(ns, scope, gen, key), raw, l.ttlSeconds(ns))
}

// GetMany 批量读取原始字节，返回命中的 key -> value。
func (l *Layer) GetMany(ctx context.Context, ns, scope string, keys []string) map[string][]byte {
	if l == nil || len(keys) == 0 {
		return nil
	}
	gen, err := l.generation(ctx, ns, scope)
	if err != nil {
		l.logger.Warn("cache generation lookup failed", logging.String("namespace", ns), logging.Err(err))
		return nil
	}
	full := make([]string, len(keys))
	back := make(map[string]string, len(keys))
	for i, k := range keys {
		full[i] = l.dataKey(ns, scope, gen, k)
		back[full[i]] = k
	}
	raw, err := l.store.BatchGet(ctx, full)
	if err != nil {
		l.logger.Warn("cache batch get failed", logging.String("namespace", ns), logging.Err(err))
		return nil
	}
	out := make(map[string][]byte, len(raw))
	for fk, v := range raw {
		out[back[fk]] = v
	}
	metrics.CacheHits.WithLabelValues(ns).Add(float64(len(out)))
	metrics.CacheMisses.WithLabelValues(ns).Add(float64(len(keys) - len(out)))
	return out
}

// SetMany 批量写入，value 逐个序列化。
func (l *Layer) SetMany(ctx context.Context, ns, scope string, values map[string]any) error {
	if l == nil || len(values) == 0 {
		return nil
	}
	gen, err := l.generation(ctx, ns, scope)
	if err != nil {
		return fmt.Errorf("cache: generation %s/%s: %w", ns, scope, err)
	}
	kvs := make(map[string][]byte, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("cache: encode %s/%s: %w", ns, k, err)
		}
		kvs[l.dataKey(ns, scope, gen, k)] = raw
	}
	return l.store.BatchSet(ctx, kvs, l.ttlSeconds(ns))
}

// Invalidate 使 (ns, scope) 下的所有条目失效。
// generation key 的 TTL 不短于数据 TTL，过期后旧数据也已过期。
func (l *Layer) Invalidate(ctx context.Context, ns, scope string) error {
	if l == nil {
		return nil
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := l.store.Set(ctx, l.genKey(ns, scope), []byte(gen), l.ttlSeconds(ns)); err != nil {
		return fmt.Errorf("cache: invalidate %s/%s: %w", ns, scope, err)
	}
	return nil
}
