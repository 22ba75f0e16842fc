// Package trend 维护按时间衰减的曲目热度榜。
//
// 每次播放向有序集合累加 exp(ln2 * (ts - epoch) / halfLife)。
// 权重随时间指数增长，等价于对旧播放按半衰期衰减，但无需定期重算；
// 读取时按当前最大值归一化到 [0,1]。
package trend

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rushteam/tunekit/core"
)

const (
	DefaultKey      = "trending:tracks"
	DefaultHalfLife = 72 * time.Hour
)

// DefaultEpoch 是衰减权重的零点。float64 约在 1000 个半衰期后溢出，
// 72h 半衰期下约可覆盖 epoch 之后 8 年，到期前需要整体重放并更换 epoch。
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Tracker 是热度榜。
type Tracker struct {
	store    core.KeyValueStore
	key      string
	halfLife time.Duration
	epoch    time.Time
	now      func() time.Time
}

// Option 配置 Tracker。
type Option func(*Tracker)

func WithKey(key string) Option { return func(t *Tracker) { t.key = key } }

func WithHalfLife(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.halfLife = d
		}
	}
}

func WithEpoch(epoch time.Time) Option { return func(t *Tracker) { t.epoch = epoch } }

// WithClock 替换时钟，晚于当前时间的播放按当前时间计权。
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(store core.KeyValueStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		key:      DefaultKey,
		halfLife: DefaultHalfLife,
		epoch:    DefaultEpoch,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// weight 返回 ts 时刻一次播放的权重，未来时间截断到当前时间。
func (t *Tracker) weight(ts time.Time) float64 {
	if now := t.now(); ts.After(now) {
		ts = now
	}
	elapsed := ts.Sub(t.epoch).Seconds() / t.halfLife.Seconds()
	return math.Exp(math.Ln2 * elapsed)
}

// RecordPlay 记录一次播放。
func (t *Tracker) RecordPlay(ctx context.Context, trackID string, ts time.Time) error {
	if trackID == "" {
		return core.InvalidInput(core.ModuleRecommend, "trend: empty track id")
	}
	w := t.weight(ts)
	if math.IsInf(w, 0) || math.IsNaN(w) {
		return core.InvalidInput(core.ModuleRecommend, fmt.Sprintf("trend: weight overflow at %s, epoch needs rotation", ts.Format(time.RFC3339)))
	}
	if _, err := t.store.ZIncrBy(ctx, t.key, w, trackID); err != nil {
		return fmt.Errorf("trend: record %s: %w", trackID, err)
	}
	return nil
}

// Top 返回热度最高的 n 首曲目，分数按最大值归一化到 [0,1]。
func (t *Tracker) Top(ctx context.Context, n int) ([]core.ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := t.store.ZRangeWithScores(ctx, t.key, 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("trend: read top %d: %w", n, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	maxScore := raw[0].Score
	out := make([]core.ScoredMember, 0, len(raw))
	for _, m := range raw {
		score := 0.0
		if maxScore > 0 {
			score = m.Score / maxScore
		}
		out = append(out, core.ScoredMember{Member: m.Member, Score: score})
	}
	return out, nil
}
