package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/logging"
)

// GuardConfig 熔断与限流参数。
type GuardConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	// 每秒请求数，<=0 表示不限流
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
	// 连续失败多少次后打开熔断
	MaxFailures uint32        `mapstructure:"max_failures" yaml:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" yaml:"open_timeout"`
	// 半开状态允许的探测请求数
	HalfOpenRequests uint32 `mapstructure:"half_open_requests" yaml:"half_open_requests"`
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:             "summarizer",
		RatePerSecond:    2,
		Burst:            4,
		MaxFailures:      3,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 1,
	}
}

// Guarded 给 Summarizer 加熔断与限流：熔断打开或等待令牌超时时直接返回
// core.ErrSummarizerUnavailable，调用方回退到默认标签。
type Guarded struct {
	next    core.Summarizer
	cb      *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewGuarded 包装 next，零值字段使用 DefaultGuardConfig。
func NewGuarded(next core.Summarizer, cfg GuardConfig, logger logging.Logger) *Guarded {
	d := DefaultGuardConfig()
	if cfg.Name == "" {
		cfg.Name = d.Name
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = d.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = d.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = d.HalfOpenRequests
	}
	logger = logging.OrNop(logger).Named("summarizer")

	g := &Guarded{next: next, logger: logger}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	maxFailures := cfg.MaxFailures
	g.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("name", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})
	return g
}

// State 返回熔断器当前状态。
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

func (g *Guarded) Summarize(ctx context.Context, description string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit: %v", core.ErrSummarizerUnavailable, err)
		}
	}
	label, err := g.cb.Execute(func() (string, error) {
		return g.next.Summarize(ctx, description)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", core.ErrSummarizerUnavailable, err)
	}
	return label, err
}
