package model

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pkg/vecmath"
)

// Config 是矩阵分解超参数。
type Config struct {
	Dim            int     `mapstructure:"dim" yaml:"dim"`
	LearningRate   float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Regularization float64 `mapstructure:"regularization" yaml:"regularization"`
	InitScale      float64 `mapstructure:"init_scale" yaml:"init_scale"`
	Seed           uint64  `mapstructure:"seed" yaml:"seed"`
	LockStripes    int     `mapstructure:"lock_stripes" yaml:"lock_stripes"`
}

// DefaultConfig k=50, lr=0.01, L2=0.01。
func DefaultConfig() Config {
	return Config{
		Dim:            50,
		LearningRate:   0.01,
		Regularization: 0.01,
		InitScale:      0.1,
		Seed:           42,
		LockStripes:    256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Dim <= 0 {
		c.Dim = d.Dim
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	// 0 表示关闭 L2 正则，只有负值回退默认。
	if c.Regularization < 0 {
		c.Regularization = d.Regularization
	}
	if c.InitScale <= 0 {
		c.InitScale = d.InitScale
	}
	if c.LockStripes <= 0 {
		c.LockStripes = d.LockStripes
	}
	return c
}

// MatrixFactorization 是在线矩阵分解模型。
//
//	predict(u, i) = dot(p_u, q_i) + b
//	e = r - predict(u, i)
//	p_u += lr * (e*q_i - reg*p_u)
//	q_i += lr * (e*p_u - reg*q_i)
//	b   += lr * e
//
// 预测值不做截断，只用于排序。
// 涉及同一用户或同一曲目的更新通过分段锁串行化，无全局锁；预测无锁。
type MatrixFactorization struct {
	cfg     Config
	factors *FactorStore
	bias    atomic.Uint64 // math.Float64bits
	stripes []sync.Mutex
}

// NewMatrixFactorization 创建模型，未设置的超参数使用默认值。
func NewMatrixFactorization(cfg Config) *MatrixFactorization {
	cfg = cfg.withDefaults()
	return &MatrixFactorization{
		cfg:     cfg,
		factors: NewFactorStore(cfg.Dim, cfg.InitScale, cfg.Seed),
		stripes: make([]sync.Mutex, cfg.LockStripes),
	}
}

// Config 返回生效的超参数。
func (m *MatrixFactorization) Config() Config { return m.cfg }

// Factors 返回隐向量存储。
func (m *MatrixFactorization) Factors() *FactorStore { return m.factors }

// GlobalBias 返回全局偏置。
func (m *MatrixFactorization) GlobalBias() float64 {
	return math.Float64frombits(m.bias.Load())
}

// SetGlobalBias 覆盖全局偏置（用于快照恢复）。
func (m *MatrixFactorization) SetGlobalBias(b float64) {
	m.bias.Store(math.Float64bits(b))
}

func (m *MatrixFactorization) addBias(delta float64) {
	for {
		old := m.bias.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if m.bias.CompareAndSwap(old, next) {
			return
		}
	}
}

// Predict 返回 dot(p_u, q_i) + b，首次引用的向量会被创建。
func (m *MatrixFactorization) Predict(userID, itemID string) float64 {
	p := m.factors.Vector(FactorUser, userID)
	q := m.factors.Vector(FactorItem, itemID)
	return vecmath.Dot(p, q) + m.GlobalBias()
}

func (m *MatrixFactorization) stripe(kind FactorKind, id string) int {
	h := xxhash.Sum64String(string(kind) + ":" + id)
	return int(h % uint64(len(m.stripes)))
}

// lockPair 按下标顺序加锁，避免死锁；同一段只锁一次。
func (m *MatrixFactorization) lockPair(userID, itemID string) func() {
	a, b := m.stripe(FactorUser, userID), m.stripe(FactorItem, itemID)
	if a > b {
		a, b = b, a
	}
	m.stripes[a].Lock()
	if a != b {
		m.stripes[b].Lock()
	}
	return func() {
		if a != b {
			m.stripes[b].Unlock()
		}
		m.stripes[a].Unlock()
	}
}

// Update 执行一步 SGD，返回更新前的误差 r - predict。
func (m *MatrixFactorization) Update(userID, itemID string, rating float64) float64 {
	unlock := m.lockPair(userID, itemID)
	defer unlock()

	p := m.factors.Vector(FactorUser, userID)
	q := m.factors.Vector(FactorItem, itemID)
	e := rating - (vecmath.Dot(p, q) + m.GlobalBias())

	lr, reg := m.cfg.LearningRate, m.cfg.Regularization
	np := make([]float64, len(p))
	nq := make([]float64, len(q))
	for i := range p {
		np[i] = p[i] + lr*(e*q[i]-reg*p[i])
		nq[i] = q[i] + lr*(e*p[i]-reg*q[i])
	}
	// 维度由 FactorStore 保证一致，Set 不会失败
	_ = m.factors.Set(FactorUser, userID, np)
	_ = m.factors.Set(FactorItem, itemID, nq)
	m.addBias(lr * e)

	metrics.ModelUpdates.Inc()
	return e
}
