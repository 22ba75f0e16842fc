// Package model 是在线矩阵分解模型：隐向量存储 + SGD 增量更新。
package model

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rushteam/tunekit/core"
)

// FactorKind 区分用户向量与曲目向量。
type FactorKind string

const (
	FactorUser FactorKind = "user"
	FactorItem FactorKind = "item"
)

// FactorStore 持有用户/曲目隐向量。
//
// 读写约定：
//   - 读：无锁，返回的切片是已发布的快照，调用方不得修改
//   - 写：复制后整体替换（copy-on-write）；同一 key 的写入由调用方串行化（见 MatrixFactorization）
//   - 向量在第一次被引用时以 [0, InitScale) 的均匀随机值创建，之后不会被删除
type FactorStore struct {
	dim       int
	initScale float64

	users sync.Map // id -> *factorCell
	items sync.Map

	rngMu sync.Mutex
	rng   *rand.Rand
}

type factorCell struct {
	vec atomic.Pointer[[]float64]
}

// NewFactorStore 创建存储。seed 固定时初始化可复现（在创建顺序一致的前提下）。
func NewFactorStore(dim int, initScale float64, seed uint64) *FactorStore {
	return &FactorStore{
		dim:       dim,
		initScale: initScale,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Dim 返回隐向量维度。
func (s *FactorStore) Dim() int { return s.dim }

func (s *FactorStore) table(kind FactorKind) *sync.Map {
	if kind == FactorUser {
		return &s.users
	}
	return &s.items
}

func (s *FactorStore) randomVector() []float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	v := make([]float64, s.dim)
	for i := range v {
		v[i] = s.rng.Float64() * s.initScale
	}
	return v
}

// cell 取得（必要时创建）向量单元。并发创建时只有一个生效。
func (s *FactorStore) cell(kind FactorKind, id string) *factorCell {
	t := s.table(kind)
	if c, ok := t.Load(id); ok {
		return c.(*factorCell)
	}
	fresh := &factorCell{}
	v := s.randomVector()
	fresh.vec.Store(&v)
	actual, _ := t.LoadOrStore(id, fresh)
	return actual.(*factorCell)
}

// Vector 返回向量快照，不存在时惰性创建。
func (s *FactorStore) Vector(kind FactorKind, id string) []float64 {
	return *s.cell(kind, id).vec.Load()
}

// Peek 返回已存在的向量，不创建。
func (s *FactorStore) Peek(kind FactorKind, id string) ([]float64, bool) {
	c, ok := s.table(kind).Load(id)
	if !ok {
		return nil, false
	}
	return *c.(*factorCell).vec.Load(), true
}

// Set 发布新向量（复制后存入）。维度不符时返回 INVALID_INPUT。
func (s *FactorStore) Set(kind FactorKind, id string, vec []float64) error {
	if len(vec) != s.dim {
		return core.InvalidInput(core.ModuleModel,
			fmt.Sprintf("model: %s vector %q has dim %d, want %d", kind, id, len(vec), s.dim))
	}
	cp := make([]float64, len(vec))
	copy(cp, vec)
	s.cell(kind, id).vec.Store(&cp)
	return nil
}

// IDs 返回已创建向量的 ID（排序后）。
func (s *FactorStore) IDs(kind FactorKind) []string {
	var out []string
	s.table(kind).Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

// Len 返回已创建向量的数量。
func (s *FactorStore) Len(kind FactorKind) int {
	n := 0
	s.table(kind).Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
