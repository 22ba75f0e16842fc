package model

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/store"
)

func constVec(dim int, v float64) []float64 {
	out := make([]float64, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestFactorStore_LazyInit(t *testing.T) {
	s := NewFactorStore(8, 0.1, 7)
	_, ok := s.Peek(FactorUser, "u1")
	assert.False(t, ok)

	v := s.Vector(FactorUser, "u1")
	require.Len(t, v, 8)
	for _, x := range v {
		assert.GreaterOrEqual(t, x, 0.0)
		assert.Less(t, x, 0.1)
	}
	again := s.Vector(FactorUser, "u1")
	assert.Equal(t, v, again, "created once")
	assert.Equal(t, 1, s.Len(FactorUser))
	assert.Equal(t, 0, s.Len(FactorItem))
}

func TestFactorStore_SetDimMismatch(t *testing.T) {
	s := NewFactorStore(4, 0.1, 1)
	err := s.Set(FactorItem, "t1", []float64{1, 2})
	assert.True(t, core.IsInvalidInput(err))
}

func TestFactorStore_CopyOnWrite(t *testing.T) {
	s := NewFactorStore(2, 0.1, 1)
	in := []float64{1, 2}
	require.NoError(t, s.Set(FactorUser, "u", in))
	in[0] = 99
	snap := s.Vector(FactorUser, "u")
	assert.Equal(t, []float64{1, 2}, snap)

	require.NoError(t, s.Set(FactorUser, "u", []float64{3, 4}))
	assert.Equal(t, []float64{1, 2}, snap, "old snapshot is untouched")
}

func TestMF_DimensionsShared(t *testing.T) {
	m := NewMatrixFactorization(Config{Dim: 16})
	m.Predict("u1", "t1")
	m.Update("u2", "t2", 1)
	for _, kind := range []FactorKind{FactorUser, FactorItem} {
		for _, id := range m.Factors().IDs(kind) {
			v, _ := m.Factors().Peek(kind, id)
			assert.Len(t, v, 16)
		}
	}
}

func TestMF_PredictUnclamped(t *testing.T) {
	m := NewMatrixFactorization(Config{Dim: 2})
	require.NoError(t, m.Factors().Set(FactorUser, "u", []float64{3, 3}))
	require.NoError(t, m.Factors().Set(FactorItem, "t", []float64{2, 2}))
	m.SetGlobalBias(0.5)
	assert.InDelta(t, 12.5, m.Predict("u", "t"), 1e-9)
}

func TestMF_UpdateRaisesPositivePair(t *testing.T) {
	m := NewMatrixFactorization(DefaultConfig())
	dim := m.Config().Dim
	// dot = 50 * 0.02 * 0.2 = 0.2
	require.NoError(t, m.Factors().Set(FactorUser, "u", constVec(dim, 0.02)))
	require.NoError(t, m.Factors().Set(FactorItem, "t", constVec(dim, 0.2)))
	before := m.Predict("u", "t")
	require.InDelta(t, 0.2, before, 1e-9)

	e := m.Update("u", "t", 1)
	assert.InDelta(t, 0.8, e, 1e-9)
	after := m.Predict("u", "t")
	assert.Greater(t, after, before)
	assert.InDelta(t, 0.01*0.8, m.GlobalBias(), 1e-12)
}

func TestMF_UpdateFormula(t *testing.T) {
	m := NewMatrixFactorization(Config{Dim: 1, LearningRate: 0.1, Regularization: 0.5})
	require.NoError(t, m.Factors().Set(FactorUser, "u", []float64{1}))
	require.NoError(t, m.Factors().Set(FactorItem, "t", []float64{2}))

	e := m.Update("u", "t", 4) // predict = 2, e = 2
	assert.InDelta(t, 2.0, e, 1e-9)
	p, _ := m.Factors().Peek(FactorUser, "u")
	q, _ := m.Factors().Peek(FactorItem, "t")
	assert.InDelta(t, 1+0.1*(2*2-0.5*1), p[0], 1e-9) // 1.35
	assert.InDelta(t, 2+0.1*(2*1-0.5*2), q[0], 1e-9) // 2.1
	assert.InDelta(t, 0.2, m.GlobalBias(), 1e-9)
}

func TestMF_ZeroRegularization(t *testing.T) {
	m := NewMatrixFactorization(Config{Dim: 1, LearningRate: 0.1})
	assert.Zero(t, m.Config().Regularization)
	require.NoError(t, m.Factors().Set(FactorUser, "u", []float64{1}))
	require.NoError(t, m.Factors().Set(FactorItem, "t", []float64{2}))

	m.Update("u", "t", 2) // e = 0，无正则时因子不变
	p, _ := m.Factors().Peek(FactorUser, "u")
	q, _ := m.Factors().Peek(FactorItem, "t")
	assert.InDelta(t, 1.0, p[0], 1e-12)
	assert.InDelta(t, 2.0, q[0], 1e-12)

	neg := NewMatrixFactorization(Config{Dim: 1, Regularization: -1})
	assert.Equal(t, DefaultConfig().Regularization, neg.Config().Regularization)
}

func TestMF_ConcurrentUpdates(t *testing.T) {
	m := NewMatrixFactorization(Config{Dim: 8, LockStripes: 4})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				m.Update(fmt.Sprintf("u%d", i%5), fmt.Sprintf("t%d", (i+w)%7), 1)
				_ = m.Predict("u0", "t0")
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 5, m.Factors().Len(FactorUser))
	assert.Equal(t, 7, m.Factors().Len(FactorItem))
	assert.Greater(t, m.GlobalBias(), 0.0)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()

	src := NewMatrixFactorization(Config{Dim: 4})
	src.Update("u1", "t1", 1)
	src.Update("u2", "t2", 0)
	require.NoError(t, Snapshot(ctx, kv, src, ""))

	dst := NewMatrixFactorization(Config{Dim: 4, Seed: 999})
	require.NoError(t, Restore(ctx, kv, dst, ""))
	assert.Equal(t, src.GlobalBias(), dst.GlobalBias())
	assert.Equal(t, src.Factors().IDs(FactorUser), dst.Factors().IDs(FactorUser))
	assert.InDelta(t, src.Predict("u1", "t1"), dst.Predict("u1", "t1"), 1e-12)

	wrongDim := NewMatrixFactorization(Config{Dim: 3})
	assert.True(t, core.IsInvalidInput(Restore(ctx, kv, wrongDim, "")))

	empty := NewMatrixFactorization(Config{Dim: 4})
	assert.True(t, core.IsStoreNotFound(Restore(ctx, kv, empty, "other")))
}
