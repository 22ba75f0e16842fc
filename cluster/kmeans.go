package cluster

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rushteam/tunekit/pkg/vecmath"
)

// KMeansResult 是一次 k-means 的输出。
type KMeansResult struct {
	// Centroids 恰好 k 个，没有成员的槽位为零向量
	Centroids   [][]float64
	Assignments []int
	// Inertia 每轮分配后的 SSE，单调不增
	Inertia    []float64
	Iterations int
	Converged  bool
}

// FinalInertia 返回最后一轮的 SSE。
func (r *KMeansResult) FinalInertia() float64 {
	if len(r.Inertia) == 0 {
		return 0
	}
	return r.Inertia[len(r.Inertia)-1]
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// KMeans 是 Lloyd 迭代的 k-means。
//
// 初始化为 Forgy：用种子随机数不放回地抽 min(k, n) 个点作为初始质心，
// k > n 时多出的槽位保持零向量。迭代直到质心最大位移小于 tol 或达到 maxIter。
// 每轮检查 ctx，取消时返回 ctx.Err()。
func KMeans(ctx context.Context, points [][]float64, k, maxIter int, tol float64, seed uint64) (*KMeansResult, error) {
	n := len(points)
	if n == 0 || k <= 0 {
		return &KMeansResult{}, nil
	}
	dim := len(points[0])
	rng := newRNG(seed)

	centroids := make([][]float64, k)
	perm := rng.Perm(n)
	for c := range centroids {
		centroids[c] = make([]float64, dim)
		if c < n {
			copy(centroids[c], points[perm[c]])
		}
	}

	res := &KMeansResult{Assignments: make([]int, n)}
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter + 1

		inertia := assign(points, centroids, res.Assignments)
		res.Inertia = append(res.Inertia, inertia)

		next := recompute(points, res.Assignments, k, dim)
		moved := 0.0
		for c := range centroids {
			moved = math.Max(moved, vecmath.Euclidean(centroids[c], next[c]))
		}
		centroids = next
		if moved < tol {
			res.Converged = true
			break
		}
	}
	res.Centroids = centroids
	return res, nil
}

// assign 把每个点分给最近的质心（距离相同取下标小的），返回 SSE。
func assign(points, centroids [][]float64, assignments []int) float64 {
	var sse float64
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := vecmath.SquaredEuclidean(p, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		assignments[i] = best
		sse += bestDist
	}
	return sse
}

// recompute 计算新质心，没有成员的簇为零向量。
func recompute(points [][]float64, assignments []int, k, dim int) [][]float64 {
	members := make([][][]float64, k)
	for i, c := range assignments {
		members[c] = append(members[c], points[i])
	}
	out := make([][]float64, k)
	for c := range out {
		out[c] = vecmath.Mean(members[c], dim)
	}
	return out
}
