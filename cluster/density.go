package cluster

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/tunekit/pkg/vecmath"
)

// Noise 是不属于任何簇的点的标签。
const Noise = -1

// DistanceMatrix 计算两两欧氏距离。
func DistanceMatrix(points [][]float64) *mat.SymDense {
	n := len(points)
	if n == 0 {
		return nil
	}
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, vecmath.Euclidean(points[i], points[j]))
		}
	}
	return d
}

// Density 是简化的密度聚类：
// 邻居数（距离 <= eps，不含自身）不少于 minNeighbors 的点是核心点，
// 从核心点出发用队列迭代吸收邻居；最终规模小于 minClusterSize 的簇被丢弃，成员记为 Noise。
// 返回每个点的簇标签（从 0 连续编号）与簇数。
func Density(ctx context.Context, dist *mat.SymDense, eps float64, minNeighbors, minClusterSize int) ([]int, int, error) {
	if dist == nil {
		return nil, 0, nil
	}
	n := dist.SymmetricDim()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)

	neighbors := func(p int) []int {
		var out []int
		for q := 0; q < n; q++ {
			if q != p && dist.At(p, q) <= eps {
				out = append(out, q)
			}
		}
		return out
	}

	next := 0
	for p := 0; p < n; p++ {
		if visited[p] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		visited[p] = true
		seeds := neighbors(p)
		if len(seeds) < minNeighbors {
			continue
		}

		id := next
		next++
		labels[p] = id
		queue := seeds
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] == Noise {
				labels[q] = id
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			if nq := neighbors(q); len(nq) >= minNeighbors {
				queue = append(queue, nq...)
			}
		}
	}

	// 丢弃过小的簇并重新编号
	sizes := make([]int, next)
	for _, l := range labels {
		if l != Noise {
			sizes[l]++
		}
	}
	remap := make([]int, next)
	kept := 0
	for id, size := range sizes {
		if size >= minClusterSize {
			remap[id] = kept
			kept++
		} else {
			remap[id] = Noise
		}
	}
	for i, l := range labels {
		if l != Noise {
			labels[i] = remap[l]
		}
	}
	return labels, kept, nil
}
