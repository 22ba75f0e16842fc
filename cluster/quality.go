package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/vecmath"
)

// SilhouetteSampleLimit 超过该点数时轮廓系数改为抽样计算。
const SilhouetteSampleLimit = 1000

// Silhouette 计算近似轮廓系数 mean((b-a)/max(a,b))。
// labels 中 Noise 的点不参与；非空簇少于 2 个时返回 0；单点簇的点记 0。
// perPoint 与 points 等长，未参与计算的点为 NaN。
func Silhouette(points [][]float64, labels []int, k int, rng *rand.Rand) (mean float64, perPoint []float64) {
	perPoint = make([]float64, len(points))
	for i := range perPoint {
		perPoint[i] = math.NaN()
	}
	sizes := make([]int, k)
	for _, l := range labels {
		if l >= 0 && l < k {
			sizes[l]++
		}
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return 0, perPoint
	}

	idx := make([]int, 0, len(points))
	for i, l := range labels {
		if l >= 0 && l < k {
			idx = append(idx, i)
		}
	}
	sample := idx
	if len(idx) > SilhouetteSampleLimit && rng != nil {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		sample = idx[:SilhouetteSampleLimit]
	}

	var total float64
	sums := make([]float64, k)
	for _, i := range sample {
		own := labels[i]
		if sizes[own] <= 1 {
			perPoint[i] = 0
			continue
		}
		for c := range sums {
			sums[c] = 0
		}
		for j, l := range labels {
			if j == i || l < 0 || l >= k {
				continue
			}
			sums[l] += vecmath.Euclidean(points[i], points[j])
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c, s := range sizes {
			if c == own || s == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(s))
		}
		s := 0.0
		if m := math.Max(a, b); m > 0 {
			s = (b - a) / m
		}
		perPoint[i] = s
		total += s
	}
	return total / float64(len(sample)), perPoint
}

// IntraVariance 是簇内成员到质心的平方距离之和。
func IntraVariance(members [][]float64, centroid []float64) float64 {
	var sse float64
	for _, p := range members {
		sse += vecmath.SquaredEuclidean(p, centroid)
	}
	return sse
}

// InterDistance 是非空簇质心两两距离的均值，少于 2 个时为 0。
func InterDistance(centroids [][]float64, nonEmpty []bool) float64 {
	var sum float64
	var pairs int
	for i := range centroids {
		if !nonEmpty[i] {
			continue
		}
		for j := i + 1; j < len(centroids); j++ {
			if !nonEmpty[j] {
				continue
			}
			sum += vecmath.Euclidean(centroids[i], centroids[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// quality 汇总整体与每个簇的质量指标。
func quality(points [][]float64, labels []int, centroids [][]float64, rng *rand.Rand) (core.ClusterQuality, []core.ClusterQuality) {
	k := len(centroids)
	members := make([][][]float64, k)
	memberIdx := make([][]int, k)
	for i, l := range labels {
		if l >= 0 && l < k {
			members[l] = append(members[l], points[i])
			memberIdx[l] = append(memberIdx[l], i)
		}
	}
	nonEmpty := make([]bool, k)
	for c := range members {
		nonEmpty[c] = len(members[c]) > 0
	}

	sil, perPoint := Silhouette(points, labels, k, rng)
	overall := core.ClusterQuality{
		Silhouette:    sil,
		InterDistance: InterDistance(centroids, nonEmpty),
	}
	per := make([]core.ClusterQuality, k)
	for c := range per {
		if !nonEmpty[c] {
			continue
		}
		sse := IntraVariance(members[c], centroids[c])
		overall.IntraVariance += sse
		per[c].IntraVariance = sse

		var sum float64
		var cnt int
		for _, i := range memberIdx[c] {
			if !math.IsNaN(perPoint[i]) {
				sum += perPoint[i]
				cnt++
			}
		}
		if cnt > 0 {
			per[c].Silhouette = sum / float64(cnt)
		}

		var dsum float64
		var others int
		for o := range centroids {
			if o != c && nonEmpty[o] {
				dsum += vecmath.Euclidean(centroids[c], centroids[o])
				others++
			}
		}
		if others > 0 {
			per[c].InterDistance = dsum / float64(others)
		}
	}
	return overall, per
}
