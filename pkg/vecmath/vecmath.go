// Package vecmath 是基于 gonum/floats 的稠密向量工具。
// 所有函数要求参与运算的向量等长，长度不一致时 gonum 会 panic，调用方负责保证维度一致。
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Dot 点积。
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Euclidean 欧氏距离。
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean 欧氏距离的平方。
func SquaredEuclidean(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// Cosine 余弦相似度，任一向量为零向量时返回 0。
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// WeightedCosine 加权余弦：Σ w·a·b / (sqrt(Σ w·a²) · sqrt(Σ w·b²))。
// weights 为 0 的维度不参与计算。
func WeightedCosine(a, b, weights []float64) float64 {
	wa := make([]float64, len(a))
	wb := make([]float64, len(b))
	floats.MulTo(wa, weights, a)
	floats.MulTo(wb, weights, b)
	num := floats.Dot(wa, b)
	den := math.Sqrt(floats.Dot(wa, a)) * math.Sqrt(floats.Dot(wb, b))
	if den == 0 {
		return 0
	}
	return num / den
}

// Mean 逐维均值，vectors 为空时返回长度为 dim 的零向量。
func Mean(vectors [][]float64, dim int) []float64 {
	out := make([]float64, dim)
	if len(vectors) == 0 {
		return out
	}
	for _, v := range vectors {
		floats.Add(out, v)
	}
	floats.Scale(1/float64(len(vectors)), out)
	return out
}

// Clamp 把 x 限制在 [lo, hi]。
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
