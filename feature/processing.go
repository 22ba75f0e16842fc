package feature

import (
	"math"

	"github.com/rushteam/tunekit/core"
)

// MinMaxNormalizer Min-Max 归一化
// 公式: x' = (x - min) / (max - min)
// 只对 Dims 标记的维度生效，其余维度原样返回。
// 某一维 max == min 时该维输出 0。
type MinMaxNormalizer struct {
	Min  []float64
	Max  []float64
	Dims []bool
}

// FitMinMax 在一组向量上拟合归一化器。dims 为空表示所有维度都归一化。
// vectors 为空时返回 nil（nil 归一化器原样返回输入）。
func FitMinMax(vectors [][]float64, dims ...int) *MinMaxNormalizer {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	n := &MinMaxNormalizer{
		Min:  make([]float64, dim),
		Max:  make([]float64, dim),
		Dims: make([]bool, dim),
	}
	for i := range n.Min {
		n.Min[i] = math.Inf(1)
		n.Max[i] = math.Inf(-1)
	}
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			n.Min[i] = math.Min(n.Min[i], v[i])
			n.Max[i] = math.Max(n.Max[i], v[i])
		}
	}
	if len(dims) == 0 {
		for i := range n.Dims {
			n.Dims[i] = true
		}
	}
	for _, d := range dims {
		if d >= 0 && d < dim {
			n.Dims[d] = true
		}
	}
	return n
}

// FitAudioFeatures 在音频特征集合上拟合。
// 推荐链路只归一化 tempo（其余特征本身在 [0,1]），聚类归一化全部维度。
func FitAudioFeatures(features map[string]core.AudioFeatures, dims ...int) *MinMaxNormalizer {
	vectors := make([][]float64, 0, len(features))
	for _, f := range features {
		vectors = append(vectors, f.Vector())
	}
	return FitMinMax(vectors, dims...)
}

// Normalize 返回归一化后的新向量。
func (n *MinMaxNormalizer) Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	if n == nil {
		return out
	}
	for i := range out {
		if i >= len(n.Dims) || !n.Dims[i] {
			continue
		}
		span := n.Max[i] - n.Min[i]
		if span > 0 {
			out[i] = (v[i] - n.Min[i]) / span
		} else {
			out[i] = 0
		}
	}
	return out
}

// Denormalize 把归一化空间的向量还原到原始量纲（span 为 0 的维度还原为 min）。
func (n *MinMaxNormalizer) Denormalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	if n == nil {
		return out
	}
	for i := range out {
		if i >= len(n.Dims) || !n.Dims[i] {
			continue
		}
		out[i] = n.Min[i] + v[i]*(n.Max[i]-n.Min[i])
	}
	return out
}

var _ core.Normalizer = (*MinMaxNormalizer)(nil)
