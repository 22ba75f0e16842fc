package eval

import (
	"math"

	"github.com/rushteam/tunekit/pkg/vecmath"
)

func hitsAt(recs []string, relevant map[string]struct{}, k int) int {
	hits := 0
	for i := 0; i < k && i < len(recs); i++ {
		if _, ok := relevant[recs[i]]; ok {
			hits++
		}
	}
	return hits
}

// PrecisionAtK = |前 k 个中的命中| / k。
func PrecisionAtK(recs []string, relevant map[string]struct{}, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hitsAt(recs, relevant, k)) / float64(k)
}

// RecallAtK = |前 k 个中的命中| / |relevant|。
func RecallAtK(recs []string, relevant map[string]struct{}, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(hitsAt(recs, relevant, k)) / float64(len(relevant))
}

// MRR 是前 k 个中首个命中排名的倒数，没有命中为 0。
func MRR(recs []string, relevant map[string]struct{}, k int) float64 {
	for i := 0; i < k && i < len(recs); i++ {
		if _, ok := relevant[recs[i]]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK 二值相关性，折损 1/log2(rank+1)。
func NDCGAtK(recs []string, relevant map[string]struct{}, k int) float64 {
	var dcg float64
	for i := 0; i < k && i < len(recs); i++ {
		if _, ok := relevant[recs[i]]; ok {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}
	var idcg float64
	for i := 0; i < k && i < len(relevant); i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// Similarity 是两个特征向量的相似度；任一缺失时为 0。
type Similarity func(a, b []float64) float64

// CosineSimilarity 余弦相似度，截断到 [0,1]。
func CosineSimilarity(a, b []float64) float64 {
	if a == nil || b == nil {
		return 0
	}
	return vecmath.Clamp(vecmath.Cosine(a, b), 0, 1)
}

// Diversity = 1 - 推荐列表内两两相似度的均值。
// 缺失特征的曲目不参与；没有有效配对时平均相似度为 0。
func Diversity(vectors [][]float64, sim Similarity) float64 {
	var sum float64
	var pairs int
	for i := range vectors {
		if vectors[i] == nil {
			continue
		}
		for j := i + 1; j < len(vectors); j++ {
			if vectors[j] == nil {
				continue
			}
			sum += sim(vectors[i], vectors[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 1
	}
	return 1 - sum/float64(pairs)
}

// Novelty = 1 - 推荐曲目与训练历史之间相似度的均值。
func Novelty(recs, history [][]float64, sim Similarity) float64 {
	var sum float64
	var pairs int
	for _, r := range recs {
		if r == nil {
			continue
		}
		for _, h := range history {
			if h == nil {
				continue
			}
			sum += sim(r, h)
			pairs++
		}
	}
	if pairs == 0 {
		return 1
	}
	return 1 - sum/float64(pairs)
}
