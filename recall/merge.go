package recall

import (
	"github.com/rushteam/tunekit/core"
)

// MergeStrategy 把多个召回源的结果合并为一个候选列表。
type MergeStrategy interface {
	Merge(results []SourceResult) []*core.Item
}

// FirstMergeStrategy 按 ID 去重，保留第一个出现的（按召回源顺序），合并 labels。
type FirstMergeStrategy struct{}

func (FirstMergeStrategy) Merge(results []SourceResult) []*core.Item {
	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, res := range results {
		for _, it := range res.Items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

// UnionMergeStrategy 合并所有结果，不去重（用于需要保留所有来源的场景）。
type UnionMergeStrategy struct{}

func (UnionMergeStrategy) Merge(results []SourceResult) []*core.Item {
	var out []*core.Item
	for _, res := range results {
		for _, it := range res.Items {
			if it != nil {
				out = append(out, it)
			}
		}
	}
	return out
}

// DefaultSourceWeights 各召回源的默认权重。
var DefaultSourceWeights = map[string]float64{
	core.SourceCollaborative: 0.40,
	core.SourceContent:       0.35,
	core.SourceContext:       0.20,
	core.SourceTrending:      0.05,
}

// WeightedMergeStrategy 加权累加：同一曲目被多个召回源召回时，
// combined = Σ score_s * weight_s（累加而非平均，结果无界，仅用作排序键）。
// 未配置权重的召回源权重为 0。
type WeightedMergeStrategy struct {
	Weights map[string]float64
}

func (s *WeightedMergeStrategy) Merge(results []SourceResult) []*core.Item {
	weights := s.Weights
	if weights == nil {
		weights = DefaultSourceWeights
	}
	merged := make(map[string]*core.Item)
	var order []string
	for _, res := range results {
		w := weights[res.Name]
		for _, it := range res.Items {
			if it == nil {
				continue
			}
			acc, ok := merged[it.ID]
			if !ok {
				acc = it.Clone()
				acc.Score = 0
				merged[it.ID] = acc
				order = append(order, it.ID)
			} else {
				for k, v := range it.Labels {
					acc.PutLabel(k, v)
				}
			}
			acc.Score += it.Score * w
			acc.Features = mergeFeatures(acc.Features, it.Features)
			acc.Meta["score_"+res.Name] = it.Score
		}
	}
	out := make([]*core.Item, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return out
}

func mergeFeatures(dst, src map[string]float64) map[string]float64 {
	if len(dst) > 0 || len(src) == 0 {
		return dst
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
