package rerank

import (
	"context"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pipeline"
	"github.com/rushteam/tunekit/pkg/utils"
)

// Diversity 是贪心多样性重排：按输入顺序遍历，艺人已入选 MaxPerArtist 次
// 或主流派已入选 MaxPerGenre 次的曲目被跳过，不回填。
// 艺人或流派为空的维度不参与计数。
type Diversity struct {
	MaxPerArtist int // 默认 1
	MaxPerGenre  int // 默认 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func capOrDefault(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	maxArtist, maxGenre := capOrDefault(n.MaxPerArtist), capOrDefault(n.MaxPerGenre)

	artists := make(map[string]int, len(items))
	genres := make(map[string]int, len(items))
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}
		artist, genre := it.MetaString(core.MetaArtist), it.MetaString(core.MetaGenre)
		if artist != "" && artists[artist] >= maxArtist {
			continue
		}
		if genre != "" && genres[genre] >= maxGenre {
			continue
		}
		if artist != "" {
			artists[artist]++
		}
		if genre != "" {
			genres[genre]++
		}
		it.PutLabel("rerank", utils.Label{Value: "diversity", Source: "rerank"})
		out = append(out, it)
	}

	return out, nil
}
