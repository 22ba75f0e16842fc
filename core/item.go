package core

import (
	"strings"

	"github.com/rushteam/tunekit/pkg/utils"
)

// Item 元信息常用 key。
const (
	MetaArtist     = "artist"
	MetaGenre      = "genre"
	MetaPopularity = "popularity"
	MetaTitle      = "title"
)

// LabelRecallSource 记录贡献该候选的召回源，多个来源按 MergeLabel 规则以 '|' 累积。
const LabelRecallSource = "recall_source"

// Item 是推荐链路中的统一承载结构：特征、分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID       string
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// NewTrackItem 以曲目目录信息填充 Meta。
func NewTrackItem(t Track) *Item {
	it := NewItem(t.ID)
	it.Meta[MetaArtist] = t.Artist
	it.Meta[MetaGenre] = t.Genre
	it.Meta[MetaPopularity] = t.Popularity
	it.Meta[MetaTitle] = t.Title
	return it
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// MetaString 读取字符串型 Meta，不存在或类型不符返回空串。
func (it *Item) MetaString(key string) string {
	if it.Meta == nil {
		return ""
	}
	s, _ := it.Meta[key].(string)
	return s
}

// Sources 返回去重后的召回来源，保持首次出现的顺序。
func (it *Item) Sources() []string {
	lbl, ok := it.Labels[LabelRecallSource]
	if !ok || lbl.Value == "" {
		return nil
	}
	parts := strings.Split(lbl.Value, "|")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if _, dup := seen[p]; dup || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Clone 浅拷贝 Item（map 重新分配），用于合并阶段避免修改召回源的输出。
func (it *Item) Clone() *Item {
	out := &Item{
		ID:       it.ID,
		Score:    it.Score,
		Features: make(map[string]float64, len(it.Features)),
		Meta:     make(map[string]any, len(it.Meta)),
		Labels:   make(map[string]utils.Label, len(it.Labels)),
	}
	for k, v := range it.Features {
		out.Features[k] = v
	}
	for k, v := range it.Meta {
		out.Meta[k] = v
	}
	for k, v := range it.Labels {
		out.Labels[k] = v
	}
	return out
}
