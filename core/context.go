package core

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/rushteam/tunekit/pkg/utils"
)

// ContextBundle 是请求的收听场景：心情 / 活动 / 时段。
type ContextBundle struct {
	Mood      string `json:"mood,omitempty" yaml:"mood"`
	Activity  string `json:"activity,omitempty" yaml:"activity"`
	TimeOfDay string `json:"time_of_day,omitempty" yaml:"time_of_day"`
}

// IsZero 表示未指定任何场景。
func (c ContextBundle) IsZero() bool {
	return c.Mood == "" && c.Activity == "" && c.TimeOfDay == ""
}

// Hash 返回场景的稳定短哈希，用作缓存 key 的一部分。大小写与首尾空白不敏感。
func (c ContextBundle) Hash() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	raw := norm(c.Mood) + "\x1f" + norm(c.Activity) + "\x1f" + norm(c.TimeOfDay)
	return strconv.FormatUint(xxhash.Sum64String(raw), 16)
}

// Normalizer 把原始音频特征向量映射到相似度计算使用的空间。
type Normalizer interface {
	Normalize(v []float64) []float64
}

// RecommendContext 承载用户/场景/候选/特征，贯穿整个 Pipeline 透传。
// 召回源并发读取，进入 Fanout 之后不应再修改。
type RecommendContext struct {
	UserID string

	// User 是用户画像（可见历史 + 偏好向量）
	User *UserProfile

	// Context 是请求的场景，Target 是由场景推导出的归一化目标特征（name -> value）
	Context ContextBundle
	Target  map[string]float64

	// Candidates 是候选曲目目录，Tracks 是按 ID 的索引
	Candidates []Track
	Tracks     map[string]Track

	// Features 是候选 ∪ 历史 的原始音频特征；缺失的曲目不在 map 中
	Features   map[string]AudioFeatures
	Normalizer Normalizer

	Limit int

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级参数，例如 rule（CEL 表达式）
	Params map[string]any
}

// SetCandidates 写入候选目录并建立索引。
func (rctx *RecommendContext) SetCandidates(tracks []Track) {
	rctx.Candidates = tracks
	rctx.Tracks = make(map[string]Track, len(tracks))
	for _, t := range tracks {
		rctx.Tracks[t.ID] = t
	}
}

// Track 按 ID 查找候选曲目。
func (rctx *RecommendContext) Track(id string) (Track, bool) {
	t, ok := rctx.Tracks[id]
	return t, ok
}

// Vector 返回曲目的归一化特征向量；没有特征时 ok=false。
func (rctx *RecommendContext) Vector(trackID string) ([]float64, bool) {
	f, ok := rctx.Features[trackID]
	if !ok {
		return nil, false
	}
	v := f.Vector()
	if rctx.Normalizer != nil {
		v = rctx.Normalizer.Normalize(v)
	}
	return v, true
}

// InHistory 判断曲目是否在用户可见历史中。
func (rctx *RecommendContext) InHistory(trackID string) bool {
	if rctx.User == nil {
		return false
	}
	return rctx.User.Listened(trackID)
}

// ParamString 读取字符串型请求参数。
func (rctx *RecommendContext) ParamString(key string) string {
	if rctx.Params == nil {
		return ""
	}
	s, _ := rctx.Params[key].(string)
	return s
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
