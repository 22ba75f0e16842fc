package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/logging"
)

type descriptorRule struct {
	feature string
	above   bool
	cut     float64
	text    string
}

// 描述规则基于原始特征均值，tempo 为 BPM。
var descriptorRules = []descriptorRule{
	{"energy", true, 0.7, "High Energy"},
	{"energy", false, 0.3, "Low Energy"},
	{"danceability", true, 0.7, "Danceable"},
	{"valence", true, 0.7, "Upbeat"},
	{"valence", false, 0.3, "Melancholic"},
	{"acousticness", true, 0.7, "Very Acoustic"},
	{"instrumentalness", true, 0.7, "Instrumental"},
	{"speechiness", true, 0.66, "Spoken Word"},
	{"liveness", true, 0.8, "Live"},
	{"tempo", true, 140, "Fast Tempo"},
	{"tempo", false, 80, "Slow Tempo"},
}

// Descriptors 从特征均值推导定性描述。
func Descriptors(means map[string]float64) []string {
	var out []string
	for _, r := range descriptorRules {
		v, ok := means[r.feature]
		if !ok {
			continue
		}
		if (r.above && v > r.cut) || (!r.above && v < r.cut) {
			out = append(out, r.text)
		}
	}
	return out
}

// DefaultLabel 是通用标签，序号从 1 开始。
func DefaultLabel(id int) string {
	return fmt.Sprintf("Cluster %d", id+1)
}

// Describe 生成交给 Summarizer 的描述文本。
func Describe(c core.Cluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A group of %d music tracks", len(c.TrackIDs))
	if len(c.Descriptors) > 0 {
		b.WriteString(" described as: " + strings.Join(c.Descriptors, ", "))
	}
	b.WriteString(". Mean audio features:")
	for _, name := range core.FeatureNames {
		if v, ok := c.FeatureMeans[name]; ok {
			fmt.Fprintf(&b, " %s=%.2f", name, v)
		}
	}
	b.WriteString(". Reply with a short playlist-style name.")
	return b.String()
}

// labelClusters 为非空簇请求标签，失败或空结果使用 DefaultLabel。
func labelClusters(ctx context.Context, s core.Summarizer, logger logging.Logger, clusters []core.Cluster) {
	for i := range clusters {
		c := &clusters[i]
		c.Label = DefaultLabel(c.ID)
		if s == nil || len(c.TrackIDs) == 0 {
			continue
		}
		label, err := s.Summarize(ctx, Describe(*c))
		if errors.Is(err, core.ErrSummarizerUnavailable) {
			// 未配置或熔断中，回退默认标签属于预期路径
			logger.Debug("summarizer unavailable, using default label", logging.Int("cluster", c.ID), logging.Err(err))
			continue
		}
		if err != nil {
			logger.Warn("summarize cluster failed", logging.Int("cluster", c.ID), logging.Err(err))
			continue
		}
		if label = strings.TrimSpace(label); label != "" {
			c.Label = label
		}
	}
}
