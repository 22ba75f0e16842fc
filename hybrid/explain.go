package hybrid

import (
	"math"
	"strings"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/vecmath"
)

// FallbackConfidenceCap 兜底推荐的置信度上限。
const FallbackConfidenceCap = 0.25

// Confidence 由组合分数与贡献召回源数量推导置信度，落在 [0,1]。
//
//	conf = (1 - e^-max(score,0)) * (0.55 + 0.15*(sources-1))
//
// 组合分数是无界排序键，这里用饱和函数压到 [0,1)，来源越多置信度越高。
func Confidence(score float64, sources int) float64 {
	if sources < 1 {
		sources = 1
	}
	magnitude := 1 - math.Exp(-math.Max(score, 0))
	agreement := 0.55 + 0.15*float64(sources-1)
	return vecmath.Clamp(magnitude*agreement, 0, 1)
}

// FallbackConfidence 兜底推荐只依据流行度，置信度不超过 FallbackConfidenceCap。
func FallbackConfidence(popularity float64) float64 {
	return FallbackConfidenceCap * vecmath.Clamp(popularity, 0, 1)
}

var sourcePhrases = map[string]string{
	core.SourceCollaborative: "listeners with similar taste enjoyed it",
	core.SourceContent:       "it sounds like tracks you already play",
	core.SourceTrending:      "it is trending right now",
	core.SourceFallback:      "it is popular with everyone right now",
}

// Reason 根据贡献召回源与场景生成可读的推荐理由。
func Reason(sources []string, bundle core.ContextBundle) string {
	phrases := make([]string, 0, len(sources))
	for _, s := range sources {
		if s == core.SourceContext {
			phrases = append(phrases, contextPhrase(bundle))
			continue
		}
		if p, ok := sourcePhrases[s]; ok {
			phrases = append(phrases, p)
		}
	}
	if len(phrases) == 0 {
		return "Recommended for you"
	}
	return "Recommended because " + joinPhrases(phrases)
}

func contextPhrase(bundle core.ContextBundle) string {
	var parts []string
	if bundle.Mood != "" {
		parts = append(parts, "a "+strings.ToLower(bundle.Mood)+" mood")
	}
	if bundle.Activity != "" {
		parts = append(parts, strings.ToLower(bundle.Activity))
	}
	if bundle.TimeOfDay != "" {
		parts = append(parts, "the "+strings.ToLower(bundle.TimeOfDay))
	}
	if len(parts) == 0 {
		return "it fits the moment"
	}
	return "it fits " + joinPhrases(parts)
}

func joinPhrases(p []string) string {
	switch len(p) {
	case 1:
		return p[0]
	case 2:
		return p[0] + " and " + p[1]
	default:
		return strings.Join(p[:len(p)-1], ", ") + " and " + p[len(p)-1]
	}
}
