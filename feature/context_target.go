package feature

import (
	"sort"
	"strings"

	"github.com/rushteam/tunekit/core"
)

// 场景 -> 目标音频特征。取值位于推荐链路的归一化空间（tempo 已按候选集 min-max）。
var (
	moodTargets = map[string]map[string]float64{
		"happy":     {"valence": 0.85, "energy": 0.70, "danceability": 0.70},
		"sad":       {"valence": 0.20, "energy": 0.30, "acousticness": 0.60},
		"energetic": {"energy": 0.90, "danceability": 0.75, "tempo": 0.80},
		"calm":      {"energy": 0.25, "acousticness": 0.70, "tempo": 0.30},
		"chill":     {"energy": 0.35, "valence": 0.55, "acousticness": 0.50, "tempo": 0.35},
		"angry":     {"energy": 0.90, "valence": 0.25, "tempo": 0.75},
		"romantic":  {"valence": 0.65, "energy": 0.40, "acousticness": 0.55},
		"focused":   {"instrumentalness": 0.70, "speechiness": 0.05, "energy": 0.40},
	}

	activityTargets = map[string]map[string]float64{
		"workout":  {"energy": 0.90, "danceability": 0.80, "tempo": 0.85},
		"running":  {"energy": 0.85, "tempo": 0.90, "danceability": 0.65},
		"study":    {"instrumentalness": 0.70, "energy": 0.30, "speechiness": 0.05},
		"focus":    {"instrumentalness": 0.70, "energy": 0.35, "speechiness": 0.05},
		"sleep":    {"energy": 0.10, "acousticness": 0.80, "tempo": 0.15, "instrumentalness": 0.60},
		"party":    {"danceability": 0.85, "energy": 0.85, "valence": 0.75},
		"commute":  {"energy": 0.55, "valence": 0.60},
		"cooking":  {"valence": 0.70, "energy": 0.50, "danceability": 0.60},
		"relaxing": {"energy": 0.25, "acousticness": 0.65, "tempo": 0.30},
	}

	timeOfDayTargets = map[string]map[string]float64{
		"morning":   {"energy": 0.60, "valence": 0.70},
		"afternoon": {"energy": 0.65, "danceability": 0.60},
		"evening":   {"energy": 0.45, "acousticness": 0.45},
		"night":     {"energy": 0.30, "acousticness": 0.60, "tempo": 0.35},
	}
)

// ContextTarget 把场景映射为目标特征。多个维度同时指定同一特征时取均值；
// 未知名称被忽略；完全无法映射时返回 nil，context 召回据此跳过。
func ContextTarget(bundle core.ContextBundle) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	add := func(table map[string]map[string]float64, name string) {
		target, ok := table[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return
		}
		for feat, v := range target {
			if core.FeatureIndex(feat) < 0 {
				continue
			}
			sums[feat] += v
			counts[feat]++
		}
	}
	add(moodTargets, bundle.Mood)
	add(activityTargets, bundle.Activity)
	add(timeOfDayTargets, bundle.TimeOfDay)
	if len(sums) == 0 {
		return nil
	}
	out := make(map[string]float64, len(sums))
	for feat, s := range sums {
		out[feat] = s / float64(counts[feat])
	}
	return out
}

// KnownMoods 返回支持的心情名称（排序后），用于 CLI 帮助。
func KnownMoods() []string { return sortedKeys(moodTargets) }

// KnownActivities 返回支持的活动名称。
func KnownActivities() []string { return sortedKeys(activityTargets) }

// KnownTimesOfDay 返回支持的时段名称。
func KnownTimesOfDay() []string { return sortedKeys(timeOfDayTargets) }

func sortedKeys(m map[string]map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
