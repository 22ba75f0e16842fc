// Package metrics 是推荐/聚类/评估链路的 Prometheus 指标。
// 所有指标通过 promauto 注册到默认 Registry，由 cmd 中的 promhttp 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tunekit"

// 推荐结果的 outcome 标签值
const (
	OutcomeComputed = "computed"
	OutcomeCached   = "cached"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	// Recommendations 按结果类型计数
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_duration_seconds",
			Help:      "End-to-end latency of recommendation generation",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SourceFailures 召回源失败（被降级为空集合）
	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_source_failures_total",
			Help:      "Total number of recall source failures degraded to empty sets",
		},
		[]string{"source"},
	)

	SourceCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_source_candidates",
			Help:      "Number of candidates returned per recall source",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"source"},
	)

	// NodeDuration 是 post-merge pipeline 中每个 Node 的耗时
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_node_duration_seconds",
			Help:      "Duration of post-merge pipeline nodes",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"kind", "node"},
	)

	ModelUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mf_updates_total",
			Help:      "Total number of matrix factorization SGD updates",
		},
	)

	ClusterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_duration_seconds",
			Help:      "Duration of clustering runs",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"algorithm"},
	)

	EvalUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_users_total",
			Help:      "Users processed by the evaluation harness",
		},
		[]string{"status"}, // evaluated / failed
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by namespace",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by namespace",
		},
		[]string{"namespace"},
	)

	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_events_total",
			Help:      "Feedback events consumed by status",
		},
		[]string{"status"}, // applied / invalid / failed
	)
)

// ObserveSince 记录从 start 起的耗时。
func ObserveSince(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}
