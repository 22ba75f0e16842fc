package core

import "time"

// 召回源名称
const (
	SourceCollaborative = "collaborative"
	SourceContent       = "content"
	SourceContext       = "context"
	SourceTrending      = "trending"
	SourceFallback      = "fallback"
)

// Recommendation 是返回给调用方的一条推荐。
// Score 是无界的排序键；Confidence 单独推导，落在 [0,1]。
type Recommendation struct {
	TrackID    string   `json:"track_id"`
	Title      string   `json:"title,omitempty"`
	Artist     string   `json:"artist,omitempty"`
	Genre      string   `json:"genre,omitempty"`
	Score      float64  `json:"score"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
	Rank       int      `json:"rank"`
	Reason     string   `json:"reason"`
}

// ClusterQuality 是聚类质量指标。
type ClusterQuality struct {
	Silhouette    float64 `json:"silhouette"`
	IntraVariance float64 `json:"intra_variance"` // 到自身质心的平方距离之和
	InterDistance float64 `json:"inter_distance"` // 质心两两距离均值
}

// Cluster 是一次聚类中的一个簇。Centroid 位于归一化空间，维度等于输入维度。
type Cluster struct {
	ID           int                `json:"id"`
	TrackIDs     []string           `json:"track_ids"`
	Centroid     []float64          `json:"centroid"`
	FeatureMeans map[string]float64 `json:"feature_means,omitempty"` // 原始特征均值
	Descriptors  []string           `json:"descriptors,omitempty"`
	Label        string             `json:"label"`
	Quality      ClusterQuality     `json:"quality"`
}

// 评估指标名称
const (
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricMRR       = "mrr"
	MetricNDCG      = "ndcg"
	MetricDiversity = "diversity"
	MetricNovelty   = "novelty"
)

// MetricNames 是评估指标的固定顺序。
var MetricNames = []string{MetricPrecision, MetricRecall, MetricMRR, MetricNDCG, MetricDiversity, MetricNovelty}

// MetricStats 是一个指标在所有用户上的聚合。
type MetricStats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// UserSplit 是单个用户的训练/测试切分。
type UserSplit struct {
	UserID string   `json:"user_id"`
	Train  []string `json:"train"`
	Test   []string `json:"test"`
}

// EvaluationRun 是一次离线评估的完整结果，创建后不再修改。
type EvaluationRun struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	KValues      []int     `json:"k_values"`
	HoldoutRatio float64   `json:"holdout_ratio"`

	Splits      []UserSplit `json:"splits"`
	FailedUsers []string    `json:"failed_users,omitempty"`

	// PerK[k][metric] 是按 Splits 中成功用户顺序排列的指标向量
	PerK map[int]map[string][]float64 `json:"per_k"`
	// Aggregates[k][metric]
	Aggregates map[int]map[string]MetricStats `json:"aggregates"`
}
