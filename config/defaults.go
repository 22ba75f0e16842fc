package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/cluster"
	"github.com/rushteam/tunekit/eval"
	"github.com/rushteam/tunekit/feedback"
	"github.com/rushteam/tunekit/hybrid"
	"github.com/rushteam/tunekit/model"
	"github.com/rushteam/tunekit/persist"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/summarizer"
	"github.com/rushteam/tunekit/trend"
)

// Defaults 返回全部默认值。
func Defaults() AppConfig {
	return AppConfig{
		Version:  "dev",
		Postgres: PostgresConfig{Table: persist.DefaultTable},
		Feast: FeastConfig{
			Timeout: 2 * time.Second,
		},
		Summarizer: SummarizerConfig{
			Timeout: 10 * time.Second,
			Guard:   summarizer.DefaultGuardConfig(),
		},
		Cache: CacheConfig{
			Enabled:            true,
			Prefix:             "tunekit",
			RecommendationsTTL: cache.DefaultTTLs[cache.NSRecommendations],
			FeaturesTTL:        cache.DefaultTTLs[cache.NSFeatures],
			CandidatesTTL:      cache.DefaultTTLs[cache.NSCandidates],
		},
		Trending: TrendingConfig{Key: trend.DefaultKey, HalfLife: trend.DefaultHalfLife},
		Recommender: RecommenderConfig{
			Config: hybrid.DefaultConfig(),
		},
		Cluster:    cluster.DefaultOptions(),
		Evaluation: eval.DefaultOptions(),
		MF:         MFConfig{Config: model.DefaultConfig(), SnapshotPrefix: model.DefaultSnapshotPrefix},
		Metrics:    MetricsConfig{Path: "/metrics"},
		Log:        logging.Config{Level: "info", Format: "json"},
		Kafka:      feedback.Config{Topic: "tunekit.feedback", Group: "tunekit-feedback", ClientID: "tunekit"},
	}
}

// ApplyDefaults 为未设置的字段补默认值。
func ApplyDefaults(cfg *AppConfig) {
	d := Defaults()
	if cfg.Version == "" {
		cfg.Version = d.Version
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
	if cfg.Postgres.Table == "" {
		cfg.Postgres.Table = d.Postgres.Table
	}
	if cfg.Feast.Timeout <= 0 {
		cfg.Feast.Timeout = d.Feast.Timeout
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = d.Kafka.Topic
	}
	if cfg.Kafka.Group == "" {
		cfg.Kafka.Group = d.Kafka.Group
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = d.Kafka.ClientID
	}
	if cfg.Summarizer.Timeout <= 0 {
		cfg.Summarizer.Timeout = d.Summarizer.Timeout
	}
	if cfg.Summarizer.Guard == (summarizer.GuardConfig{}) {
		cfg.Summarizer.Guard = d.Summarizer.Guard
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = d.Cache.Prefix
	}
	if cfg.Cache.RecommendationsTTL <= 0 {
		cfg.Cache.RecommendationsTTL = d.Cache.RecommendationsTTL
	}
	if cfg.Cache.FeaturesTTL <= 0 {
		cfg.Cache.FeaturesTTL = d.Cache.FeaturesTTL
	}
	if cfg.Cache.CandidatesTTL <= 0 {
		cfg.Cache.CandidatesTTL = d.Cache.CandidatesTTL
	}
	if cfg.Trending.Key == "" {
		cfg.Trending.Key = d.Trending.Key
	}
	if cfg.Trending.HalfLife <= 0 {
		cfg.Trending.HalfLife = d.Trending.HalfLife
	}
	applyRecommenderDefaults(&cfg.Recommender.Config, d.Recommender.Config)
	applyClusterDefaults(&cfg.Cluster, d.Cluster)
	applyEvalDefaults(&cfg.Evaluation, d.Evaluation)
	applyMFDefaults(&cfg.MF, d.MF)
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = d.Metrics.Path
	}
}

func applyRecommenderDefaults(c *hybrid.Config, d hybrid.Config) {
	if len(c.Weights) == 0 {
		c.Weights = d.Weights
	}
	if c.ContentThreshold <= 0 {
		c.ContentThreshold = d.ContentThreshold
	}
	if c.TrendingShare <= 0 {
		c.TrendingShare = d.TrendingShare
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.SourceTopN <= 0 {
		c.SourceTopN = d.SourceTopN
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = d.SourceTimeout
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.MaxPerArtist <= 0 {
		c.MaxPerArtist = d.MaxPerArtist
	}
	if c.MaxPerGenre <= 0 {
		c.MaxPerGenre = d.MaxPerGenre
	}
}

func applyClusterDefaults(c *cluster.Options, d cluster.Options) {
	if c.K <= 0 {
		c.K = d.K
	}
	if c.Algorithm == "" {
		c.Algorithm = d.Algorithm
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.MinNeighbors <= 0 {
		c.MinNeighbors = d.MinNeighbors
	}
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = d.MinClusterSize
	}
}

func applyEvalDefaults(c *eval.Options, d eval.Options) {
	if c.TestSetSize <= 0 {
		c.TestSetSize = d.TestSetSize
	}
	if len(c.KValues) == 0 {
		c.KValues = d.KValues
	}
	if c.HoldoutRatio == 0 {
		c.HoldoutRatio = d.HoldoutRatio
	}
	if c.MinUserHistory <= 0 {
		c.MinUserHistory = d.MinUserHistory
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
}

func applyMFDefaults(c *MFConfig, d MFConfig) {
	if c.Dim <= 0 {
		c.Dim = d.Dim
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Regularization < 0 {
		c.Regularization = d.Regularization
	}
	if c.InitScale <= 0 {
		c.InitScale = d.InitScale
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	if c.LockStripes <= 0 {
		c.LockStripes = d.LockStripes
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = d.SnapshotPrefix
	}
}

// Validate 校验配置，返回所有问题的合并错误。
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Recommender.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Cluster.K < 1 {
		errs = append(errs, fmt.Errorf("cluster.k must be >= 1"))
	}
	switch c.Cluster.Algorithm {
	case cluster.AlgorithmKMeans, cluster.AlgorithmDensity:
	default:
		errs = append(errs, fmt.Errorf("cluster.algorithm %q is not supported", c.Cluster.Algorithm))
	}
	for _, k := range c.Evaluation.KValues {
		if k < 1 {
			errs = append(errs, fmt.Errorf("evaluation.k_values must be >= 1, got %d", k))
		}
	}
	if c.Evaluation.HoldoutRatio <= 0 || c.Evaluation.HoldoutRatio >= 1 {
		errs = append(errs, fmt.Errorf("evaluation.holdout_ratio must be in (0,1)"))
	}
	if c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket == "" {
		errs = append(errs, fmt.Errorf("object_store.bucket is required when endpoint is set"))
	}
	if c.Feast.Endpoint != "" && c.Feast.Project == "" {
		errs = append(errs, fmt.Errorf("feast.project is required when endpoint is set"))
	}
	return errors.Join(errs...)
}
