// Package config 加载 tunekit 的应用配置（YAML + TUNEKIT_ 环境变量），
// 并维护配置驱动 pipeline 的 Node 注册表。
package config

import (
	"time"

	"github.com/rushteam/tunekit/cluster"
	"github.com/rushteam/tunekit/eval"
	"github.com/rushteam/tunekit/feedback"
	"github.com/rushteam/tunekit/hybrid"
	"github.com/rushteam/tunekit/model"
	"github.com/rushteam/tunekit/persist"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/store"
	"github.com/rushteam/tunekit/summarizer"
)

// AppConfig 是完整的应用配置。空的外部服务地址表示不启用该服务。
type AppConfig struct {
	Version     string                    `mapstructure:"version" yaml:"version"`
	Log         logging.Config            `mapstructure:"log" yaml:"log"`
	Dataset     DatasetConfig             `mapstructure:"dataset" yaml:"dataset"`
	Redis       store.RedisConfig         `mapstructure:"redis" yaml:"redis"`
	Postgres    PostgresConfig            `mapstructure:"postgres" yaml:"postgres"`
	ObjectStore persist.ObjectStoreConfig `mapstructure:"object_store" yaml:"object_store"`
	Feast       FeastConfig               `mapstructure:"feast" yaml:"feast"`
	Kafka       feedback.Config           `mapstructure:"kafka" yaml:"kafka"`
	Summarizer  SummarizerConfig          `mapstructure:"summarizer" yaml:"summarizer"`
	Cache       CacheConfig               `mapstructure:"cache" yaml:"cache"`
	Trending    TrendingConfig            `mapstructure:"trending" yaml:"trending"`
	Recommender RecommenderConfig         `mapstructure:"recommender" yaml:"recommender"`
	Cluster     cluster.Options           `mapstructure:"cluster" yaml:"cluster"`
	Evaluation  eval.Options              `mapstructure:"evaluation" yaml:"evaluation"`
	MF          MFConfig                  `mapstructure:"mf" yaml:"mf"`
	Metrics     MetricsConfig             `mapstructure:"metrics" yaml:"metrics"`
}

// DatasetConfig 本地数据集（YAML/JSON）。
type DatasetConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

type FeastConfig struct {
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Project     string        `mapstructure:"project" yaml:"project"`
	FeatureView string        `mapstructure:"feature_view" yaml:"feature_view"`
	EntityKey   string        `mapstructure:"entity_key" yaml:"entity_key"`
	Token       string        `mapstructure:"token" yaml:"token"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SummarizerConfig struct {
	Endpoint string                 `mapstructure:"endpoint" yaml:"endpoint"`
	Token    string                 `mapstructure:"token" yaml:"token"`
	Timeout  time.Duration          `mapstructure:"timeout" yaml:"timeout"`
	Guard    summarizer.GuardConfig `mapstructure:"guard" yaml:"guard"`
}

type CacheConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled"`
	Prefix             string        `mapstructure:"prefix" yaml:"prefix"`
	RecommendationsTTL time.Duration `mapstructure:"recommendations_ttl" yaml:"recommendations_ttl"`
	FeaturesTTL        time.Duration `mapstructure:"features_ttl" yaml:"features_ttl"`
	CandidatesTTL      time.Duration `mapstructure:"candidates_ttl" yaml:"candidates_ttl"`
}

type TrendingConfig struct {
	Key      string        `mapstructure:"key" yaml:"key"`
	HalfLife time.Duration `mapstructure:"half_life" yaml:"half_life"`
}

// RecommenderConfig 推荐参数与可选的 post-merge pipeline 配置文件。
type RecommenderConfig struct {
	hybrid.Config `mapstructure:",squash" yaml:",inline"`
	PipelinePath  string `mapstructure:"pipeline_path" yaml:"pipeline_path"`
}

type MFConfig struct {
	model.Config   `mapstructure:",squash" yaml:",inline"`
	SnapshotPrefix string `mapstructure:"snapshot_prefix" yaml:"snapshot_prefix"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Path string `mapstructure:"path" yaml:"path"`
}
