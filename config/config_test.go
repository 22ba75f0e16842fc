package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/cluster"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pipeline"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleYAML = `
version: v1.2.0
log:
  level: debug
dataset:
  path: ./data/tracks.yaml
redis:
  addr: localhost:6379
recommender:
  weights:
    collaborative: 0.5
    content: 0.3
  default_limit: 30
  source_timeout: 500ms
  max_per_artist: 2
  pipeline_path: ./pipeline.yaml
cluster:
  k: 8
  algorithm: density
  epsilon: 0.15
evaluation:
  k_values: [5, 10]
  holdout_ratio: 0.25
mf:
  dim: 16
  learning_rate: 0.05
cache:
  recommendations_ttl: 5m
`

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "tunekit.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "v1.2.0", cfg.Version)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "./data/tracks.yaml", cfg.Dataset.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	rc := cfg.Recommender
	assert.Equal(t, 0.5, rc.Weights[core.SourceCollaborative])
	assert.Equal(t, 30, rc.DefaultLimit)
	assert.Equal(t, 500*time.Millisecond, rc.SourceTimeout)
	assert.Equal(t, 2, rc.MaxPerArtist)
	assert.Equal(t, 1, rc.MaxPerGenre)
	assert.Equal(t, "./pipeline.yaml", rc.PipelinePath)

	assert.Equal(t, 8, cfg.Cluster.K)
	assert.Equal(t, cluster.AlgorithmDensity, cfg.Cluster.Algorithm)
	assert.Equal(t, 0.15, cfg.Cluster.Epsilon)
	assert.Equal(t, 100, cfg.Cluster.MaxIterations)

	assert.Equal(t, []int{5, 10}, cfg.Evaluation.KValues)
	assert.Equal(t, 0.25, cfg.Evaluation.HoldoutRatio)
	assert.Equal(t, 10, cfg.Evaluation.MinUserHistory)

	assert.Equal(t, 16, cfg.MF.Dim)
	assert.Equal(t, 0.05, cfg.MF.LearningRate)
	assert.Equal(t, 0.01, cfg.MF.Regularization)
	assert.Equal(t, "mf", cfg.MF.SnapshotPrefix)

	assert.Equal(t, 5*time.Minute, cfg.Cache.RecommendationsTTL)
	assert.Equal(t, 6*time.Hour, cfg.Cache.FeaturesTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "analysis_records", cfg.Postgres.Table)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "tunekit.feedback", cfg.Kafka.Topic)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TUNEKIT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("TUNEKIT_LOG_LEVEL", "warn")
	t.Setenv("TUNEKIT_METRICS_ADDR", ":9100")

	cfg, err := Load(writeFile(t, "tunekit.yaml", sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_ZeroRegularization(t *testing.T) {
	cfg, err := Load(writeFile(t, "tunekit.yaml", "mf:\n  regularization: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.MF.Regularization)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.MF.Regularization)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Version)
	assert.Equal(t, 5, cfg.Cluster.K)
	assert.Equal(t, 20, cfg.Recommender.DefaultLimit)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		yaml string
	}{
		{"weight out of range", "recommender:\n  weights:\n    content: 1.5\n"},
		{"unknown algorithm", "cluster:\n  algorithm: spectral\n"},
		{"bad k value", "evaluation:\n  k_values: [0]\n"},
		{"bad holdout", "evaluation:\n  holdout_ratio: 1.5\n"},
		{"bucket missing", "object_store:\n  endpoint: minio:9000\n"},
		{"feast project missing", "feast:\n  endpoint: feast:6565\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	Register("test.noop", func(map[string]interface{}) (pipeline.Node, error) { return nil, nil })
	Register("", nil)
	assert.Contains(t, SupportedTypes(), "test.noop")

	cfg, err := pipeline.ParseYAML([]byte("pipeline:\n  nodes:\n    - type: test.noop\n"))
	require.NoError(t, err)
	assert.NoError(t, ValidatePipelineConfig(cfg))

	cfg, err = pipeline.ParseYAML([]byte("pipeline:\n  nodes:\n    - type: nope\n"))
	require.NoError(t, err)
	err = ValidatePipelineConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.noop")
	assert.NoError(t, ValidatePipelineConfig(nil))
}
