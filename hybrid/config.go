package hybrid

import (
	"time"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/recall"
)

// Config 是混合推荐的可调参数。
type Config struct {
	// Weights 各召回源权重，缺省为 recall.DefaultSourceWeights
	Weights          map[string]float64 `mapstructure:"weights" yaml:"weights"`
	ContentThreshold float64            `mapstructure:"content_threshold" yaml:"content_threshold"`
	ContextMinScore  float64            `mapstructure:"context_min_score" yaml:"context_min_score"`
	TrendingShare    float64            `mapstructure:"trending_share" yaml:"trending_share"`

	DefaultLimit  int           `mapstructure:"default_limit" yaml:"default_limit"`
	SourceTopN    int           `mapstructure:"source_top_n" yaml:"source_top_n"`
	SourceTimeout time.Duration `mapstructure:"source_timeout" yaml:"source_timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	HistoryLimit  int           `mapstructure:"history_limit" yaml:"history_limit"`

	MaxPerArtist int `mapstructure:"max_per_artist" yaml:"max_per_artist"`
	MaxPerGenre  int `mapstructure:"max_per_genre" yaml:"max_per_genre"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	d := &core.DefaultRecommendConfig{}
	weights := make(map[string]float64, len(recall.DefaultSourceWeights))
	for k, v := range recall.DefaultSourceWeights {
		weights[k] = v
	}
	return Config{
		Weights:          weights,
		ContentThreshold: recall.DefaultContentThreshold,
		TrendingShare:    recall.DefaultTrendingShare,
		DefaultLimit:     d.DefaultLimit(),
		SourceTopN:       d.DefaultSourceTopN(),
		SourceTimeout:    d.DefaultSourceTimeout(),
		HistoryLimit:     d.DefaultHistoryLimit(),
		MaxPerArtist:     1,
		MaxPerGenre:      1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
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
	return c
}

// Validate 校验权重范围。
func (c Config) Validate() error {
	for name, w := range c.Weights {
		if w < 0 || w > 1 {
			return core.InvalidInput(core.ModuleRecommend, "hybrid: weight of "+name+" must be in [0,1]")
		}
	}
	if c.TrendingShare > 1 {
		return core.InvalidInput(core.ModuleRecommend, "hybrid: trending_share must be in (0,1]")
	}
	return nil
}
