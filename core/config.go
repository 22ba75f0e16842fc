package core

import "time"

// RecommendConfig 提供推荐相关的默认值。
type RecommendConfig interface {
	// DefaultLimit 返回默认的推荐条数
	DefaultLimit() int

	// DefaultSourceTopN 返回单个召回源默认的候选数
	DefaultSourceTopN() int

	// DefaultSourceTimeout 返回单个召回源的超时时间
	DefaultSourceTimeout() time.Duration

	// DefaultHistoryLimit 返回读取收听历史的默认条数
	DefaultHistoryLimit() int
}

// DefaultRecommendConfig 是默认的推荐配置实现。
type DefaultRecommendConfig struct{}

func (c *DefaultRecommendConfig) DefaultLimit() int {
	return 20
}

func (c *DefaultRecommendConfig) DefaultSourceTopN() int {
	return 100
}

func (c *DefaultRecommendConfig) DefaultSourceTimeout() time.Duration {
	return 2 * time.Second
}

func (c *DefaultRecommendConfig) DefaultHistoryLimit() int {
	return 500
}
