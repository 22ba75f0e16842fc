package core

import "context"

// FeatureStore 是音频特征与收听历史的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（feature / feast）实现
//   - 领域层不依赖基础设施层
//
// 实现：
//   - feature.MemoryStore（数据集文件）
//   - feature.CachedStore（cache.Layer 装饰，6h TTL）
//   - feast.FeatureStore（Feast 在线特征）
type FeatureStore interface {
	// Name 返回特征服务名称（用于日志/监控）
	Name() string

	// GetAudioFeatures 批量获取音频特征，缺失的曲目不出现在结果中
	GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeatures, error)

	// GetListeningHistory 获取用户收听历史（时间升序），limit<=0 表示不限制
	GetListeningHistory(ctx context.Context, userID string, limit int) ([]ListenEvent, error)
}

// Catalog 提供推荐候选曲目。
type Catalog interface {
	CandidateTracks(ctx context.Context, userID string) ([]Track, error)
}

// UserDirectory 列出可参与离线评估的用户。
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]string, error)
}
