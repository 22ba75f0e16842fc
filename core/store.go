package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 值统一为 []byte，序列化由调用方负责
//
// 使用场景：
//   - 缓存：推荐结果、音频特征、候选曲目列表（cache.Layer）
//   - 矩阵分解快照：用户/曲目隐向量（model.Snapshot）
//
// 实现：
//   - store.MemoryStore
//   - store.RedisStore
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒（可选）
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，缺失的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，支持有序集合。
// 热度榜（trend.Tracker）依赖 ZIncrBy / ZRangeWithScores。
type KeyValueStore interface {
	Store

	// ZAdd 设置有序集合成员分数
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZIncrBy 累加成员分数，返回累加后的分数
	ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error)

	// ZRange 按分数降序获取 [start, stop] 范围的成员
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeWithScores 按分数降序获取成员及分数
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ZScore 获取成员的分数
	ZScore(ctx context.Context, key string, member string) (float64, error)
}

// ScoredMember 是有序集合中的一个成员
type ScoredMember struct {
	Member string
	Score  float64
}

var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}

// IsStoreNotSupported 检查错误是否为操作不支持
func IsStoreNotSupported(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotSupported
}
