// Package feast 从 Feast Feature Server 读取曲目音频特征。
//
// Feast 提供在线特征存储（Online Store）与 Feature Server，
// 这里只使用在线特征读取：以 track_id 为实体，从一个特征视图中取 8 个音频特征。
//
// 参考：https://github.com/feast-dev/feast
package feast

import (
	"context"
	"time"
)

// Client 是在线特征读取的最小接口，GrpcClient 实现了它。
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	// 参数：
	//   - features: 特征引用列表，例如 ["track_audio:energy", "track_audio:tempo"]
	//   - entityRows: 实体行，例如 [{"track_id": "t1"}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征引用列表，格式 "view:feature"
	Features []string

	// EntityRows 实体行，例如 [{"track_id": "t1"}, {"track_id": "t2"}]
	EntityRows []map[string]interface{}

	// Project 项目名称（可选，为空使用客户端默认项目）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 与 EntityRows 一一对应
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征引用；缺失或为空的特征不出现
	Values map[string]interface{}

	// EntityRow 对应的实体行
	EntityRow map[string]interface{}
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	Endpoint string
	Project  string
	Timeout  time.Duration
	Auth     *AuthConfig
	TLS      bool
}

// AuthConfig 认证配置，目前只支持 static token。
type AuthConfig struct {
	Type  string
	Token string
}

// WithTimeout 配置选项：设置单次请求超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAuth 配置选项：设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = auth
	}
}

// WithTLS 配置选项：启用 TLS（仅在设置了认证时生效）
func WithTLS() ClientOption {
	return func(c *ClientConfig) {
		c.TLS = true
	}
}
