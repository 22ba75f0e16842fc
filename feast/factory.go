package feast

import (
	"strconv"
	"strings"
)

// NewClient 按端点创建 gRPC 客户端。
//
// 示例：
//
//	client, err := feast.NewClient("localhost:6565", "tunekit")
//	client, err := feast.NewClient("grpc://feast:6565", "tunekit", feast.WithTimeout(time.Second))
func NewClient(endpoint, project string, opts ...ClientOption) (Client, error) {
	host, port := parseEndpoint(endpoint)
	return NewGrpcClient(host, port, project, opts...)
}

// parseEndpoint 解析端点地址，返回 host 和 port（没有端口时为 0）
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	if i := strings.LastIndex(endpoint, ":"); i > 0 {
		if port, err := strconv.Atoi(endpoint[i+1:]); err == nil {
			return endpoint[:i], port
		}
	}
	return endpoint, 0
}
