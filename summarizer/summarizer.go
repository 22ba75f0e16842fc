// Package summarizer 把聚类描述转成简短的人类可读标签。
//
// 实现：
//   - Nop：未配置时的默认实现，总是返回 core.ErrSummarizerUnavailable
//   - HTTP：调用外部文本生成服务
//   - Guarded：给任意 Summarizer 加熔断与限流
package summarizer

import (
	"context"

	"github.com/rushteam/tunekit/core"
)

// Nop 总是不可用，调用方会回退到 "Cluster N"。
type Nop struct{}

func (Nop) Summarize(context.Context, string) (string, error) {
	return "", core.ErrSummarizerUnavailable
}

var _ core.Summarizer = Nop{}
