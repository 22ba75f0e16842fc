package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/metrics"
)

// Pipeline 把合并后的候选依次交给 Node 链处理（过滤、重排、截断）。
// nil Pipeline 原样返回输入。
type Pipeline struct {
	Name  string
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if p == nil {
		return items, nil
	}
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		metrics.ObserveSince(metrics.NodeDuration.WithLabelValues(string(node.Kind()), node.Name()), start)
		if err != nil {
			return nil, fmt.Errorf("%s node %s: %w", node.Kind(), node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Append 追加 Node，返回 p 方便链式调用。
func (p *Pipeline) Append(nodes ...Node) *Pipeline {
	p.Nodes = append(p.Nodes, nodes...)
	return p
}

// Describe 返回 "kind:name" 形式的 Node 列表，用于启动日志。
func (p *Pipeline) Describe() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		out = append(out, string(n.Kind())+":"+n.Name())
	}
	return out
}
