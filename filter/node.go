package filter

import (
	"context"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pipeline"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该曲目就会被过滤掉。
// 过滤器出错时记录日志并视为不过滤。
type FilterNode struct {
	Filters []Filter
	Logger  logging.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}
	logger := logging.OrNop(n.Logger)

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				logger.Warn("filter failed",
					logging.String("filter", f.Name()),
					logging.String("track_id", item.ID),
					logging.Err(err))
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			item.PutLabel(LabelFiltered, utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, item)
	}

	return out, nil
}
