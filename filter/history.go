package filter

import (
	"context"

	"github.com/rushteam/tunekit/core"
)

// HistoryFilter 过滤掉用户可见历史中的曲目。
type HistoryFilter struct{}

func (HistoryFilter) Name() string { return "filter.history" }

func (HistoryFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	return rctx != nil && rctx.InHistory(item.ID), nil
}
