package recall

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pipeline"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/pkg/utils"
)

// SourceResult 是单个召回源的输出。
type SourceResult struct {
	Name  string
	Items []*core.Item
	Err   error
}

// FanoutResult 是一次并发召回的结果，Results 与 Sources 顺序一致。
type FanoutResult struct {
	Results []SourceResult
}

// Failed 返回失败的召回源名称。
func (r *FanoutResult) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Name)
		}
	}
	return out
}

// AllFailed 表示所有召回源都失败了（没有召回源时为 false）。
func (r *FanoutResult) AllFailed() bool {
	return len(r.Results) > 0 && len(r.Failed()) == len(r.Results)
}

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 单个召回源失败（或超时）时按空集合处理，记录日志与指标，不影响其他召回源。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy // 默认 FirstMergeStrategy
	Logger        logging.Logger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

// Run 并发执行所有召回源，返回每个召回源的结果。
// 召回源输出的 Item 会被打上 recall_source 标签。
func (n *Fanout) Run(ctx context.Context, rctx *core.RecommendContext) *FanoutResult {
	logger := logging.OrNop(n.Logger)
	res := &FanoutResult{Results: make([]SourceResult, len(n.Sources))}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := safeRecall(recallCtx, src, rctx)
			if err != nil {
				logger.Warn("recall source failed",
					logging.String("source", src.Name()),
					logging.String("user_id", rctx.UserID),
					logging.Err(err))
				metrics.SourceFailures.WithLabelValues(src.Name()).Inc()
				items = nil
			}
			for _, it := range items {
				it.PutLabel(core.LabelRecallSource, utils.Label{Value: src.Name(), Source: "recall"})
			}
			metrics.SourceCandidates.WithLabelValues(src.Name()).Observe(float64(len(items)))

			mu.Lock()
			res.Results[i] = SourceResult{Name: src.Name(), Items: items, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return res
}

// safeRecall 把召回源的 panic 转成错误。
func safeRecall(ctx context.Context, src Source, rctx *core.RecommendContext) (items []*core.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInternalError,
				"recall: source "+src.Name()+" panicked")
		}
	}()
	return src.Recall(ctx, rctx)
}

// Process 实现 pipeline.Node：执行召回并按 MergeStrategy 合并。
func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}
	strategy := n.MergeStrategy
	if strategy == nil {
		strategy = &FirstMergeStrategy{}
	}
	return strategy.Merge(n.Run(ctx, rctx).Results), nil
}
