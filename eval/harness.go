// Package eval 离线评估推荐效果：按时间切分每个用户的历史，
// 用训练部分作为可见历史生成推荐，与测试部分对比计算排序/多样性/新颖性指标。
package eval

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/feature"
	"github.com/rushteam/tunekit/hybrid"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pkg/logging"
)

// Recommender 是被评估的推荐器，hybrid.Recommender 实现了它。
type Recommender interface {
	Generate(ctx context.Context, userID string, opts hybrid.Options) (*hybrid.Result, error)
}

// Options 是一次评估的参数，零值字段使用 DefaultOptions 中的值。
type Options struct {
	TestSetSize    int     `mapstructure:"test_set_size" yaml:"test_set_size"`
	KValues        []int   `mapstructure:"k_values" yaml:"k_values"`
	HoldoutRatio   float64 `mapstructure:"holdout_ratio" yaml:"holdout_ratio"`
	MinUserHistory int     `mapstructure:"min_user_history" yaml:"min_user_history"`
	Concurrency    int     `mapstructure:"concurrency" yaml:"concurrency"`
	HistoryLimit   int     `mapstructure:"history_limit" yaml:"history_limit"`
}

func DefaultOptions() Options {
	return Options{
		TestSetSize:    100,
		KValues:        []int{5, 10, 20},
		HoldoutRatio:   0.2,
		MinUserHistory: 10,
		Concurrency:    4,
		HistoryLimit:   1000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TestSetSize <= 0 {
		o.TestSetSize = d.TestSetSize
	}
	if len(o.KValues) == 0 {
		o.KValues = d.KValues
	}
	if o.HoldoutRatio == 0 {
		o.HoldoutRatio = d.HoldoutRatio
	}
	if o.MinUserHistory <= 0 {
		o.MinUserHistory = d.MinUserHistory
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = d.HistoryLimit
	}
	return o
}

func (o Options) validate() error {
	for _, k := range o.KValues {
		if k < 1 {
			return core.InvalidInput(core.ModuleEval, fmt.Sprintf("eval: k must be >= 1, got %d", k))
		}
	}
	if o.HoldoutRatio <= 0 || o.HoldoutRatio >= 1 {
		return core.InvalidInput(core.ModuleEval, "eval: holdout ratio must be in (0,1)")
	}
	return nil
}

// Split 按时间升序切分历史，train = floor(n*(1-holdout))。
func Split(history []core.ListenEvent, holdout float64) (train, test []core.ListenEvent) {
	h := make([]core.ListenEvent, len(history))
	copy(h, history)
	core.SortChronological(h)
	n := int(math.Floor(float64(len(h))*(1-holdout) + 1e-9))
	n = max(0, min(n, len(h)))
	return h[:n], h[n:]
}

// Harness 是离线评估器。
type Harness struct {
	rec      Recommender
	users    core.UserDirectory
	features core.FeatureStore
	persist  core.Persistence
	logger   logging.Logger
	version  string
	now      func() time.Time
}

type Option func(*Harness)

func WithPersistence(p core.Persistence) Option { return func(h *Harness) { h.persist = p } }

func WithLogger(l logging.Logger) Option { return func(h *Harness) { h.logger = l } }

func WithVersion(v string) Option { return func(h *Harness) { h.version = v } }

func WithClock(now func() time.Time) Option { return func(h *Harness) { h.now = now } }

// New 创建评估器。features 同时提供收听历史与计算多样性/新颖性所需的音频特征。
func New(rec Recommender, users core.UserDirectory, features core.FeatureStore, opts ...Option) *Harness {
	h := &Harness{rec: rec, users: users, features: features, version: "dev", now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrNop(h.logger).Named("eval")
	return h
}

type userOutcome struct {
	ok      bool
	metrics map[int]map[string]float64
}

// Run 执行一次评估。
// 单个用户失败记录日志并跳过；参数非法或无法列出用户时返回错误。
func (h *Harness) Run(ctx context.Context, opts Options) (*core.EvaluationRun, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	kValues := slices.Clone(opts.KValues)
	slices.Sort(kValues)
	kValues = slices.Compact(kValues)

	run := &core.EvaluationRun{
		StartedAt:    h.now().UTC(),
		KValues:      kValues,
		HoldoutRatio: opts.HoldoutRatio,
		PerK:         make(map[int]map[string][]float64, len(kValues)),
		Aggregates:   make(map[int]map[string]core.MetricStats, len(kValues)),
	}

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("eval: list users: %w", err)
	}
	splits, trains := h.selectUsers(ctx, users, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]userOutcome, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range splits {
		g.Go(func() error {
			m, err := h.evaluateUser(gctx, splits[i], trains[i], kValues)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				h.logger.Warn("evaluate user failed", logging.String("user_id", splits[i].UserID), logging.Err(err))
				metrics.EvalUsers.WithLabelValues("failed").Inc()
				return nil
			}
			metrics.EvalUsers.WithLabelValues("evaluated").Inc()
			outcomes[i] = userOutcome{ok: true, metrics: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, k := range kValues {
		run.PerK[k] = make(map[string][]float64, len(core.MetricNames))
	}
	for i, out := range outcomes {
		if !out.ok {
			run.FailedUsers = append(run.FailedUsers, splits[i].UserID)
			continue
		}
		run.Splits = append(run.Splits, splits[i])
		for _, k := range kValues {
			for _, name := range core.MetricNames {
				run.PerK[k][name] = append(run.PerK[k][name], out.metrics[k][name])
			}
		}
	}
	for _, k := range kValues {
		run.Aggregates[k] = make(map[string]core.MetricStats, len(core.MetricNames))
		for _, name := range core.MetricNames {
			run.Aggregates[k][name] = Aggregate(run.PerK[k][name])
		}
	}
	run.FinishedAt = h.now().UTC()

	meta := core.NewRecordMetadata(core.KindEvaluationRun, h.version)
	run.ID = meta.ID
	if h.persist != nil {
		if err := h.persist.Save(ctx, core.KindEvaluationRun, run, meta); err != nil {
			h.logger.Warn("persist evaluation run failed", logging.String("run_id", run.ID), logging.Err(err))
		}
	}
	h.logger.Info("evaluation finished",
		logging.String("run_id", run.ID),
		logging.Int("users", len(run.Splits)),
		logging.Int("failed", len(run.FailedUsers)))
	return run, nil
}

// selectUsers 选出历史不少于 MinUserHistory 的用户（最多 TestSetSize 个）并切分。
func (h *Harness) selectUsers(ctx context.Context, users []string, opts Options) ([]core.UserSplit, [][]core.ListenEvent) {
	var (
		splits []core.UserSplit
		trains [][]core.ListenEvent
	)
	for _, u := range users {
		if len(splits) >= opts.TestSetSize || ctx.Err() != nil {
			break
		}
		history, err := h.features.GetListeningHistory(ctx, u, opts.HistoryLimit)
		if err != nil {
			h.logger.Warn("load history failed", logging.String("user_id", u), logging.Err(err))
			continue
		}
		if len(history) < opts.MinUserHistory {
			continue
		}
		train, test := Split(history, opts.HoldoutRatio)
		splits = append(splits, core.UserSplit{UserID: u, Train: eventIDs(train), Test: eventIDs(test)})
		trains = append(trains, train)
	}
	return splits, trains
}

func eventIDs(events []core.ListenEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.TrackID
	}
	return out
}

func (h *Harness) evaluateUser(ctx context.Context, split core.UserSplit, train []core.ListenEvent, kValues []int) (map[int]map[string]float64, error) {
	maxK := kValues[len(kValues)-1]
	res, err := h.rec.Generate(ctx, split.UserID, hybrid.Options{Limit: maxK, History: train})
	if err != nil {
		return nil, err
	}
	recs := res.TrackIDs()

	relevant := make(map[string]struct{}, len(split.Test))
	for _, id := range split.Test {
		relevant[id] = struct{}{}
	}
	trainIDs := uniqueIDs(split.Train)

	ids := append(slices.Clone(recs), trainIDs...)
	features, err := h.features.GetAudioFeatures(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("eval: load features: %w", err)
	}
	norm := feature.FitAudioFeatures(features, core.IdxTempo)
	vector := func(id string) []float64 {
		f, ok := features[id]
		if !ok {
			return nil
		}
		return norm.Normalize(f.Vector())
	}
	histVecs := make([][]float64, 0, len(trainIDs))
	for _, id := range trainIDs {
		histVecs = append(histVecs, vector(id))
	}

	out := make(map[int]map[string]float64, len(kValues))
	for _, k := range kValues {
		top := recs[:min(k, len(recs))]
		recVecs := make([][]float64, 0, len(top))
		for _, id := range top {
			recVecs = append(recVecs, vector(id))
		}
		out[k] = map[string]float64{
			core.MetricPrecision: PrecisionAtK(recs, relevant, k),
			core.MetricRecall:    RecallAtK(recs, relevant, k),
			core.MetricMRR:       MRR(recs, relevant, k),
			core.MetricNDCG:      NDCGAtK(recs, relevant, k),
			core.MetricDiversity: Diversity(recVecs, CosineSimilarity),
			core.MetricNovelty:   Novelty(recVecs, histVecs, CosineSimilarity),
		}
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Aggregate 计算均值、总体标准差、最小值、最大值与样本数。
func Aggregate(values []float64) core.MetricStats {
	if len(values) == 0 {
		return core.MetricStats{}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return core.MetricStats{
		Mean:  mean,
		Std:   math.Sqrt(variance),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Count: len(values),
	}
}
