// Package hybrid 是混合推荐：协同/内容/场景/热度四路召回并发执行，
// 加权累加合并后经过滤、多样性重排与截断，输出带置信度与理由的推荐列表。
package hybrid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/feature"
	"github.com/rushteam/tunekit/filter"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pipeline"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/pkg/utils"
	"github.com/rushteam/tunekit/pkg/vecmath"
	"github.com/rushteam/tunekit/recall"
	"github.com/rushteam/tunekit/rerank"
)

// Learner 是可在线学习的协同过滤模型，model.MatrixFactorization 实现了它。
type Learner interface {
	recall.Predictor
	Update(userID, itemID string, rating float64) float64
}

// Trending 是热度榜，trend.Tracker 实现了它。
type Trending interface {
	recall.TrendingSource
	RecordPlay(ctx context.Context, trackID string, ts time.Time) error
}

// Options 是单次推荐请求的参数。
type Options struct {
	Limit    int
	Context  core.ContextBundle
	UseCache bool
	// History 非 nil 时替代特征服务中的收听历史（离线评估使用），此时不读写缓存
	History []core.ListenEvent
	// Rule 是可选的 CEL 过滤规则
	Rule string
}

// Result 是一次推荐的输出。
type Result struct {
	UserID          string                `json:"user_id"`
	Recommendations []core.Recommendation `json:"recommendations"`
	Context         core.ContextBundle    `json:"context"`
	Fallback        bool                  `json:"fallback"`
	FailedSources   []string              `json:"failed_sources,omitempty"`
	GeneratedAt     time.Time             `json:"generated_at"`
	Cached          bool                  `json:"-"`
}

// TrackIDs 按排名返回推荐的曲目 ID。
func (r *Result) TrackIDs() []string {
	out := make([]string, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		out = append(out, rec.TrackID)
	}
	return out
}

// Recommender 是混合推荐器，可被多个 goroutine 并发使用。
type Recommender struct {
	cfg      Config
	features core.FeatureStore
	catalog  core.Catalog
	model    Learner
	trending Trending
	cache    *cache.Layer
	sources  []recall.Source
	merge    recall.MergeStrategy
	post     *pipeline.Pipeline
	logger   logging.Logger
	now      func() time.Time
}

// Option 配置 Recommender。
type Option func(*Recommender)

func WithConfig(cfg Config) Option { return func(r *Recommender) { r.cfg = cfg } }

func WithModel(m Learner) Option { return func(r *Recommender) { r.model = m } }

func WithTrending(t Trending) Option { return func(r *Recommender) { r.trending = t } }

// WithCache 启用缓存：推荐结果、候选目录与音频特征都经过 layer。
func WithCache(layer *cache.Layer) Option { return func(r *Recommender) { r.cache = layer } }

// WithPipeline 替换合并之后的处理链（默认 历史过滤 → 规则过滤 → 多样性 → 截断）。
func WithPipeline(p *pipeline.Pipeline) Option { return func(r *Recommender) { r.post = p } }

// WithSources 替换召回源。
func WithSources(sources ...recall.Source) Option {
	return func(r *Recommender) { r.sources = sources }
}

func WithLogger(l logging.Logger) Option { return func(r *Recommender) { r.logger = l } }

func WithClock(now func() time.Time) Option { return func(r *Recommender) { r.now = now } }

// New 创建推荐器。features 提供音频特征与收听历史，catalog 提供候选目录。
func New(features core.FeatureStore, catalog core.Catalog, opts ...Option) *Recommender {
	r := &Recommender{
		cfg:      DefaultConfig(),
		features: features,
		catalog:  catalog,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cfg = r.cfg.withDefaults()
	r.logger = logging.OrNop(r.logger).Named("hybrid")

	if r.cache != nil {
		if _, ok := r.features.(*feature.CachedStore); !ok {
			r.features = feature.NewCachedStore(r.features, r.cache, r.logger)
		}
		if _, ok := r.catalog.(*feature.CachedCatalog); !ok {
			r.catalog = feature.NewCachedCatalog(r.catalog, r.cache, r.logger)
		}
	}
	if r.sources == nil {
		r.sources = r.defaultSources()
	}
	if r.merge == nil {
		r.merge = &recall.WeightedMergeStrategy{Weights: r.cfg.Weights}
	}
	if r.post == nil {
		r.post = DefaultPipeline(r.cfg, r.logger)
	}
	return r
}

func (r *Recommender) defaultSources() []recall.Source {
	var sources []recall.Source
	collaborative := &recall.CollaborativeRecall{TopN: r.cfg.SourceTopN}
	if r.model != nil {
		collaborative.Model = r.model
	}
	sources = append(sources,
		collaborative,
		&recall.ContentRecall{Threshold: r.cfg.ContentThreshold, TopN: r.cfg.SourceTopN},
		&recall.ContextRecall{MinScore: r.cfg.ContextMinScore, TopN: r.cfg.SourceTopN},
	)
	trending := &recall.TrendingRecall{Share: r.cfg.TrendingShare}
	if r.trending != nil {
		trending.Tracker = r.trending
	}
	return append(sources, trending)
}

// DefaultPipeline 是合并之后的默认处理链。
func DefaultPipeline(cfg Config, logger logging.Logger) *pipeline.Pipeline {
	return &pipeline.Pipeline{Name: "default", Nodes: []pipeline.Node{
		&filter.FilterNode{
			Filters: []filter.Filter{filter.HistoryFilter{}, &filter.RuleFilter{}},
			Logger:  logger,
		},
		&rerank.Diversity{MaxPerArtist: cfg.MaxPerArtist, MaxPerGenre: cfg.MaxPerGenre},
		&rerank.TopNNode{},
	}}
}

// Config 返回生效的配置。
func (r *Recommender) Config() Config { return r.cfg }

func cacheKey(bundle core.ContextBundle, limit int, rule string) string {
	key := bundle.Hash() + ":" + strconv.Itoa(limit)
	if rule != "" {
		key += ":" + strconv.FormatUint(xxhash.Sum64String(rule), 16)
	}
	return key
}

// Generate 为用户生成推荐。
//
// 单个召回源失败按空集合处理；全部失败或合并结果为空时退化为流行度兜底。
// 只有参数非法（userID 为空、limit 为负、规则无法编译）或 ctx 取消时返回错误。
func (r *Recommender) Generate(ctx context.Context, userID string, opts Options) (*Result, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.RecommendDuration, start)

	if strings.TrimSpace(userID) == "" {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, core.InvalidInput(core.ModuleRecommend, "hybrid: user id is required")
	}
	if opts.Limit < 0 {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, core.InvalidInput(core.ModuleRecommend, "hybrid: limit must not be negative")
	}
	if err := filter.ValidateRule(opts.Rule); err != nil {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	limit := opts.Limit
	if limit == 0 {
		limit = r.cfg.DefaultLimit
	}

	cacheable := opts.UseCache && opts.History == nil && r.cache != nil
	key := cacheKey(opts.Context, limit, opts.Rule)
	var gen string
	if cacheable {
		var (
			cached Result
			hit    bool
		)
		if gen, hit = r.cache.Lookup(ctx, cache.NSRecommendations, userID, key, &cached); hit {
			cached.Cached = true
			metrics.Recommendations.WithLabelValues(metrics.OutcomeCached).Inc()
			return &cached, nil
		}
	}

	result, err := r.compute(ctx, userID, opts, limit)
	if err != nil {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	if cacheable {
		// 写回读取时的 generation，计算期间的 Feedback 失效不会被覆盖
		if err := r.cache.SetAt(ctx, cache.NSRecommendations, userID, gen, key, result); err != nil {
			r.logger.Warn("cache recommendations failed", logging.String("user_id", userID), logging.Err(err))
		}
	}
	outcome := metrics.OutcomeComputed
	if result.Fallback {
		outcome = metrics.OutcomeFallback
	}
	metrics.Recommendations.WithLabelValues(outcome).Inc()
	return result, nil
}

func (r *Recommender) compute(ctx context.Context, userID string, opts Options, limit int) (*Result, error) {
	rctx, err := r.buildContext(ctx, userID, opts, limit)
	if err != nil {
		return nil, err
	}

	fanout := &recall.Fanout{
		Sources:       r.sources,
		Timeout:       r.cfg.SourceTimeout,
		MaxConcurrent: r.cfg.MaxConcurrent,
		MergeStrategy: r.merge,
		Logger:        r.logger,
	}
	res := fanout.Run(ctx, rctx)
	merged := r.merge.Merge(res.Results)

	fallback := res.AllFailed() || len(merged) == 0
	if fallback {
		r.logger.Info("using popularity fallback",
			logging.String("user_id", userID),
			logging.Strings("failed_sources", res.Failed()))
		merged, err = recall.PopularityFallback{}.Recall(ctx, rctx)
		if err != nil {
			return nil, err
		}
		for _, it := range merged {
			it.PutLabel(core.LabelRecallSource, utils.Label{Value: core.SourceFallback, Source: "fallback"})
		}
	}

	recall.SortByScore(merged)
	items, err := r.post.Run(ctx, rctx, merged)
	if err != nil {
		return nil, fmt.Errorf("hybrid: post pipeline: %w", err)
	}
	items = dedupTruncate(items, limit)

	result := &Result{
		UserID:          userID,
		Recommendations: make([]core.Recommendation, 0, len(items)),
		Context:         opts.Context,
		Fallback:        fallback,
		FailedSources:   res.Failed(),
		GeneratedAt:     r.now(),
	}
	for i, it := range items {
		result.Recommendations = append(result.Recommendations, toRecommendation(it, i+1, fallback, opts.Context))
	}
	return result, nil
}

// buildContext 并发读取历史与候选，随后拉取 候选 ∪ 历史 的音频特征并推导偏好向量。
func (r *Recommender) buildContext(ctx context.Context, userID string, opts Options, limit int) (*core.RecommendContext, error) {
	var (
		history    []core.ListenEvent
		candidates []core.Track
		target     map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if opts.History != nil {
			history = opts.History
			return nil
		}
		h, err := r.features.GetListeningHistory(gctx, userID, r.cfg.HistoryLimit)
		if err != nil {
			r.logger.Warn("load listening history failed", logging.String("user_id", userID), logging.Err(err))
			return nil
		}
		history = h
		return nil
	})
	g.Go(func() error {
		c, err := r.catalog.CandidateTracks(gctx, userID)
		if err != nil {
			r.logger.Warn("load candidates failed", logging.String("user_id", userID), logging.Err(err))
			return nil
		}
		candidates = c
		return nil
	})
	g.Go(func() error {
		target = feature.ContextTarget(opts.Context)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile := core.NewUserProfile(userID)
	profile.SetHistory(history)

	rctx := &core.RecommendContext{
		UserID:  userID,
		User:    profile,
		Context: opts.Context,
		Target:  target,
		Limit:   limit,
	}
	rctx.SetCandidates(candidates)
	if opts.Rule != "" {
		rctx.Params = map[string]any{filter.ParamRule: opts.Rule}
	}

	historyIDs := profile.HistoryIDs()
	ids := make([]string, 0, len(candidates)+len(historyIDs))
	seen := make(map[string]struct{}, cap(ids))
	for _, t := range candidates {
		if _, ok := seen[t.ID]; !ok {
			seen[t.ID] = struct{}{}
			ids = append(ids, t.ID)
		}
	}
	for _, id := range historyIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		features, err := r.features.GetAudioFeatures(ctx, ids)
		if err != nil {
			r.logger.Warn("load audio features failed", logging.String("user_id", userID), logging.Err(err))
		}
		rctx.Features = features
	}
	if n := feature.FitAudioFeatures(rctx.Features, core.IdxTempo); n != nil {
		rctx.Normalizer = n
	}
	profile.PreferenceVector = preferenceVector(rctx, historyIDs)
	return rctx, nil
}

// preferenceVector 是历史曲目归一化特征的质心，历史全无特征时为 nil。
func preferenceVector(rctx *core.RecommendContext, historyIDs []string) []float64 {
	vectors := make([][]float64, 0, len(historyIDs))
	for _, id := range historyIDs {
		if v, ok := rctx.Vector(id); ok {
			vectors = append(vectors, v)
		}
	}
	if len(vectors) == 0 {
		return nil
	}
	return vecmath.Mean(vectors, core.FeatureDim)
}

func dedupTruncate(items []*core.Item, limit int) []*core.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]*core.Item, 0, min(len(items), limit))
	for _, it := range items {
		if len(out) >= limit {
			break
		}
		if it == nil {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func toRecommendation(it *core.Item, rank int, fallback bool, bundle core.ContextBundle) core.Recommendation {
	sources := it.Sources()
	conf := Confidence(it.Score, len(sources))
	if fallback {
		popularity, _ := it.Meta[core.MetaPopularity].(float64)
		conf = FallbackConfidence(popularity)
	}
	return core.Recommendation{
		TrackID:    it.ID,
		Title:      it.MetaString(core.MetaTitle),
		Artist:     it.MetaString(core.MetaArtist),
		Genre:      it.MetaString(core.MetaGenre),
		Score:      it.Score,
		Sources:    sources,
		Confidence: conf,
		Rank:       rank,
		Reason:     Reason(sources, bundle),
	}
}
