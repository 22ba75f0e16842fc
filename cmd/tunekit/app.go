package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/cluster"
	"github.com/rushteam/tunekit/config"
	"github.com/rushteam/tunekit/config/builders"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/eval"
	"github.com/rushteam/tunekit/feast"
	"github.com/rushteam/tunekit/feature"
	"github.com/rushteam/tunekit/hybrid"
	"github.com/rushteam/tunekit/model"
	"github.com/rushteam/tunekit/persist"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/store"
	"github.com/rushteam/tunekit/summarizer"
	"github.com/rushteam/tunekit/trend"
)

// app 持有按配置组装好的全部组件。
type app struct {
	cfg    *config.AppConfig
	logger logging.Logger

	dataset  *feature.MemoryStore
	features core.FeatureStore
	kv       core.KeyValueStore
	cache    *cache.Layer
	mf       *model.MatrixFactorization
	tracker  *trend.Tracker

	recommender *hybrid.Recommender
	clusterer   *cluster.Clusterer
	harness     *eval.Harness

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.AppConfig, logger logging.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	if cfg.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	dataset, err := feature.LoadDataset(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	a.dataset = dataset

	if err := a.initStore(ctx); err != nil {
		return err
	}
	if err := a.initFeatures(); err != nil {
		return err
	}
	if cfg.Cache.Enabled {
		a.cache = cache.New(a.kv,
			cache.WithPrefix(cfg.Cache.Prefix),
			cache.WithTTL(cache.NSRecommendations, cfg.Cache.RecommendationsTTL),
			cache.WithTTL(cache.NSFeatures, cfg.Cache.FeaturesTTL),
			cache.WithTTL(cache.NSCandidates, cfg.Cache.CandidatesTTL),
			cache.WithLogger(logger))
	}

	a.mf = model.NewMatrixFactorization(cfg.MF.Config)
	if err := model.Restore(ctx, a.kv, a.mf, cfg.MF.SnapshotPrefix); err != nil && !core.IsStoreNotFound(err) {
		logger.Warn("restore mf snapshot failed", logging.Err(err))
	}
	a.tracker = trend.NewTracker(a.kv, trend.WithKey(cfg.Trending.Key), trend.WithHalfLife(cfg.Trending.HalfLife))

	opts := []hybrid.Option{
		hybrid.WithConfig(cfg.Recommender.Config),
		hybrid.WithModel(a.mf),
		hybrid.WithTrending(a.tracker),
		hybrid.WithCache(a.cache),
		hybrid.WithLogger(logger),
	}
	if path := cfg.Recommender.PipelinePath; path != "" {
		builders.SetStore(a.kv)
		builders.SetLogger(logger)
		p, err := config.LoadPipeline(path)
		if err != nil {
			return err
		}
		logger.Info("post-merge pipeline loaded",
			logging.String("path", path),
			logging.String("name", p.Name),
			logging.Strings("nodes", p.Describe()))
		opts = append(opts, hybrid.WithPipeline(p))
	}
	a.recommender = hybrid.New(a.features, a.dataset, opts...)

	persistence, err := a.initPersistence(ctx)
	if err != nil {
		return err
	}
	a.clusterer = cluster.New(a.features,
		cluster.WithSummarizer(a.newSummarizer()),
		cluster.WithPersistence(persistence),
		cluster.WithLogger(logger),
		cluster.WithVersion(cfg.Version))
	a.harness = eval.New(a.recommender, a.dataset, a.features,
		eval.WithPersistence(persistence),
		eval.WithLogger(logger),
		eval.WithVersion(cfg.Version))
	return nil
}

func (a *app) initStore(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		mem := store.NewMemoryStore()
		a.kv = mem
		a.closers = append(a.closers, mem.Close)
		return nil
	}
	rs, err := store.NewRedisStore(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	a.kv = rs
	a.closers = append(a.closers, rs.Close)
	return nil
}

// initFeatures 配置了 Feast 时以 Feast 为主、数据集为备；否则直接使用数据集。
func (a *app) initFeatures() error {
	fc := a.cfg.Feast
	if fc.Endpoint == "" {
		a.features = a.dataset
		return nil
	}
	var opts []feast.ClientOption
	opts = append(opts, feast.WithTimeout(fc.Timeout))
	if fc.Token != "" {
		opts = append(opts, feast.WithAuth(&feast.AuthConfig{Type: "static", Token: fc.Token}))
	}
	client, err := feast.NewClient(fc.Endpoint, fc.Project, opts...)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)

	var storeOpts []feast.StoreOption
	storeOpts = append(storeOpts, feast.WithHistory(a.dataset))
	if fc.FeatureView != "" {
		storeOpts = append(storeOpts, feast.WithFeatureView(fc.FeatureView))
	}
	if fc.EntityKey != "" {
		storeOpts = append(storeOpts, feast.WithEntityKey(fc.EntityKey))
	}
	a.features = feature.NewFallbackStore(feast.NewFeatureStore(client, storeOpts...), a.dataset, a.logger)
	return nil
}

func (a *app) initPersistence(ctx context.Context) (core.Persistence, error) {
	var backends persist.Multi
	if a.cfg.Postgres.DSN != "" {
		pg, pool, err := persist.ConnectPostgres(ctx, a.cfg.Postgres.DSN, a.cfg.Postgres.Table)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		backends = append(backends, pg)
	}
	if a.cfg.ObjectStore.Endpoint != "" {
		obj, err := persist.ConnectObjectStore(ctx, a.cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		backends = append(backends, obj)
	}
	if len(backends) == 0 {
		return persist.Nop{}, nil
	}
	return backends, nil
}

func (a *app) newSummarizer() core.Summarizer {
	sc := a.cfg.Summarizer
	if sc.Endpoint == "" {
		return summarizer.Nop{}
	}
	var opts []summarizer.HTTPOption
	if sc.Token != "" {
		opts = append(opts, summarizer.WithHeader("Authorization", "Bearer "+sc.Token))
	}
	return summarizer.NewGuarded(summarizer.NewHTTP(sc.Endpoint, sc.Timeout, opts...), sc.Guard, a.logger)
}

// SaveModel 把 MF 快照写回 Store。
func (a *app) SaveModel(ctx context.Context) error {
	return model.Snapshot(ctx, a.kv, a.mf, a.cfg.MF.SnapshotPrefix)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
