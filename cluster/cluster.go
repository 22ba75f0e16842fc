// Package cluster 按音频特征相似度把曲目分组：k-means 或简化的密度聚类，
// 附带可读标签与质量指标。
package cluster

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/feature"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/pkg/vecmath"
)

// 聚类算法
const (
	AlgorithmKMeans  = "kmeans"
	AlgorithmDensity = "density"
)

// Options 是一次聚类的参数，零值字段使用 DefaultOptions 中的值。
type Options struct {
	K             int     `mapstructure:"k" yaml:"k"`
	Algorithm     string  `mapstructure:"algorithm" yaml:"algorithm"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance" yaml:"tolerance"`
	Seed          uint64  `mapstructure:"seed" yaml:"seed"`

	// 密度聚类参数
	Epsilon        float64 `mapstructure:"epsilon" yaml:"epsilon"`
	MinNeighbors   int     `mapstructure:"min_neighbors" yaml:"min_neighbors"`
	MinClusterSize int     `mapstructure:"min_cluster_size" yaml:"min_cluster_size"`
}

func DefaultOptions() Options {
	return Options{
		K:              5,
		Algorithm:      AlgorithmKMeans,
		MaxIterations:  100,
		Tolerance:      1e-4,
		Seed:           42,
		Epsilon:        0.2,
		MinNeighbors:   3,
		MinClusterSize: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Algorithm == "" {
		o.Algorithm = d.Algorithm
	}
	o.Algorithm = strings.ToLower(o.Algorithm)
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Epsilon <= 0 {
		o.Epsilon = d.Epsilon
	}
	if o.MinNeighbors <= 0 {
		o.MinNeighbors = d.MinNeighbors
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = d.MinClusterSize
	}
	return o
}

// Result 是一次聚类运行的结果，持久化为 cluster_run。
type Result struct {
	RunID     string    `json:"run_id"`
	Algorithm string    `json:"algorithm"`
	Options   Options   `json:"options"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`

	Clusters []core.Cluster `json:"clusters"`
	// Assignments 曲目 -> 簇 ID，密度聚类中的噪声点为 Noise
	Assignments map[string]int `json:"assignments"`
	// Noise 密度聚类中不属于任何簇的曲目
	Noise []string `json:"noise,omitempty"`
	// Skipped 没有音频特征的曲目
	Skipped []string `json:"skipped,omitempty"`

	Quality        core.ClusterQuality `json:"quality"`
	InertiaHistory []float64           `json:"inertia_history,omitempty"`
	Iterations     int                 `json:"iterations,omitempty"`
	Converged      bool                `json:"converged"`
}

// NonEmpty 返回有成员的簇数。
func (r *Result) NonEmpty() int {
	n := 0
	for _, c := range r.Clusters {
		if len(c.TrackIDs) > 0 {
			n++
		}
	}
	return n
}

// Clusterer 执行聚类，可并发使用。
type Clusterer struct {
	features   core.FeatureStore
	summarizer core.Summarizer
	persist    core.Persistence
	logger     logging.Logger
	version    string
}

type Option func(*Clusterer)

// WithSummarizer 设置标签生成服务，未设置时使用通用标签。
func WithSummarizer(s core.Summarizer) Option { return func(c *Clusterer) { c.summarizer = s } }

func WithPersistence(p core.Persistence) Option { return func(c *Clusterer) { c.persist = p } }

func WithLogger(l logging.Logger) Option { return func(c *Clusterer) { c.logger = l } }

// WithVersion 设置持久化记录的版本号。
func WithVersion(v string) Option { return func(c *Clusterer) { c.version = v } }

func New(features core.FeatureStore, opts ...Option) *Clusterer {
	c := &Clusterer{features: features, version: "dev"}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger).Named("cluster")
	return c
}

// Cluster 对给定曲目聚类。
//
// 特征在输入集合内按维做 min-max 归一化，质心位于归一化空间；
// FeatureMeans 与描述基于原始特征。k-means 结果恰好包含 K 个簇槽位。
// 参数非法返回 INVALID_INPUT；没有任何曲目有特征时返回 core.ErrNoFeatures；
// 标签与持久化失败只记录日志。
func (c *Clusterer) Cluster(ctx context.Context, trackIDs []string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	switch opts.Algorithm {
	case AlgorithmKMeans:
		if opts.K < 1 {
			return nil, core.InvalidInput(core.ModuleCluster, "cluster: k must be >= 1")
		}
	case AlgorithmDensity:
	default:
		return nil, core.InvalidInput(core.ModuleCluster, "cluster: unknown algorithm "+opts.Algorithm)
	}
	if len(trackIDs) == 0 {
		return nil, core.InvalidInput(core.ModuleCluster, "cluster: no tracks given")
	}

	start := time.Now()
	defer metrics.ObserveSince(metrics.ClusterDuration.WithLabelValues(opts.Algorithm), start)

	ids, raw, skipped, err := c.load(ctx, trackIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, core.ErrNoFeatures
	}
	norm := feature.FitMinMax(raw)
	points := make([][]float64, len(raw))
	for i, v := range raw {
		points[i] = norm.Normalize(v)
	}

	res := &Result{
		Algorithm:   opts.Algorithm,
		Options:     opts,
		StartedAt:   start.UTC(),
		Skipped:     skipped,
		Assignments: make(map[string]int, len(ids)),
	}

	var (
		labels    []int
		centroids [][]float64
	)
	switch opts.Algorithm {
	case AlgorithmKMeans:
		km, err := KMeans(ctx, points, opts.K, opts.MaxIterations, opts.Tolerance, opts.Seed)
		if err != nil {
			return nil, err
		}
		labels, centroids = km.Assignments, km.Centroids
		res.InertiaHistory, res.Iterations, res.Converged = km.Inertia, km.Iterations, km.Converged
	case AlgorithmDensity:
		var k int
		labels, k, err = Density(ctx, DistanceMatrix(points), opts.Epsilon, opts.MinNeighbors, opts.MinClusterSize)
		if err != nil {
			return nil, err
		}
		centroids = make([][]float64, k)
		for cid := range centroids {
			var members [][]float64
			for i, l := range labels {
				if l == cid {
					members = append(members, points[i])
				}
			}
			centroids[cid] = vecmath.Mean(members, core.FeatureDim)
		}
		res.Converged = true
	}

	overall, per := quality(points, labels, centroids, newRNG(opts.Seed))
	res.Quality = overall
	res.Clusters = make([]core.Cluster, len(centroids))
	for cid := range res.Clusters {
		res.Clusters[cid] = core.Cluster{ID: cid, TrackIDs: []string{}, Centroid: centroids[cid], Quality: per[cid]}
	}
	rawByCluster := make([][][]float64, len(centroids))
	for i, l := range labels {
		res.Assignments[ids[i]] = l
		if l == Noise {
			res.Noise = append(res.Noise, ids[i])
			continue
		}
		res.Clusters[l].TrackIDs = append(res.Clusters[l].TrackIDs, ids[i])
		rawByCluster[l] = append(rawByCluster[l], raw[i])
	}
	for cid := range res.Clusters {
		cl := &res.Clusters[cid]
		if len(cl.TrackIDs) == 0 {
			continue
		}
		mean := vecmath.Mean(rawByCluster[cid], core.FeatureDim)
		cl.FeatureMeans = core.AudioFeaturesFromVector(mean).Map()
		cl.Descriptors = Descriptors(cl.FeatureMeans)
	}
	labelClusters(ctx, c.summarizer, c.logger, res.Clusters)

	res.Duration = time.Since(start).String()
	c.save(ctx, res)
	c.logger.Info("cluster run finished",
		logging.String("algorithm", opts.Algorithm),
		logging.Int("tracks", len(ids)),
		logging.Int("clusters", res.NonEmpty()),
		logging.Float64("silhouette", res.Quality.Silhouette))
	return res, nil
}

// load 拉取特征，保持输入顺序并去重；没有特征的曲目记入 skipped。
func (c *Clusterer) load(ctx context.Context, trackIDs []string) ([]string, [][]float64, []string, error) {
	uniq := make([]string, 0, len(trackIDs))
	seen := make(map[string]struct{}, len(trackIDs))
	for _, id := range trackIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	features, err := c.features.GetAudioFeatures(ctx, uniq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, nil, ctxErr
		}
		c.logger.Warn("load audio features failed", logging.Err(err))
	}
	var (
		ids     []string
		raw     [][]float64
		skipped []string
	)
	for _, id := range uniq {
		f, ok := features[id]
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		ids = append(ids, id)
		raw = append(raw, f.Vector())
	}
	sort.Strings(skipped)
	return ids, raw, skipped, nil
}

func (c *Clusterer) save(ctx context.Context, res *Result) {
	meta := core.NewRecordMetadata(core.KindClusterRun, c.version)
	res.RunID = meta.ID
	if c.persist == nil {
		return
	}
	if err := c.persist.Save(ctx, core.KindClusterRun, res, meta); err != nil {
		c.logger.Warn("persist cluster run failed", logging.String("run_id", res.RunID), logging.Err(err))
	}
}
