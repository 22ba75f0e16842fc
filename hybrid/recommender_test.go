package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/feature"
	"github.com/rushteam/tunekit/model"
	"github.com/rushteam/tunekit/store"
	"github.com/rushteam/tunekit/trend"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func trackID(i int) string { return fmt.Sprintf("T%d", i) }

// newDataset 构造 20 首艺人/流派互不相同的曲目，u1 听过 T1..T9。
func newDataset(t *testing.T) *feature.MemoryStore {
	t.Helper()
	ds := feature.NewMemoryStore()
	for i := 1; i <= 20; i++ {
		f := core.AudioFeatures{
			Danceability:     float64(i%5) / 5,
			Energy:           float64(i) / 20,
			Valence:          float64(20-i) / 20,
			Acousticness:     float64(i%3) / 3,
			Instrumentalness: 0.1,
			Speechiness:      0.05,
			Liveness:         0.2,
			Tempo:            80 + float64(i)*4,
		}
		ds.PutTrack(core.Track{
			ID:         trackID(i),
			Title:      "Song " + trackID(i),
			Artist:     fmt.Sprintf("artist-%d", i),
			Genre:      fmt.Sprintf("genre-%d", i),
			Popularity: float64(i) / 20,
		}, &f)
	}
	for i := 1; i <= 9; i++ {
		ds.AddListen("u1", core.ListenEvent{TrackID: trackID(i), Timestamp: epoch.Add(time.Duration(i) * time.Hour)})
	}
	return ds
}

func newRecommender(t *testing.T, ds *feature.MemoryStore, opts ...Option) *Recommender {
	t.Helper()
	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	t.Cleanup(func() { _ = kv.Close() })

	tracker := trend.NewTracker(kv)
	for i := 15; i <= 20; i++ {
		require.NoError(t, tracker.RecordPlay(context.Background(), trackID(i), epoch))
	}
	base := []Option{
		WithModel(model.NewMatrixFactorization(model.DefaultConfig())),
		WithTrending(tracker),
		WithClock(func() time.Time { return epoch }),
	}
	return New(ds, ds, append(base, opts...)...)
}

func assertValid(t *testing.T, res *Result, limit int) {
	t.Helper()
	require.LessOrEqual(t, len(res.Recommendations), limit)
	seen := make(map[string]bool)
	for i, rec := range res.Recommendations {
		assert.False(t, seen[rec.TrackID], "duplicate %s", rec.TrackID)
		seen[rec.TrackID] = true
		assert.Equal(t, i+1, rec.Rank)
		assert.GreaterOrEqual(t, rec.Confidence, 0.0)
		assert.LessOrEqual(t, rec.Confidence, 1.0)
		assert.NotEmpty(t, rec.Sources)
		assert.NotEmpty(t, rec.Reason)
	}
}

func TestGenerate_ExcludesHistory(t *testing.T) {
	r := newRecommender(t, newDataset(t))

	res, err := r.Generate(context.Background(), "u1", Options{
		Limit:   5,
		Context: core.ContextBundle{Activity: "workout"},
	})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Empty(t, res.FailedSources)
	require.Len(t, res.Recommendations, 5)
	assertValid(t, res, 5)

	for _, id := range res.TrackIDs() {
		for i := 1; i <= 9; i++ {
			assert.NotEqual(t, trackID(i), id)
		}
	}
	for i := 1; i < len(res.Recommendations); i++ {
		assert.GreaterOrEqual(t, res.Recommendations[i-1].Score, res.Recommendations[i].Score)
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	r := newRecommender(t, newDataset(t))
	ctx := context.Background()

	_, err := r.Generate(ctx, " ", Options{})
	assert.True(t, core.IsInvalidInput(err))

	_, err = r.Generate(ctx, "u1", Options{Limit: -1})
	assert.True(t, core.IsInvalidInput(err))

	_, err = r.Generate(ctx, "u1", Options{Rule: "track.genre =="})
	assert.True(t, core.IsInvalidInput(err))
}

type failingSource struct{ name string }

func (s failingSource) Name() string { return s.name }
func (s failingSource) Recall(context.Context, *core.RecommendContext) ([]*core.Item, error) {
	return nil, errors.New(s.name + " unavailable")
}

func TestGenerate_FallbackWhenAllSourcesFail(t *testing.T) {
	r := newRecommender(t, newDataset(t), WithSources(
		failingSource{core.SourceCollaborative},
		failingSource{core.SourceContent},
		failingSource{core.SourceContext},
		failingSource{core.SourceTrending},
	))

	res, err := r.Generate(context.Background(), "u1", Options{Limit: 3})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Len(t, res.FailedSources, 4)
	assert.Equal(t, []string{"T20", "T19", "T18"}, res.TrackIDs())
	assertValid(t, res, 3)
	for _, rec := range res.Recommendations {
		assert.Equal(t, []string{core.SourceFallback}, rec.Sources)
		assert.LessOrEqual(t, rec.Confidence, FallbackConfidenceCap)
	}
	assert.InDelta(t, 0.25, res.Recommendations[0].Confidence, 1e-9)
}

type staticSource struct {
	name   string
	scores map[string]float64
}

func (s staticSource) Name() string { return s.name }
func (s staticSource) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	var out []*core.Item
	for id, score := range s.scores {
		tr, ok := rctx.Track(id)
		if !ok {
			continue
		}
		it := core.NewTrackItem(tr)
		it.Score = score
		out = append(out, it)
	}
	return out, nil
}

func TestGenerate_PartialFailureAndWeightedMerge(t *testing.T) {
	r := newRecommender(t, newDataset(t), WithSources(
		staticSource{core.SourceCollaborative, map[string]float64{"T12": 1, "T13": 0.5, "T2": 5}},
		staticSource{core.SourceContent, map[string]float64{"T13": 1}},
		failingSource{core.SourceContext},
	))

	res, err := r.Generate(context.Background(), "u1", Options{Limit: 10})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{core.SourceContext}, res.FailedSources)
	// T2 在历史中被过滤；T13 = 0.5*0.40 + 1*0.35
	require.Equal(t, []string{"T13", "T12"}, res.TrackIDs())
	assert.InDelta(t, 0.55, res.Recommendations[0].Score, 1e-9)
	assert.Equal(t, []string{core.SourceCollaborative, core.SourceContent}, res.Recommendations[0].Sources)
	assert.Greater(t, res.Recommendations[0].Confidence, Confidence(0.55, 1))
}

func TestGenerate_DiversityAcrossArtists(t *testing.T) {
	ds := newDataset(t)
	for i := 10; i <= 20; i++ {
		ds.PutTrack(core.Track{ID: trackID(i), Artist: "same", Genre: fmt.Sprintf("genre-%d", i), Popularity: 0.5}, nil)
	}
	r := newRecommender(t, ds)

	res, err := r.Generate(context.Background(), "u1", Options{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 1)
}

func TestGenerate_RuleAndHistoryOverride(t *testing.T) {
	r := newRecommender(t, newDataset(t))

	res, err := r.Generate(context.Background(), "u1", Options{
		Limit:   20,
		Rule:    `track.popularity >= 0.9`,
		History: []core.ListenEvent{{TrackID: "T20", Timestamp: epoch}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"T18", "T19"}, res.TrackIDs())
}

func TestGenerate_CacheAndFeedbackInvalidation(t *testing.T) {
	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()
	layer := cache.New(kv)
	r := newRecommender(t, newDataset(t), WithCache(layer))
	ctx := context.Background()
	opts := Options{Limit: 5, UseCache: true, Context: core.ContextBundle{Mood: "happy"}}

	first, err := r.Generate(ctx, "u1", opts)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := r.Generate(ctx, "u1", opts)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.TrackIDs(), second.TrackIDs())

	other, err := r.Generate(ctx, "u1", Options{Limit: 5, UseCache: true, Context: core.ContextBundle{Mood: "sad"}})
	require.NoError(t, err)
	assert.False(t, other.Cached)

	require.NoError(t, r.Feedback(ctx, "u1", "T12", 1))
	third, err := r.Generate(ctx, "u1", opts)
	require.NoError(t, err)
	assert.False(t, third.Cached)

	uncached, err := r.Generate(ctx, "u1", Options{Limit: 5, UseCache: true, History: []core.ListenEvent{}})
	require.NoError(t, err)
	assert.False(t, uncached.Cached)
}

// gatedHistory 在首次读取收听历史时阻塞，直到 release 被关闭。
type gatedHistory struct {
	*feature.MemoryStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedHistory) GetListeningHistory(ctx context.Context, userID string, limit int) ([]core.ListenEvent, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.MemoryStore.GetListeningHistory(ctx, userID, limit)
}

func TestGenerate_FeedbackDuringComputeInvalidates(t *testing.T) {
	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()
	ds := newDataset(t)
	gated := &gatedHistory{MemoryStore: ds, started: make(chan struct{}), release: make(chan struct{})}
	r := New(gated, ds,
		WithModel(model.NewMatrixFactorization(model.DefaultConfig())),
		WithCache(cache.New(kv)),
		WithClock(func() time.Time { return epoch }))
	ctx := context.Background()
	opts := Options{Limit: 5, UseCache: true}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Generate(ctx, "u1", opts)
		done <- outcome{res, err}
	}()

	<-gated.started
	require.NoError(t, r.Feedback(ctx, "u1", "T20", 1))
	close(gated.release)

	first := <-done
	require.NoError(t, first.err)
	assert.False(t, first.res.Cached)

	next, err := r.Generate(ctx, "u1", opts)
	require.NoError(t, err)
	assert.False(t, next.Cached, "result computed before feedback must not be served")

	again, err := r.Generate(ctx, "u1", opts)
	require.NoError(t, err)
	assert.True(t, again.Cached)
}

func TestFeedback(t *testing.T) {
	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()
	tracker := trend.NewTracker(kv)
	mf := model.NewMatrixFactorization(model.DefaultConfig())
	r := New(newDataset(t), feature.NewMemoryStore(), WithModel(mf), WithTrending(tracker))
	ctx := context.Background()

	assert.True(t, core.IsInvalidInput(r.Feedback(ctx, "", "T1", 1)))

	before := mf.Predict("u1", "T3")
	require.NoError(t, r.Feedback(ctx, "u1", "T3", 1))
	assert.Greater(t, mf.Predict("u1", "T3"), before)

	require.NoError(t, r.Feedback(ctx, "u1", "T4", 0))
	top, err := tracker.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "T3", top[0].Member)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(-3, 1))
	assert.Equal(t, 0.0, Confidence(0, 4))
	assert.InDelta(t, (1-1/2.718281828459045)*0.55, Confidence(1, 1), 1e-9)
	assert.Greater(t, Confidence(1, 2), Confidence(1, 1))
	assert.LessOrEqual(t, Confidence(100, 4), 1.0)
	assert.InDelta(t, 0.25, FallbackConfidence(1.5), 1e-9)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "Recommended for you", Reason(nil, core.ContextBundle{}))
	assert.Equal(t,
		"Recommended because listeners with similar taste enjoyed it and it fits a happy mood",
		Reason([]string{core.SourceCollaborative, core.SourceContext}, core.ContextBundle{Mood: "Happy"}))
	assert.Equal(t,
		"Recommended because it sounds like tracks you already play, it fits workout and the morning and it is trending right now",
		Reason([]string{core.SourceContent, core.SourceContext, core.SourceTrending},
			core.ContextBundle{Activity: "workout", TimeOfDay: "morning"}))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.Weights[core.SourceContent] = 1.5
	assert.True(t, core.IsInvalidInput(cfg.Validate()))
}
