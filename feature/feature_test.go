package feature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/cache"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/store"
)

func TestFitMinMax_SelectedDims(t *testing.T) {
	n := FitMinMax([][]float64{{0.2, 100}, {0.6, 140}, {0.4, 120}}, 1)
	require.NotNil(t, n)

	got := n.Normalize([]float64{0.6, 140})
	assert.InDeltaSlice(t, []float64{0.6, 1}, got, 1e-9)
	got = n.Normalize([]float64{0.2, 100})
	assert.InDeltaSlice(t, []float64{0.2, 0}, got, 1e-9)

	assert.InDeltaSlice(t, []float64{0.6, 120}, n.Denormalize([]float64{0.6, 0.5}), 1e-9)
}

func TestFitMinMax_AllDimsAndConstant(t *testing.T) {
	n := FitMinMax([][]float64{{1, 5}, {3, 5}})
	assert.InDeltaSlice(t, []float64{0.5, 0}, n.Normalize([]float64{2, 5}), 1e-9)

	var nilNorm *MinMaxNormalizer
	assert.Equal(t, []float64{2, 5}, nilNorm.Normalize([]float64{2, 5}))
	assert.Nil(t, FitMinMax(nil))
}

func TestContextTarget(t *testing.T) {
	assert.Nil(t, ContextTarget(core.ContextBundle{}))
	assert.Nil(t, ContextTarget(core.ContextBundle{Mood: "unknown"}))

	workout := ContextTarget(core.ContextBundle{Activity: "Workout"})
	assert.Equal(t, 0.90, workout["energy"])
	assert.Equal(t, 0.85, workout["tempo"])

	// happy(energy .70) + workout(energy .90) 取均值
	mixed := ContextTarget(core.ContextBundle{Mood: "happy", Activity: "workout"})
	assert.InDelta(t, 0.80, mixed["energy"], 1e-9)
	assert.InDelta(t, 0.85, mixed["valence"], 1e-9)

	for _, name := range KnownMoods() {
		for feat := range moodTargets[name] {
			assert.GreaterOrEqual(t, core.FeatureIndex(feat), 0, "%s/%s", name, feat)
		}
	}
	assert.Contains(t, KnownActivities(), "sleep")
	assert.Contains(t, KnownTimesOfDay(), "night")
}

const datasetYAML = `
tracks:
  - id: t1
    title: One
    artist: a1
    genre: rock
    popularity: 0.9
    features: {danceability: 0.5, energy: 0.8, tempo: 128}
  - id: t2
    artist: a2
    genre: jazz
    popularity: 0.2
listens:
  u1:
    - {track_id: t2, timestamp: "2024-03-02T10:00:00Z"}
    - {track_id: t1, unix: 1709200000}
`

func TestDataset(t *testing.T) {
	ds, err := ParseDataset([]byte(datasetYAML))
	require.NoError(t, err)
	m, err := ds.Build()
	require.NoError(t, err)
	ctx := context.Background()

	tracks, err := m.CandidateTracks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "a1", tracks[0].Artist)
	assert.Equal(t, 0.9, tracks[0].Popularity)

	feats, err := m.GetAudioFeatures(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Len(t, feats, 1)
	assert.Equal(t, 128.0, feats["t1"].Tempo)

	h, err := m.GetListeningHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, "t1", h[0].TrackID, "sorted chronologically")

	h, err = m.GetListeningHistory(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "t2", h[0].TrackID, "limit keeps most recent")

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestDataset_MissingID(t *testing.T) {
	ds, err := ParseDataset([]byte("tracks:\n  - artist: x\n"))
	require.NoError(t, err)
	_, err = ds.Build()
	assert.True(t, core.IsInvalidInput(err))
}

type countingStore struct {
	*MemoryStore
	calls [][]string
	err   error
}

func (c *countingStore) GetAudioFeatures(ctx context.Context, ids []string) (map[string]core.AudioFeatures, error) {
	c.calls = append(c.calls, ids)
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryStore.GetAudioFeatures(ctx, ids)
}

func TestCachedStore(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutTrack(core.Track{ID: "t1"}, &core.AudioFeatures{Energy: 0.3})
	mem.PutTrack(core.Track{ID: "t2"}, &core.AudioFeatures{Energy: 0.6})
	inner := &countingStore{MemoryStore: mem}

	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()
	cs := NewCachedStore(inner, cache.New(kv), nil)
	ctx := context.Background()

	got, err := cs.GetAudioFeatures(ctx, []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = cs.GetAudioFeatures(ctx, []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	assert.Equal(t, 0.6, got["t2"].Energy)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"t3"}, inner.calls[1], "only uncached tracks hit the inner store")
}

func TestCachedStore_InnerFailureKeepsHits(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutTrack(core.Track{ID: "t1"}, &core.AudioFeatures{Energy: 0.3})
	inner := &countingStore{MemoryStore: mem}

	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()
	cs := NewCachedStore(inner, cache.New(kv), nil)
	ctx := context.Background()

	_, err := cs.GetAudioFeatures(ctx, []string{"t1"})
	require.NoError(t, err)

	inner.err = errors.New("feature backend down")
	got, err := cs.GetAudioFeatures(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.3, got["t1"].Energy)

	_, err = cs.GetAudioFeatures(ctx, []string{"t2"})
	assert.Error(t, err, "nothing cached to serve")
}

func TestCachedCatalog(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutTrack(core.Track{ID: "t1", Artist: "a"}, nil)
	kv := store.NewMemoryStore(store.WithSweepInterval(0))
	defer kv.Close()
	cc := NewCachedCatalog(mem, cache.New(kv), nil)
	ctx := context.Background()

	first, err := cc.CandidateTracks(ctx, "u1")
	require.NoError(t, err)
	mem.PutTrack(core.Track{ID: "t2"}, nil)
	second, err := cc.CandidateTracks(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "served from cache")
}

func TestFallbackStore(t *testing.T) {
	primary := NewMemoryStore()
	primary.PutTrack(core.Track{ID: "t1"}, &core.AudioFeatures{Energy: 0.1})
	secondary := NewMemoryStore()
	secondary.PutTrack(core.Track{ID: "t1"}, &core.AudioFeatures{Energy: 0.9})
	secondary.PutTrack(core.Track{ID: "t2"}, &core.AudioFeatures{Energy: 0.5})
	secondary.AddListen("u1", core.ListenEvent{TrackID: "t1", Timestamp: time.Now()})
	ctx := context.Background()

	fs := NewFallbackStore(primary, secondary, nil)
	got, err := fs.GetAudioFeatures(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, got["t1"].Energy, "primary wins")
	assert.Equal(t, 0.5, got["t2"].Energy, "secondary fills gaps")

	broken := &countingStore{MemoryStore: primary, err: errors.New("feast down")}
	fs = NewFallbackStore(broken, secondary, nil)
	got, err = fs.GetAudioFeatures(ctx, []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, 0.9, got["t1"].Energy)

	h, err := fs.GetListeningHistory(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, h, 1)
}
