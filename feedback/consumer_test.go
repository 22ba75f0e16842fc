package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/tunekit/core"
)

type applied struct {
	user, track string
	rating      float64
}

type recordingApplier struct {
	mu    sync.Mutex
	calls []applied
	fail  map[string]bool
}

func (a *recordingApplier) Feedback(_ context.Context, userID, trackID string, rating float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail[trackID] {
		return errors.New("model unavailable")
	}
	a.calls = append(a.calls, applied{userID, trackID, rating})
	return nil
}

func record(t *testing.T, offset int64, ev Event) *kgo.Record {
	t.Helper()
	data, err := Encode(ev)
	require.NoError(t, err)
	r := NewRecord("tunekit.feedback", ev.UserID, data)
	r.Offset = offset
	return r
}

func TestDecode(t *testing.T) {
	ev, err := Decode([]byte(`{"user_id":"u1","track_id":"t1","rating":0.5,"timestamp":"2025-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{UserID: "u1", TrackID: "t1", Rating: 0.5, Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}, ev)

	_, err = Decode([]byte(`{"user_id":"u1"}`))
	assert.True(t, core.IsInvalidInput(err))

	_, err = Decode([]byte(`not json`))
	assert.True(t, core.IsInvalidInput(err))
}

func TestConsumer_HandleRecord(t *testing.T) {
	app := &recordingApplier{fail: map[string]bool{"broken": true}}
	c := NewConsumer(&fakeFetcher{}, app, nil)
	ctx := context.Background()

	require.NoError(t, c.HandleRecord(ctx, record(t, 1, Event{UserID: "u1", TrackID: "t1", Rating: 1})))
	assert.Error(t, c.HandleRecord(ctx, &kgo.Record{Value: []byte(`{}`)}))
	assert.Error(t, c.HandleRecord(ctx, record(t, 2, Event{UserID: "u1", TrackID: "broken", Rating: 1})))

	assert.Equal(t, []applied{{"u1", "t1", 1}}, app.calls)
}

// fakeFetcher 依次返回预置批次，耗尽后取消 ctx。
type fakeFetcher struct {
	batches [][]*kgo.Record
	cancel  context.CancelFunc
	commits int
	closed  bool
}

func (f *fakeFetcher) PollFetches(context.Context) kgo.Fetches {
	if len(f.batches) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "tunekit.feedback",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: batch}},
	}}}}
}

func (f *fakeFetcher) CommitUncommittedOffsets(context.Context) error {
	f.commits++
	return nil
}

func (f *fakeFetcher) Close() { f.closed = true }

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{
		cancel: cancel,
		batches: [][]*kgo.Record{
			{
				record(t, 0, Event{UserID: "u1", TrackID: "t1", Rating: 1}),
				{Topic: "tunekit.feedback", Offset: 1, Value: []byte(`garbage`)},
			},
			{
				record(t, 2, Event{UserID: "u2", TrackID: "t2", Rating: -1}),
			},
		},
	}
	app := &recordingApplier{}
	c := NewConsumer(fetcher, app, nil)

	n, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, fetcher.commits)
	assert.Equal(t, []applied{{"u1", "t1", 1}, {"u2", "t2", -1}}, app.calls)

	c.Close()
	assert.True(t, fetcher.closed)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "tunekit.feedback", cfg.Topic)
	assert.Equal(t, "tunekit-feedback", cfg.Group)

	_, err := NewKafkaClient(Config{})
	assert.True(t, core.IsInvalidInput(err))
}
