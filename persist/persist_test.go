package persist

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/core"
)

type sampleRun struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func testMeta() core.RecordMetadata {
	return core.RecordMetadata{
		ID:        "0b9e1f8e-6a43-4a55-9a4f-1f0d3c2b8a11",
		Kind:      core.KindClusterRun,
		Version:   "v1",
		Timestamp: time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory_Save(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, core.KindClusterRun, sampleRun{ID: "r1", Score: 0.5}, testMeta()))
	require.NoError(t, m.Save(ctx, core.KindEvaluationRun, sampleRun{ID: "r2"}, core.RecordMetadata{Version: "v1"}))

	runs := m.Records(core.KindClusterRun)
	require.Len(t, runs, 1)
	var got sampleRun
	require.NoError(t, json.Unmarshal(runs[0].Payload, &got))
	assert.Equal(t, 0.5, got.Score)

	evals := m.Records(core.KindEvaluationRun)
	require.Len(t, evals, 1)
	assert.NotEmpty(t, evals[0].Metadata.ID)
	assert.Equal(t, core.KindEvaluationRun, evals[0].Metadata.Kind)
	assert.False(t, evals[0].Metadata.Timestamp.IsZero())
	assert.Len(t, m.Records(""), 2)
}

func TestMemory_InvalidMeta(t *testing.T) {
	m := NewMemory()
	err := m.Save(context.Background(), core.KindEvaluationRun, sampleRun{}, testMeta())
	assert.True(t, core.IsInvalidInput(err))

	err = m.Save(context.Background(), "", sampleRun{}, core.RecordMetadata{})
	assert.True(t, core.IsInvalidInput(err))
}

type failing struct{ err error }

func (f failing) Save(context.Context, string, any, core.RecordMetadata) error { return f.err }

func TestMulti_WritesAllAndJoinsErrors(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	boom := errors.New("boom")
	multi := Multi{a, failing{err: boom}, nil, b}

	err := multi.Save(context.Background(), core.KindClusterRun, sampleRun{ID: "r1"}, testMeta())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Records(""), 1)
	assert.Len(t, b.Records(""), 1)

	assert.NoError(t, Multi{Nop{}}.Save(context.Background(), core.KindClusterRun, nil, testMeta()))
}

type fakeExecer struct {
	sqls []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPostgres_Save(t *testing.T) {
	db := &fakeExecer{}
	p := NewPostgres(db, "")
	require.NoError(t, p.EnsureSchema(context.Background()))
	require.NoError(t, p.Save(context.Background(), core.KindClusterRun, sampleRun{ID: "r1", Score: 1}, testMeta()))

	require.Len(t, db.sqls, 2)
	assert.Contains(t, db.sqls[0], "CREATE TABLE IF NOT EXISTS analysis_records")
	assert.Contains(t, db.sqls[1], "INSERT INTO analysis_records")
	args := db.args[1]
	require.Len(t, args, 5)
	assert.Equal(t, testMeta().ID, args[0])
	assert.Equal(t, core.KindClusterRun, args[1])
	assert.JSONEq(t, `{"id":"r1","score":1}`, args[4].(string))
}

func TestPostgres_SaveError(t *testing.T) {
	p := NewPostgres(&fakeExecer{err: errors.New("conn refused")}, "runs")
	err := p.Save(context.Background(), core.KindClusterRun, sampleRun{}, testMeta())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn refused")
}

type fakeObjects struct {
	exists  bool
	made    []string
	bucket  string
	key     string
	body    string
	options minio.PutObjectOptions
}

func (f *fakeObjects) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.body, f.options = bucket, key, string(data), opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestObjectStore_Save(t *testing.T) {
	api := &fakeObjects{}
	s := NewObjectStore(api, "tunekit", "runs")
	require.NoError(t, s.EnsureBucket(context.Background(), "us-east-1"))
	assert.Equal(t, []string{"tunekit"}, api.made)

	require.NoError(t, s.Save(context.Background(), core.KindClusterRun, sampleRun{ID: "r1"}, testMeta()))
	assert.Equal(t, "tunekit", api.bucket)
	assert.Equal(t, "runs/cluster_run/2025/03/07/"+testMeta().ID+".json", api.key)
	assert.Equal(t, "application/json", api.options.ContentType)

	var env Envelope
	require.NoError(t, json.NewDecoder(strings.NewReader(api.body)).Decode(&env))
	assert.Equal(t, testMeta().ID, env.Metadata.ID)
	assert.JSONEq(t, `{"id":"r1","score":0}`, string(env.Payload))
}

func TestObjectStore_ExistingBucket(t *testing.T) {
	api := &fakeObjects{exists: true}
	require.NoError(t, NewObjectStore(api, "b", "").EnsureBucket(context.Background(), ""))
	assert.Empty(t, api.made)
	assert.Equal(t, "evaluation_run/2025/03/07/x.json",
		NewObjectStore(api, "b", "").ObjectKey(core.RecordMetadata{ID: "x", Kind: core.KindEvaluationRun, Timestamp: testMeta().Timestamp}))
}
