package feast

import (
	"context"
	"errors"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/feature"
)

func TestFromSDKValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{"double", feastsdk.DoubleVal(0.5), 0.5},
		{"float", feastsdk.FloatVal(0.25), 0.25},
		{"int64", feastsdk.Int64Val(120), 120.0},
		{"int32", feastsdk.Int32Val(7), 7.0},
		{"string", feastsdk.StrVal("t1"), "t1"},
		{"bool", feastsdk.BoolVal(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromSDKValue(toSDKValue(tt.input)))
		})
	}
	assert.Nil(t, fromSDKValue(nil))
}

func TestToSDKValue(t *testing.T) {
	assert.Equal(t, "t1", fromSDKValue(toSDKValue("t1")))
	assert.Equal(t, 42.0, fromSDKValue(toSDKValue(42)))
	assert.Equal(t, "[1 2]", fromSDKValue(toSDKValue([]int{1, 2})))
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port int
	}{
		{"localhost:6565", "localhost", 6565},
		{"grpc://feast.internal:7000", "feast.internal", 7000},
		{"feast", "feast", 0},
	}
	for _, tt := range tests {
		host, port := parseEndpoint(tt.in)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.port, port, tt.in)
	}
}

type fakeClient struct {
	rows  map[string]map[string]interface{}
	calls int
	err   error
}

func (f *fakeClient) GetOnlineFeatures(_ context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := &GetOnlineFeaturesResponse{}
	for _, row := range req.EntityRows {
		id, _ := row[DefaultEntityKey].(string)
		values := make(map[string]interface{})
		for _, ref := range req.Features {
			if v, ok := f.rows[id][ref]; ok {
				values[ref] = v
			}
		}
		resp.FeatureVectors = append(resp.FeatureVectors, FeatureVector{Values: values, EntityRow: row})
	}
	return resp, nil
}

func (f *fakeClient) Close() error { return nil }

func fullRow(energy float64) map[string]interface{} {
	row := make(map[string]interface{})
	for _, name := range core.FeatureNames {
		row[DefaultFeatureView+":"+name] = 0.5
	}
	row[DefaultFeatureView+":energy"] = energy
	row[DefaultFeatureView+":tempo"] = int64(128)
	return row
}

func TestFeatureStore_GetAudioFeatures(t *testing.T) {
	partial := fullRow(0.1)
	delete(partial, DefaultFeatureView+":valence")
	client := &fakeClient{rows: map[string]map[string]interface{}{
		"t1": fullRow(0.9),
		"t2": partial,
		"t3": fullRow(0.3),
	}}
	s := NewFeatureStore(client, WithBatchSize(2))

	got, err := s.GetAudioFeatures(context.Background(), []string{"t1", "t2", "t3", "t4"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got["t1"].Energy)
	assert.Equal(t, 128.0, got["t1"].Tempo)
	assert.Equal(t, 0.3, got["t3"].Energy)
	assert.NotContains(t, got, "t2")
}

func TestFeatureStore_Unavailable(t *testing.T) {
	s := NewFeatureStore(&fakeClient{err: errors.New("deadline exceeded")})
	_, err := s.GetAudioFeatures(context.Background(), []string{"t1"})
	assert.True(t, core.IsUnavailable(err))
}

func TestFeatureStore_HistoryDelegates(t *testing.T) {
	s := NewFeatureStore(&fakeClient{})
	h, err := s.GetListeningHistory(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, h)

	ds := feature.NewMemoryStore()
	ds.AddListen("u1", core.ListenEvent{TrackID: "t1"})
	s = NewFeatureStore(&fakeClient{}, WithHistory(ds))
	h, err = s.GetListeningHistory(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "t1", h[0].TrackID)
}
