package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(SourceFailures.WithLabelValues("content"))
	SourceFailures.WithLabelValues("content").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SourceFailures.WithLabelValues("content")))

	before = testutil.ToFloat64(CacheHits.WithLabelValues("recommendations"))
	CacheHits.WithLabelValues("recommendations").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(CacheHits.WithLabelValues("recommendations")))
}

func TestObserveSince(t *testing.T) {
	before := testutil.CollectAndCount(ClusterDuration)
	ObserveSince(ClusterDuration.WithLabelValues("kmeans-test"), time.Now().Add(-time.Second))
	assert.Equal(t, before+1, testutil.CollectAndCount(ClusterDuration))
}
