package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

// promauto 注册到全局 registry，每个测试用独立命名空间避免冲突
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.fileEventsTotal)
	assert.NotNil(t, collector.savesTotal)
	assert.NotNil(t, collector.latestVersion)
	assert.NotNil(t, collector.watchClients)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/config", 200, 10*time.Millisecond)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordSaveOutcomes(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSave("created", 5*time.Millisecond)
	collector.RecordSave("deduplicated", 2*time.Millisecond)
	collector.RecordSave("rollback", 4*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.savesTotal.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.savesTotal.WithLabelValues("deduplicated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.savesTotal.WithLabelValues("rollback")))
}

func TestCollector_LatestVersionGauge(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetLatestVersion(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(collector.latestVersion))

	collector.SetLatestVersion(8)
	assert.Equal(t, float64(8), testutil.ToFloat64(collector.latestVersion))
}

func TestCollector_IngestMetrics(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordFileEvent("MODIFY")
	collector.RecordFileEvent("MODIFY")
	collector.RecordIngestError("parse")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.fileEventsTotal.WithLabelValues("MODIFY")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.ingestErrorsTotal.WithLabelValues("parse")))
}

func TestCollector_WatchClients(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.WatchClientConnected()
	collector.WatchClientConnected()
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.watchClients))

	collector.WatchClientDisconnected()
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.watchClients))
}

func TestCollector_CacheMetrics(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("latest")
	collector.RecordCacheMiss("latest")
	collector.RecordCacheHit("latest")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.cacheHits.WithLabelValues("latest")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("latest")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{99, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}
