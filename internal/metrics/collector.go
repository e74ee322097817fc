// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 摄取指标
	fileEventsTotal   *prometheus.CounterVec
	ingestErrorsTotal *prometheus.CounterVec

	// 版本存储指标
	savesTotal      *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec
	latestVersion   prometheus.Gauge

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// WebSocket 指标
	watchClients prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 摄取指标
	c.fileEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_events_total",
			Help:      "Total number of watched file events processed",
		},
		[]string{"op"},
	)

	c.ingestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total number of ingest failures",
		},
		[]string{"reason"}, // reason: read, parse, store
	)

	// 版本存储指标
	c.savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Total number of save operations by outcome",
		},
		[]string{"outcome"}, // outcome: created, deduplicated, rollback
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Version store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	c.latestVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_version",
			Help:      "Version number of the most recent configuration record",
		},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// WebSocket 指标
	c.watchClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_clients",
			Help:      "Number of connected version stream clients",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 📥 摄取指标记录
// =============================================================================

// RecordFileEvent 记录一次被处理的文件事件
func (c *Collector) RecordFileEvent(op string) {
	c.fileEventsTotal.WithLabelValues(op).Inc()
}

// RecordIngestError 记录一次摄取失败
func (c *Collector) RecordIngestError(reason string) {
	c.ingestErrorsTotal.WithLabelValues(reason).Inc()
}

// =============================================================================
// 🗄️ 版本存储指标记录
// =============================================================================

// RecordSave 记录一次保存操作的结果
func (c *Collector) RecordSave(outcome string, duration time.Duration) {
	c.savesTotal.WithLabelValues(outcome).Inc()
	c.storeOpDuration.WithLabelValues("save").Observe(duration.Seconds())
}

// RecordStoreOp 记录一次存储读操作
func (c *Collector) RecordStoreOp(operation string, duration time.Duration) {
	c.storeOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetLatestVersion 更新最新版本号
func (c *Collector) SetLatestVersion(version int64) {
	c.latestVersion.Set(float64(version))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔌 WebSocket 指标记录
// =============================================================================

// WatchClientConnected 记录版本流客户端接入
func (c *Collector) WatchClientConnected() {
	c.watchClients.Inc()
}

// WatchClientDisconnected 记录版本流客户端断开
func (c *Collector) WatchClientDisconnected() {
	c.watchClients.Dec()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
