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

	// 路由指标
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec

	// 摄入指标
	ingestsTotal    *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
	chunksIngested  prometheus.Counter
	indexSize       prometheus.Gauge
	documentsLoaded prometheus.Gauge

	// 向量化指标
	embeddingCalls    *prometheus.CounterVec
	embeddingDuration prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
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

	// 路由指标
	c.queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of routed queries by handler outcome",
		},
		[]string{"handler"},
	)
	c.queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query processing duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"handler"},
	)

	// 摄入指标
	c.ingestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingests_total",
			Help:      "Total number of document ingest operations",
		},
		[]string{"status"},
	)
	c.ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Document ingest duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	c.chunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Total number of chunks embedded and indexed",
		},
	)
	c.indexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Current number of entries in the vector index",
		},
	)
	c.documentsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_loaded",
			Help:      "Current number of loaded documents",
		},
	)

	// 向量化指标
	c.embeddingCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Total number of embedding provider calls",
		},
		[]string{"status"},
	)
	c.embeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_call_duration_seconds",
			Help:      "Embedding provider call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordQuery 记录一次路由查询及其落点
func (c *Collector) RecordQuery(handler string, duration time.Duration) {
	c.queriesTotal.WithLabelValues(handler).Inc()
	c.queryDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordIngest 记录一次文档摄入
func (c *Collector) RecordIngest(status string, chunks int, duration time.Duration) {
	c.ingestsTotal.WithLabelValues(status).Inc()
	c.ingestDuration.Observe(duration.Seconds())
	if chunks > 0 {
		c.chunksIngested.Add(float64(chunks))
	}
}

// RecordEmbeddingCall 记录一次向量化调用
func (c *Collector) RecordEmbeddingCall(status string, duration time.Duration) {
	c.embeddingCalls.WithLabelValues(status).Inc()
	c.embeddingDuration.Observe(duration.Seconds())
}

// SetIndexStats 更新索引规模仪表
func (c *Collector) SetIndexStats(entries, documents int) {
	c.indexSize.Set(float64(entries))
	c.documentsLoaded.Set(float64(documents))
}

// statusCode 将 HTTP 状态码折叠为类别标签
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
