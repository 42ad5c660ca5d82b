package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcome labels.
const (
	SearchOutcomeSemantic = "semantic"
	SearchOutcomeFallback = "fallback"
	SearchOutcomeEmpty    = "empty"
)

// Metrics contains all Prometheus metrics for the paper sharing service.
// Metrics are organized by subsystem: http, uploads, search, llm, cache,
// outbox, and media. All collectors are registered via promauto with the
// default Prometheus registry.
type Metrics struct {
	// HTTPRequestsTotal counts HTTP requests, labeled by method, route, and status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP request duration in seconds, labeled by method and route.
	HTTPRequestDuration *prometheus.HistogramVec

	// UploadsTotal counts paper uploads, labeled by result (ok, failed).
	UploadsTotal *prometheus.CounterVec

	// SearchesTotal counts searches, labeled by outcome (semantic, fallback, empty).
	SearchesTotal *prometheus.CounterVec

	// SearchDuration observes end-to-end search duration in seconds, labeled by outcome.
	SearchDuration *prometheus.HistogramVec

	// SearchResults observes the number of papers returned per search.
	SearchResults prometheus.Histogram

	// LLMRequestsTotal counts LLM API requests, labeled by provider and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by provider, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by provider and model.
	LLMRequestDuration *prometheus.HistogramVec

	// CacheHits counts cache hits, labeled by cache name.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache misses, labeled by cache name.
	CacheMisses *prometheus.CounterVec

	// OutboxPublished counts outbox events delivered to Kafka, labeled by event type.
	OutboxPublished *prometheus.CounterVec

	// OutboxFailed counts failed outbox publish attempts, labeled by event type.
	OutboxFailed *prometheus.CounterVec

	// MediaBytesStored counts PDF bytes written to the media host, labeled by origin (upload, import).
	MediaBytesStored *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// HTTP
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),

		// Uploads
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of paper uploads by result",
		}, []string{"result"}),

		// Search
		SearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		}, []string{"outcome"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds by outcome",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		SearchResults: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of papers returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by provider",
		}, []string{"provider", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by provider",
		}, []string{"provider", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		// Cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by cache",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses by cache",
		}, []string{"cache"}),

		// Outbox
		OutboxPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Total number of outbox events published by event type",
		}, []string{"event_type"}),
		OutboxFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_failed_total",
			Help:      "Total number of failed outbox publish attempts by event type",
		}, []string{"event_type"}),

		// Media
		MediaBytesStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_bytes_stored_total",
			Help:      "Total number of PDF bytes written to the media host by origin",
		}, []string{"origin"}),
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordUpload records an upload result.
func (m *Metrics) RecordUpload(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
}

// RecordSearch records a completed search.
func (m *Metrics) RecordSearch(outcome string, resultCount int, durationSeconds float64) {
	m.SearchesTotal.WithLabelValues(outcome).Inc()
	m.SearchDuration.WithLabelValues(outcome).Observe(durationSeconds)
	m.SearchResults.Observe(float64(resultCount))
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(provider, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(provider, model).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(provider, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(provider, model, errorType).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// RecordOutboxPublished records a delivered outbox event.
func (m *Metrics) RecordOutboxPublished(eventType string) {
	m.OutboxPublished.WithLabelValues(eventType).Inc()
}

// RecordOutboxFailed records a failed outbox publish attempt.
func (m *Metrics) RecordOutboxFailed(eventType string) {
	m.OutboxFailed.WithLabelValues(eventType).Inc()
}

// RecordMediaStored records bytes written to the media host.
func (m *Metrics) RecordMediaStored(origin string, bytes int64) {
	m.MediaBytesStored.WithLabelValues(origin).Add(float64(bytes))
}
