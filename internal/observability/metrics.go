package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper feed service.
// Metrics are organized by subsystem: sources, papers, bookmarks, HTTP and events.
// All counters and histograms are registered via promauto for automatic
// registration with the default Prometheus registry.
type Metrics struct {
	// SourceRequestsTotal counts HTTP requests to upstream sources, labeled by source and operation.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed upstream requests, labeled by source, operation, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes upstream request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from upstream sources, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// SourceDegradedResults counts operations that returned a degraded result
	// (empty list, placeholder paper or fallback overview).
	SourceDegradedResults *prometheus.CounterVec

	// PapersReturned counts papers handed to callers, labeled by operation.
	PapersReturned *prometheus.CounterVec

	// PapersPerResponse observes the number of papers per list response, labeled by operation.
	PapersPerResponse *prometheus.HistogramVec

	// PlaceholderPapers counts error placeholder papers returned to callers.
	PlaceholderPapers prometheus.Counter

	// BookmarkToggles counts bookmark changes, labeled by action (added, removed).
	BookmarkToggles *prometheus.CounterVec

	// Bookmarks tracks the current size of the bookmark set.
	Bookmarks prometheus.Gauge

	// BookmarkFanoutDuration observes how long resolving the bookmark list takes.
	BookmarkFanoutDuration prometheus.Histogram

	// HTTPRequestsTotal counts handled HTTP requests, labeled by method, route, and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP handler duration in seconds, labeled by method and route.
	HTTPRequestDuration *prometheus.HistogramVec

	// EventsPublished counts bookmark events written to Kafka, labeled by type.
	EventsPublished *prometheus.CounterVec

	// EventsPublishFailed counts bookmark events that could not be written, labeled by type.
	EventsPublishFailed *prometheus.CounterVec

	// EventsConsumed counts bookmark events read from Kafka, labeled by type and outcome.
	EventsConsumed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to paper sources",
		}, []string{"source", "operation"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to paper sources",
		}, []string{"source", "operation", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to paper sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "operation"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from paper sources",
		}, []string{"source"}),
		SourceDegradedResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_degraded_results_total",
			Help:      "Total number of source operations that returned a degraded result",
		}, []string{"source", "operation"}),

		// Papers
		PapersReturned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_returned_total",
			Help:      "Total number of papers returned by operation",
		}, []string{"operation"}),
		PapersPerResponse: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_response",
			Help:      "Number of papers returned per list response by operation",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}, []string{"operation"}),
		PlaceholderPapers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholder_papers_total",
			Help:      "Total number of error placeholder papers returned",
		}),

		// Bookmarks
		BookmarkToggles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookmark_toggles_total",
			Help:      "Total number of bookmark changes by action",
		}, []string{"action"}),
		Bookmarks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bookmarks",
			Help:      "Current number of bookmarked papers",
		}),
		BookmarkFanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bookmark_fanout_duration_seconds",
			Help:      "Duration of resolving all bookmarked papers in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		// HTTP
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of bookmark events published",
		}, []string{"type"}),
		EventsPublishFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_failed_total",
			Help:      "Total number of bookmark events that failed to publish",
		}, []string{"type"}),
		EventsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Total number of bookmark events consumed by outcome",
		}, []string{"type", "outcome"}),
	}
}

// RecordSourceRequest records a request to a paper source.
func (m *Metrics) RecordSourceRequest(source, operation string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, operation).Inc()
	m.SourceRequestDuration.WithLabelValues(source, operation).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a paper source.
func (m *Metrics) RecordSourceRequestFailed(source, operation, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, operation, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordDegradedResult records a source operation that fell back to its degraded result.
func (m *Metrics) RecordDegradedResult(source, operation string) {
	m.SourceDegradedResults.WithLabelValues(source, operation).Inc()
}

// RecordPapersReturned records a list response.
func (m *Metrics) RecordPapersReturned(operation string, count int) {
	m.PapersReturned.WithLabelValues(operation).Add(float64(count))
	m.PapersPerResponse.WithLabelValues(operation).Observe(float64(count))
}

// RecordPlaceholderPapers records placeholder papers handed to callers.
func (m *Metrics) RecordPlaceholderPapers(count int) {
	m.PlaceholderPapers.Add(float64(count))
}

// RecordBookmarkToggled records a bookmark change and the resulting set size.
func (m *Metrics) RecordBookmarkToggled(added bool, total int) {
	action := "removed"
	if added {
		action = "added"
	}
	m.BookmarkToggles.WithLabelValues(action).Inc()
	m.Bookmarks.Set(float64(total))
}

// SetBookmarks sets the bookmark gauge, e.g. after loading from the store.
func (m *Metrics) SetBookmarks(total int) {
	m.Bookmarks.Set(float64(total))
}

// RecordBookmarkFanout records the duration of a bookmark list resolution.
func (m *Metrics) RecordBookmarkFanout(durationSeconds float64) {
	m.BookmarkFanoutDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records a handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordEventPublished records a published bookmark event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventPublishFailed records a bookmark event that could not be published.
func (m *Metrics) RecordEventPublishFailed(eventType string) {
	m.EventsPublishFailed.WithLabelValues(eventType).Inc()
}

// RecordEventConsumed records a consumed bookmark event.
// Outcome is one of applied, skipped, invalid or failed.
func (m *Metrics) RecordEventConsumed(eventType, outcome string) {
	m.EventsConsumed.WithLabelValues(eventType, outcome).Inc()
}
