// Package observability provides logging and metrics support for the paper
// feed service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for sources, bookmarks, HTTP and events
//   - Context helpers for propagating the request id
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger = observability.WithPaperContext(logger, "2601.20802")
//
// # Metrics
//
// Initialize metrics once per process; promauto registers them with the
// default registry:
//
//	metrics := observability.NewMetrics("paper_feed")
//	metrics.RecordSourceRequest("alphaxiv", "feed", 0.21)
//	metrics.RecordBookmarkToggled(true, 3)
//
// *Metrics satisfies papersources.Recorder, so it can be handed directly to
// the HTTP client and source strategies.
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - source: source strategy (mock, alphaxiv, scraper)
//   - operation: feed, details, search or overview
//   - paper_id: Paper identifier
//   - event_id: Bookmark event identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
