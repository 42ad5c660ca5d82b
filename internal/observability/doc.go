// Package observability provides logging, metrics, and context helpers for
// the paper sharing service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithComponent(logger, "search")
//
// Request-scoped loggers pick up the request, correlation and user IDs:
//
//	log := observability.LoggerFromContext(ctx, logger)
//
// # Metrics
//
//	metrics := observability.NewMetrics("paper_sharing")
//	metrics.RecordSearch(observability.SearchOutcomeFallback, 12, 0.04)
//	metrics.RecordCacheLookup("titles", true)
//
// # Standard Fields
//
//   - request_id: chi request identifier
//   - correlation_id: identifier carried through outbox events
//   - user_id: authenticated user
//   - paper_id: paper identifier
//   - component: owning subsystem
package observability
