// Package observability centralizes structured logging and Prometheus
// metrics for Russet.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "russet/internal/observability/logging"
//	    "russet/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordFeedCheck(feedID, "ok", elapsed)
//	}
package observability
