// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Feed-checking and scheduler metrics (checks, errors, entries ingested)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "russet/internal/observability/metrics"
//
//	start := time.Now()
//	// ... check a feed ...
//	metrics.RecordFeedCheck(feedID, "ok", time.Since(start))
package metrics
