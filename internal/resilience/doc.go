// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic wrapping the outbound
// feed fetches internal/service/feed makes against arbitrary third-party servers.
//
// The package supports:
//   - A circuit breaker around feed fetches; internal/service/feed holds one breaker shared by
//     every feed, so failures from any feed count toward opening it, and while it is open no
//     feed is fetched
//   - Retry logic with exponential backoff and jitter for transient fetch failures
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchFeed(url)
//	})
//
//	retryConfig := retry.FeedFetchConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performFetch()
//	})
package resilience
