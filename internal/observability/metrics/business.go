package metrics

import "time"

// RecordFeedCheck records the outcome and duration of one completed feed
// check, called by the scheduler after each poll cycle.
func RecordFeedCheck(feedID, status string, duration time.Duration) {
	FeedChecksTotal.WithLabelValues(status).Inc()
	FeedCheckDuration.WithLabelValues(feedID).Observe(duration.Seconds())
}

// RecordFeedCheckError records a feed check that failed at the
// infrastructure level and will be retried, rather than returning a
// classified outcome.
func RecordFeedCheckError(feedID string) {
	FeedCheckErrorsTotal.WithLabelValues(feedID).Inc()
}

// RecordEntriesIngested records how many new entries one feed check added.
func RecordEntriesIngested(feedID string, count int) {
	if count > 0 {
		EntriesIngestedTotal.WithLabelValues(feedID).Add(float64(count))
	}
}

// RecordSessionsSwept records how many expired sessions one sweep removed.
func RecordSessionsSwept(count int) {
	if count > 0 {
		SessionsSweptTotal.Add(float64(count))
	}
}

// UpdateFeedsTotal updates the gauge tracking the number of known feeds.
func UpdateFeedsTotal(count int) {
	FeedsTotal.Set(float64(count))
}
