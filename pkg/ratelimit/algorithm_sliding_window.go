package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowAlgorithm counts individual request timestamps inside a
// moving window, so admission decisions don't suffer the boundary bursts a
// fixed window allows (2x the limit straddling a window edge).
//
// It also guards against the system clock moving backwards (NTP step,
// manual adjustment): the last timestamp seen per key is remembered, and a
// "now" earlier than it is replaced by it, so rewinding the clock can't
// reopen a closed window.
type SlidingWindowAlgorithm struct {
	clock Clock

	mu sync.RWMutex
	// lastTimestamps remembers the newest timestamp seen per key, for
	// the clock-skew guard.
	lastTimestamps map[string]time.Time

	// windowDuration is whatever window the last IsAllowed call used.
	windowDuration time.Duration
}

// NewSlidingWindowAlgorithm builds the algorithm; a nil clock means the
// system clock.
func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &SlidingWindowAlgorithm{
		clock:          clock,
		lastTimestamps: make(map[string]time.Time),
	}
}

// IsAllowed decides whether one more request for key fits within limit
// requests per window, recording it in store if so. When the store
// implements AtomicRateLimitStore the count-and-record happens under one
// lock; otherwise a check-then-add fallback is used, which admits a small
// TOCTOU window under concurrency.
func (a *SlidingWindowAlgorithm) IsAllowed(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	a.mu.Lock()
	a.windowDuration = window
	a.mu.Unlock()

	now := a.getValidTimestamp(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	if atomicStore, ok := store.(AtomicRateLimitStore); ok {
		allowed, count, err := atomicStore.CheckAndAddRequest(ctx, key, now, cutoff, limit)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: check and add: %w", err)
		}
		if allowed {
			return NewAllowedDecision(key, "unknown", limit, limit-count, resetAt), nil
		}
		denied := NewDeniedDecision(key, "unknown", limit, resetAt)
		denied.RetryAfter = resetAt.Sub(now)
		return denied, nil
	}

	count, err := store.GetRequestCount(ctx, key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: count: %w", err)
	}
	if count < limit {
		if err := store.AddRequest(ctx, key, now); err != nil {
			return nil, fmt.Errorf("ratelimit: record: %w", err)
		}
		return NewAllowedDecision(key, "unknown", limit, limit-count-1, resetAt), nil
	}
	denied := NewDeniedDecision(key, "unknown", limit, resetAt)
	denied.RetryAfter = resetAt.Sub(now)
	return denied, nil
}

// GetWindowDuration returns the window the last IsAllowed call used.
func (a *SlidingWindowAlgorithm) GetWindowDuration() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.windowDuration
}

// getValidTimestamp returns the clock's current time unless it has moved
// backwards relative to the last time seen for key, in which case the last
// seen time is reused so the window cannot be reopened by a clock rewind.
func (a *SlidingWindowAlgorithm) getValidTimestamp(key string) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if lastSeen, ok := a.lastTimestamps[key]; ok && now.Before(lastSeen) {
		slog.Warn("clock skew detected, using last valid timestamp",
			slog.String("key", key),
			slog.Time("now", now),
			slog.Time("last_seen", lastSeen),
			slog.Duration("skew", lastSeen.Sub(now)),
		)
		return lastSeen
	}
	a.lastTimestamps[key] = now
	return now
}

// CleanupExpiredTimestamps drops skew-guard entries older than maxAge, so
// keys that stopped making requests don't accumulate forever. Returns how
// many were removed.
func (a *SlidingWindowAlgorithm) CleanupExpiredTimestamps(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.clock.Now().Add(-maxAge)
	removed := 0
	for key, ts := range a.lastTimestamps {
		if ts.Before(cutoff) {
			delete(a.lastTimestamps, key)
			removed++
		}
	}
	return removed
}
