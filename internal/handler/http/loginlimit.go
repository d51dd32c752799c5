package http

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"russet/internal/handler/http/render"
	"russet/pkg/ratelimit"
)

// LoginLimiter throttles POST /login by source IP using the sliding-window
// ratelimit package, layered underneath the login ConcurrencyLimiter: it
// bounds request rate, not concurrency, so it still limits a slow attacker
// the semaphore alone wouldn't catch.
type LoginLimiter struct {
	algo   *ratelimit.SlidingWindowAlgorithm
	store  *ratelimit.InMemoryRateLimitStore
	limit  int
	window time.Duration
}

func NewLoginLimiter(limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		algo:   ratelimit.NewSlidingWindowAlgorithm(nil),
		store:  ratelimit.NewInMemoryRateLimitStore(ratelimit.DefaultInMemoryStoreConfig()),
		limit:  limit,
		window: window,
	}
}

func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		decision, err := l.algo.IsAllowed(r.Context(), host, l.store, l.limit, l.window)
		if err != nil {
			render.Error(w, http.StatusInternalServerError, "rate limiter unavailable")
			return
		}
		if !decision.Allowed {
			secs := int(decision.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			render.Error(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
