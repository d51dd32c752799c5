package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"russet/internal/handler/http/render"
	"russet/internal/handler/http/requestid"
	"russet/internal/handler/http/responsewriter"
	"russet/internal/observability/metrics"
)

// Logging returns middleware that logs HTTP requests with structured logging.
// It captures request details, response status, size, and processing duration.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := responsewriter.Wrap(w)
			next.ServeHTTP(wrapped, r)

			reqID := requestid.FromContext(r.Context())
			duration := time.Since(start)
			status := strconv.Itoa(wrapped.StatusCode())
			metrics.RecordHTTPRequest(r.Method, r.Pattern, status, duration, int(r.ContentLength), wrapped.BytesWritten())

			logger.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", wrapped.StatusCode()),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Duration("duration", duration),
			)
		})
	}
}

// Recover returns middleware that catches panics, logs them, and returns a
// plain 500 page rather than letting net/http close the connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					reqID := requestid.FromContext(r.Context())
					logger.Error("panic recovered",
						slog.String("request_id", reqID),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					render.Error(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitRequestBody caps the request body at maxBytes, mirroring
// http.MaxBytesReader's behavior of failing the next Body.Read once the
// limit is exceeded rather than rejecting the request up front.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ConcurrencyLimiter bounds the number of requests a handler chain may be
// processing at once via a weighted semaphore — distinct from a
// requests-per-window rate limiter, this caps concurrent in-flight work
// regardless of arrival rate. Excess requests queue on the semaphore
// rather than being rejected; a waiter
// whose request context dies (client gone, request timed out) gets a 503.
type ConcurrencyLimiter struct {
	sem *semaphore.Weighted
}

func NewConcurrencyLimiter(limit int64) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{sem: semaphore.NewWeighted(limit)}
}

func (c *ConcurrencyLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := c.sem.Acquire(r.Context(), 1); err != nil {
			w.Header().Set("Retry-After", "1")
			render.Error(w, http.StatusServiceUnavailable, "server is busy, try again shortly")
			return
		}
		defer c.sem.Release(1)
		next.ServeHTTP(w, r)
	})
}
