package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"russet/internal/resilience/circuitbreaker"
	"russet/internal/resilience/retry"
)

// outboundRate caps how often the fetcher issues requests across every feed
// it's polling, so a scheduler tick that wakes many feeds at once doesn't
// open a burst of simultaneous connections to whatever hosts happen to be
// due at the same moment.
const (
	outboundRequestsPerSecond = 10.0
	outboundBurst             = 20
)

// fetcher performs conditional HTTP GETs against feed URLs, wrapped in a
// circuit-breaker-plus-retry shell so a flapping host is backed away from
// instead of hammered.
type fetcher struct {
	client         *http.Client
	userAgent      string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	limiter        *rate.Limiter
}

func newFetcher(client *http.Client, userAgent string) *fetcher {
	return &fetcher{
		client:         client,
		userAgent:      userAgent,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
		limiter:        rate.NewLimiter(rate.Limit(outboundRequestsPerSecond), outboundBurst),
	}
}

func (f *fetcher) fetch(ctx context.Context, url, etag string) (fetchOutcome, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return fetchOutcome{}, fmt.Errorf("fetch: rate limiter: %w", err)
	}

	var out fetchOutcome

	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, url, etag)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open",
					slog.String("url", url), slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}
		out = result.(fetchOutcome)
		return nil
	})
	if retryErr != nil {
		return fetchOutcome{}, retryErr
	}
	return out, nil
}

func (f *fetcher) doFetch(ctx context.Context, url, etag string) (fetchOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchOutcome{}, fmt.Errorf("doFetch: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchOutcome{}, fmt.Errorf("doFetch: %w", err)
	}
	defer resp.Body.Close()

	out := fetchOutcome{
		statusCode:  resp.StatusCode,
		etag:        resp.Header.Get("ETag"),
		contentType: resp.Header.Get("Content-Type"),
		cacheMaxAge: parseCacheControlMaxAge(resp.Header.Get("Cache-Control")),
		retryAfter:  parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		out.kind = fetchNotModified
		return out, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		out.kind = fetchClientError
		return out, nil
	case resp.StatusCode >= 500:
		out.kind = fetchServerError
		return out, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchOutcome{}, fmt.Errorf("doFetch: read body: %w", err)
		}
		out.kind = fetchOK
		out.body = body
		return out, nil
	default:
		out.kind = fetchServerError
		return out, nil
	}
}

func parseCacheControlMaxAge(header string) time.Duration {
	if header == "" {
		return 0
	}
	// minimal directive scan; Cache-Control can carry several
	// comma-separated directives, only max-age matters here.
	for _, part := range strings.Split(header, ",") {
		if n, ok := parseMaxAgeDirective(part); ok {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

func parseMaxAgeDirective(part string) (int, bool) {
	const prefix = "max-age="
	trimmed := strings.TrimSpace(part)
	if !strings.HasPrefix(trimmed, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if n, err := strconv.Atoi(header); err == nil {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}
