package http

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"russet/internal/handler/http/middleware"
	"russet/internal/handler/http/requestid"
)

// ServerConfig carries the tunables routes.go needs beyond the service
// handles already on Handlers.
type ServerConfig struct {
	GlobalConcurrentLimit int64
	LoginConcurrentLimit  int64
}

// NewMux builds the complete Russet route table, wrapped in the middleware
// chain common to every endpoint (logging, recovery, request size limit,
// CSP, gzip, the global concurrency semaphore) plus auth for the routes
// that require it.
func NewMux(h *Handlers, auth *Authenticator, logger *slog.Logger, cfg ServerConfig, db *sql.DB) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", &HealthHandler{DB: db})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /login", h.LoginForm)
	loginLimiter := NewConcurrencyLimiter(cfg.LoginConcurrentLimit)
	ipLimiter := NewLoginLimiter(20, time.Minute)
	mux.Handle("POST /login", loginLimiter.Middleware(ipLimiter.Middleware(http.HandlerFunc(h.Login))))

	mux.Handle("POST /logout", auth.RequireAuth(http.HandlerFunc(h.Logout)))

	mux.Handle("GET /{$}", auth.RequireAuth(http.HandlerFunc(h.Index)))
	mux.Handle("POST /{$}", auth.RequireAuth(http.HandlerFunc(h.Index)))
	mux.Handle("GET /entry/{id}", auth.RequireAuth(http.HandlerFunc(h.Entry)))
	mux.Handle("GET /feed/{id}", auth.RequireAuth(http.HandlerFunc(h.FeedEntries)))
	mux.Handle("POST /feed/{id}", auth.RequireAuth(http.HandlerFunc(h.FeedEntries)))
	mux.Handle("GET /subscribe", auth.RequireAuth(http.HandlerFunc(h.SubscribeForm)))
	mux.Handle("POST /subscribe", auth.RequireAuth(http.HandlerFunc(h.SubscribeForm)))
	mux.Handle("GET /user/{id}", auth.RequireAuth(http.HandlerFunc(h.UserDetail)))

	mux.Handle("GET /styles.css", styleHandler())
	mux.HandleFunc("/", h.NotFound)

	globalLimiter := NewConcurrencyLimiter(cfg.GlobalConcurrentLimit)

	var chain http.Handler = mux
	chain = globalLimiter.Middleware(chain)
	chain = Gzip(chain)
	chain = middleware.CSP(chain)
	chain = LimitRequestBody(10 << 20)(chain)
	chain = Timeout(30 * time.Second)(chain)
	chain = Recover(logger)(chain)
	chain = Logging(logger)(chain)
	chain = requestid.Middleware(chain)
	return chain
}
