package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	russethttp "russet/internal/handler/http"
	"russet/internal/scheduler"
	"russet/internal/service/auth"
	"russet/internal/service/entries"
	"russet/internal/service/feed"
	"russet/internal/service/user"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the HTTP server and the feed-polling scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

const sessionSweepInterval = time.Hour

// runServe wires every domain service, the HTTP mux, and the task
// supervisor together, then blocks until SIGINT/SIGTERM: the HTTP server
// drains in-flight requests first, then every background task is canceled
// and awaited.
func runServe(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	conn, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}

	feedSvc := feed.New(store.Feeds(), store.Entries(), feed.Config{
		HTTPClient: httpClient,
		UserAgent:  "russet/1.0",
		Bounds: feed.ScheduleBounds{
			MinInterval:     cfg.FeedCheckInterval.Min,
			DefaultInterval: cfg.FeedCheckInterval.Default,
			MaxInterval:     cfg.FeedCheckInterval.Max,
		},
	})
	entriesSvc := entries.New(store.Entries(), store.Subscriptions(), store.Feeds())
	userSvc := user.New(store.Users(), []byte(cfg.Pepper), user.DefaultHashParams())
	authSvc := auth.New(store.Sessions(), russethttp.DefaultSessionTTL)

	// An instance nobody can administer is a misconfiguration, not a
	// server worth starting: unless logins are disabled outright, refuse
	// to serve until a sysop account exists.
	if !cfg.DisableLogins {
		hasSysop, err := userSvc.HasSysop(ctx)
		if err != nil {
			return err
		}
		if !hasSysop {
			return errors.New("no sysop account exists; create one first with `russet add-user <name> [password] sysop`, or set disable_logins")
		}
	}

	supervisor := scheduler.New(feedSvc, authSvc, sessionSweepInterval, cfg.FeedCheckInterval.Default)
	if err := supervisor.Start(ctx); err != nil {
		return err
	}

	handlers := &russethttp.Handlers{
		Feed:          feedSvc,
		Entries:       entriesSvc,
		Users:         userSvc,
		Auth:          authSvc,
		Scheduler:     supervisor,
		DisableLogins: cfg.DisableLogins,
	}
	authenticator := russethttp.NewAuthenticator(authSvc, userSvc)
	mux := russethttp.NewMux(handlers, authenticator, logger, russethttp.ServerConfig{
		GlobalConcurrentLimit: cfg.RateLimiting.GlobalConcurrentLimit,
		LoginConcurrentLimit:  cfg.RateLimiting.LoginConcurrentLimit,
	}, conn)

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", slog.Any("error", err))
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown failed", slog.Any("error", err))
	}

	logger.Info("stopped")
	return nil
}
