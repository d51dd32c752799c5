// Package db manages the single SQLite file Russet persists to.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// ConnectionConfig bounds the connection pool. modernc.org/sqlite
// serializes writers internally, so a single open connection is the
// conservative default; it is still configurable for read-heavy
// deployments that want a larger idle pool for concurrent reads.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

// Open opens the SQLite file at path, applying pragmas needed for a
// single-writer-many-reader workload under concurrent access from the
// HTTP surface and the task supervisor.
func Open(ctx context.Context, path string, cfg ConnectionConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db.Open: ping: %w", err)
	}

	slog.Info("database opened", slog.String("path", path))
	return conn, nil
}
