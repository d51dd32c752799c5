package db

import "database/sql"

// MigrateUp creates every table and index Russet needs if they don't
// already exist. There is no down-migration and no version table: the
// schema only ever grows additively, so CREATE TABLE IF NOT EXISTS is
// enough without a migration framework.
func MigrateUp(conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS feeds (
			id    TEXT PRIMARY KEY,
			url   TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS feed_checks (
			id              INTEGER PRIMARY KEY,
			feed_id         TEXT NOT NULL REFERENCES feeds(id),
			checked_at      INTEGER NOT NULL,
			status          INTEGER NOT NULL,
			etag            TEXT NOT NULL DEFAULT '',
			next_check_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_checks_feed_id ON feed_checks(feed_id, id DESC)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id           TEXT PRIMARY KEY,
			feed_id      TEXT NOT NULL REFERENCES feeds(id),
			check_id     INTEGER NOT NULL REFERENCES feed_checks(id),
			url          TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			article_date INTEGER NOT NULL,
			internal_id  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_feed_id ON entries(feed_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_feed_internal_id ON entries(feed_id, internal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_check_id ON entries(check_id DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			type          INTEGER NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			feed_id TEXT NOT NULL REFERENCES feeds(id),
			PRIMARY KEY (user_id, feed_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_feed_id ON subscriptions(feed_id)`,
		`CREATE TABLE IF NOT EXISTS user_entries (
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			entry_id     TEXT NOT NULL REFERENCES entries(id),
			read         INTEGER NOT NULL DEFAULT 0,
			read_at      INTEGER,
			tombstone    INTEGER NOT NULL DEFAULT 0,
			tombstone_at INTEGER,
			PRIMARY KEY (user_id, entry_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
