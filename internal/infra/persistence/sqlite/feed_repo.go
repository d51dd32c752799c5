package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"russet/internal/domain/entity"
)

type feedRepo struct{ db *sql.DB }

func scanFeed(row interface{ Scan(...any) error }) (entity.Feed, error) {
	var f entity.Feed
	if err := row.Scan(&f.ID, &f.URL, &f.Title); err != nil {
		return entity.Feed{}, err
	}
	return f, nil
}

func (r *feedRepo) GetByURL(ctx context.Context, url string) (entity.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, url, title FROM feeds WHERE url = ?`, url)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Feed{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Feed{}, fmt.Errorf("GetByURL: %w", err)
	}
	return f, nil
}

func (r *feedRepo) GetByID(ctx context.Context, id string) (entity.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, url, title FROM feeds WHERE id = ?`, id)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Feed{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Feed{}, fmt.Errorf("GetByID: %w", err)
	}
	return f, nil
}

func (r *feedRepo) Create(ctx context.Context, feed entity.Feed) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO feeds (id, url, title) VALUES (?, ?, ?)`,
		feed.ID, feed.URL, feed.Title)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *feedRepo) ListAll(ctx context.Context) ([]entity.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, url, title FROM feeds ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ListAll: %w", err)
	}
	defer rows.Close()

	var out []entity.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAll: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *feedRepo) ListForUser(ctx context.Context, userID string) ([]entity.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT f.id, f.url, f.title
FROM feeds f
JOIN subscriptions s ON s.feed_id = f.id
WHERE s.user_id = ?
ORDER BY f.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListForUser: %w", err)
	}
	defer rows.Close()

	var out []entity.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("ListForUser: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *feedRepo) LastCheck(ctx context.Context, feedID string) (entity.FeedCheck, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, feed_id, checked_at, status, etag, next_check_time
FROM feed_checks
WHERE feed_id = ?
ORDER BY id DESC
LIMIT 1`, feedID)

	var fc entity.FeedCheck
	var checkedAt, nextCheck int64
	var status int
	err := row.Scan(&fc.ID, &fc.FeedID, &checkedAt, &status, &fc.ETag, &nextCheck)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.FeedCheck{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.FeedCheck{}, fmt.Errorf("LastCheck: %w", err)
	}
	fc.Status = entity.FetchStatus(status)
	fc.CheckedAt = time.UnixMilli(checkedAt)
	fc.NextCheckTime = time.UnixMilli(nextCheck)
	return fc, nil
}

// InsertCheck allocates the check's globally-monotonic id and inserts the
// row inside one transaction: the counter is global across feed_checks,
// not per-feed, and the MAX(id) read cannot race the insert it feeds.
func (r *feedRepo) InsertCheck(ctx context.Context, check entity.FeedCheck) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("InsertCheck: begin: %w", err)
	}
	defer tx.Rollback()

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM feed_checks`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("InsertCheck: select max: %w", err)
	}
	id := uint64(maxID.Int64) + 1

	_, err = tx.ExecContext(ctx, `
INSERT INTO feed_checks (id, feed_id, checked_at, status, etag, next_check_time)
VALUES (?, ?, ?, ?, ?, ?)`,
		id, check.FeedID, check.CheckedAt.UnixMilli(), int(check.Status), check.ETag, check.NextCheckTime.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("InsertCheck: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("InsertCheck: commit: %w", err)
	}
	return id, nil
}

func (r *feedRepo) DueForCheck(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT f.id
FROM feeds f
LEFT JOIN (
	SELECT feed_id, MAX(id) AS max_id FROM feed_checks GROUP BY feed_id
) latest ON latest.feed_id = f.id
LEFT JOIN feed_checks fc ON fc.id = latest.max_id
WHERE fc.id IS NULL OR fc.next_check_time <= ?
ORDER BY f.id ASC`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("DueForCheck: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("DueForCheck: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
