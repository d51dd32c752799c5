package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"russet/internal/domain/entity"
)

type entryRepo struct{ db *sql.DB }

func (r *entryRepo) InternalIDsForFeed(ctx context.Context, feedID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT internal_id FROM entries WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, fmt.Errorf("InternalIDsForFeed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("InternalIDsForFeed: scan: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *entryRepo) InsertBatch(ctx context.Context, entries []entity.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertBatch: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO entries (id, feed_id, check_id, url, title, article_date, internal_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertBatch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.FeedID, e.CheckID, e.URL, e.Title, e.ArticleDate.UnixMilli(), e.InternalID); err != nil {
			return fmt.Errorf("InsertBatch: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertBatch: commit: %w", err)
	}
	return nil
}

const entryViewSelect = `
SELECT e.id, e.feed_id, e.check_id, e.url, e.title, e.article_date, e.internal_id,
       COALESCE(ue.read, 0), ue.read_at, COALESCE(ue.tombstone, 0), ue.tombstone_at
FROM entries e`

func scanEntryView(row interface{ Scan(...any) error }) (entity.EntryView, error) {
	var v entity.EntryView
	var articleDate int64
	var read, tombstone int
	var readAt, tombstoneAt sql.NullInt64
	if err := row.Scan(&v.ID, &v.FeedID, &v.CheckID, &v.URL, &v.Title, &articleDate, &v.InternalID,
		&read, &readAt, &tombstone, &tombstoneAt); err != nil {
		return entity.EntryView{}, err
	}
	v.ArticleDate = time.UnixMilli(articleDate)
	v.Read = read != 0
	v.Tombstone = tombstone != 0
	if readAt.Valid {
		v.ReadAt = time.UnixMilli(readAt.Int64)
	}
	if tombstoneAt.Valid {
		v.TombstoneAt = time.UnixMilli(tombstoneAt.Int64)
	}
	return v, nil
}

func (r *entryRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]entity.EntryView, error) {
	query := entryViewSelect + `
JOIN subscriptions s ON s.feed_id = e.feed_id AND s.user_id = ?
LEFT JOIN user_entries ue ON ue.entry_id = e.id AND ue.user_id = ?
WHERE COALESCE(ue.tombstone, 0) = 0
ORDER BY e.check_id DESC, e.article_date DESC
LIMIT ? OFFSET ?`
	return r.queryViews(ctx, query, userID, userID, limit, offset)
}

func (r *entryRepo) ListForFeed(ctx context.Context, userID, feedID string, limit, offset int) ([]entity.EntryView, error) {
	query := entryViewSelect + `
LEFT JOIN user_entries ue ON ue.entry_id = e.id AND ue.user_id = ?
WHERE e.feed_id = ? AND COALESCE(ue.tombstone, 0) = 0
ORDER BY e.check_id DESC, e.article_date DESC
LIMIT ? OFFSET ?`
	return r.queryViews(ctx, query, userID, feedID, limit, offset)
}

func (r *entryRepo) queryViews(ctx context.Context, query string, args ...any) ([]entity.EntryView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queryViews: %w", err)
	}
	defer rows.Close()

	var out []entity.EntryView
	for rows.Next() {
		v, err := scanEntryView(rows)
		if err != nil {
			return nil, fmt.Errorf("queryViews: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *entryRepo) GetByID(ctx context.Context, id string) (entity.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, feed_id, check_id, url, title, article_date, internal_id
FROM entries WHERE id = ?`, id)
	var e entity.Entry
	var articleDate int64
	err := row.Scan(&e.ID, &e.FeedID, &e.CheckID, &e.URL, &e.Title, &articleDate, &e.InternalID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Entry{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Entry{}, fmt.Errorf("GetByID: %w", err)
	}
	e.ArticleDate = time.UnixMilli(articleDate)
	return e, nil
}

func (r *entryRepo) GetUserEntry(ctx context.Context, userID, entryID string) (entity.UserEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, entry_id, read, read_at, tombstone, tombstone_at
FROM user_entries WHERE user_id = ? AND entry_id = ?`, userID, entryID)
	ue, err := scanUserEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.UserEntry{UserID: userID, EntryID: entryID}, entity.ErrNotFound
	}
	if err != nil {
		return entity.UserEntry{}, fmt.Errorf("GetUserEntry: %w", err)
	}
	return ue, nil
}

func scanUserEntry(row interface{ Scan(...any) error }) (entity.UserEntry, error) {
	var ue entity.UserEntry
	var read, tombstone int
	var readAt, tombstoneAt sql.NullInt64
	if err := row.Scan(&ue.UserID, &ue.EntryID, &read, &readAt, &tombstone, &tombstoneAt); err != nil {
		return entity.UserEntry{}, err
	}
	ue.Read = read != 0
	ue.Tombstone = tombstone != 0
	if readAt.Valid {
		ue.ReadAt = time.UnixMilli(readAt.Int64)
	}
	if tombstoneAt.Valid {
		ue.TombstoneAt = time.UnixMilli(tombstoneAt.Int64)
	}
	return ue, nil
}

// SetUserEntry upserts the overlay row, preserving whichever of
// read/tombstone the caller didn't ask to change by reusing the existing
// row's value (0/NULL for a brand new row).
func (r *entryRepo) SetUserEntry(ctx context.Context, userID, entryID string, read, tombstone *bool) error {
	existing, err := r.GetUserEntry(ctx, userID, entryID)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("SetUserEntry: %w", err)
	}

	newRead, newReadAt := existing.Read, nullableMillis(existing.ReadAt)
	if read != nil {
		newRead = *read
		if newRead {
			newReadAt = sql.NullInt64{Int64: time.Now().UnixMilli(), Valid: true}
		} else {
			newReadAt = sql.NullInt64{}
		}
	}
	newTombstone, newTombstoneAt := existing.Tombstone, nullableMillis(existing.TombstoneAt)
	if tombstone != nil {
		newTombstone = *tombstone
		if newTombstone {
			newTombstoneAt = sql.NullInt64{Int64: time.Now().UnixMilli(), Valid: true}
		} else {
			newTombstoneAt = sql.NullInt64{}
		}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO user_entries (user_id, entry_id, read, read_at, tombstone, tombstone_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, entry_id) DO UPDATE SET
	read = excluded.read, read_at = excluded.read_at,
	tombstone = excluded.tombstone, tombstone_at = excluded.tombstone_at`,
		userID, entryID, newRead, newReadAt, newTombstone, newTombstoneAt)
	if err != nil {
		return fmt.Errorf("SetUserEntry: %w", err)
	}
	return nil
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// GetAndMarkRead runs the entry read plus the read-state upsert inside one
// transaction, so the returned view and the stored overlay can't diverge
// under concurrent writers.
func (r *entryRepo) GetAndMarkRead(ctx context.Context, userID, entryID string) (entity.EntryView, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.EntryView{}, fmt.Errorf("GetAndMarkRead: begin: %w", err)
	}
	defer tx.Rollback()

	var e entity.Entry
	var articleDate int64
	err = tx.QueryRowContext(ctx, `
SELECT id, feed_id, check_id, url, title, article_date, internal_id
FROM entries WHERE id = ?`, entryID).
		Scan(&e.ID, &e.FeedID, &e.CheckID, &e.URL, &e.Title, &articleDate, &e.InternalID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.EntryView{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.EntryView{}, fmt.Errorf("GetAndMarkRead: select: %w", err)
	}
	e.ArticleDate = time.UnixMilli(articleDate)

	now := time.Now()
	var tombstone int
	var tombstoneAt sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT tombstone, tombstone_at FROM user_entries WHERE user_id = ? AND entry_id = ?`, userID, entryID)
	if scanErr := row.Scan(&tombstone, &tombstoneAt); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		return entity.EntryView{}, fmt.Errorf("GetAndMarkRead: select overlay: %w", scanErr)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO user_entries (user_id, entry_id, read, read_at, tombstone, tombstone_at)
VALUES (?, ?, 1, ?, ?, ?)
ON CONFLICT (user_id, entry_id) DO UPDATE SET read = 1, read_at = excluded.read_at`,
		userID, entryID, now.UnixMilli(), tombstone, tombstoneAt)
	if err != nil {
		return entity.EntryView{}, fmt.Errorf("GetAndMarkRead: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return entity.EntryView{}, fmt.Errorf("GetAndMarkRead: commit: %w", err)
	}

	v := entity.EntryView{Entry: e, Read: true, ReadAt: now, Tombstone: tombstone != 0}
	if tombstoneAt.Valid {
		v.TombstoneAt = time.UnixMilli(tombstoneAt.Int64)
	}
	return v, nil
}
