package repository

import (
	"context"

	"russet/internal/domain/entity"
)

// EntryRepository persists feed entries and per-user read/tombstone state.
type EntryRepository interface {
	// InternalIDsForFeed returns the set of InternalID values already
	// known for a feed, used to diff incoming items against known ones
	// without loading full Entry rows.
	InternalIDsForFeed(ctx context.Context, feedID string) (map[string]struct{}, error)

	// InsertBatch inserts new entries atomically; it is safe to call with
	// an empty slice.
	InsertBatch(ctx context.Context, entries []entity.Entry) error

	GetByID(ctx context.Context, id string) (entity.Entry, error)

	// ListForUser returns every non-tombstoned entry across a user's
	// subscriptions, joined with that user's read/tombstone overlay,
	// ordered by (check_id DESC, article_date DESC) and bounded by
	// limit/offset.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]entity.EntryView, error)

	// ListForFeed is ListForUser restricted to one feed, for the
	// per-feed entry listing endpoint.
	ListForFeed(ctx context.Context, userID, feedID string, limit, offset int) ([]entity.EntryView, error)

	// GetUserEntry returns a user's overlay for one entry, or the zero
	// value (Read=false, Tombstone=false) with entity.ErrNotFound if no
	// row exists yet — callers treat both identically as "untouched".
	GetUserEntry(ctx context.Context, userID, entryID string) (entity.UserEntry, error)

	// SetUserEntry upserts the (user, entry) overlay row. A nil field
	// leaves that column unchanged on an existing row (or false on a
	// freshly-created one), so callers can patch read and tombstone
	// independently.
	SetUserEntry(ctx context.Context, userID, entryID string, read, tombstone *bool) error

	// GetAndMarkRead atomically reads an entry and upserts its UserEntry
	// read state to true, returning the resulting view. The read and the
	// upsert are atomic with respect to other writers.
	GetAndMarkRead(ctx context.Context, userID, entryID string) (entity.EntryView, error)
}
