package repository

import (
	"context"
	"time"

	"russet/internal/domain/entity"
)

// FeedRepository is the persistence contract for feeds and their checks.
// Implementations live in internal/infra/persistence/{sqlite,memory}.
type FeedRepository interface {
	// GetByURL returns entity.ErrNotFound when no feed has that URL.
	GetByURL(ctx context.Context, url string) (entity.Feed, error)
	GetByID(ctx context.Context, id string) (entity.Feed, error)

	// Create inserts a new feed. Callers are responsible for
	// lookup-or-create idempotency; Create itself does not check for an
	// existing URL.
	Create(ctx context.Context, feed entity.Feed) error

	// ListAll returns every known feed, regardless of subscriber count.
	ListAll(ctx context.Context) ([]entity.Feed, error)

	// ListForUser returns the feeds a user is subscribed to.
	ListForUser(ctx context.Context, userID string) ([]entity.Feed, error)

	// LastCheck returns the most recent FeedCheck for a feed, or
	// entity.ErrNotFound if the feed has never been checked.
	LastCheck(ctx context.Context, feedID string) (entity.FeedCheck, error)

	// InsertCheck persists a FeedCheck row, ignoring any id on check and
	// allocating the next globally-monotonic id itself: the MAX(id) read
	// and the insert happen inside one transaction, so concurrent
	// inserts serialize and ids are issued strictly increasing. Returns
	// the id assigned to the stored row.
	InsertCheck(ctx context.Context, check entity.FeedCheck) (uint64, error)

	// DueForCheck returns feed ids whose next scheduled check time is at
	// or before now, plus feeds never checked. The task supervisor does
	// not call it: Start seeds one task per known feed, and steady-state
	// scheduling is driven by each task's own timer.
	DueForCheck(ctx context.Context, now time.Time) ([]string, error)
}
