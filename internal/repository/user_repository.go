package repository

import (
	"context"
	"time"

	"russet/internal/domain/entity"
)

// UserRepository persists accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (entity.User, error)
	GetByName(ctx context.Context, name string) (entity.User, error)
	Create(ctx context.Context, user entity.User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	CountByType(ctx context.Context, t entity.UserType) (int, error)
}

// SessionRepository persists server-side session records.
type SessionRepository interface {
	Create(ctx context.Context, session entity.Session) error
	Get(ctx context.Context, token string) (entity.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteExpired removes sessions whose expiry is at or before now,
	// returning the count removed, used by the session-sweeper task.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// SubscriptionRepository persists user-feed follow relationships.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub entity.Subscription) error
	Delete(ctx context.Context, userID, feedID string) error
	ListFeedIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListUserIDsForFeed(ctx context.Context, feedID string) ([]string, error)
	Exists(ctx context.Context, userID, feedID string) (bool, error)
}

// Store aggregates every repository the domain service needs. Services
// narrow to the sub-interfaces they actually use rather than depending on
// this directly, except at the composition root (cmd/russet) where a Store
// implementation is constructed once and handed out.
type Store interface {
	Feeds() FeedRepository
	Entries() EntryRepository
	Users() UserRepository
	Sessions() SessionRepository
	Subscriptions() SubscriptionRepository
}
