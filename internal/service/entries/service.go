// Package entries implements the reader-facing half of the domain service:
// subscribing to feeds and reading/tombstoning entries. It never touches
// fetching or scheduling — internal/service/feed owns that.
package entries

import (
	"context"
	"fmt"

	"russet/internal/domain/entity"
	"russet/internal/repository"
)

type Service struct {
	entries repository.EntryRepository
	subs    repository.SubscriptionRepository
	feeds   repository.FeedRepository
}

func New(entries repository.EntryRepository, subs repository.SubscriptionRepository, feeds repository.FeedRepository) *Service {
	return &Service{entries: entries, subs: subs, feeds: feeds}
}

// Subscribe links a user to a feed. feedID must already exist — callers
// that have only a URL should call feed.Service.AddFeed first.
func (s *Service) Subscribe(ctx context.Context, userID, feedID string) error {
	if _, err := s.feeds.GetByID(ctx, feedID); err != nil {
		return err
	}
	if err := s.subs.Create(ctx, entity.Subscription{UserID: userID, FeedID: feedID}); err != nil {
		return fmt.Errorf("Subscribe: %w", err)
	}
	return nil
}

// Unsubscribe is idempotent: removing a subscription that doesn't exist is
// not an error.
func (s *Service) Unsubscribe(ctx context.Context, userID, feedID string) error {
	if err := s.subs.Delete(ctx, userID, feedID); err != nil {
		return fmt.Errorf("Unsubscribe: %w", err)
	}
	return nil
}

// Pagination bounds a listing query; callers (the HTTP handlers) compute
// Limit/Offset from query-string page numbers.
type Pagination struct {
	Limit  int
	Offset int
}

// GetSubscribedEntries returns every non-tombstoned entry across a user's
// subscriptions, ordered by (check_id DESC, article_date DESC).
func (s *Service) GetSubscribedEntries(ctx context.Context, userID string, page Pagination) ([]entity.EntryView, error) {
	out, err := s.entries.ListForUser(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("GetSubscribedEntries: %w", err)
	}
	return out, nil
}

// GetFeedEntries is GetSubscribedEntries restricted to one feed — the
// get_feed_entries operation.
func (s *Service) GetFeedEntries(ctx context.Context, userID, feedID string, page Pagination) ([]entity.EntryView, error) {
	if _, err := s.feeds.GetByID(ctx, feedID); err != nil {
		return nil, err
	}
	out, err := s.entries.ListForFeed(ctx, userID, feedID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("GetFeedEntries: %w", err)
	}
	return out, nil
}

// UserEntryPayload carries the optional read/tombstone fields
// set_userentries applies; a nil field leaves that column untouched.
type UserEntryPayload struct {
	Read      *bool
	Tombstone *bool
}

// SetUserEntries upserts the (user, entry) overlay row for each id in
// order. Each upsert is individually atomic, but the batch is not
// transactional — the first error aborts and is returned, leaving every id
// processed before it applied.
func (s *Service) SetUserEntries(ctx context.Context, userID string, entryIDs []string, payload UserEntryPayload) error {
	for _, id := range entryIDs {
		if err := s.entries.SetUserEntry(ctx, userID, id, payload.Read, payload.Tombstone); err != nil {
			return fmt.Errorf("SetUserEntries: entry %s: %w", id, err)
		}
	}
	return nil
}

// GetEntry atomically reads an entry and marks it read for userID,
// returning its freshly-computed view — the get_entry operation.
func (s *Service) GetEntry(ctx context.Context, userID, entryID string) (entity.EntryView, error) {
	v, err := s.entries.GetAndMarkRead(ctx, userID, entryID)
	if err != nil {
		return entity.EntryView{}, err
	}
	return v, nil
}
