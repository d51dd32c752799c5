// Package feed implements the feed-polling half of the domain service:
// adding/listing feeds and running a single conditional-fetch-and-ingest
// cycle for one feed. It is deliberately independent of scheduling policy
// (internal/scheduler decides *when* to call Update) and of the HTTP
// surface (internal/handler/http calls this package, never the reverse).
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"russet/internal/domain/entity"
	"russet/internal/feedreader"
	"russet/internal/observability/metrics"
	"russet/internal/repository"
)

type Service struct {
	feeds   repository.FeedRepository
	entries repository.EntryRepository
	readers []feedreader.Reader
	fetcher *fetcher
	bounds  ScheduleBounds
	idgen   func() string
}

type Config struct {
	HTTPClient  *http.Client
	UserAgent   string
	Bounds      ScheduleBounds
	Readers     []feedreader.Reader // defaults to feedreader.DefaultReaders() when nil
}

func New(feeds repository.FeedRepository, entries repository.EntryRepository, cfg Config) *Service {
	readers := cfg.Readers
	if readers == nil {
		readers = feedreader.DefaultReaders()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "RussetBot/1.0"
	}
	return &Service{
		feeds:   feeds,
		entries: entries,
		readers: readers,
		fetcher: newFetcher(client, userAgent),
		bounds:  cfg.Bounds,
		idgen:   newULID,
	}
}

func newULID() string {
	return ulid.Make().String()
}

// ErrFetchFailed is returned by AddFeed when the initial fetch of a new
// URL is anything other than a parseable feed document; nothing is
// persisted in that case.
var ErrFetchFailed = fmt.Errorf("feed: initial fetch did not yield a parseable feed")

// AddFeed looks up a feed by URL, creating it if it doesn't exist yet —
// an idempotent "add or find": two concurrent callers adding the same URL
// both end up with the same Feed.
// A brand new URL is fetched (with no ETag) before anything is persisted;
// the new Feed row, its title, and its first FeedCheck+Entries all come
// from that one fetch.
func (s *Service) AddFeed(ctx context.Context, url string) (entity.Feed, error) {
	existing, err := s.feeds.GetByURL(ctx, url)
	if err == nil {
		return existing, nil
	}
	if err != entity.ErrNotFound {
		return entity.Feed{}, fmt.Errorf("AddFeed: lookup: %w", err)
	}

	outcome, err := s.fetcher.fetch(ctx, url, "")
	if err != nil || outcome.kind != fetchOK {
		return entity.Feed{}, ErrFetchFailed
	}
	parsed, parseErr := feedreader.DispatchWithHint(s.readers, outcome.body, outcome.contentType)
	if parseErr != nil {
		return entity.Feed{}, ErrFetchFailed
	}

	f := entity.Feed{ID: s.idgen(), URL: url, Title: parsed.Title}
	if err := s.feeds.Create(ctx, f); err != nil {
		// a concurrent caller may have won the race; re-check before
		// surfacing the error, since the end state the caller wants
		// (a Feed row exists for this URL) was still achieved.
		if again, getErr := s.feeds.GetByURL(ctx, url); getErr == nil {
			return again, nil
		}
		return entity.Feed{}, fmt.Errorf("AddFeed: create: %w", err)
	}

	now := time.Now()
	check := entity.FeedCheck{
		FeedID:        f.ID,
		CheckedAt:     now,
		Status:        entity.FetchStatusOK,
		ETag:          outcome.etag,
		NextCheckTime: now.Add(s.bounds.DefaultInterval),
	}
	// The check row must exist before entries can reference it by
	// check_id (entries.check_id is a foreign key into feed_checks);
	// InsertCheck assigns the id, written without one.
	checkID, err := s.feeds.InsertCheck(ctx, check)
	if err != nil {
		return entity.Feed{}, fmt.Errorf("AddFeed: insert check: %w", err)
	}
	if err := s.ingest(ctx, f.ID, checkID, parsed); err != nil {
		return entity.Feed{}, fmt.Errorf("AddFeed: ingest: %w", err)
	}
	return f, nil
}

func (s *Service) GetFeeds(ctx context.Context) ([]entity.Feed, error) {
	out, err := s.feeds.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetFeeds: %w", err)
	}
	return out, nil
}

func (s *Service) FeedsForUser(ctx context.Context, userID string) ([]entity.Feed, error) {
	out, err := s.feeds.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("FeedsForUser: %w", err)
	}
	return out, nil
}

func (s *Service) GetFeed(ctx context.Context, id string) (entity.Feed, error) {
	f, err := s.feeds.GetByID(ctx, id)
	if err != nil {
		if err == entity.ErrNotFound {
			return entity.Feed{}, err
		}
		return entity.Feed{}, fmt.Errorf("GetFeed: %w", err)
	}
	return f, nil
}

// LastFeedCheck returns the most recent check for a feed, suitable for
// building the CheckState a caller passes to Update.
func (s *Service) LastFeedCheck(ctx context.Context, feedID string) (CheckState, error) {
	check, err := s.feeds.LastCheck(ctx, feedID)
	if err == entity.ErrNotFound {
		return NoCheck(time.Now()), nil
	}
	if err != nil {
		return CheckState{}, fmt.Errorf("LastFeedCheck: %w", err)
	}
	return FromCheck(check), nil
}

// Update performs one polling cycle for a feed: a conditional fetch, then
// always a new FeedCheck row recording the outcome and the next scheduled
// time, then (if the document changed and parsed) a diff-and-insert of new
// entries tagged with that row's id.
// Exactly one FeedCheck row is written per call, regardless of which
// branch the fetch outcome takes.
func (s *Service) Update(ctx context.Context, feedID string, last CheckState) (entity.FeedCheck, error) {
	f, err := s.feeds.GetByID(ctx, feedID)
	if err != nil {
		return entity.FeedCheck{}, fmt.Errorf("Update: %w", err)
	}

	outcome, err := s.fetcher.fetch(ctx, f.URL, last.ETag())
	if err != nil {
		outcome = fetchOutcome{kind: fetchServerError}
	}

	// The new row's check time is the anchor — the time this check was
	// scheduled for — not wall clock. A feed polled late (missed-check
	// catch-up after downtime) would otherwise record CheckedAt far ahead
	// of a NextCheckTime computed from the old anchor, breaking the
	// next_check_time >= check_time row invariant.
	anchor := last.CheckTime()
	check := entity.FeedCheck{
		FeedID:        feedID,
		CheckedAt:     anchor,
		NextCheckTime: nextCheckTime(anchor, s.bounds, outcome),
	}

	var parsed feedreader.Feed
	haveParsed := false

	switch outcome.kind {
	case fetchNotModified:
		check.Status = entity.FetchStatusNotModified
		check.ETag = last.ETag()
	case fetchClientError:
		check.Status = entity.FetchStatusClientError
	case fetchServerError:
		check.Status = entity.FetchStatusServerError
	case fetchOK:
		check.ETag = outcome.etag
		var parseErr error
		parsed, parseErr = feedreader.DispatchWithHint(s.readers, outcome.body, outcome.contentType)
		if parseErr != nil {
			check.Status = entity.FetchStatusParseError
			break
		}
		check.Status = entity.FetchStatusOK
		haveParsed = true
	}

	// The check row must exist before entries can reference it by
	// check_id (entries.check_id is a foreign key into feed_checks), so
	// it is always inserted before any ingestion happens. InsertCheck
	// assigns the id; the check is written without one.
	checkID, err := s.feeds.InsertCheck(ctx, check)
	if err != nil {
		return entity.FeedCheck{}, fmt.Errorf("Update: insert check: %w", err)
	}
	check.ID = checkID
	if haveParsed {
		if err := s.ingest(ctx, feedID, checkID, parsed); err != nil {
			return entity.FeedCheck{}, fmt.Errorf("Update: ingest: %w", err)
		}
	}
	return check, nil
}

// ingest diffs parsed items against already-known internal ids and inserts
// only the new ones, tagging each with the FeedCheck that discovered it.
func (s *Service) ingest(ctx context.Context, feedID string, checkID uint64, parsed feedreader.Feed) error {
	known, err := s.entries.InternalIDsForFeed(ctx, feedID)
	if err != nil {
		return fmt.Errorf("ingest: known ids: %w", err)
	}

	var fresh []entity.Entry
	for _, item := range parsed.Items {
		if _, seen := known[item.InternalID]; seen {
			continue
		}
		fresh = append(fresh, entity.Entry{
			ID:          s.idgen(),
			FeedID:      feedID,
			CheckID:     checkID,
			URL:         item.URL,
			Title:       item.Title,
			ArticleDate: item.PublishedAt,
			InternalID:  item.InternalID,
		})
	}

	if len(fresh) == 0 {
		return nil
	}
	if err := s.entries.InsertBatch(ctx, fresh); err != nil {
		return err
	}
	metrics.RecordEntriesIngested(feedID, len(fresh))
	return nil
}
