package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"russet/internal/domain/entity"
	"russet/internal/infra/persistence/memory"
)

const testRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Test Feed</title>
<item><title>Item One</title><link>https://example.com/1</link><guid>1</guid></item>
<item><title>Item Two</title><link>https://example.com/2</link><guid>2</guid></item>
</channel></rss>`

func rssHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", `"v1"`)
	w.Write([]byte(testRSS))
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *memory.Store, *httptest.Server) {
	t.Helper()
	if handler == nil {
		handler = rssHandler
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := memory.New()
	svc := New(store.Feeds(), store.Entries(), Config{
		HTTPClient: srv.Client(),
		Bounds:     ScheduleBounds{MinInterval: time.Minute, DefaultInterval: time.Hour, MaxInterval: 24 * time.Hour},
	})
	return svc, store, srv
}

func TestAddFeed_IsIdempotent(t *testing.T) {
	svc, _, srv := newTestService(t, nil)
	ctx := context.Background()

	a, err := svc.AddFeed(ctx, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.AddFeed(ctx, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("expected same feed id, got %s and %s", a.ID, b.ID)
	}
}

func TestAddFeed_FetchFailureDoesNotPersist(t *testing.T) {
	svc, store, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	if _, err := svc.AddFeed(ctx, srv.URL); err != ErrFetchFailed {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	feeds, err := store.Feeds().ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(feeds) != 0 {
		t.Fatalf("expected no feed persisted after a failed initial fetch, got %d", len(feeds))
	}
}

func TestAddFeed_SeedsInitialCheckAndEntries(t *testing.T) {
	svc, store, srv := newTestService(t, nil)
	ctx := context.Background()

	f, err := svc.AddFeed(ctx, srv.URL)
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if f.Title != "Test Feed" {
		t.Errorf("expected title from parsed feed, got %q", f.Title)
	}

	check, err := store.Feeds().LastCheck(ctx, f.ID)
	if err != nil {
		t.Fatalf("LastCheck: %v", err)
	}
	if check.ID != 1 {
		t.Errorf("expected first FeedCheck id to be 1, got %d", check.ID)
	}
	ids, err := store.Entries().InternalIDsForFeed(ctx, f.ID)
	if err != nil {
		t.Fatalf("InternalIDsForFeed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 entries seeded from the initial fetch, got %d", len(ids))
	}
}

func TestUpdate_IngestsNewEntriesOnce(t *testing.T) {
	calls := 0
	svc, store, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	})
	ctx := context.Background()

	f, err := svc.AddFeed(ctx, srv.URL)
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	last, err := svc.LastFeedCheck(ctx, f.ID)
	if err != nil {
		t.Fatalf("LastFeedCheck: %v", err)
	}
	check, err := svc.Update(ctx, f.ID, last)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if check.Status != entity.FetchStatusOK {
		t.Fatalf("expected FetchStatusOK, got %v", check.Status)
	}

	entries, err := store.Entries().ListForUser(ctx, "no-such-user", 100, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries for unrelated user, got %d", len(entries))
	}

	ids, err := store.Entries().InternalIDsForFeed(ctx, f.ID)
	if err != nil {
		t.Fatalf("InternalIDsForFeed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ingested entries, got %d", len(ids))
	}

	// second check against the unchanged feed should not duplicate entries.
	last2 := FromCheck(check)
	check2, err := svc.Update(ctx, f.ID, last2)
	if err != nil {
		t.Fatalf("Update (second): %v", err)
	}
	if check2.ID == check.ID {
		t.Fatalf("expected a fresh FeedCheck id on the second update")
	}

	ids2, err := store.Entries().InternalIDsForFeed(ctx, f.ID)
	if err != nil {
		t.Fatalf("InternalIDsForFeed (second): %v", err)
	}
	if len(ids2) != 2 {
		t.Fatalf("expected still 2 entries after re-ingesting the same feed, got %d", len(ids2))
	}
	// 1 initial AddFeed fetch + 2 explicit Update calls.
	if calls != 3 {
		t.Fatalf("expected 3 upstream fetches, got %d", calls)
	}
}

func TestUpdate_NotModifiedKeepsETag(t *testing.T) {
	svc, _, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	})
	ctx := context.Background()

	f, err := svc.AddFeed(ctx, srv.URL)
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	first, err := svc.LastFeedCheck(ctx, f.ID)
	if err != nil {
		t.Fatalf("LastFeedCheck: %v", err)
	}
	second, err := svc.Update(ctx, f.ID, first)
	if err != nil {
		t.Fatalf("Update (conditional): %v", err)
	}
	if second.Status != entity.FetchStatusNotModified {
		t.Fatalf("expected FetchStatusNotModified, got %v", second.Status)
	}
	if second.ETag != `"v1"` {
		t.Fatalf("expected etag to be carried forward, got %q", second.ETag)
	}
}

func TestUpdate_LateCheckAnchorsToScheduledTime(t *testing.T) {
	svc, store, srv := newTestService(t, nil)
	ctx := context.Background()

	f := entity.Feed{ID: "feed-1", URL: srv.URL}
	if err := store.Feeds().Create(ctx, f); err != nil {
		t.Fatalf("seed feed: %v", err)
	}

	// a check that was scheduled two days ago and is only being run now,
	// e.g. after the process was down.
	anchor := time.Now().Add(-48 * time.Hour)
	check, err := svc.Update(ctx, f.ID, NoCheck(anchor))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !check.CheckedAt.Equal(anchor) {
		t.Errorf("expected CheckedAt to be the scheduled anchor %v, got %v", anchor, check.CheckedAt)
	}
	want := anchor.Add(time.Hour)
	if !check.NextCheckTime.Equal(want) {
		t.Errorf("expected next check at anchor+default (%v), got %v", want, check.NextCheckTime)
	}
	if check.NextCheckTime.Before(check.CheckedAt) {
		t.Errorf("row invariant violated: next_check_time %v < check_time %v", check.NextCheckTime, check.CheckedAt)
	}
}

func TestUpdate_ClientErrorBacksOffToMaxInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	// seed a feed row directly (rather than through AddFeed, which would
	// itself fail against this always-404 server) so Update's client-error
	// handling can be observed in isolation.
	store := memory.New()
	ctx := context.Background()
	f := entity.Feed{ID: "feed-1", URL: srv.URL}
	if err := store.Feeds().Create(ctx, f); err != nil {
		t.Fatalf("seed feed: %v", err)
	}

	svc := New(store.Feeds(), store.Entries(), Config{
		HTTPClient: srv.Client(),
		Bounds:     ScheduleBounds{MinInterval: time.Minute, DefaultInterval: time.Hour, MaxInterval: 24 * time.Hour},
	})

	anchor := time.Now()
	check, err := svc.Update(ctx, f.ID, NoCheck(anchor))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if check.Status != entity.FetchStatusClientError {
		t.Fatalf("expected FetchStatusClientError, got %v", check.Status)
	}
	want := anchor.Add(24 * time.Hour)
	if check.NextCheckTime.Sub(want).Abs() > time.Second {
		t.Errorf("expected next check time near %v, got %v", want, check.NextCheckTime)
	}
}
