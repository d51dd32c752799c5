package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"russet/internal/domain/entity"
	"russet/internal/infra/persistence/memory"
	"russet/internal/service/auth"
	"russet/internal/service/entries"
	"russet/internal/service/feed"
	"russet/internal/service/user"
)

// testEnv bundles a fresh in-memory store and the domain services built on
// top of it, so each test starts from an empty, isolated dataset.
type testEnv struct {
	store   *memory.Store
	users   *user.Service
	auth    *auth.Service
	entries *entries.Service
	feed    *feed.Service
	h       *Handlers
}

func newTestEnv() *testEnv {
	store := memory.New()
	userSvc := user.New(store.Users(), []byte("test-pepper"), user.HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	authSvc := auth.New(store.Sessions(), DefaultSessionTTL)
	entriesSvc := entries.New(store.Entries(), store.Subscriptions(), store.Feeds())
	feedSvc := feed.New(store.Feeds(), store.Entries(), feed.Config{})

	h := &Handlers{
		Feed:    feedSvc,
		Entries: entriesSvc,
		Users:   userSvc,
		Auth:    authSvc,
	}
	return &testEnv{store: store, users: userSvc, auth: authSvc, entries: entriesSvc, feed: feedSvc, h: h}
}

func (e *testEnv) createUser(t *testing.T, name, password string, typ entity.UserType) entity.User {
	t.Helper()
	u, err := e.users.Create(t.Context(), name, password, typ)
	if err != nil {
		t.Fatalf("createUser: %v", err)
	}
	return u
}

func (e *testEnv) createFeed(t *testing.T, feedURL string) entity.Feed {
	t.Helper()
	f := entity.Feed{ID: "feed-" + feedURL, URL: feedURL, Title: "Feed " + feedURL}
	if err := e.store.Feeds().Create(t.Context(), f); err != nil {
		t.Fatalf("createFeed: %v", err)
	}
	return f
}

// withUser attaches u to the request context the way Authenticator.RequireAuth
// does, letting handler tests exercise per-route logic without standing up a
// real session cookie.
func withUser(r *http.Request, u entity.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, u))
}

func TestHandlers_LoginForm(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/login?redirect_to=/feed/1", nil)
	rec := httptest.NewRecorder()

	env.h.LoginForm(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/feed/1") {
		t.Errorf("expected redirect_to to appear in rendered page, got %q", rec.Body.String())
	}
}

func TestHandlers_Login_DisabledLogins(t *testing.T) {
	env := newTestEnv()
	env.h.DisableLogins = true

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{
		"user_name":          {"alice"},
		"plaintext_password": {"whatever"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.h.Login(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 when logins are disabled, got %d", rec.Code)
	}
}

func TestHandlers_Login_WrongPassword(t *testing.T) {
	env := newTestEnv()
	env.createUser(t, "alice", "correct horse battery staple", entity.UserTypeMember)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{
		"user_name":          {"alice"},
		"plaintext_password": {"wrong"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected the login page to re-render with 200, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("expected no session cookie on failed login")
	}
}

func TestHandlers_Login_Success(t *testing.T) {
	env := newTestEnv()
	env.createUser(t, "alice", "correct horse battery staple", entity.UserTypeMember)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{
		"user_name":          {"alice"},
		"plaintext_password": {"correct horse battery staple"},
		"redirect_to":        {"/feed/x"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.h.Login(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 redirect, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "/feed/x" {
		t.Errorf("expected redirect to /feed/x, got %q", rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName {
		t.Fatalf("expected a session_id cookie, got %+v", cookies)
	}
}

func TestHandlers_Logout(t *testing.T) {
	env := newTestEnv()
	u := env.createUser(t, "alice", "hunter2", entity.UserTypeMember)
	sess, err := env.auth.Login(t.Context(), u.ID)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()

	env.h.Logout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 redirect, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected the session cookie to be cleared, got %+v", cookies)
	}
	if _, err := env.auth.Validate(t.Context(), sess.Token); err == nil {
		t.Error("expected the session to be invalidated after logout")
	}
}

func TestHandlers_Entry_RedirectsToURL(t *testing.T) {
	env := newTestEnv()
	u := env.createUser(t, "alice", "hunter2", entity.UserTypeMember)
	f := env.createFeed(t, "https://example.com/feed.xml")
	e := entity.Entry{ID: "entry-1", FeedID: f.ID, URL: "https://example.com/article", Title: "Article"}
	if err := env.store.Entries().InsertBatch(t.Context(), []entity.Entry{e}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/entry/entry-1", nil)
	req.SetPathValue("id", "entry-1")
	req = withUser(req, u)
	rec := httptest.NewRecorder()

	env.h.Entry(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 redirect, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "https://example.com/article" {
		t.Errorf("expected redirect to the entry URL, got %q", rec.Header().Get("Location"))
	}
}

func TestHandlers_FeedEntries_Unsubscribe(t *testing.T) {
	env := newTestEnv()
	u := env.createUser(t, "alice", "hunter2", entity.UserTypeMember)
	f := env.createFeed(t, "https://example.com/feed.xml")
	if err := env.entries.Subscribe(t.Context(), u.ID, f.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/feed/"+f.ID, nil)
	req.SetPathValue("id", f.ID)
	req = withUser(req, u)
	rec := httptest.NewRecorder()

	env.h.FeedEntries(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 redirect, got %d", rec.Code)
	}
	feeds, err := env.feed.FeedsForUser(t.Context(), u.ID)
	if err != nil {
		t.Fatalf("FeedsForUser: %v", err)
	}
	if len(feeds) != 0 {
		t.Errorf("expected no subscriptions after unsubscribe, got %+v", feeds)
	}
}

func TestHandlers_UserDetail_ForbiddenForOtherUser(t *testing.T) {
	env := newTestEnv()
	caller := env.createUser(t, "alice", "hunter2", entity.UserTypeMember)
	target := env.createUser(t, "bob", "hunter3", entity.UserTypeMember)

	req := httptest.NewRequest(http.MethodGet, "/user/"+target.ID, nil)
	req.SetPathValue("id", target.ID)
	req = withUser(req, caller)
	rec := httptest.NewRecorder()

	env.h.UserDetail(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a non-sysop viewing another profile, got %d", rec.Code)
	}
}

func TestHandlers_UserDetail_SysopMayViewAnyone(t *testing.T) {
	env := newTestEnv()
	sysop := env.createUser(t, "root", "hunter2", entity.UserTypeSysop)
	target := env.createUser(t, "bob", "hunter3", entity.UserTypeMember)

	req := httptest.NewRequest(http.MethodGet, "/user/"+target.ID, nil)
	req.SetPathValue("id", target.ID)
	req = withUser(req, sysop)
	rec := httptest.NewRecorder()

	env.h.UserDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a sysop viewing another profile, got %d", rec.Code)
	}
}

func TestHandlers_SubscribeForm_EmptyURL(t *testing.T) {
	env := newTestEnv()
	u := env.createUser(t, "alice", "hunter2", entity.UserTypeMember)

	req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(url.Values{"url": {""}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withUser(req, u)
	rec := httptest.NewRecorder()

	env.h.SubscribeForm(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected the form to re-render with 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "a feed URL is required") {
		t.Errorf("expected a validation message, got %q", rec.Body.String())
	}
}

type fakeSpawner struct{ spawned []string }

func (f *fakeSpawner) SpawnFeedTask(feedID string) { f.spawned = append(f.spawned, feedID) }

func TestHandlers_SubscribeForm_SpawnsPollingTask(t *testing.T) {
	env := newTestEnv()
	u := env.createUser(t, "alice", "hunter2", entity.UserTypeMember)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>T</title></channel></rss>`))
	}))
	t.Cleanup(srv.Close)
	env.feed = feed.New(env.store.Feeds(), env.store.Entries(), feed.Config{HTTPClient: srv.Client()})
	env.h.Feed = env.feed
	spawner := &fakeSpawner{}
	env.h.Scheduler = spawner

	req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(url.Values{"url": {srv.URL}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withUser(req, u)
	rec := httptest.NewRecorder()

	env.h.SubscribeForm(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected a redirect after subscribing, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(spawner.spawned) != 1 {
		t.Fatalf("expected exactly one feed task spawned, got %v", spawner.spawned)
	}
}

func TestHandlers_NotFound(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	env.h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
