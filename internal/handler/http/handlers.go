package http

import (
	"net/http"

	"russet/internal/common/pagination"
	"russet/internal/domain/entity"
	"russet/internal/handler/http/render"
	"russet/internal/handler/http/respond"
	"russet/internal/service/auth"
	"russet/internal/service/entries"
	"russet/internal/service/feed"
	"russet/internal/service/user"
)

// FeedTaskSpawner is the subset of *scheduler.Supervisor the HTTP surface
// needs: announcing a newly added feed so it starts being polled without
// waiting for a process restart.
type FeedTaskSpawner interface {
	SpawnFeedTask(feedID string)
}

// Handlers wires the domain services to Russet's HTTP surface. Every
// exported method here is registered directly as a net/http handler in
// routes.go; none of them know about each other.
type Handlers struct {
	Feed      *feed.Service
	Entries   *entries.Service
	Users     *user.Service
	Auth      *auth.Service
	Scheduler FeedTaskSpawner

	DisableLogins bool
}

var pageConfig = pagination.Config{DefaultPage: 1, DefaultLimit: 25, MaxLimit: 100}

func parsePage(r *http.Request) pagination.Params {
	params, err := pagination.ParseQueryParams(r, pageConfig)
	if err != nil {
		return pagination.Params{Page: pageConfig.DefaultPage, Limit: pageConfig.DefaultLimit}
	}
	return params
}

type entryListPage struct {
	User       entity.User
	Feed       *entity.Feed
	Entries    []entity.EntryView
	Page       int
	PrevPage   int
	NextPage   int
	HasNext    bool
	BasePath   string
	ActionPath string
}

// LoginForm renders the login page — GET /login.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	render.Page(w, "login.html", map[string]any{
		"RedirectTo": r.URL.Query().Get("redirect_to"),
	})
}

// Login handles POST /login: form {user_name, plaintext_password,
// redirect_to?, permanent_session?}.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.DisableLogins {
		respond.Error(w, r, entity.Forbidden("logins are disabled"))
		return
	}
	if err := r.ParseForm(); err != nil {
		respond.Error(w, r, entity.BadRequest("malformed form", err))
		return
	}
	name := r.PostForm.Get("user_name")
	password := r.PostForm.Get("plaintext_password")
	redirectTo := r.PostForm.Get("redirect_to")
	if redirectTo == "" {
		redirectTo = "/"
	}

	u, ok, err := h.Users.Authenticate(r.Context(), name, password)
	if err != nil {
		respond.Error(w, r, entity.Internal("authentication failed", err))
		return
	}
	if !ok {
		render.Page(w, "login.html", map[string]any{
			"RedirectTo": redirectTo,
			"Error":      "invalid username or password",
		})
		return
	}

	permanent := r.PostForm.Get("permanent_session") != ""
	ttl := DefaultSessionTTL
	if permanent {
		ttl = PermanentSessionTTL
	}
	sess, err := h.Auth.LoginWithTTL(r.Context(), u.ID, ttl)
	if err != nil {
		respond.Error(w, r, entity.Internal("failed to create session", err))
		return
	}
	setSessionCookie(w, sess, permanent)
	render.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// Logout serves POST /logout: deletes the caller's session server-side and
// clears the cookie, so the token is dead even if a copy of it survives.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.Auth.Logout(r.Context(), cookie.Value); err != nil {
			respond.Error(w, r, entity.Internal("failed to log out", err))
			return
		}
	}
	clearSessionCookie(w)
	render.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Index serves GET / (paginated list) and POST / (batch mark-read/delete).
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	if r.Method == http.MethodPost {
		h.batchAction(w, r, u, "/")
		return
	}

	page := parsePage(r)
	list, err := h.Entries.GetSubscribedEntries(r.Context(), u.ID, entries.Pagination{
		Limit:  page.Limit,
		Offset: pagination.CalculateOffset(page.Page, page.Limit),
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	render.Page(w, "entries.html", newEntryListPage(u, nil, list, page, "/", "/"))
}

// FeedEntries serves GET /feed/{id} (paginated entries for one feed) and
// POST /feed/{id} (unsubscribe).
func (h *Handlers) FeedEntries(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	feedID := r.PathValue("id")

	f, err := h.Feed.GetFeed(r.Context(), feedID)
	if err != nil {
		respond.Error(w, r, mapDomainErr(err, "feed not found"))
		return
	}

	if r.Method == http.MethodPost {
		if err := h.Entries.Unsubscribe(r.Context(), u.ID, feedID); err != nil {
			respond.Error(w, r, entity.Internal("failed to unsubscribe", err))
			return
		}
		render.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := parsePage(r)
	list, err := h.Entries.GetFeedEntries(r.Context(), u.ID, feedID, entries.Pagination{
		Limit:  page.Limit,
		Offset: pagination.CalculateOffset(page.Page, page.Limit),
	})
	if err != nil {
		respond.Error(w, r, mapDomainErr(err, "feed not found"))
		return
	}
	base := "/feed/" + feedID
	render.Page(w, "entries.html", newEntryListPage(u, &f, list, page, base, base))
}

// Entry serves GET /entry/{id}: marks the entry read and redirects to its
// URL, or to / if the entry carries none.
func (h *Handlers) Entry(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	entryID := r.PathValue("id")

	v, err := h.Entries.GetEntry(r.Context(), u.ID, entryID)
	if err != nil {
		respond.Error(w, r, mapDomainErr(err, "entry not found"))
		return
	}
	target := v.URL
	if target == "" {
		target = "/"
	}
	render.Redirect(w, r, target, http.StatusSeeOther)
}

// SubscribeForm serves GET /subscribe and POST /subscribe ({url}).
func (h *Handlers) SubscribeForm(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	if r.Method == http.MethodGet {
		render.Page(w, "subscribe.html", map[string]any{})
		return
	}

	if err := r.ParseForm(); err != nil {
		respond.Error(w, r, entity.BadRequest("malformed form", err))
		return
	}
	url := r.PostForm.Get("url")
	if url == "" {
		render.Page(w, "subscribe.html", map[string]any{"Error": "a feed URL is required"})
		return
	}

	f, err := h.Feed.AddFeed(r.Context(), url)
	if err != nil {
		render.Page(w, "subscribe.html", map[string]any{"Error": "could not fetch that feed"})
		return
	}
	if h.Scheduler != nil {
		h.Scheduler.SpawnFeedTask(f.ID)
	}
	if err := h.Entries.Subscribe(r.Context(), u.ID, f.ID); err != nil {
		respond.Error(w, r, entity.Internal("failed to subscribe", err))
		return
	}
	render.Redirect(w, r, "/feed/"+f.ID, http.StatusSeeOther)
}

// UserDetail serves GET /user/{id}: a Sysop may view any profile, a Member
// only their own.
func (h *Handlers) UserDetail(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	targetID := r.PathValue("id")

	if caller.Type != entity.UserTypeSysop && caller.ID != targetID {
		respond.Error(w, r, entity.Forbidden("you may only view your own profile"))
		return
	}

	profile, err := h.Users.Get(r.Context(), targetID)
	if err != nil {
		respond.Error(w, r, mapDomainErr(err, "user not found"))
		return
	}
	feeds, err := h.Feed.FeedsForUser(r.Context(), targetID)
	if err != nil {
		respond.Error(w, r, entity.Internal("failed to load subscriptions", err))
		return
	}
	render.Page(w, "user.html", map[string]any{"Profile": profile, "Feeds": feeds})
}

// NotFound serves the /* catch-all.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	render.Error(w, http.StatusNotFound, "not found")
}

func (h *Handlers) batchAction(w http.ResponseWriter, r *http.Request, u entity.User, redirectTo string) {
	if err := r.ParseForm(); err != nil {
		respond.Error(w, r, entity.BadRequest("malformed form", err))
		return
	}
	ids := r.PostForm["entry_id"]
	action := r.PostForm.Get("action")

	var payload entries.UserEntryPayload
	switch action {
	case "read":
		t := true
		payload.Read = &t
	case "delete":
		t := true
		payload.Tombstone = &t
	default:
		respond.Error(w, r, entity.BadRequest("unknown batch action", nil))
		return
	}

	if len(ids) > 0 {
		if err := h.Entries.SetUserEntries(r.Context(), u.ID, ids, payload); err != nil {
			respond.Error(w, r, entity.Internal("failed to update entries", err))
			return
		}
	}
	render.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// newEntryListPage builds the template data for one page of entries. There
// is no COUNT query backing this listing, so "next" is inferred from a
// full page rather than a known total-pages figure — a full page means
// there may be more, a short page means there is not.
func newEntryListPage(u entity.User, f *entity.Feed, list []entity.EntryView, page pagination.Params, basePath, actionPath string) entryListPage {
	return entryListPage{
		User:       u,
		Feed:       f,
		Entries:    list,
		Page:       page.Page,
		PrevPage:   page.Page - 1,
		NextPage:   page.Page + 1,
		HasNext:    len(list) >= page.Limit,
		BasePath:   basePath,
		ActionPath: actionPath,
	}
}

// mapDomainErr converts a bare repository sentinel error (not already an
// AppError) into one carrying a user-facing message, via respond.Kind.
func mapDomainErr(err error, notFoundMsg string) error {
	switch respond.Kind(err) {
	case entity.KindNotFound:
		return entity.NotFound(notFoundMsg)
	case entity.KindBadRequest:
		return entity.BadRequest(err.Error(), err)
	case entity.KindForbidden:
		return entity.Forbidden(err.Error())
	default:
		return entity.Internal("unexpected error", err)
	}
}
