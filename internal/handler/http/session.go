package http

import (
	"context"
	"net/http"
	"time"

	"russet/internal/domain/entity"
	"russet/internal/handler/http/respond"
	"russet/internal/service/auth"
	"russet/internal/service/user"
)

const sessionCookieName = "session_id"

type contextKey int

const userContextKey contextKey = 0

// UserFromContext returns the authenticated user set by RequireAuth. Callers
// reached only through RequireAuth can assume the second value is true.
func UserFromContext(ctx context.Context) (entity.User, bool) {
	u, ok := ctx.Value(userContextKey).(entity.User)
	return u, ok
}

// Authenticator extracts and validates the session_id cookie, attaching
// the resulting User to the request context. A missing or invalid cookie
// fails the request with entity.Unauthenticated carrying the attempted
// path as redirect_to, rather than being handled per-route.
type Authenticator struct {
	auth  *auth.Service
	users *user.Service
}

func NewAuthenticator(a *auth.Service, u *user.Service) *Authenticator {
	return &Authenticator{auth: a, users: u}
}

// RequireAuth wraps next so it runs only once a valid session is attached.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.authenticate(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (entity.User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return entity.User{}, entity.Unauthenticated(r.URL.Path)
	}
	sess, err := a.auth.Validate(r.Context(), cookie.Value)
	if err != nil {
		return entity.User{}, entity.Unauthenticated(r.URL.Path)
	}
	u, err := a.users.Get(r.Context(), sess.UserID)
	if err != nil {
		return entity.User{}, entity.Unauthenticated(r.URL.Path)
	}
	return u, nil
}

// setSessionCookie writes the session_id cookie: path "/", Expires set
// only for a permanent session so a non-permanent one dies with the
// browser session.
func setSessionCookie(w http.ResponseWriter, sess entity.Session, permanent bool) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if permanent {
		cookie.Expires = sess.ExpiresAt
	}
	http.SetCookie(w, cookie)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// PermanentSessionTTL and DefaultSessionTTL bound the "Keep me signed in"
// checkbox on the login form.
const (
	PermanentSessionTTL = 30 * 365 * 24 * time.Hour
	DefaultSessionTTL   = 7 * 24 * time.Hour
)
