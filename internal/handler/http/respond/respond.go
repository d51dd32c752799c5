// Package respond maps entity.AppError onto HTTP responses. Handlers never
// sniff error strings to decide whether a message is safe to show a
// caller; the explicit entity.Kind every service-layer AppError carries
// makes the status mapping exhaustive rather than heuristic.
package respond

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/oklog/ulid/v2"

	"russet/internal/domain/entity"
	"russet/internal/handler/http/render"
)

// debugMode gates verbose error detail behind an environment flag rather
// than a config field, so it can never be turned on by a value stored in
// the database or a request.
var debugMode = os.Getenv("RUSSET_DEBUG") == "1"

// Error renders err as an HTML error page; entity.KindUnauthenticated gets
// a 401 that points at the login form. Non-AppError values are treated as
// internal.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *entity.AppError
	if !errors.As(err, &appErr) {
		appErr = entity.Internal("unexpected error", err)
	}

	switch appErr.Kind {
	case entity.KindUnauthenticated:
		writeUnauthenticated(w, appErr.RedirectTo)
		return
	case entity.KindBadRequest:
		render.Error(w, http.StatusBadRequest, appErr.Message)
	case entity.KindForbidden:
		render.Error(w, http.StatusForbidden, appErr.Message)
	case entity.KindNotFound:
		render.Error(w, http.StatusNotFound, appErr.Message)
	default:
		writeInternal(w, appErr)
	}
}

// writeUnauthenticated answers 401 with a body pointing at the login page,
// carrying the attempted path as redirect_to so a successful login lands
// the user back where they were headed. A redirect would loop here — the
// page the client asked for is the one it isn't allowed to see.
func writeUnauthenticated(w http.ResponseWriter, attemptedPath string) {
	target := "/login"
	if attemptedPath != "" && attemptedPath != "/login" {
		target += "?redirect_to=" + url.QueryEscape(attemptedPath)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `<!doctype html><title>Login required</title><p>You must <a href="%s">log in</a> to view this page.</p>`,
		html.EscapeString(target))
}

func writeInternal(w http.ResponseWriter, appErr *entity.AppError) {
	correlationID := appErr.CorrelationID
	if correlationID == "" {
		correlationID = ulid.Make().String()
	}
	logger := slog.Default()
	logger.Error("internal error",
		slog.String("correlation_id", correlationID),
		slog.String("message", appErr.Message),
		slog.Any("cause", appErr.Err),
	)

	msg := "internal server error (ref " + correlationID + ")"
	if debugMode && appErr.Err != nil {
		msg = appErr.Err.Error()
	}
	render.Error(w, http.StatusInternalServerError, msg)
}

// Kind maps a plain domain sentinel error (not wrapped in an AppError) to
// the Kind handlers should treat it as — a convenience for the common case
// of a repository returning entity.ErrNotFound directly.
func Kind(err error) entity.Kind {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return entity.KindNotFound
	case errors.Is(err, entity.ErrAlreadyExists), errors.Is(err, entity.ErrInvalidInput), errors.Is(err, entity.ErrValidationFailed):
		return entity.KindBadRequest
	case errors.Is(err, entity.ErrLoginsDisabled):
		return entity.KindForbidden
	default:
		return entity.KindInternal
	}
}
