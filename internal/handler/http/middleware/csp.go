package middleware

import (
	"net/http"

	"russet/pkg/security/csp"
)

// CSP applies the single fixed Content-Security-Policy Russet's UI needs:
// no scripts are ever served, so the policy can simply forbid them outright
// rather than selecting between path-specific policies the way an API
// gateway serving both a UI and third-party docs would.
func CSP(next http.Handler) http.Handler {
	policy := csp.NewCSPBuilder().ScriptSrc("'none'").Build()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", policy)
		next.ServeHTTP(w, r)
	})
}
