package http

import (
	"embed"
	"net/http"
)

//go:embed static/styles.css
var staticFS embed.FS

func styleHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		http.ServeFileFS(w, r, staticFS, "static/styles.css")
	})
}
