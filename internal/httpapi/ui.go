package httpapi

import (
	_ "embed"
	"net/http"
)

//go:embed web/index.html
var indexHTML []byte

// serveIndex serves the embedded single-page control panel.
func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(indexHTML)
}
