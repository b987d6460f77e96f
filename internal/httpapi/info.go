package httpapi

import (
	"fmt"
	"net/http"

	"github.com/mk-fg/convergence/internal/verifier"
)

// InfoHandler implements GET / from spec.md §4.7: the active verifier's
// html_description (or a plain-text fallback), 200; any other method is
// 405.
//
// SPEC_FULL.md's supplemented-features note (from InfoPage.py) wraps the
// verifier's description in a minimal static HTML shell so an operator
// hitting this in a browser gets something legible rather than a bare
// fragment.
type InfoHandler struct {
	Verifier verifier.Verifier
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeHTMLError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeHTMLError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	desc := h.Verifier.HTMLDescription()
	if desc == "" {
		desc = fmt.Sprintf("<p>%T</p>", h.Verifier)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><head><title>Convergence Notary</title>
<style>body{font-family:sans-serif;max-width:40em;margin:2em auto;}</style>
</head><body>%s</body></html>`, desc)
}
