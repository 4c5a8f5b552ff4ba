package handlers

import (
	"net/http"
	"time"

	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/middleware"
)

// requestTimeout bounds every control API request.
const requestTimeout = 15 * time.Second

// Router returns the control API with the middleware chain applied.
// Recovery is outermost so it also catches panics in the other middleware.
func (h *Handler) Router(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/v1/preferences/redirect", h.HandleRedirectPreference)
	mux.HandleFunc("/v1/tabs", h.HandleTabs)
	mux.HandleFunc("/v1/tabs/{id}/recheck", h.HandleRecheck)
	mux.HandleFunc("/", h.HandleNotFound)

	return middleware.Chain(
		middleware.Recovery,
		middleware.Logging,
		middleware.APIKey(cfg),
		middleware.Deadline(requestTimeout),
	)(mux)
}

// allowMethod writes 405 and reports false when r does not use method.
func (h *Handler) allowMethod(w http.ResponseWriter, r *http.Request, method string, startTime time.Time) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	h.writeErrorWithStatus(w, http.StatusMethodNotAllowed, "Method not allowed", startTime)
	return false
}
