package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the request context. Preference store calls honour it, so a
// stalled backend surfaces as an error response instead of a hung client.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
