package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const DefaultRequestTimeout = 10 * time.Second

// Timeout bounds every request without a deadline of its own by d.
// A non-positive d falls back to DefaultRequestTimeout.
func Timeout(d time.Duration) mux.MiddlewareFunc {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); !ok {
				ctx, cancel := context.WithTimeout(r.Context(), d)
				defer cancel()
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
