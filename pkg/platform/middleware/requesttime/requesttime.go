// Package requesttime pins one "now" per request so that every timestamp
// produced while serving it agrees.
package requesttime

import (
	"net/http"
	"time"

	"rechtsbron/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
