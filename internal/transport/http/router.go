// Package httptransport builds the public HTTP router.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"rechtsbron/internal/grounding/handler"
	"rechtsbron/internal/platform/metrics"
	ratelimitmw "rechtsbron/internal/ratelimit/middleware"
	"rechtsbron/internal/ratelimit/models"
	dErrors "rechtsbron/pkg/domain-errors"
	"rechtsbron/pkg/platform/httputil"
	"rechtsbron/pkg/platform/middleware/metadata"
	"rechtsbron/pkg/platform/middleware/request"
	"rechtsbron/pkg/platform/middleware/requesttime"
)

// Deps are the collaborators of the router. RateLimit, Metrics and Health
// are optional.
type Deps struct {
	Handler        *handler.Handler
	RateLimit      *ratelimitmw.Middleware
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Health         func(context.Context) error
}

// NewRouter wires all public endpoints behind the shared middleware chain.
// Searching endpoints and local lookups are limited as separate classes.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	if d.Metrics != nil {
		r.Use(request.Latency(d.Metrics))
	}

	r.Get("/healthz", healthHandler(d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(chimw.Timeout(d.RequestTimeout))
		}
		r.Group(func(r chi.Router) {
			if d.RateLimit != nil {
				r.Use(d.RateLimit.RateLimit(models.ClassSearch))
			}
			d.Handler.RegisterSearch(r)
		})
		r.Group(func(r chi.Router) {
			if d.RateLimit != nil {
				r.Use(d.RateLimit.RateLimit(models.ClassRead))
			}
			d.Handler.RegisterRead(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
