package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"rechtsbron/internal/ratelimit/metrics"
	"rechtsbron/internal/ratelimit/models"
	"rechtsbron/pkg/platform/circuit"
	"rechtsbron/pkg/platform/httputil"
	"rechtsbron/pkg/requestcontext"
)

// RateLimiter checks a client IP against the limit of an endpoint class.
type RateLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
}

// Middleware enforces per-IP limits. Store failures fail open; with a
// fallback configured, repeated failures open a circuit and checks move to
// the fallback until the primary recovers.
type Middleware struct {
	limiter  RateLimiter
	fallback RateLimiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (local runs, tests).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the limiter used while the primary store is unhealthy.
func WithFallback(fallback RateLimiter) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

// WithBreaker replaces the default breaker guarding the primary limiter.
func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		if b != nil {
			m.breaker = b
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Middleware{
		limiter: limiter,
		breaker: circuit.New("ratelimit-store", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit returns middleware limiting requests of the given class by client IP.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded := m.check(ctx, ip, class)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check returns a nil result when the request should pass unchecked.
func (m *Middleware) check(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, bool) {
	if m.fallback != nil && !m.breaker.Allow() {
		return m.checkFallback(ctx, ip, class)
	}

	result, err := m.limiter.CheckIP(ctx, ip, class)
	if err != nil {
		m.metrics.IncrementStoreErrors()
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.metrics.SetDegraded(true)
			m.logger.WarnContext(ctx, "rate limit store unhealthy, switching to fallback",
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		m.logger.ErrorContext(ctx, "failed to check IP rate limit",
			"request_id", requestcontext.RequestID(ctx),
			"ip_prefix", models.AnonymizeIP(ip),
			"error", err,
		)
		if useFallback && m.fallback != nil {
			return m.checkFallback(ctx, ip, class)
		}
		return nil, false
	}

	if _, change := m.breaker.RecordSuccess(); change.Closed {
		m.metrics.SetDegraded(false)
		m.logger.InfoContext(ctx, "rate limit store recovered",
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, false
}

func (m *Middleware) checkFallback(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, bool) {
	result, err := m.fallback.CheckIP(ctx, ip, class)
	if err != nil {
		m.logger.ErrorContext(ctx, "fallback rate limit check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, true
	}
	return result, true
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil || result.Bypassed {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
