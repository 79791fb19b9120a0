package requestlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"rechtsbron/internal/ratelimit/metrics"
	"rechtsbron/internal/ratelimit/models"
	"rechtsbron/internal/ratelimit/ports"
	dErrors "rechtsbron/pkg/domain-errors"
	"rechtsbron/pkg/requestcontext"
)

// BucketStore is the counter backend.
type BucketStore = ports.BucketStore

// Service enforces per-IP limits per endpoint class.
type Service struct {
	buckets   BucketStore
	limits    map[models.EndpointClass]models.Limit
	allowlist []*net.IPNet
	invalid   []string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimit sets the budget for one endpoint class.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(s *Service) {
		s.limits[class] = limit
	}
}

// WithAllowlist exempts clients by IP or CIDR. Invalid entries are reported by New.
func WithAllowlist(entries []string) Option {
	return func(s *Service) {
		for _, e := range entries {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			if !strings.Contains(e, "/") {
				if strings.Contains(e, ":") {
					e += "/128"
				} else {
					e += "/32"
				}
			}
			_, network, err := net.ParseCIDR(e)
			if err != nil {
				s.invalid = append(s.invalid, e)
				continue
			}
			s.allowlist = append(s.allowlist, network)
		}
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	svc := &Service{
		buckets: buckets,
		limits:  make(map[models.EndpointClass]models.Limit),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if len(svc.invalid) > 0 {
		return nil, fmt.Errorf("invalid allowlist entries: %s", strings.Join(svc.invalid, ", "))
	}
	for class, l := range svc.limits {
		if l.RequestsPerWindow <= 0 || l.Window <= 0 {
			return nil, fmt.Errorf("invalid limit for class %s", class)
		}
	}
	return svc, nil
}

// CheckIP consumes one request from the client's bucket. Classes without a
// configured limit are not limited.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.limits[class]
	if !ok {
		return &models.RateLimitResult{Allowed: true, Bypassed: true}, nil
	}

	now := requestcontext.Now(ctx)
	if s.allowlisted(ip) {
		s.metrics.RecordAllowlistBypass()
		return &models.RateLimitResult{
			Allowed:   true,
			Bypassed:  true,
			Limit:     limit.RequestsPerWindow,
			Remaining: limit.RequestsPerWindow,
			ResetAt:   now.Add(limit.Window),
		}, nil
	}

	result, err := s.buckets.Allow(ctx, models.NewIPKey(ip, class), limit.RequestsPerWindow, limit.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "rejected"
		s.logger.WarnContext(ctx, "ip rate limit exceeded",
			"request_id", requestcontext.RequestID(ctx),
			"ip_prefix", models.AnonymizeIP(ip),
			"endpoint_class", class,
			"limit", limit.RequestsPerWindow,
			"window_seconds", int(limit.Window.Seconds()),
		)
	}
	s.metrics.IncrementDecision(string(class), outcome)
	return result, nil
}

func (s *Service) allowlisted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range s.allowlist {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
