// Package httpx is the outbound HTTP client used by the web search backends.
// It adds a host allowlist, retry with jittered backoff, a token-bucket rate
// limit and a circuit breaker around net/http.
package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rechtsbron/pkg/platform/circuit"
)

var (
	ErrCircuitOpen    = errors.New("circuit open")
	ErrHostNotAllowed = errors.New("host not allowed")
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Name               string
	Timeout            time.Duration
	Retry              int
	BackoffMin         time.Duration
	BackoffMax         time.Duration
	HostAllowlist      []string
	MaxConsecutiveFail int
	CircuitOpen        time.Duration
	// RequestsPerSecond limits outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
	// Transport overrides the round tripper (tests).
	Transport http.RoundTripper
}

// Client wraps http.Client with the guards described in the package doc.
type Client struct {
	hc      *http.Client
	opt     Options
	breaker *circuit.Breaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a client from opt.
func New(opt Options) *Client {
	if opt.Name == "" {
		opt.Name = "httpx"
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 5 * time.Second
	}
	if opt.Retry < 0 {
		opt.Retry = 0
	}
	if opt.BackoffMin <= 0 {
		opt.BackoffMin = 100 * time.Millisecond
	}
	if opt.BackoffMax <= 0 {
		opt.BackoffMax = 800 * time.Millisecond
	}
	if opt.MaxConsecutiveFail <= 0 {
		opt.MaxConsecutiveFail = 5
	}
	if opt.CircuitOpen <= 0 {
		opt.CircuitOpen = 30 * time.Second
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := opt.Transport
	if transport == nil {
		transport = &http.Transport{
			DialContext:     (&net.Dialer{Timeout: opt.Timeout}).DialContext,
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:    100,
			IdleConnTimeout: 30 * time.Second,
		}
	}

	c := &Client{
		hc:  &http.Client{Timeout: opt.Timeout, Transport: transport},
		opt: opt,
		breaker: circuit.New(opt.Name,
			circuit.WithFailureThreshold(opt.MaxConsecutiveFail),
			circuit.WithCooldown(opt.CircuitOpen),
		),
		logger: logger,
	}
	if opt.RequestsPerSecond > 0 {
		burst := opt.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opt.RequestsPerSecond), burst)
	}
	return c
}

// Breaker exposes the circuit breaker state.
func (c *Client) Breaker() *circuit.Breaker {
	return c.breaker
}

// Do sends req. Network errors and 5xx answers are retried; any other status
// is returned to the caller as is. The request context bounds waiting for the
// rate limiter and for backoff sleeps.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !c.allowed(req.URL.Hostname()) {
		c.logger.WarnContext(ctx, "blocked outbound host", "client", c.opt.Name, "host", req.URL.Hostname())
		return nil, ErrHostNotAllowed
	}
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= c.opt.Retry; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoffJitter(c.opt.BackoffMin, c.opt.BackoffMax)); err != nil {
				lastErr = err
				break
			}
			if err := rewind(req); err != nil {
				lastErr = err
				break
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		resp, err := c.hc.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			if _, change := c.breaker.RecordSuccess(); change.Closed {
				c.logger.InfoContext(ctx, "circuit closed", "client", c.opt.Name)
			}
			return resp, nil
		}
		if err == nil {
			_ = resp.Body.Close()
			err = fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		lastErr = err
		c.logger.WarnContext(ctx, "outbound request failed",
			"client", c.opt.Name,
			"host", req.URL.Hostname(),
			"attempt", attempt+1,
			"max_attempts", c.opt.Retry+1,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "circuit opened", "client", c.opt.Name, "cooldown", c.opt.CircuitOpen)
	}
	return nil, lastErr
}

func (c *Client) allowed(host string) bool {
	if len(c.opt.HostAllowlist) == 0 {
		return true
	}
	for _, pattern := range c.opt.HostAllowlist {
		if matchHost(pattern, host) {
			return true
		}
	}
	return false
}

func matchHost(pattern, host string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "*" || strings.EqualFold(pattern, host) {
		return true
	}
	if suf, ok := strings.CutPrefix(pattern, "*."); ok {
		host = strings.ToLower(host)
		suf = strings.ToLower(suf)
		return host == suf || strings.HasSuffix(host, "."+suf)
	}
	return false
}

func rewind(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}
