package models

import (
	"net"
	"strings"
	"time"
)

// EndpointClass groups endpoints that share a limit.
type EndpointClass string

const (
	// ClassSearch covers endpoints that fan out to external search APIs.
	ClassSearch EndpointClass = "search"
	// ClassRead covers local-only endpoints (analysis, term extraction, classification).
	ClassRead EndpointClass = "read"
)

// IsValid checks if the endpoint class is one of the supported values.
func (c EndpointClass) IsValid() bool {
	return c == ClassSearch || c == ClassRead
}

// Limit is a request budget per sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Bypassed   bool      `json:"bypassed,omitempty"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the API response when a limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// NewIPKey builds the bucket key for an IP and endpoint class.
func NewIPKey(ip string, class EndpointClass) string {
	return "rl:ip:" + SanitizeKeySegment(ip) + ":" + string(class)
}

// SanitizeKeySegment escapes the key delimiter so that user-controlled
// segments cannot address neighbouring buckets. IPv6 colons are escaped too.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// AnonymizeIP masks the host part of an address for logging: the last octet
// of IPv4, everything after the /48 prefix of IPv6.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
