// Package config reads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Log       Log
	Knowledge Knowledge
	Search    Search
	Grounding Grounding
	HTTPX     HTTPX
	RateLimit RateLimit
	Redis     RedisConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Log struct {
	Level  string
	Format string
}

// Knowledge points at an optional YAML file replacing the embedded registry.
type Knowledge struct {
	Path string
}

// Search configures the category backends and the aggregator.
type Search struct {
	// Provider is google, bing or index.
	Provider      string
	APIKey        string
	EngineID      string
	Endpoint      string
	Market        string
	// IndexPath replaces the embedded curated index when set.
	IndexPath     string
	BranchTimeout time.Duration
	CategoryLimit int
}

// Grounding configures the rendered context block.
type Grounding struct {
	SnippetLength int
	TokenBudget   int
	// Encoding is a tiktoken encoding name; empty uses the character estimate.
	Encoding string
}

// HTTPX configures the outbound HTTP client used by web search backends.
type HTTPX struct {
	Timeout            time.Duration
	Retry              int
	BackoffMin         time.Duration
	BackoffMax         time.Duration
	MaxConsecutiveFail int
	CircuitOpen        time.Duration
	RequestsPerSecond  float64
	Burst              int
}

// RateLimit configures per-IP limiting at the HTTP edge.
type RateLimit struct {
	Disabled       bool
	SearchRequests int
	ReadRequests   int
	Window         time.Duration
	Allowlist      []string
}

// RedisConfig enables the Redis bucket store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

type env struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (e *env) text(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) integer(key string, def int) int {
	raw := e.text(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s: expected a non-negative integer, got %q", key, raw))
		return def
	}
	return v
}

func (e *env) number(key string, def float64) float64 {
	raw := e.text(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s: expected a non-negative number, got %q", key, raw))
		return def
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.text(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s: expected a duration such as 5s, got %q", key, raw))
		return def
	}
	return v
}

func (e *env) flag(key string, def bool) bool {
	raw := e.text(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: expected true or false, got %q", key, raw))
		return def
	}
	return v
}

func (e *env) list(key string) []string {
	raw := e.text(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	e := &env{lookup: lookup}

	cfg := Config{
		Server: Server{
			Addr:            e.text("RECHTSBRON_ADDR", ":8080"),
			RequestTimeout:  e.duration("RECHTSBRON_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: e.duration("RECHTSBRON_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: Log{
			Level:  strings.ToLower(e.text("LOG_LEVEL", "info")),
			Format: strings.ToLower(e.text("LOG_FORMAT", "json")),
		},
		Knowledge: Knowledge{
			Path: e.text("KNOWLEDGE_PATH", ""),
		},
		Search: Search{
			Provider:      strings.ToLower(e.text("SEARCH_PROVIDER", "index")),
			APIKey:        e.text("SEARCH_API_KEY", ""),
			EngineID:      e.text("SEARCH_ENGINE_ID", ""),
			Endpoint:      e.text("SEARCH_ENDPOINT", ""),
			Market:        e.text("SEARCH_MARKET", "nl-NL"),
			IndexPath:     e.text("SEARCH_INDEX_PATH", ""),
			BranchTimeout: e.duration("SEARCH_TIMEOUT", 8*time.Second),
			CategoryLimit: e.integer("SEARCH_CATEGORY_LIMIT", 10),
		},
		Grounding: Grounding{
			SnippetLength: e.integer("GROUNDING_SNIPPET_LENGTH", 200),
			TokenBudget:   e.integer("GROUNDING_TOKEN_BUDGET", 0),
			Encoding:      e.text("GROUNDING_TOKEN_ENCODING", ""),
		},
		HTTPX: HTTPX{
			Timeout:            e.duration("HTTPX_TIMEOUT", 5*time.Second),
			Retry:              e.integer("HTTPX_RETRY", 2),
			BackoffMin:         e.duration("HTTPX_BACKOFF_MIN", 100*time.Millisecond),
			BackoffMax:         e.duration("HTTPX_BACKOFF_MAX", 800*time.Millisecond),
			MaxConsecutiveFail: e.integer("HTTPX_MAX_CONSECUTIVE_FAIL", 5),
			CircuitOpen:        e.duration("HTTPX_CIRCUIT_OPEN", 30*time.Second),
			RequestsPerSecond:  e.number("HTTPX_RPS", 5),
			Burst:              e.integer("HTTPX_BURST", 5),
		},
		RateLimit: RateLimit{
			Disabled:       e.flag("RATE_LIMIT_DISABLED", false),
			SearchRequests: e.integer("RATE_LIMIT_REQUESTS", 30),
			ReadRequests:   e.integer("RATE_LIMIT_READ_REQUESTS", 120),
			Window:         e.duration("RATE_LIMIT_WINDOW", time.Minute),
			Allowlist:      e.list("RATE_LIMIT_ALLOWLIST"),
		},
		Redis: RedisConfig{
			URL:          e.text("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	switch cfg.Search.Provider {
	case "google", "bing", "index":
	default:
		e.errs = append(e.errs, fmt.Sprintf("SEARCH_PROVIDER: expected google, bing or index, got %q", cfg.Search.Provider))
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		e.errs = append(e.errs, fmt.Sprintf("LOG_FORMAT: expected json or text, got %q", cfg.Log.Format))
	}
	if cfg.Search.CategoryLimit == 0 {
		e.errs = append(e.errs, "SEARCH_CATEGORY_LIMIT: must be positive")
	}

	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}
	return cfg, nil
}
