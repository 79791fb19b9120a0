// Package app assembles the engine from configuration. Both the HTTP server
// and the CLI build their dependencies here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"rechtsbron/internal/grounding"
	"rechtsbron/internal/grounding/handler"
	groundingmetrics "rechtsbron/internal/grounding/metrics"
	"rechtsbron/internal/knowledge"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/platform/config"
	"rechtsbron/internal/platform/httpx"
	"rechtsbron/internal/platform/metrics"
	"rechtsbron/internal/platform/redis"
	ratelimitmetrics "rechtsbron/internal/ratelimit/metrics"
	ratelimitmw "rechtsbron/internal/ratelimit/middleware"
	"rechtsbron/internal/ratelimit/models"
	"rechtsbron/internal/ratelimit/service/requestlimit"
	"rechtsbron/internal/ratelimit/store/bucket"
	"rechtsbron/internal/search"
	"rechtsbron/internal/search/backend/index"
	"rechtsbron/internal/search/backend/websearch"
	searchmetrics "rechtsbron/internal/search/metrics"
	"rechtsbron/internal/sources"
	"rechtsbron/internal/terms"
	httptransport "rechtsbron/internal/transport/http"
)

// App holds the assembled engine.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Knowledge  *knowledge.Registry
	Classifier *sources.Classifier
	Analyzer   *legalcontext.Analyzer
	Extractor  *terms.Extractor
	Aggregator *search.Aggregator
	Service    *grounding.Service

	redis *redis.Client
}

// New builds the engine. Redis is only dialled by Router, so CLI commands
// never need it.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := knowledge.Default()
	if cfg.Knowledge.Path != "" {
		loaded, err := knowledge.Load(cfg.Knowledge.Path)
		if err != nil {
			return nil, fmt.Errorf("load knowledge: %w", err)
		}
		reg = loaded
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	classifier := sources.New(sources.DefaultTable)
	booster := search.NewBooster(reg)

	clients := make([]*search.CategoryClient, 0, len(search.Categories))
	for _, cat := range search.Categories {
		clients = append(clients, search.NewCategoryClient(cat, backend, booster,
			search.WithClassifier(classifier),
			search.WithClientLogger(logger),
		))
	}
	aggregator := search.NewAggregator(clients,
		search.WithTimeout(cfg.Search.BranchTimeout),
		search.WithLimit(cfg.Search.CategoryLimit),
		search.WithLogger(logger),
		search.WithMetrics(searchmetrics.NewWithRegisterer(m.Registry)),
		search.WithAggregatorClassifier(classifier),
	)

	counter, err := grounding.CounterFor(cfg.Grounding.Encoding)
	if err != nil {
		logger.Warn("token encoding unavailable, using character estimate",
			"encoding", cfg.Grounding.Encoding,
			"error", err,
		)
	}
	formatter := grounding.NewFormatter(
		grounding.WithSnippetLength(cfg.Grounding.SnippetLength),
		grounding.WithTokenBudget(cfg.Grounding.TokenBudget, counter),
	)

	analyzer := legalcontext.NewAnalyzer(reg)
	extractor := terms.NewExtractor(reg)
	service := grounding.NewService(analyzer, aggregator, extractor,
		grounding.WithLogger(logger),
		grounding.WithMetrics(groundingmetrics.NewWithRegisterer(m.Registry)),
		grounding.WithFormatter(formatter),
		grounding.WithCounter(counter),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Knowledge:  reg,
		Classifier: classifier,
		Analyzer:   analyzer,
		Extractor:  extractor,
		Aggregator: aggregator,
		Service:    service,
	}, nil
}

func newBackend(cfg config.Config, logger *slog.Logger) (search.Backend, error) {
	if cfg.Search.Provider == "index" {
		if cfg.Search.IndexPath == "" {
			idx := index.Default()
			logger.Info("search index loaded", "path", "embedded", "entries", idx.Len())
			return idx, nil
		}
		idx, err := index.Load(cfg.Search.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("load search index: %w", err)
		}
		logger.Info("search index loaded", "path", cfg.Search.IndexPath, "entries", idx.Len())
		return idx, nil
	}

	provider := websearch.Provider(cfg.Search.Provider)
	endpoint := cfg.Search.Endpoint
	if endpoint == "" {
		endpoint = websearch.DefaultEndpoint(provider)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}

	client := httpx.New(httpx.Options{
		Name:               "search-" + cfg.Search.Provider,
		Timeout:            cfg.HTTPX.Timeout,
		Retry:              cfg.HTTPX.Retry,
		BackoffMin:         cfg.HTTPX.BackoffMin,
		BackoffMax:         cfg.HTTPX.BackoffMax,
		HostAllowlist:      []string{u.Hostname()},
		MaxConsecutiveFail: cfg.HTTPX.MaxConsecutiveFail,
		CircuitOpen:        cfg.HTTPX.CircuitOpen,
		RequestsPerSecond:  cfg.HTTPX.RequestsPerSecond,
		Burst:              cfg.HTTPX.Burst,
		Logger:             logger,
	})
	backend, err := websearch.New(websearch.Config{
		Provider: provider,
		Endpoint: cfg.Search.Endpoint,
		APIKey:   cfg.Search.APIKey,
		EngineID: cfg.Search.EngineID,
		Market:   cfg.Search.Market,
	}, client)
	if err != nil {
		return nil, err
	}
	if !backend.Configured() {
		logger.Warn("search credentials missing, every category will come back empty",
			"provider", cfg.Search.Provider,
		)
	}
	return backend, nil
}

// Router builds the HTTP surface with rate limiting. The Redis bucket store is
// used when configured, with the in-memory store as its fallback.
func (a *App) Router(ctx context.Context) (http.Handler, error) {
	rl, err := a.rateLimiter(ctx)
	if err != nil {
		return nil, err
	}

	var health func(context.Context) error
	if a.redis != nil {
		health = a.redis.Health
	}

	return httptransport.NewRouter(httptransport.Deps{
		Handler:        handler.New(a.Service, a.Classifier, a.Logger),
		RateLimit:      rl,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		RequestTimeout: a.Config.Server.RequestTimeout,
		Health:         health,
	}), nil
}

func (a *App) rateLimiter(ctx context.Context) (*ratelimitmw.Middleware, error) {
	cfg := a.Config.RateLimit
	m := ratelimitmetrics.NewWithRegisterer(a.Metrics.Registry)

	opts := []requestlimit.Option{
		requestlimit.WithLogger(a.Logger),
		requestlimit.WithMetrics(m),
		requestlimit.WithLimit(models.ClassSearch, models.Limit{RequestsPerWindow: cfg.SearchRequests, Window: cfg.Window}),
		requestlimit.WithLimit(models.ClassRead, models.Limit{RequestsPerWindow: cfg.ReadRequests, Window: cfg.Window}),
		requestlimit.WithAllowlist(cfg.Allowlist),
	}

	memory, err := requestlimit.New(bucket.NewInMemoryBucketStore(), opts...)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	mwOpts := []ratelimitmw.Option{
		ratelimitmw.WithDisabled(cfg.Disabled),
		ratelimitmw.WithMetrics(m),
	}

	if cfg.Disabled || a.Config.Redis.URL == "" {
		return ratelimitmw.New(memory, a.Logger, mwOpts...), nil
	}

	client, err := redis.New(ctx, a.Config.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = client

	primary, err := requestlimit.New(bucket.NewRedisBucketStore(client), opts...)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	a.Logger.Info("rate limiting backed by redis")
	mwOpts = append(mwOpts, ratelimitmw.WithFallback(memory))
	return ratelimitmw.New(primary, a.Logger, mwOpts...), nil
}

// Close releases external connections.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
