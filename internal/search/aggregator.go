package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rechtsbron/internal/search/metrics"
	"rechtsbron/internal/sources"
	pstrings "rechtsbron/pkg/platform/strings"
	"rechtsbron/pkg/requestcontext"
)

// DefaultBranchTimeout bounds a single category search.
const DefaultBranchTimeout = 8 * time.Second

var tracer = otel.Tracer("rechtsbron/search")

// Aggregator fans a query out to every category client and merges the answers.
type Aggregator struct {
	clients    map[Category]*CategoryClient
	classifier Classifier
	timeout    time.Duration
	limit      int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-branch timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLimit sets the per-category cap.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func WithAggregatorClassifier(c Classifier) Option {
	return func(a *Aggregator) {
		a.classifier = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) {
		a.tracer = t
	}
}

// NewAggregator registers one client per category. A later client for the
// same category replaces an earlier one; categories without a client always
// come back empty.
func NewAggregator(clients []*CategoryClient, opts ...Option) *Aggregator {
	a := &Aggregator{
		clients:    make(map[Category]*CategoryClient, len(clients)),
		classifier: sources.New(sources.DefaultTable),
		timeout:    DefaultBranchTimeout,
		limit:      DefaultLimit,
		logger:     slog.Default(),
		tracer:     tracer,
	}
	for _, c := range clients {
		if c != nil {
			a.clients[c.Category()] = c
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnrichQuery appends the extra terms that the query does not already contain
// (case-insensitively).
func EnrichQuery(query string, extraTerms []string) string {
	parts := []string{pstrings.CollapseSpace(query)}
	current := parts[0]
	for _, term := range pstrings.DedupeFold(extraTerms) {
		term = pstrings.CollapseSpace(term)
		if pstrings.ContainsFold(current, term) {
			continue
		}
		parts = append(parts, term)
		current += " " + term
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

type branchResult struct {
	results []SearchResult
	err     error
	took    time.Duration
}

// Aggregate searches every category concurrently. It never fails: branches
// that error or exceed the timeout contribute an empty list and are recorded
// in Failures.
func (a *Aggregator) Aggregate(ctx context.Context, query string, extraTerms []string) *AggregatedResults {
	if strings.TrimSpace(query) == "" {
		return NewAggregatedResults("")
	}
	enriched := EnrichQuery(query, extraTerms)
	out := NewAggregatedResults(enriched)

	ctx, span := a.tracer.Start(ctx, "search.Aggregate",
		trace.WithAttributes(attribute.Int("extra_terms", len(extraTerms))),
	)
	defer span.End()

	start := time.Now()
	branches := make([]branchResult, len(Categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range Categories {
		client, ok := a.clients[cat]
		if !ok {
			branches[i] = branchResult{err: NewError(ErrorConfiguration, cat, "no client registered", ErrNotConfigured)}
			continue
		}
		g.Go(func() error {
			branches[i] = a.runBranch(gctx, client, enriched)
			return nil
		})
	}
	// Branches never return errors; failures travel in branchResult.
	_ = g.Wait()

	a.merge(ctx, out, branches)

	took := time.Since(start)
	a.metrics.ObserveAggregateLatency(took)
	span.SetAttributes(
		attribute.Int("results", out.Total()),
		attribute.Int("failed_categories", len(out.Failures)),
	)
	span.SetStatus(codes.Ok, "")

	a.logger.InfoContext(ctx, "search aggregated",
		"request_id", requestcontext.RequestID(ctx),
		"results", out.Total(),
		"failed_categories", out.FailedCategories(),
		"duration_ms", took.Milliseconds(),
	)
	return out
}

// runBranch executes one category search under its own deadline. The branch
// is abandoned when the deadline fires even if the backend ignores ctx.
func (a *Aggregator) runBranch(ctx context.Context, client *CategoryClient, query string) branchResult {
	cat := client.Category()
	ctx, span := a.tracer.Start(ctx, "search.Branch",
		trace.WithAttributes(attribute.String("category", cat.String())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan branchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- branchResult{err: NewError(ErrorTransient, cat, "backend panicked", fmt.Errorf("%v", r))}
			}
		}()
		// Over-fetch so cross-category dedup in merge can still fill the cap.
		res, err := client.Search(ctx, query, 2*a.limit)
		done <- branchResult{results: res, err: err}
	}()

	var br branchResult
	select {
	case br = <-done:
	case <-ctx.Done():
		br = branchResult{err: NewError(ErrorTimeout, cat, "branch abandoned", ctx.Err())}
	}
	br.took = time.Since(start)

	a.metrics.ObserveBranchLatency(cat.String(), br.took)
	if br.err != nil {
		br.results = nil
		span.RecordError(br.err)
		span.SetStatus(codes.Error, string(KindOf(br.err)))
	} else {
		span.SetAttributes(attribute.Int("results", len(br.results)))
	}
	return br
}

// merge tags, canonicalizes, deduplicates and caps branch results in category
// precedence order.
func (a *Aggregator) merge(ctx context.Context, out *AggregatedResults, branches []branchResult) {
	seen := make(map[string]struct{})
	duplicates := 0

	for i, cat := range Categories {
		br := branches[i]
		if br.err != nil {
			out.Failures[cat] = br.err
			a.metrics.IncrementOutcome(cat.String(), string(KindOf(br.err)))
			a.logger.WarnContext(ctx, "category search failed",
				"request_id", requestcontext.RequestID(ctx),
				"category", cat,
				"kind", KindOf(br.err),
				"duration_ms", br.took.Milliseconds(),
				"error", br.err,
			)
			continue
		}

		kept := make([]SearchResult, 0, len(br.results))
		for _, r := range br.results {
			link := sources.Canonical(r.Link)
			if link == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				duplicates++
				continue
			}
			seen[link] = struct{}{}
			r.Link = link
			r.Category = cat
			if r.SourceName == "" {
				r.SourceName = a.classifier.Classify(link)
			}
			kept = append(kept, r)
		}
		if len(kept) > a.limit {
			kept = kept[:a.limit]
		}
		out.Categories[cat] = kept

		outcome := "ok"
		if len(kept) == 0 {
			outcome = "empty"
		}
		a.metrics.IncrementOutcome(cat.String(), outcome)
		a.metrics.AddResults(cat.String(), len(kept))
	}
	a.metrics.AddDuplicates(duplicates)
}
