// Package grounding combines legal context analysis and source aggregation
// into the text block handed to a language model.
package grounding

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rechtsbron/internal/grounding/metrics"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
	dErrors "rechtsbron/pkg/domain-errors"
	"rechtsbron/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Analyzer classifies a question into legal domains.
type Analyzer interface {
	Analyze(question string) legalcontext.Analysis
}

// Aggregator searches every source category.
type Aggregator interface {
	Aggregate(ctx context.Context, query string, extraTerms []string) *search.AggregatedResults
}

// Extractor pulls article references and law names from text.
type Extractor interface {
	Extract(text string) []string
}

// Request asks for grounding material for a question. DraftAnswer, when set,
// is mined for article references that sharpen the search.
type Request struct {
	Question    string
	DraftAnswer string
}

// Stats summarizes a build.
type Stats struct {
	TotalResults     int               `json:"total_results"`
	FailedCategories []search.Category `json:"failed_categories"`
	TrimmedResults   int               `json:"trimmed_results"`
	Tokens           int               `json:"tokens"`
	Duration         time.Duration     `json:"-"`
}

// Result is everything a caller needs to ground an answer.
type Result struct {
	Analysis   legalcontext.Analysis
	Results    *search.AggregatedResults
	ExtraTerms []string
	Context    string
	Stats      Stats
	BuiltAt    time.Time
}

// Service builds grounding blocks.
type Service struct {
	analyzer   Analyzer
	aggregator Aggregator
	extractor  Extractor
	formatter  *Formatter
	counter    TokenCounter
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Service.
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

func WithFormatter(f *Formatter) Option {
	return func(s *Service) {
		if f != nil {
			s.formatter = f
		}
	}
}

// WithCounter sets the counter used for the token statistics.
func WithCounter(c TokenCounter) Option {
	return func(s *Service) {
		if c != nil {
			s.counter = c
		}
	}
}

func NewService(analyzer Analyzer, aggregator Aggregator, extractor Extractor, opts ...Option) *Service {
	s := &Service{
		analyzer:   analyzer,
		aggregator: aggregator,
		extractor:  extractor,
		formatter:  NewFormatter(),
		counter:    EstimateCounter{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs only the context analysis.
func (s *Service) Analyze(question string) legalcontext.Analysis {
	return s.analyzer.Analyze(question)
}

// Search runs only the aggregation and renders the source block.
func (s *Service) Search(ctx context.Context, query string, extraTerms []string) (*search.AggregatedResults, string) {
	results := s.aggregator.Aggregate(ctx, query, extraTerms)
	return results, s.formatter.Format(results)
}

// Terms extracts legal references from text.
func (s *Service) Terms(text string) []string {
	return s.extractor.Extract(text)
}

// Build analyzes the question and searches the sources concurrently, then
// renders both. Search failures degrade the result; only a blank question or
// a cancelled context produce an error.
func (s *Service) Build(ctx context.Context, req Request) (*Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "question is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled")
	}

	start := time.Now()
	var extra []string
	if req.DraftAnswer != "" {
		extra = s.extractor.Extract(req.DraftAnswer)
	}
	if extra == nil {
		extra = []string{}
	}

	var (
		analysis legalcontext.Analysis
		results  *search.AggregatedResults
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analysis = s.analyzer.Analyze(question)
		return nil
	})
	g.Go(func() error {
		results = s.aggregator.Aggregate(gctx, question, extra)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.metrics.IncrementOutcome("error")
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled")
	}

	text, trimmed := s.formatter.Render(analysis, results)
	res := &Result{
		Analysis:   analysis,
		Results:    results,
		ExtraTerms: extra,
		Context:    text,
		BuiltAt:    requestcontext.Now(ctx),
		Stats: Stats{
			TotalResults:     results.Total(),
			FailedCategories: results.FailedCategories(),
			TrimmedResults:   trimmed,
			Tokens:           s.counter.Count(text),
			Duration:         time.Since(start),
		},
	}
	s.record(ctx, res)
	return res, nil
}

func (s *Service) record(ctx context.Context, res *Result) {
	outcome := "ok"
	if res.Stats.TotalResults == 0 {
		outcome = "no_results"
	}
	s.metrics.IncrementOutcome(outcome)
	for _, id := range res.Analysis.DomainIDs() {
		s.metrics.IncrementDomain(id)
	}
	s.metrics.ObserveBuildLatency(res.Stats.Duration)
	s.metrics.ObserveContextTokens(res.Stats.Tokens)
	s.metrics.AddTrimmed(res.Stats.TrimmedResults)

	s.logger.InfoContext(ctx, "grounding built",
		"request_id", requestcontext.RequestID(ctx),
		"domains", res.Analysis.DomainIDs(),
		"extra_terms", len(res.ExtraTerms),
		"results", res.Stats.TotalResults,
		"failed_categories", res.Stats.FailedCategories,
		"tokens", res.Stats.Tokens,
		"duration_ms", res.Stats.Duration.Milliseconds(),
	)
}
