package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rechtsbron/internal/sources"
)

// DefaultLimit caps results per category when callers pass no limit.
const DefaultLimit = 10

// CategoryClient queries one backend for one category.
type CategoryClient struct {
	category   Category
	backend    Backend
	booster    *Booster
	classifier Classifier
	logger     *slog.Logger
}

// ClientOption configures a CategoryClient.
type ClientOption func(*CategoryClient)

// WithClassifier overrides the source classifier used to tag results.
func WithClassifier(c Classifier) ClientOption {
	return func(cc *CategoryClient) {
		cc.classifier = c
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cc *CategoryClient) {
		cc.logger = logger
	}
}

// NewCategoryClient binds backend to category. A nil booster sends queries
// unchanged.
func NewCategoryClient(category Category, backend Backend, booster *Booster, opts ...ClientOption) *CategoryClient {
	c := &CategoryClient{
		category:   category,
		backend:    backend,
		booster:    booster,
		classifier: sources.New(sources.DefaultTable),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Category returns the category this client serves.
func (c *CategoryClient) Category() Category {
	return c.category
}

// BoostedQuery returns the query as it will be sent to the backend.
func (c *CategoryClient) BoostedQuery(query string) string {
	if c.booster == nil {
		return strings.TrimSpace(query)
	}
	return c.booster.Boost(c.category, query)
}

// Search runs query against the backend. It fails soft: on any error the
// returned slice is empty (never nil) and the error says why.
func (c *CategoryClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := c.BoostedQuery(query)
	if q == "" {
		return []SearchResult{}, nil
	}
	if c.backend == nil {
		return []SearchResult{}, NewError(ErrorConfiguration, c.category, "no backend", ErrNotConfigured)
	}

	raw, err := c.backend.Search(ctx, Request{Query: q, Category: c.category, Limit: limit})
	if err != nil {
		return []SearchResult{}, c.normalizeError(ctx, err)
	}

	results := make([]SearchResult, 0, min(len(raw), limit))
	for _, r := range raw {
		r.Title = strings.TrimSpace(r.Title)
		r.Link = strings.TrimSpace(r.Link)
		r.Snippet = strings.TrimSpace(r.Snippet)
		if r.Link == "" {
			continue
		}
		if r.Title == "" {
			r.Title = r.Link
		}
		if r.SourceName == "" {
			r.SourceName = c.classifier.Classify(r.Link)
		}
		r.Category = c.category
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (c *CategoryClient) normalizeError(ctx context.Context, err error) error {
	var se *Error
	if errors.As(err, &se) {
		if se.Category != "" {
			return se
		}
		tagged := *se
		tagged.Category = c.category
		return &tagged
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(ErrorTimeout, c.category, "backend timed out", err)
	}
	if errors.Is(err, ErrNotConfigured) {
		return NewError(ErrorConfiguration, c.category, "backend not configured", err)
	}
	return NewError(ErrorTransient, c.category, "backend failed", err)
}
