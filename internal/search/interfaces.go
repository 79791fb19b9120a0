package search

import "context"

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

// Backend is one external search surface: a web search API or a local index.
// Implementations parse and validate their upstream response and return typed
// results only.
type Backend interface {
	Search(ctx context.Context, req Request) ([]SearchResult, error)
}

// Classifier labels a result link with its publisher.
type Classifier interface {
	Classify(rawURL string) string
}
