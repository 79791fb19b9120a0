package search

import (
	"fmt"
	"strings"
)

// Category is one fixed partition of the legal source corpus.
type Category string

const (
	CategoryWetten      Category = "wetten"
	CategoryRechtspraak Category = "rechtspraak"
	CategoryTuchtrecht  Category = "tuchtrecht"
	CategoryBoetes      Category = "boetes"
	CategoryAlgemeen    Category = "algemeen"
)

// Categories lists all categories in precedence order. Deduplication across
// categories and rendering both follow this order.
var Categories = []Category{
	CategoryWetten,
	CategoryRechtspraak,
	CategoryTuchtrecht,
	CategoryBoetes,
	CategoryAlgemeen,
}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryWetten, CategoryRechtspraak, CategoryTuchtrecht, CategoryBoetes, CategoryAlgemeen:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// SearchResult is one hit from a category search. Link is the identity key.
type SearchResult struct {
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	Snippet    string   `json:"snippet"`
	SourceName string   `json:"source_name"`
	Category   Category `json:"category"`
}

// Request is what a backend receives for one category.
type Request struct {
	Query    string
	Category Category
	Limit    int
}

// AggregatedResults maps every category to its ordered results. All
// categories are always present.
type AggregatedResults struct {
	Query      string                      `json:"query"`
	Categories map[Category][]SearchResult `json:"categories"`
	// Failures records why a category came back empty. Informational only.
	Failures map[Category]error `json:"-"`
}

// NewAggregatedResults returns results with every category initialised to an
// empty slice.
func NewAggregatedResults(query string) *AggregatedResults {
	r := &AggregatedResults{
		Query:      query,
		Categories: make(map[Category][]SearchResult, len(Categories)),
		Failures:   make(map[Category]error),
	}
	for _, c := range Categories {
		r.Categories[c] = []SearchResult{}
	}
	return r
}

// Get returns the results for c, never nil.
func (r *AggregatedResults) Get(c Category) []SearchResult {
	if r == nil {
		return []SearchResult{}
	}
	if res, ok := r.Categories[c]; ok && res != nil {
		return res
	}
	return []SearchResult{}
}

// Total counts results over all categories.
func (r *AggregatedResults) Total() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Categories {
		n += len(res)
	}
	return n
}

// Empty reports whether no category has results.
func (r *AggregatedResults) Empty() bool {
	return r.Total() == 0
}

// FailedCategories lists categories with a recorded failure in precedence order.
func (r *AggregatedResults) FailedCategories() []Category {
	out := []Category{}
	if r == nil {
		return out
	}
	for _, c := range Categories {
		if r.Failures[c] != nil {
			out = append(out, c)
		}
	}
	return out
}
