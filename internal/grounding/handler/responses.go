package handler

import (
	"time"

	"rechtsbron/internal/grounding"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
)

// SearchResponse carries the aggregated results and their rendered block.
type SearchResponse struct {
	Query            string                                    `json:"query"`
	Categories       map[search.Category][]search.SearchResult `json:"categories"`
	FailedCategories []search.Category                         `json:"failed_categories"`
	Context          string                                    `json:"context"`
}

// GroundingResponse is the HTTP response for POST /v1/grounding.
type GroundingResponse struct {
	Analysis   legalcontext.Analysis `json:"analysis"`
	Search     SearchResponse        `json:"search"`
	ExtraTerms []string              `json:"extra_terms"`
	Context    string                `json:"context"`
	Stats      StatsResponse         `json:"stats"`
	BuiltAt    time.Time             `json:"built_at"`
}

// StatsResponse is the statistics portion of a grounding response.
type StatsResponse struct {
	TotalResults     int               `json:"total_results"`
	FailedCategories []search.Category `json:"failed_categories"`
	TrimmedResults   int               `json:"trimmed_results"`
	Tokens           int               `json:"tokens"`
	DurationMS       int64             `json:"duration_ms"`
}

// TermsResponse is the HTTP response for POST /v1/terms.
type TermsResponse struct {
	Terms []string `json:"terms"`
}

// ClassifyResponse is the HTTP response for GET /v1/sources/classify.
type ClassifyResponse struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// FromResults converts aggregated results to a response.
func FromResults(results *search.AggregatedResults, text string) SearchResponse {
	resp := SearchResponse{
		Categories:       make(map[search.Category][]search.SearchResult, len(search.Categories)),
		FailedCategories: results.FailedCategories(),
		Context:          text,
	}
	if results != nil {
		resp.Query = results.Query
	}
	for _, c := range search.Categories {
		resp.Categories[c] = results.Get(c)
	}
	return resp
}

// FromResult converts a grounding result to an HTTP response.
func FromResult(res *grounding.Result) *GroundingResponse {
	return &GroundingResponse{
		Analysis:   res.Analysis,
		Search:     FromResults(res.Results, ""),
		ExtraTerms: res.ExtraTerms,
		Context:    res.Context,
		Stats: StatsResponse{
			TotalResults:     res.Stats.TotalResults,
			FailedCategories: res.Stats.FailedCategories,
			TrimmedResults:   res.Stats.TrimmedResults,
			Tokens:           res.Stats.Tokens,
			DurationMS:       res.Stats.Duration.Milliseconds(),
		},
		BuiltAt: res.BuiltAt,
	}
}
