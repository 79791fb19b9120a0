// Package websearch queries a general web search API (Google Programmable
// Search or Bing Web Search) and turns its JSON answer into search results.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rechtsbron/internal/search"
)

// Provider selects the upstream API dialect.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderBing   Provider = "bing"
)

const (
	defaultGoogleEndpoint = "https://www.googleapis.com/customsearch/v1"
	defaultBingEndpoint   = "https://api.bing.microsoft.com/v7.0/search"

	// googleMaxNum is the largest page size the Custom Search API accepts.
	googleMaxNum = 10
	maxBodyBytes = 2 << 20
)

// DefaultEndpoint returns the public API endpoint of p, or "" for an unknown
// provider.
func DefaultEndpoint(p Provider) string {
	switch p {
	case ProviderGoogle:
		return defaultGoogleEndpoint
	case ProviderBing:
		return defaultBingEndpoint
	default:
		return ""
	}
}

// Doer is satisfied by *http.Client and *httpx.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the credentials for one provider.
type Config struct {
	Provider Provider
	Endpoint string
	APIKey   string
	// EngineID is the Google "cx" parameter.
	EngineID string
	Market   string
}

// Backend implements search.Backend over a web search API.
type Backend struct {
	cfg    Config
	client Doer
}

// New creates a backend. Missing credentials are not an error here: every
// search then reports a configuration error so the category comes back empty.
func New(cfg Config, client Doer) (*Backend, error) {
	fallback := DefaultEndpoint(cfg.Provider)
	if fallback == "" {
		return nil, fmt.Errorf("provider %q: %w", cfg.Provider, search.ErrUnknownBackend)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fallback
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{cfg: cfg, client: client}, nil
}

// Configured reports whether the credentials needed by the provider are set.
func (b *Backend) Configured() bool {
	if b.cfg.APIKey == "" {
		return false
	}
	return b.cfg.Provider != ProviderGoogle || b.cfg.EngineID != ""
}

// Search sends req.Query to the provider.
func (b *Backend) Search(ctx context.Context, req search.Request) ([]search.SearchResult, error) {
	if !b.Configured() {
		return nil, search.NewError(search.ErrorConfiguration, req.Category,
			fmt.Sprintf("%s credentials missing", b.cfg.Provider), search.ErrNotConfigured)
	}

	httpReq, err := b.newRequest(ctx, req)
	if err != nil {
		return nil, search.NewError(search.ErrorConfiguration, req.Category, "build request", err)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, search.NewError(search.ErrorTimeout, req.Category, "request timed out", err)
		}
		return nil, search.NewError(search.ErrorTransient, req.Category, "request failed", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, req.Category); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, search.NewError(search.ErrorTransient, req.Category, "read response", err)
	}

	var items []item
	switch b.cfg.Provider {
	case ProviderGoogle:
		items, err = decodeGoogle(body)
	case ProviderBing:
		items, err = decodeBing(body)
	}
	if err != nil {
		return nil, search.NewError(search.ErrorBadData, req.Category, "decode response", err)
	}
	return toResults(items, req.Limit), nil
}

func (b *Backend) newRequest(ctx context.Context, req search.Request) (*http.Request, error) {
	u, err := url.Parse(b.cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	q := u.Query()
	q.Set("q", req.Query)
	switch b.cfg.Provider {
	case ProviderGoogle:
		q.Set("key", b.cfg.APIKey)
		q.Set("cx", b.cfg.EngineID)
		q.Set("num", strconv.Itoa(min(limit, googleMaxNum)))
		q.Set("lr", "lang_nl")
	case ProviderBing:
		q.Set("count", strconv.Itoa(limit))
		q.Set("mkt", b.market())
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if b.cfg.Provider == ProviderBing {
		httpReq.Header.Set("Ocp-Apim-Subscription-Key", b.cfg.APIKey)
	}
	return httpReq, nil
}

func (b *Backend) market() string {
	if b.cfg.Market != "" {
		return b.cfg.Market
	}
	return "nl-NL"
}

func statusError(status int, category search.Category) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return search.NewError(search.ErrorConfiguration, category,
			fmt.Sprintf("upstream rejected credentials (status %d)", status), search.ErrNotConfigured)
	default:
		return search.NewError(search.ErrorTransient, category,
			fmt.Sprintf("upstream status %d", status), nil)
	}
}

// item is the provider-neutral shape of one hit.
type item struct {
	Title   string
	Link    string
	Snippet string
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

func decodeGoogle(body []byte) ([]item, error) {
	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, err
	}
	out := make([]item, 0, len(gr.Items))
	for _, it := range gr.Items {
		out = append(out, item{Title: it.Title, Link: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}

func decodeBing(body []byte) ([]item, error) {
	var br bingResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, err
	}
	out := make([]item, 0, len(br.WebPages.Value))
	for _, v := range br.WebPages.Value {
		out = append(out, item{Title: v.Name, Link: v.URL, Snippet: v.Snippet})
	}
	return out, nil
}

// toResults keeps items with an absolute http(s) link, in upstream order.
func toResults(items []item, limit int) []search.SearchResult {
	out := make([]search.SearchResult, 0, len(items))
	for _, it := range items {
		link := strings.TrimSpace(it.Link)
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		out = append(out, search.SearchResult{
			Title:   strings.TrimSpace(it.Title),
			Link:    link,
			Snippet: strings.Join(strings.Fields(it.Snippet), " "),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
