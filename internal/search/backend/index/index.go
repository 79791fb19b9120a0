// Package index is a search backend over a curated JSON file of official
// legal sources. It scores entries by keyword overlap and needs no network.
package index

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"rechtsbron/internal/search"
	"rechtsbron/internal/sources"
	"rechtsbron/pkg/platform/sentinel"
)

// Entry is one document in the index file.
type Entry struct {
	Title    string          `json:"title"`
	Link     string          `json:"link"`
	Snippet  string          `json:"snippet"`
	Category search.Category `json:"category"`
	Keywords []string        `json:"keywords"`
}

type document struct {
	Entry
	host     string
	title    map[string]struct{}
	keywords map[string]struct{}
	snippet  map[string]struct{}
	text     string
}

// Index implements search.Backend over an in-memory document list.
type Index struct {
	docs []document
}

//go:embed curated.json
var curatedJSON []byte

var (
	defaultOnce sync.Once
	defaultIdx  *Index
)

// Default returns the curated index compiled into the binary. It is read-only
// and safe to share.
func Default() *Index {
	defaultOnce.Do(func() {
		idx, err := Parse(curatedJSON)
		if err != nil {
			panic(fmt.Sprintf("embedded index file is invalid: %v", err))
		}
		defaultIdx = idx
	})
	return defaultIdx
}

// Load reads an index file.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("index file %s: %w", path, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an index document.
func Parse(data []byte) (*Index, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return New(entries)
}

// New validates entries and builds the index. Entries keep their file order,
// which breaks score ties.
func New(entries []Entry) (*Index, error) {
	idx := &Index{docs: make([]document, 0, len(entries))}
	for i, e := range entries {
		e.Title = strings.TrimSpace(e.Title)
		e.Link = strings.TrimSpace(e.Link)
		if e.Title == "" || e.Link == "" {
			return nil, fmt.Errorf("entry %d: title and link are required: %w", i, sentinel.ErrInvalidPayload)
		}
		u, err := url.Parse(e.Link)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("entry %d: invalid link %q: %w", i, e.Link, sentinel.ErrInvalidPayload)
		}
		if e.Category == "" {
			e.Category = search.CategoryAlgemeen
		}
		if !e.Category.IsValid() {
			return nil, fmt.Errorf("entry %d: unknown category %q: %w", i, e.Category, sentinel.ErrInvalidPayload)
		}
		host, _ := sources.Host(e.Link)
		idx.docs = append(idx.docs, document{
			Entry:    e,
			host:     host,
			title:    tokenSet(e.Title),
			keywords: tokenSet(strings.Join(e.Keywords, " ")),
			snippet:  tokenSet(e.Snippet),
			text:     strings.ToLower(e.Title + " " + strings.Join(e.Keywords, " ") + " " + e.Snippet),
		})
	}
	return idx, nil
}

// Len returns the number of documents.
func (x *Index) Len() int {
	return len(x.docs)
}

type scored struct {
	doc   *document
	score int
}

// Search scores documents of the requested category against the query. The
// general category searches every document. site: filters restrict hosts and
// quoted phrases must appear verbatim for their bonus.
func (x *Index) Search(ctx context.Context, req search.Request) ([]search.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := parseQuery(req.Query)
	if len(q.terms) == 0 && len(q.phrases) == 0 {
		return []search.SearchResult{}, nil
	}

	var hits []scored
	for i := range x.docs {
		d := &x.docs[i]
		if req.Category != search.CategoryAlgemeen && d.Category != req.Category {
			continue
		}
		if len(q.sites) > 0 && !matchesSite(d.host, q.sites) {
			continue
		}
		s := score(d, q)
		if s > 0 {
			hits = append(hits, scored{doc: d, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	limit := req.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	out := make([]search.SearchResult, 0, min(len(hits), limit))
	for _, h := range hits {
		out = append(out, search.SearchResult{
			Title:   h.doc.Title,
			Link:    h.doc.Link,
			Snippet: h.doc.Snippet,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func score(d *document, q query) int {
	s := 0
	for _, t := range q.terms {
		if _, ok := d.title[t]; ok {
			s += 3
		}
		if _, ok := d.keywords[t]; ok {
			s += 2
		}
		if _, ok := d.snippet[t]; ok {
			s++
		}
	}
	for _, p := range q.phrases {
		if strings.Contains(d.text, p) {
			s += 5
		}
	}
	return s
}

func matchesSite(host string, sites []string) bool {
	for _, s := range sites {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

type query struct {
	terms   []string
	phrases []string
	sites   []string
}

// parseQuery splits a web-style query into plain terms, "quoted phrases" and
// site: filters.
func parseQuery(raw string) query {
	var q query
	rest := raw
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start+1:], '"')
		if end < 0 {
			break
		}
		phrase := strings.Join(strings.Fields(strings.ToLower(rest[start+1:start+1+end])), " ")
		if phrase != "" {
			q.phrases = append(q.phrases, phrase)
		}
		rest = rest[:start] + " " + rest[start+2+end:]
	}

	var plain []string
	for _, f := range strings.Fields(rest) {
		if site, ok := strings.CutPrefix(strings.ToLower(f), "site:"); ok {
			if site = strings.TrimPrefix(site, "www."); site != "" {
				q.sites = append(q.sites, site)
			}
			continue
		}
		plain = append(plain, f)
	}
	for t := range tokenSet(strings.Join(plain, " ")) {
		q.terms = append(q.terms, t)
	}
	sort.Strings(q.terms)
	return q
}

var stopwords = map[string]struct{}{
	"de": {}, "het": {}, "een": {}, "en": {}, "van": {}, "in": {}, "op": {}, "is": {},
	"te": {}, "dat": {}, "die": {}, "voor": {}, "met": {}, "wat": {}, "mag": {}, "zijn": {},
	"ik": {}, "je": {}, "wil": {}, "of": {}, "over": {}, "bij": {}, "naar": {}, "niet": {},
	"aan": {}, "om": {}, "er": {}, "als": {}, "ook": {}, "wordt": {}, "kan": {}, "hoe": {},
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ':'
	})
	for _, f := range fields {
		f = strings.Trim(f, ":")
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}
