package search

import (
	"strings"

	"rechtsbron/internal/knowledge"
	pstrings "rechtsbron/pkg/platform/strings"
)

// Booster rewrites a query per category so the external search surface leans
// toward the right corpus.
type Booster struct {
	reg *knowledge.Registry
}

// NewBooster creates a booster over the category hints of reg.
func NewBooster(reg *knowledge.Registry) *Booster {
	return &Booster{reg: reg}
}

// Boost returns query rewritten for category. Keywords already present in the
// query are not repeated and a query that already carries a site: filter keeps
// it. For the general category an APV question naming a municipality is
// narrowed to that municipality's bylaws.
func (b *Booster) Boost(category Category, query string) string {
	query = pstrings.CollapseSpace(query)
	if query == "" {
		return ""
	}

	parts := []string{query}
	hint := b.reg.Hint(string(category))
	for _, kw := range hint.Keywords {
		if !pstrings.ContainsFold(query, kw) {
			parts = append(parts, kw)
		}
	}

	site := hint.Site
	if category == CategoryAlgemeen {
		if boost, apvSite, ok := b.apvBoost(query); ok {
			parts = append(parts, boost)
			site = apvSite
		}
	}

	if site != "" && !strings.Contains(strings.ToLower(query), "site:") {
		parts = append(parts, "site:"+site)
	}
	return strings.Join(parts, " ")
}

// apvBoost detects a municipal bylaw question. It returns the quoted phrase
// "APV <Gemeente>" and the bylaw site when an APV trigger and a municipality
// are both present.
func (b *Booster) apvBoost(query string) (phrase, site string, ok bool) {
	apv := b.reg.APV
	if apv.Site == "" || !containsAny(query, apv.Triggers) {
		return "", "", false
	}
	municipality, found := b.reg.FindMunicipality(query)
	if !found {
		return "", "", false
	}
	return `"APV ` + municipality + `"`, apv.Site, true
}

// Municipality exposes the municipality detected in query, if any.
func (b *Booster) Municipality(query string) (string, bool) {
	return b.reg.FindMunicipality(query)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && pstrings.ContainsFold(s, n) {
			return true
		}
	}
	return false
}
