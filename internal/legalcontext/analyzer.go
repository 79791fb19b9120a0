// Package legalcontext detects which specialised legal domains a question
// touches and which mandatory considerations come with them.
package legalcontext

import (
	"slices"
	"sort"
	"strings"

	"rechtsbron/internal/knowledge"
	pstrings "rechtsbron/pkg/platform/strings"
)

// ContextMatch is the outcome of one domain rule matching a question.
type ContextMatch struct {
	DomainID               string                  `json:"domain_id"`
	Label                  string                  `json:"label,omitempty"`
	Priority               int                     `json:"priority"`
	MatchedKeywords        []string                `json:"matched_keywords"`
	SpecialRules           []knowledge.SpecialRule `json:"special_rules"`
	LegalPrinciples        []string                `json:"legal_principles"`
	RequiredConsiderations []string                `json:"required_considerations"`
}

// Analysis holds the matched contexts plus the de-duplicated union of their
// rules, principles and considerations.
type Analysis struct {
	Contexts               []ContextMatch          `json:"contexts"`
	SpecialRules           []knowledge.SpecialRule `json:"special_rules"`
	LegalPrinciples        []string                `json:"legal_principles"`
	RequiredConsiderations []string                `json:"required_considerations"`
}

// Empty reports whether no domain matched.
func (a Analysis) Empty() bool {
	return len(a.Contexts) == 0
}

// DomainIDs lists the matched domains in priority order.
func (a Analysis) DomainIDs() []string {
	ids := make([]string, 0, len(a.Contexts))
	for _, c := range a.Contexts {
		ids = append(ids, c.DomainID)
	}
	return ids
}

type compiledRule struct {
	rule     knowledge.DomainRule
	keywords []string
}

// Analyzer evaluates questions against an immutable rule set.
type Analyzer struct {
	rules []compiledRule
}

// NewAnalyzer prepares the domain rules of reg. Special rules are sorted by
// priority once here; equal priorities keep their declaration order.
func NewAnalyzer(reg *knowledge.Registry) *Analyzer {
	a := &Analyzer{rules: make([]compiledRule, 0, len(reg.Domains))}
	for _, d := range reg.Domains {
		keywords := make([]string, 0, len(d.TriggerKeywords))
		for _, kw := range d.TriggerKeywords {
			keywords = append(keywords, normalize(kw))
		}
		d.SpecialRules = slices.Clone(d.SpecialRules)
		sort.SliceStable(d.SpecialRules, func(i, j int) bool {
			return d.SpecialRules[i].Priority < d.SpecialRules[j].Priority
		})
		a.rules = append(a.rules, compiledRule{rule: d, keywords: keywords})
	}
	return a
}

// Analyze matches question against every domain rule. A rule matches when any
// of its trigger keywords occurs as a substring of the lower-cased question,
// so compound words like "ziekenhuisopname" still trigger "ziekenhuis".
// Matches are ordered by domain priority, ties by registry order.
func (a *Analyzer) Analyze(question string) Analysis {
	result := Analysis{
		Contexts:               []ContextMatch{},
		SpecialRules:           []knowledge.SpecialRule{},
		LegalPrinciples:        []string{},
		RequiredConsiderations: []string{},
	}

	q := normalize(question)
	if q == "" {
		return result
	}

	for _, cr := range a.rules {
		var matched []string
		for _, kw := range cr.keywords {
			if strings.Contains(q, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		d := cr.rule
		result.Contexts = append(result.Contexts, ContextMatch{
			DomainID:               d.ID,
			Label:                  d.Label,
			Priority:               d.Priority,
			MatchedKeywords:        pstrings.DedupeAndTrim(matched),
			SpecialRules:           cloneRules(d.SpecialRules),
			LegalPrinciples:        slices.Clone(d.LegalPrinciples),
			RequiredConsiderations: slices.Clone(d.RequiredConsiderations),
		})
	}

	sort.SliceStable(result.Contexts, func(i, j int) bool {
		return result.Contexts[i].Priority < result.Contexts[j].Priority
	})

	seenRules := make(map[string]struct{})
	var principles, considerations []string
	for _, c := range result.Contexts {
		for _, sr := range c.SpecialRules {
			if _, dup := seenRules[sr.Rule]; dup {
				continue
			}
			seenRules[sr.Rule] = struct{}{}
			result.SpecialRules = append(result.SpecialRules, sr)
		}
		principles = append(principles, c.LegalPrinciples...)
		considerations = append(considerations, c.RequiredConsiderations...)
	}
	if len(principles) > 0 {
		result.LegalPrinciples = pstrings.DedupeAndTrim(principles)
	}
	if len(considerations) > 0 {
		result.RequiredConsiderations = pstrings.DedupeAndTrim(considerations)
	}

	return result
}

func normalize(s string) string {
	return pstrings.CollapseSpace(strings.ToLower(s))
}

func cloneRules(rules []knowledge.SpecialRule) []knowledge.SpecialRule {
	out := make([]knowledge.SpecialRule, len(rules))
	for i, r := range rules {
		r.Articles = slices.Clone(r.Articles)
		out[i] = r
	}
	return out
}
