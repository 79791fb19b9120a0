package grounding

import (
	"strconv"
	"strings"

	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
	pstrings "rechtsbron/pkg/platform/strings"
)

const (
	// DefaultSnippetLength is the rune length snippets are cut to.
	DefaultSnippetLength = 200

	// Ellipsis marks a truncated snippet.
	Ellipsis = "..."
)

var categoryLabels = map[search.Category]string{
	search.CategoryWetten:      "WETGEVING",
	search.CategoryRechtspraak: "JURISPRUDENTIE",
	search.CategoryTuchtrecht:  "TUCHTRECHT",
	search.CategoryBoetes:      "BOETES EN SANCTIES",
	search.CategoryAlgemeen:    "OVERIGE BRONNEN",
}

// Label returns the heading used for a category block.
func Label(c search.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return strings.ToUpper(c.String())
}

// Formatter renders analysis and search results into prompt text.
type Formatter struct {
	snippetLength int
	counter       TokenCounter
	tokenBudget   int
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithSnippetLength overrides the snippet rune length.
func WithSnippetLength(n int) FormatterOption {
	return func(f *Formatter) {
		if n > 0 {
			f.snippetLength = n
		}
	}
}

// WithTokenBudget makes Render drop trailing results until the block fits in
// budget tokens as measured by counter. A budget of zero disables the check.
func WithTokenBudget(budget int, counter TokenCounter) FormatterOption {
	return func(f *Formatter) {
		f.tokenBudget = budget
		if counter != nil {
			f.counter = counter
		}
	}
}

func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		snippetLength: DefaultSnippetLength,
		counter:       EstimateCounter{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders every non-empty category as a labeled block in category
// precedence order. Nil or empty results render as "".
func (f *Formatter) Format(results *search.AggregatedResults) string {
	var b strings.Builder
	for _, cat := range search.Categories {
		items := results.Get(cat)
		if len(items) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("=== ")
		b.WriteString(Label(cat))
		b.WriteString(" ===\n")
		for i, r := range items {
			f.writeResult(&b, i+1, r)
		}
	}
	return b.String()
}

func (f *Formatter) writeResult(b *strings.Builder, n int, r search.SearchResult) {
	b.WriteString(strconv.Itoa(n))
	b.WriteString(". ")
	b.WriteString(pstrings.CollapseSpace(r.Title))
	b.WriteString("\n   Bron: ")
	b.WriteString(r.SourceName)
	b.WriteString("\n   URL: ")
	b.WriteString(r.Link)
	b.WriteString("\n")
	if snippet := f.Snippet(r.Snippet); snippet != "" {
		b.WriteString("   ")
		b.WriteString(snippet)
		b.WriteString("\n")
	}
}

// Snippet collapses whitespace and truncates to the configured rune length.
func (f *Formatter) Snippet(s string) string {
	return pstrings.TruncateRunes(pstrings.CollapseSpace(s), f.snippetLength, Ellipsis)
}

// FormatContexts renders the matched legal domains with their special rules,
// principles and considerations. An empty analysis renders as "".
func (f *Formatter) FormatContexts(a legalcontext.Analysis) string {
	if a.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== JURIDISCHE CONTEXT ===\n")
	for _, c := range a.Contexts {
		label := c.Label
		if label == "" {
			label = c.DomainID
		}
		b.WriteString("Domein: ")
		b.WriteString(label)
		if len(c.MatchedKeywords) > 0 {
			b.WriteString(" (herkend aan: ")
			b.WriteString(strings.Join(c.MatchedKeywords, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	if len(a.SpecialRules) > 0 {
		b.WriteString("\nBijzondere regels:\n")
		for _, sr := range a.SpecialRules {
			b.WriteString("- ")
			b.WriteString(sr.Rule)
			if len(sr.Articles) > 0 {
				b.WriteString(" [")
				b.WriteString(strings.Join(sr.Articles, "; "))
				b.WriteString("]")
			}
			b.WriteString("\n")
		}
	}
	writeList(&b, "Rechtsbeginselen", a.LegalPrinciples)
	writeList(&b, "Verplichte aandachtspunten", a.RequiredConsiderations)
	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
}

// Render joins the context block and the source block. With a token budget
// configured, results are dropped from the lowest-precedence category
// backwards until the text fits; the context block is never cut. The second
// return value is the number of dropped results.
func (f *Formatter) Render(a legalcontext.Analysis, results *search.AggregatedResults) (string, int) {
	contexts := f.FormatContexts(a)
	text := join(contexts, f.Format(results))
	if f.tokenBudget <= 0 || f.counter.Count(text) <= f.tokenBudget || results == nil {
		return text, 0
	}

	trimmed := copyResults(results)
	dropped := 0
	for i := len(search.Categories) - 1; i >= 0; i-- {
		cat := search.Categories[i]
		for len(trimmed.Categories[cat]) > 0 {
			items := trimmed.Categories[cat]
			trimmed.Categories[cat] = items[:len(items)-1]
			dropped++
			text = join(contexts, f.Format(trimmed))
			if f.counter.Count(text) <= f.tokenBudget {
				return text, dropped
			}
		}
	}
	return text, dropped
}

func join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

func copyResults(in *search.AggregatedResults) *search.AggregatedResults {
	out := search.NewAggregatedResults(in.Query)
	for _, cat := range search.Categories {
		out.Categories[cat] = append([]search.SearchResult(nil), in.Get(cat)...)
	}
	return out
}
