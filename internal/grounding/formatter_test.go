package grounding

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechtsbron/internal/knowledge"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
)

func sampleResults() *search.AggregatedResults {
	r := search.NewAggregatedResults("beroepsgeheim")
	r.Categories[search.CategoryWetten] = []search.SearchResult{{
		Title:      "Artikel 7:457 BW",
		Link:       "https://wetten.overheid.nl/BWBR0005290",
		Snippet:    "Geheimhouding.",
		SourceName: "Wetten.overheid.nl",
		Category:   search.CategoryWetten,
	}}
	r.Categories[search.CategoryAlgemeen] = []search.SearchResult{{
		Title:      "APV  Nijmegen",
		Link:       "https://lokaleregelgeving.overheid.nl/CVDR1",
		SourceName: "Lokale regelgeving (Overheid.nl)",
		Category:   search.CategoryAlgemeen,
	}}
	return r
}

func TestFormat_Golden(t *testing.T) {
	f := NewFormatter()

	expected := "=== WETGEVING ===\n" +
		"1. Artikel 7:457 BW\n" +
		"   Bron: Wetten.overheid.nl\n" +
		"   URL: https://wetten.overheid.nl/BWBR0005290\n" +
		"   Geheimhouding.\n" +
		"\n" +
		"=== OVERIGE BRONNEN ===\n" +
		"1. APV Nijmegen\n" +
		"   Bron: Lokale regelgeving (Overheid.nl)\n" +
		"   URL: https://lokaleregelgeving.overheid.nl/CVDR1\n"

	got := f.Format(sampleResults())
	assert.Equal(t, expected, got)
	// Empty categories are not rendered as headers.
	assert.NotContains(t, got, Label(search.CategoryRechtspraak))
	for range 10 {
		assert.Equal(t, got, f.Format(sampleResults()))
	}
}

func TestFormat_Empty(t *testing.T) {
	f := NewFormatter()

	assert.Equal(t, "", f.Format(nil))
	assert.Equal(t, "", f.Format(search.NewAggregatedResults("x")))
}

func TestSnippet_Truncation(t *testing.T) {
	f := NewFormatter()

	got := f.Snippet(strings.Repeat("a", 500))
	assert.Equal(t, strings.Repeat("a", 200)+"...", got)

	short := strings.Repeat("b", 200)
	assert.Equal(t, short, f.Snippet(short))

	// Runes, not bytes.
	multi := f.Snippet(strings.Repeat("é", 250))
	assert.Equal(t, 203, utf8.RuneCountInString(multi))

	custom := NewFormatter(WithSnippetLength(10))
	assert.Equal(t, "0123456789...", custom.Snippet("0123456789abc"))
}

func TestFormatContexts(t *testing.T) {
	f := NewFormatter()
	analysis := legalcontext.NewAnalyzer(knowledge.Default()).
		Analyze("Ik werk in een ziekenhuis en de politie wil camerabeelden vorderen")

	got := f.FormatContexts(analysis)

	require.True(t, strings.HasPrefix(got, "=== JURIDISCHE CONTEXT ===\n"))
	assert.Contains(t, got, "Bijzondere regels:")
	assert.Contains(t, got, "artikel 7:457 BW")
	assert.Contains(t, got, "Rechtsbeginselen:")
	assert.Equal(t, "", f.FormatContexts(legalcontext.Analysis{}))
}

type urlCounter struct{}

func (urlCounter) Count(text string) int {
	return strings.Count(text, "URL:")
}

func TestRender_TokenBudget(t *testing.T) {
	results := sampleResults()
	results.Categories[search.CategoryAlgemeen] = append(results.Categories[search.CategoryAlgemeen],
		search.SearchResult{Title: "b", Link: "https://b.nl", SourceName: "b.nl"},
		search.SearchResult{Title: "c", Link: "https://c.nl", SourceName: "c.nl"},
	)

	f := NewFormatter(WithTokenBudget(2, urlCounter{}))
	text, dropped := f.Render(legalcontext.Analysis{}, results)

	assert.Equal(t, 2, dropped)
	assert.Equal(t, 2, strings.Count(text, "URL:"))
	assert.Contains(t, text, "APV Nijmegen")
	assert.NotContains(t, text, "https://c.nl")
	// The caller's results are untouched.
	assert.Len(t, results.Get(search.CategoryAlgemeen), 3)
}

func TestRender_NoBudget(t *testing.T) {
	f := NewFormatter()
	analysis := legalcontext.NewAnalyzer(knowledge.Default()).Analyze("ziekenhuis")

	text, dropped := f.Render(analysis, sampleResults())

	assert.Zero(t, dropped)
	assert.True(t, strings.HasPrefix(text, "=== JURIDISCHE CONTEXT ==="))
	assert.Contains(t, text, "\n=== WETGEVING ===\n")
}

func TestEstimateCounter(t *testing.T) {
	assert.Equal(t, 0, EstimateCounter{}.Count(""))
	assert.Equal(t, 1, EstimateCounter{}.Count("abc"))
	assert.Equal(t, 2, EstimateCounter{}.Count("abcde"))

	c, err := CounterFor("")
	require.NoError(t, err)
	assert.IsType(t, EstimateCounter{}, c)
}
