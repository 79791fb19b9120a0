package legalcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechtsbron/internal/knowledge"
)

func testRegistry(t *testing.T, doc string) *knowledge.Registry {
	t.Helper()
	reg, err := knowledge.Parse([]byte(doc))
	require.NoError(t, err)
	return reg
}

func TestAnalyze_HospitalAndPolice(t *testing.T) {
	a := NewAnalyzer(knowledge.Default())

	got := a.Analyze("Ik werk in een ziekenhuis en de politie wil camerabeelden vorderen")

	require.NotEmpty(t, got.Contexts)
	assert.Equal(t, "ziekenhuis", got.Contexts[0].DomainID)
	assert.Equal(t, []string{"ziekenhuis", "politie", "privacy"}, got.DomainIDs())
	assert.Contains(t, got.Contexts[1].MatchedKeywords, "vorderen")

	require.NotEmpty(t, got.SpecialRules)
	var articles []string
	for _, sr := range got.SpecialRules {
		articles = append(articles, sr.Articles...)
	}
	assert.Contains(t, articles, "artikel 7:457 BW")
}

func TestAnalyze_FlatListsAreUnion(t *testing.T) {
	a := NewAnalyzer(knowledge.Default())

	got := a.Analyze("Mag de huisarts persoonsgegevens delen?")

	assert.Equal(t, []string{"ziekenhuis", "privacy"}, got.DomainIDs())

	// The health data rule is declared by both domains but listed once.
	count := 0
	for _, sr := range got.SpecialRules {
		if sr.Rule == "Gezondheidsgegevens zijn bijzondere persoonsgegevens en vallen onder een verwerkingsverbod" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, got.SpecialRules, 3+3)
	assert.Equal(t, "Medisch beroepsgeheim", got.LegalPrinciples[0])
}

func TestAnalyze_PriorityOrdering(t *testing.T) {
	reg := testRegistry(t, `
domains:
  - id: laag
    priority: 2
    trigger_keywords: [boete]
  - id: hoog
    priority: 1
    trigger_keywords: [boete]
  - id: ook-hoog
    priority: 1
    trigger_keywords: [boete]
`)
	a := NewAnalyzer(reg)

	got := a.Analyze("Een boete gekregen")

	assert.Equal(t, []string{"hoog", "ook-hoog", "laag"}, got.DomainIDs())
}

func TestAnalyze_SpecialRulesSortedWithinDomain(t *testing.T) {
	reg := testRegistry(t, `
domains:
  - id: d
    trigger_keywords: [huur]
    special_rules:
      - {rule: derde, priority: 3}
      - {rule: eerste, priority: 1}
      - {rule: ook-eerste, priority: 1}
`)
	got := NewAnalyzer(reg).Analyze("huurverhoging")

	require.Len(t, got.Contexts, 1)
	var rules []string
	for _, sr := range got.Contexts[0].SpecialRules {
		rules = append(rules, sr.Rule)
	}
	assert.Equal(t, []string{"eerste", "ook-eerste", "derde"}, rules)
	assert.Equal(t, []string{"eerste", "ook-eerste", "derde"}, ruleTexts(got.SpecialRules))
	// Registry order is untouched.
	assert.Equal(t, "derde", reg.Domains[0].SpecialRules[0].Rule)
}

func TestAnalyze_SubstringMatchesCompoundWords(t *testing.T) {
	a := NewAnalyzer(knowledge.Default())

	got := a.Analyze("Wat zijn de regels na een ziekenhuisopname?")

	assert.Equal(t, []string{"ziekenhuis"}, got.DomainIDs())
}

func TestAnalyze_EmptyAndNoMatch(t *testing.T) {
	a := NewAnalyzer(knowledge.Default())

	for _, q := range []string{"", "   ", "Wat is de hoofdstad van Frankrijk?"} {
		got := a.Analyze(q)
		assert.True(t, got.Empty(), q)
		assert.NotNil(t, got.Contexts)
		assert.Empty(t, got.Contexts)
		assert.NotNil(t, got.SpecialRules)
		assert.Empty(t, got.SpecialRules)
		assert.NotNil(t, got.LegalPrinciples)
		assert.NotNil(t, got.RequiredConsiderations)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := NewAnalyzer(knowledge.Default())
	q := "Mijn kind is aangehouden door de politie na een ongeluk in het verkeer"

	first := a.Analyze(q)
	for range 20 {
		assert.Equal(t, first, a.Analyze(q))
	}
}

func TestAnalyze_ResultsDoNotAliasRegistry(t *testing.T) {
	reg := knowledge.Default()
	a := NewAnalyzer(reg)

	got := a.Analyze("ziekenhuis")
	require.NotEmpty(t, got.SpecialRules)
	got.Contexts[0].SpecialRules[0].Articles[0] = "gewijzigd"
	got.Contexts[0].LegalPrinciples[0] = "gewijzigd"

	again := a.Analyze("ziekenhuis")
	assert.Equal(t, "artikel 7:457 BW", again.Contexts[0].SpecialRules[0].Articles[0])
	assert.Equal(t, "Medisch beroepsgeheim", again.Contexts[0].LegalPrinciples[0])
}

func ruleTexts(rules []knowledge.SpecialRule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Rule)
	}
	return out
}
