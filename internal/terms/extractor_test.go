package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechtsbron/internal/knowledge"
)

func TestExtract(t *testing.T) {
	e := NewExtractor(knowledge.Default())

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "article with abbreviation",
			text:     "Op grond van artikel 5 WVW is dit verboden.",
			expected: []string{"artikel 5 WVW"},
		},
		{
			name:     "book notation and abbreviated keyword",
			text:     "Zie art. 7:457 BW en art 88 Wet BIG.",
			expected: []string{"artikel 7:457 BW", "artikel 88 Wet BIG"},
		},
		{
			name:     "letter suffix is lower-cased",
			text:     "De vordering is gebaseerd op Artikel 126ND Sv.",
			expected: []string{"artikel 126nd Sv"},
		},
		{
			name:     "lid and article of the law",
			text:     "Volgens artikel 6 lid 1 van de AVG en artikel 7:457 van het Burgerlijk Wetboek",
			expected: []string{"artikel 6 AVG", "artikel 7:457 BW"},
		},
		{
			name:     "treaty article",
			text:     "Dit raakt aan artikel 8 van het EVRM.",
			expected: []string{"artikel 8 EVRM"},
		},
		{
			name:     "longest alias wins",
			text:     "Artikel 8 Wegenverkeerswet 1994 verbiedt rijden onder invloed.",
			expected: []string{"artikel 8 WVW"},
		},
		{
			name:     "standalone law names outside article references",
			text:     "De AVG en de Uitvoeringswet AVG gelden naast artikel 9 AVG.",
			expected: []string{"AVG", "UAVG", "artikel 9 AVG"},
		},
		{
			name:     "ecli identifiers",
			text:     "Zie ECLI:NL:HR:2019:1234. Ook ecli:nl:rbams:2020:55 is relevant.",
			expected: []string{"ECLI:NL:HR:2019:1234", "ECLI:NL:RBAMS:2020:55"},
		},
		{
			name:     "duplicates removed in first occurrence order",
			text:     "artikel 5 WVW, daarna art. 5 wvw en nogmaals Artikel 5 Wegenverkeerswet; de Gemeentewet.",
			expected: []string{"artikel 5 WVW", "Gemeentewet"},
		},
		{
			name:     "no references",
			text:     "Neem contact op met een advocaat.",
			expected: []string{},
		},
		{
			name:     "empty",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Extract(tt.text))
		})
	}
}

func TestExtract_Restartable(t *testing.T) {
	e := NewExtractor(knowledge.Default())
	text := "artikel 126nf Sv en artikel 218 Sv"

	first := e.Extract(text)
	assert.Equal(t, first, e.Extract(text))
	assert.Equal(t, []string{"artikel 126nf Sv", "artikel 218 Sv"}, first)
}

func TestExtract_CustomLaws(t *testing.T) {
	reg, err := knowledge.Parse([]byte(`
laws:
  - canonical: Huurwet
    aliases: [huurwet, uitvoeringswet huurprijzen woonruimte]
`))
	require.NoError(t, err)
	e := NewExtractor(reg)

	got := e.Extract("Artikel 10 Uitvoeringswet huurprijzen woonruimte en artikel 3 BW")

	assert.Equal(t, []string{"artikel 10 Huurwet"}, got)
}

func TestExtract_NoLawsStillFindsECLI(t *testing.T) {
	reg, err := knowledge.Parse([]byte(`domains: []`))
	require.NoError(t, err)
	e := NewExtractor(reg)

	assert.Equal(t, []string{"ECLI:NL:GHARL:2021:99"}, e.Extract("artikel 5 WVW en ECLI:NL:GHARL:2021:99"))
}
