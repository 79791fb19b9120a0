package strings

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "trims and removes empties",
			input:    []string{"  wetten ", "", "  ", "boetes"},
			expected: []string{"wetten", "boetes"},
		},
		{
			name:     "preserves case",
			input:    []string{"AVG", "avg"},
			expected: []string{"AVG", "avg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeFold(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{
			name:     "first spelling wins",
			input:    []string{"Artikel 5 WVW", "artikel 5 wvw", " AVG ", "avg"},
			expected: []string{"Artikel 5 WVW", "AVG"},
		},
		{
			name:     "order of first occurrence",
			input:    []string{"Sv", "BW", "sv", "Wet BIG"},
			expected: []string{"Sv", "BW", "Wet BIG"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeFold(tt.input))
		})
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("APV Nijmegen alcohol", "apv nijmegen"))
	assert.False(t, ContainsFold("APV Nijmegen", "Arnhem"))
}

func TestTruncateRunes(t *testing.T) {
	t.Run("long input is cut and marked", func(t *testing.T) {
		in := strings.Repeat("a", 500)
		out := TruncateRunes(in, 200, "...")
		assert.Equal(t, strings.Repeat("a", 200)+"...", out)
	})

	t.Run("short input is untouched", func(t *testing.T) {
		assert.Equal(t, "kort", TruncateRunes("kort", 200, "..."))
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		in := strings.Repeat("é", 10)
		out := TruncateRunes(in, 4, "…")
		assert.Equal(t, 5, utf8.RuneCountInString(out))
		assert.True(t, utf8.ValidString(out))
	})
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "artikel 7:457 BW", CollapseSpace("  artikel\n 7:457\tBW "))
}
