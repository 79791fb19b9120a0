// Package strings provides string helpers shared by the extraction and search packages.
package strings

import (
	"strings"
	"unicode/utf8"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

// DedupeFold is like DedupeAndTrim but compares case-insensitively. The first
// spelling seen is kept.
//
// Example:
//
//	DedupeFold([]string{"Artikel 5 WVW", "artikel 5 wvw", " AVG "})
//	// Returns: []string{"Artikel 5 WVW", "AVG"}
func DedupeFold(values []string) []string {
	return dedupe(values, strings.ToLower)
}

func dedupe(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		k := key(trimmed)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// TruncateRunes cuts s to at most max runes and appends marker when it had to
// cut. The marker is not counted against max.
func TruncateRunes(s string, max int, marker string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + marker
}

// CollapseSpace replaces runs of whitespace with a single space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
