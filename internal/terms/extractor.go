// Package terms mines free text (typically a draft answer) for legal
// references that can drive a follow-up search.
package terms

import (
	"regexp"
	"sort"
	"strings"

	"rechtsbron/internal/knowledge"
	pstrings "rechtsbron/pkg/platform/strings"
)

// Extractor finds article references, law names and ECLI identifiers.
type Extractor struct {
	article   *regexp.Regexp
	lawName   *regexp.Regexp
	ecli      *regexp.Regexp
	canonical map[string]string
}

var ecliPattern = regexp.MustCompile(`(?i)\bECLI:[A-Z]{2}:[A-Z0-9]{1,7}:\d{4}:[A-Z0-9.]{1,25}`)

// NewExtractor compiles the patterns for the laws in reg.
func NewExtractor(reg *knowledge.Registry) *Extractor {
	canonical := make(map[string]string)
	var aliases []string
	for _, law := range reg.Laws {
		for _, alias := range law.Aliases {
			a := strings.ToLower(pstrings.CollapseSpace(alias))
			if a == "" {
				continue
			}
			if _, dup := canonical[a]; dup {
				continue
			}
			canonical[a] = law.Canonical
			aliases = append(aliases, a)
		}
	}
	// Longest alias first so "wegenverkeerswet 1994" beats "wegenverkeerswet".
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })

	e := &Extractor{ecli: ecliPattern, canonical: canonical}
	if len(aliases) == 0 {
		return e
	}

	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(a), ` `, `\s+`)
	}
	laws := `(` + strings.Join(quoted, "|") + `)`

	e.article = regexp.MustCompile(`(?i)\b(?:artikel|art\.?)\s*` +
		`(\d+[a-z]{0,3}(?::\d+[a-z]{0,3})?)` +
		`(?:\s*,?\s*(?:lid|leden)\s+\d+(?:\s*(?:,|en)\s*\d+)*)?` +
		`\s*,?\s+(?:(?:van\s+)?(?:de|het)\s+)?` +
		laws + `\b`)
	e.lawName = regexp.MustCompile(`(?i)\b` + laws + `\b`)
	return e
}

type hit struct {
	pos  int
	term string
}

// Extract returns normalized, case-insensitively unique references in the
// order they first appear in text.
func (e *Extractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	var hits []hit
	var spans [][]int

	if e.article != nil {
		for _, m := range e.article.FindAllStringSubmatchIndex(text, -1) {
			num := strings.ToLower(text[m[2]:m[3]])
			law := e.lookup(text[m[4]:m[5]])
			hits = append(hits, hit{pos: m[0], term: "artikel " + num + " " + law})
			spans = append(spans, m[:2])
		}
		for _, m := range e.lawName.FindAllStringIndex(text, -1) {
			if inside(m, spans) {
				continue
			}
			hits = append(hits, hit{pos: m[0], term: e.lookup(text[m[0]:m[1]])})
		}
	}

	for _, m := range e.ecli.FindAllStringIndex(text, -1) {
		id := strings.TrimRight(strings.ToUpper(text[m[0]:m[1]]), ".")
		hits = append(hits, hit{pos: m[0], term: id})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.term)
	}
	return pstrings.DedupeFold(out)
}

func (e *Extractor) lookup(alias string) string {
	key := strings.ToLower(pstrings.CollapseSpace(alias))
	if c, ok := e.canonical[key]; ok {
		return c
	}
	return alias
}

func inside(m []int, spans [][]int) bool {
	for _, s := range spans {
		if m[0] >= s[0] && m[1] <= s[1] {
			return true
		}
	}
	return false
}
