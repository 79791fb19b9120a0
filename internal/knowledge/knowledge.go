// Package knowledge loads the declarative legal knowledge registry: domain
// rules for the context analyzer, municipality names, law names for term
// extraction and per-category search hints.
//
// The registry is read once at startup and never mutated afterwards, so it is
// safe to share between goroutines without locking.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"rechtsbron/pkg/platform/sentinel"
)

//go:embed default.yaml
var defaultYAML []byte

// SpecialRule is a mandatory consideration attached to a domain. Lower
// Priority sorts first.
type SpecialRule struct {
	Rule     string   `yaml:"rule" json:"rule"`
	Articles []string `yaml:"articles" json:"articles"`
	Priority int      `yaml:"priority" json:"priority"`
}

// DomainRule describes one specialised legal domain and the keywords that
// trigger it.
type DomainRule struct {
	ID                     string        `yaml:"id"`
	Label                  string        `yaml:"label"`
	Priority               int           `yaml:"priority"`
	TriggerKeywords        []string      `yaml:"trigger_keywords"`
	SpecialRules           []SpecialRule `yaml:"special_rules"`
	LegalPrinciples        []string      `yaml:"legal_principles"`
	RequiredConsiderations []string      `yaml:"required_considerations"`
}

// Law maps the spellings of a law name to its canonical abbreviation.
type Law struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// CategoryHint biases queries for one search category.
type CategoryHint struct {
	Site     string   `yaml:"site"`
	Keywords []string `yaml:"keywords"`
}

// APV configures the municipal bylaw boost of the general category.
type APV struct {
	Triggers []string `yaml:"triggers"`
	Site     string   `yaml:"site"`
}

// Registry is the parsed knowledge file.
type Registry struct {
	Domains        []DomainRule            `yaml:"domains"`
	Municipalities []string                `yaml:"municipalities"`
	Laws           []Law                   `yaml:"laws"`
	Categories     map[string]CategoryHint `yaml:"categories"`
	APV            APV                     `yaml:"apv"`
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry compiled into the binary.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded knowledge file is invalid: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// Load reads the registry from path, or returns the embedded default when
// path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("knowledge file %s: %w", path, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge file %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a knowledge document.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	reg.normalize()
	return &reg, nil
}

// Validate checks structural invariants of the registry.
func (r *Registry) Validate() error {
	seen := make(map[string]struct{}, len(r.Domains))
	for i, d := range r.Domains {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return fmt.Errorf("domain %d: id is required: %w", i, sentinel.ErrInvalidPayload)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("domain %q: duplicate id: %w", id, sentinel.ErrInvalidPayload)
		}
		seen[id] = struct{}{}
		if len(nonEmpty(d.TriggerKeywords)) == 0 {
			return fmt.Errorf("domain %q: at least one trigger keyword is required: %w", id, sentinel.ErrInvalidPayload)
		}
		for j, sr := range d.SpecialRules {
			if strings.TrimSpace(sr.Rule) == "" {
				return fmt.Errorf("domain %q: special rule %d has no text: %w", id, j, sentinel.ErrInvalidPayload)
			}
		}
	}
	for i, law := range r.Laws {
		if strings.TrimSpace(law.Canonical) == "" {
			return fmt.Errorf("law %d: canonical name is required: %w", i, sentinel.ErrInvalidPayload)
		}
	}
	return nil
}

// normalize trims values and orders municipalities longest first so that
// "Haarlemmermeer" is preferred over "Haarlem" when both could match.
func (r *Registry) normalize() {
	for i := range r.Domains {
		d := &r.Domains[i]
		d.ID = strings.TrimSpace(d.ID)
		d.TriggerKeywords = nonEmpty(d.TriggerKeywords)
	}
	r.Municipalities = nonEmpty(r.Municipalities)
	sort.SliceStable(r.Municipalities, func(i, j int) bool {
		return len(r.Municipalities[i]) > len(r.Municipalities[j])
	})
	for i := range r.Laws {
		law := &r.Laws[i]
		law.Canonical = strings.TrimSpace(law.Canonical)
		if len(law.Aliases) == 0 {
			law.Aliases = []string{strings.ToLower(law.Canonical)}
		}
	}
	if r.Categories == nil {
		r.Categories = map[string]CategoryHint{}
	}
}

// Domain returns the rule with the given id.
func (r *Registry) Domain(id string) (DomainRule, bool) {
	for _, d := range r.Domains {
		if d.ID == id {
			return d, true
		}
	}
	return DomainRule{}, false
}

// Hint returns the search hint for a category name.
func (r *Registry) Hint(category string) CategoryHint {
	return r.Categories[category]
}

// FindMunicipality returns the first municipality named in text as a whole
// word, using the registry spelling.
func (r *Registry) FindMunicipality(text string) (string, bool) {
	lower := strings.ToLower(text)
	best, bestPos := "", -1
	for _, m := range r.Municipalities {
		pos := indexWord(lower, strings.ToLower(m))
		if pos < 0 {
			continue
		}
		// Longest-first ordering means an equal position keeps the longer name.
		if bestPos < 0 || pos < bestPos {
			best, bestPos = m, pos
		}
	}
	return best, bestPos >= 0
}

func indexWord(haystack, word string) int {
	offset := 0
	for {
		i := strings.Index(haystack[offset:], word)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(word)
		if boundary(haystack, start-1) && boundary(haystack, end) {
			return start
		}
		offset = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c >= 0x80)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
