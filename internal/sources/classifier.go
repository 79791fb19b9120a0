// Package sources maps result URLs to the authoritative source that published them.
package sources

import (
	"net/url"
	"strings"
)

// Unknown is returned for URLs whose host cannot be determined.
const Unknown = "Onbekende bron"

// Entry maps a host suffix to a display label.
type Entry struct {
	Suffix string
	Label  string
}

// DefaultTable lists known publishers. Specific subdomains come before their
// parent domain.
var DefaultTable = []Entry{
	{Suffix: "lokaleregelgeving.overheid.nl", Label: "Lokale regelgeving (Overheid.nl)"},
	{Suffix: "wetten.overheid.nl", Label: "Wetten.overheid.nl"},
	{Suffix: "tuchtrecht.overheid.nl", Label: "Tuchtrecht.overheid.nl"},
	{Suffix: "zoek.officielebekendmakingen.nl", Label: "Officiële Bekendmakingen"},
	{Suffix: "officielebekendmakingen.nl", Label: "Officiële Bekendmakingen"},
	{Suffix: "overheid.nl", Label: "Overheid.nl"},
	{Suffix: "rechtspraak.nl", Label: "Rechtspraak.nl"},
	{Suffix: "boetebase.om.nl", Label: "Boetebase OM"},
	{Suffix: "om.nl", Label: "Openbaar Ministerie"},
	{Suffix: "cjib.nl", Label: "CJIB"},
	{Suffix: "autoriteitpersoonsgegevens.nl", Label: "Autoriteit Persoonsgegevens"},
	{Suffix: "tuchtcollege-gezondheidszorg.nl", Label: "Tuchtcollege voor de Gezondheidszorg"},
	{Suffix: "advocatenorde.nl", Label: "Nederlandse Orde van Advocaten"},
	{Suffix: "raadvanstate.nl", Label: "Raad van State"},
	{Suffix: "rijksoverheid.nl", Label: "Rijksoverheid"},
	{Suffix: "politie.nl", Label: "Politie"},
	{Suffix: "juridischloket.nl", Label: "Het Juridisch Loket"},
	{Suffix: "eur-lex.europa.eu", Label: "EUR-Lex"},
	{Suffix: "curia.europa.eu", Label: "Hof van Justitie EU"},
	{Suffix: "hudoc.echr.coe.int", Label: "EHRM (HUDOC)"},
	{Suffix: "wikipedia.org", Label: "Wikipedia"},
}

// Classifier labels URLs using an ordered suffix table. The zero value is not
// usable; build one with New.
type Classifier struct {
	table []Entry
}

// New creates a classifier over table. Entries are checked in order, so list
// subdomains before the domains that contain them.
func New(table []Entry) *Classifier {
	t := make([]Entry, 0, len(table))
	for _, e := range table {
		s := strings.ToLower(strings.TrimSpace(e.Suffix))
		if s == "" {
			continue
		}
		t = append(t, Entry{Suffix: s, Label: e.Label})
	}
	return &Classifier{table: t}
}

var defaultClassifier = New(DefaultTable)

// Classify labels rawURL with the default table.
func Classify(rawURL string) string {
	return defaultClassifier.Classify(rawURL)
}

// Classify returns the label of the first matching table entry, the bare host
// when nothing matches and Unknown when no host can be parsed.
func (c *Classifier) Classify(rawURL string) string {
	host, ok := Host(rawURL)
	if !ok {
		return Unknown
	}
	for _, e := range c.table {
		if host == e.Suffix || strings.HasSuffix(host, "."+e.Suffix) {
			return e.Label
		}
	}
	return host
}

// Host extracts the lower-cased host of rawURL without a leading "www.". A
// missing scheme is tolerated.
func Host(rawURL string) (string, bool) {
	u, ok := parse(rawURL)
	if !ok {
		return "", false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", false
	}
	return host, true
}

// Canonical normalizes a result link for identity comparison: lower-cased
// scheme and host, no "www.", no default port, no fragment, no tracking
// parameters, sorted query and no trailing slash. Unparsable input is returned trimmed.
func Canonical(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, ok := parse(trimmed)
	if !ok {
		return trimmed
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" {
			q.Del(key)
		}
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	out := scheme + "://" + host + path
	if len(q) > 0 {
		out += "?" + q.Encode()
	}
	return out
}

func parse(rawURL string) (*url.URL, bool) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return nil, false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}
