// Package streamid implements the ID & Name utilities: slugification,
// content-id/infohash validation, tvg-id normalisation, and stream
// reference extraction from known upstream URL shapes.
package streamid

import (
	"regexp"
	"strings"
)

var contentIDRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ContentID is a validated 40-hex stream identifier in the UME namespace.
type ContentID string

// Infohash is a validated 40-hex identifier in the BitTorrent namespace.
type Infohash string

// ValidContentID reports whether s has the required 40-char lowercase hex shape.
func ValidContentID(s string) bool {
	return contentIDRe.MatchString(s)
}

// ValidInfohash has the same shape requirement as a content-id; it is a
// distinct namespace, not a distinct format.
func ValidInfohash(s string) bool {
	return contentIDRe.MatchString(s)
}

var nonSlugRunRe = regexp.MustCompile(`[^a-z0-9-]+`)
var dashRunRe = regexp.MustCompile(`-+`)

// Slugify lower-cases, maps '+' to "plus", collapses any run of characters
// outside [a-z0-9-] into a single hyphen, and trims leading/trailing
// hyphens. It is idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "+", "plus")
	s = nonSlugRunRe.ReplaceAllString(s, "-")
	s = dashRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// trailingCountryDigitsRe matches a 2-letter country suffix followed by
// digits (e.g. "uk2") so the digits can be stripped first; pipeFormRe and
// suffixFormRe match "CC | Name" and "Name.cc" / "Name_cc" / "Name-cc".
var trailingCountryDigitsRe = regexp.MustCompile(`(?i)^(.*[._-])([a-zA-Z]{2})[0-9]+$`)
var pipeFormRe = regexp.MustCompile(`^\s*([A-Za-z]{2})\s*\|\s*(.+?)\s*$`)
var suffixFormRe = regexp.MustCompile(`^(.+?)[._-]([A-Za-z]{2})$`)

// NormalizeTVGID applies, in order: the override map, trailing
// country-code-with-digits stripping (".uk2" -> ".uk"), then one of the two
// canonical forms ("CC | Name" or "Name.cc"/"Name_cc"/"Name-cc") collapsed
// to "Name.cc" with the country code lower-cased. If nothing matches, the
// (possibly override-mapped) input is returned unchanged.
func NormalizeTVGID(input string, overrides map[string]string) string {
	if overrides != nil {
		if v, ok := overrides[input]; ok {
			input = v
		}
	}
	if m := trailingCountryDigitsRe.FindStringSubmatch(input); m != nil {
		input = m[1] + m[2]
	}
	if m := pipeFormRe.FindStringSubmatch(input); m != nil {
		cc, name := m[1], m[2]
		return name + "." + strings.ToLower(cc)
	}
	if m := suffixFormRe.FindStringSubmatch(input); m != nil {
		name, cc := m[1], m[2]
		name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
		return name + "." + strings.ToLower(cc)
	}
	return input
}

// RefKind distinguishes what ExtractStreamRef found in a URL.
type RefKind int

const (
	RefNone RefKind = iota
	RefContentID
	RefInfohash
)

// contentIDPrefixes and infohashPrefixes mirror the URL prefix list
// published in the external interfaces section: sources reference UME
// streams by one of a handful of query-param shapes or a literal
// acestream:// / plugin:// scheme.
var contentIDPrefixes = []string{
	"acestream://",
	"http://127.0.0.1:6878/ace/getstream?id=",
	"http://127.0.0.1:6878/ace/getstream?content_id=",
	"http://127.0.0.1:6878/ace/manifest.m3u8?id=",
	"http://127.0.0.1:6878/ace/manifest.m3u8?content_id=",
	"plugin://script.module.horus?action=play&id=",
}

var infohashPrefixes = []string{
	"http://127.0.0.1:6878/ace/getstream?infohash=",
	"http://127.0.0.1:6878/ace/manifest.m3u8?infohash=",
}

// ExtractStreamRef matches rawURL against the known UME URL prefix list and
// returns the 40-hex id embedded after the prefix, stopping at the first
// '&' or end of string.
func ExtractStreamRef(rawURL string) (kind RefKind, id string, ok bool) {
	for _, p := range contentIDPrefixes {
		if strings.HasPrefix(rawURL, p) {
			return RefContentID, firstToken(rawURL[len(p):]), true
		}
	}
	for _, p := range infohashPrefixes {
		if strings.HasPrefix(rawURL, p) {
			return RefInfohash, firstToken(rawURL[len(p):]), true
		}
	}
	return RefNone, "", false
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, '&'); i >= 0 {
		s = s[:i]
	}
	return s
}

// categoryKeywords maps a canonical group title to the keywords that imply
// it. Checked in map-iteration-independent, deterministic slice order.
var categoryKeywords = []struct {
	group    string
	keywords []string
}{
	{"Sports", []string{"sport", "espn", "football", "soccer", "nba", "nfl"}},
	{"News", []string{"news", "cnn", "bbc news", "msnbc"}},
	{"Movies", []string{"movie", "cinema", "film"}},
	{"Kids", []string{"kids", "cartoon", "junior", "disney"}},
	{"Music", []string{"music", "mtv", "vh1"}},
	{"Documentary", []string{"documentary", "discovery", "history"}},
}

// PopulateGroupTitle replaces existing with a canonical category when any
// keyword of that category matches either existing or title
// (case-insensitive substring). Otherwise it capitalises existing, falling
// back to "General" when existing is empty.
func PopulateGroupTitle(existing, title string) string {
	hay := strings.ToLower(existing + " " + title)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(hay, kw) {
				return c.group
			}
		}
	}
	if existing == "" {
		return "General"
	}
	return strings.ToUpper(existing[:1]) + existing[1:]
}
