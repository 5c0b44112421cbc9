// Package slug normalises free text into lower-case ASCII hyphenated tokens.
package slug

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	invalidChars = regexp.MustCompile("[^a-z0-9-]+")
	hyphenRuns   = regexp.MustCompile("-+")
)

// maxLength bounds generated slugs
const maxLength = 100

// Generate creates a slug from a string: "Notre Équipe" becomes "notre-equipe"
func Generate(s string) string {
	s = normalize(s)
	if len(s) > maxLength {
		s = strings.TrimRight(s[:maxLength], "-")
	}
	return s
}

// normalize is Generate without the length bound
func normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = transliterate(s)

	// Separators become hyphens before everything else non-alphanumeric is dropped
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '/' || r == '.' || r == '&' {
			return '-'
		}
		return r
	}, s)
	s = invalidChars.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// HasToken reports whether the slug of s contains phrase as a whole hyphen-delimited
// token sequence. phrase is itself slugged, so "our team" matches "Meet Our Team!".
// s is not length-bounded, so long text is searched in full.
func HasToken(s, phrase string) bool {
	p := normalize(phrase)
	if p == "" {
		return false
	}
	return strings.Contains("-"+normalize(s)+"-", "-"+p+"-")
}

// transliterate strips diacritics by decomposing and dropping nonspacing marks
func transliterate(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// FromURL generates a slug from the file name of a URL, without its extension
func FromURL(rawURL string) string {
	if rawURL == "" || strings.HasPrefix(rawURL, "data:") {
		return ""
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return Generate(name)
}
