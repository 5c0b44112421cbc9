// Package page parses fetched HTML into an immutable Document used by the extractors.
package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/docutag/aboutus-scraper/models"
)

// ErrorKind classifies a parse failure
type ErrorKind string

// KindEmptyDocument means the body held no markup at all
const KindEmptyDocument ErrorKind = "empty_document"

// ParseError is returned by Parse when no document can be built
type ParseError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Kind)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Anchor is a link found on the page
type Anchor struct {
	Href  string // Absolute http(s) URL
	Text  string
	InNav bool // Inside nav, header, footer or role=navigation
}

// MediaDescriptor is a raw media reference found in the markup
type MediaDescriptor struct {
	URL     string // Absolute http(s) URL or a data: URI
	Kind    models.MediaKind
	Tag     string // Element the reference came from
	Context string // alt, title, class, id, aria-label and caption text
	Poster  string // Absolute poster URL for <video>
	Width   int
	Height  int
}

// Document is a fetched and parsed page. It is built once by Parse and must not be modified.
type Document struct {
	SourceURL   string
	FinalURL    string
	HTML        string
	Title       string
	Language    string // ISO 639-1, empty when unknown
	Description string
	SiteName    string
	Anchors     []Anchor
	Meta        map[string]string // name or property (lower-case) to content
	Media       []MediaDescriptor
	Text        string // Visible text, one block per line
	MainText    string // Readability main content, Text when unavailable

	base *url.URL
	dom  *goquery.Document
}

// Selection returns the root selection for read-only queries
func (d *Document) Selection() *goquery.Selection {
	if d == nil || d.dom == nil {
		return &goquery.Selection{}
	}
	return d.dom.Selection
}

// Base returns a copy of the URL used to resolve relative references
func (d *Document) Base() *url.URL {
	u := *d.base
	return &u
}

// Resolve turns href into an absolute http(s) URL against the document base
func (d *Document) Resolve(href string) (string, bool) {
	return resolveURL(d.base, href)
}

// MetaContent returns the first non-empty content for the given meta names or properties
func (d *Document) MetaContent(keys ...string) string {
	for _, k := range keys {
		if v := d.Meta[strings.ToLower(k)]; v != "" {
			return v
		}
	}
	return ""
}

// resolveURL resolves a potentially relative URL against a base URL
func resolveURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}
