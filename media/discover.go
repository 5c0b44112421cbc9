// Package media turns the media references of parsed pages into prioritised,
// deduplicated assets and pages through them with an opaque cursor.
package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
)

// MaxInlineDataURI is the largest data: URI kept as an image asset, in bytes
const MaxInlineDataURI = 2048

// Asset sources
const (
	SourceHTML   = "html"
	SourceAI     = "ai"
	SourceHTMLAI = "html+ai"
)

const contextJoiner = " | "

// skipPatterns mark UI chrome and tracking assets
var skipPatterns = []string{
	"arrow",
	"cart",
	"button",
	"spacer",
	"sprite",
	"spinner",
	"loader",
	"chevron",
	"hamburger",
	"1x1",
	"pixel.gif",
	"blank.gif",
	"transparent.gif",
	"tracking",
	"doubleclick",
}

// ShouldSkip reports whether a media URL is unusable: not http(s), an oversized
// or non-image data: URI, or UI chrome
func ShouldSkip(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "data:") {
		return !strings.HasPrefix(lower, "data:image/") || len(rawURL) > MaxInlineDataURI
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return true
	}
	for _, p := range skipPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

type entry struct {
	asset    models.MediaAsset
	contexts []string
	fromHTML bool
	fromAI   bool
}

func (e *entry) addContext(c string) {
	c = strings.TrimSpace(c)
	if c == "" {
		return
	}
	for _, existing := range e.contexts {
		if strings.EqualFold(existing, c) {
			return
		}
	}
	e.contexts = append(e.contexts, c)
}

// collector deduplicates assets by URL and kind in discovery order
type collector struct {
	order   []string
	entries map[string]*entry
}

func newCollector() *collector {
	return &collector{entries: make(map[string]*entry)}
}

func (c *collector) add(a models.MediaAsset, fromAI bool) {
	key := string(a.Kind) + " " + a.URL
	e, ok := c.entries[key]
	if !ok {
		e = &entry{asset: a}
		e.asset.Context = ""
		c.entries[key] = e
		c.order = append(c.order, key)
	}
	e.addContext(a.Context)
	if fromAI {
		e.fromAI = true
	} else {
		e.fromHTML = true
	}
	if a.Priority > e.asset.Priority {
		e.asset.Priority = a.Priority
	}
	if e.asset.Width == 0 && e.asset.Height == 0 {
		e.asset.Width, e.asset.Height = a.Width, a.Height
	}
	if e.asset.Poster == "" {
		e.asset.Poster = a.Poster
	}
}

func (c *collector) assets() []models.MediaAsset {
	out := make([]models.MediaAsset, 0, len(c.order))
	for _, key := range c.order {
		e := c.entries[key]
		a := e.asset
		a.Context = strings.Join(e.contexts, contextJoiner)
		switch {
		case e.fromHTML && e.fromAI:
			a.Source = SourceHTMLAI
		case e.fromAI:
			a.Source = SourceAI
		default:
			a.Source = SourceHTML
		}
		if a.Kind == models.MediaVideo {
			a.Thumbnail = ResolveThumbnail(a.URL, a.Poster)
		}
		out = append(out, a)
	}
	return out
}

// Discover builds the media assets of one or more pages plus the media the AI
// enhancer mentioned. Assets are unique per URL and kind: duplicates keep the
// highest priority and the union of their contexts. Every video carries a
// thumbnail. The result is in discovery order.
func Discover(docs []*page.Document, mentions []models.MediaMention) []models.MediaAsset {
	c := newCollector()
	var base *page.Document
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if base == nil {
			base = doc
		}
		for _, d := range doc.Media {
			if ShouldSkip(d.URL) {
				continue
			}
			poster := d.Poster
			if poster != "" && ShouldSkip(poster) {
				poster = ""
			}
			c.add(models.MediaAsset{
				URL:      d.URL,
				Kind:     d.Kind,
				Context:  d.Context,
				Priority: Priority(d.Kind, d.Context, d.URL),
				Width:    d.Width,
				Height:   d.Height,
				Poster:   poster,
			}, false)
		}
	}

	for _, m := range mentions {
		abs, ok := resolveMention(base, m.URL)
		if !ok || ShouldSkip(abs) {
			continue
		}
		kind := m.Kind
		if !validKind(kind) {
			kind = GuessKind(abs)
		}
		c.add(models.MediaAsset{
			URL:      abs,
			Kind:     kind,
			Context:  m.Context,
			Priority: Priority(kind, m.Context, abs),
		}, true)
	}
	return c.assets()
}

func resolveMention(base *page.Document, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "data:") {
		return raw, true
	}
	if base != nil {
		return base.Resolve(raw)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

func validKind(k models.MediaKind) bool {
	switch k {
	case models.MediaImage, models.MediaVideo, models.MediaDocument, models.MediaIcon:
		return true
	}
	return false
}

var documentExtensions = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

var videoExtensions = map[string]bool{".mp4": true, ".webm": true, ".mov": true, ".m4v": true, ".ogv": true}

// GuessKind infers the kind of a URL reported without one
func GuessKind(rawURL string) models.MediaKind {
	if _, _, ok := platformVideo(rawURL); ok {
		return models.MediaVideo
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.MediaImage
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch {
	case documentExtensions[ext]:
		return models.MediaDocument
	case videoExtensions[ext]:
		return models.MediaVideo
	case ext == ".ico":
		return models.MediaIcon
	}
	return models.MediaImage
}

// Group splits assets by kind, keeping their order
func Group(assets []models.MediaAsset) models.MediaGroups {
	g := models.MediaGroups{
		Images:    []models.MediaAsset{},
		Videos:    []models.MediaAsset{},
		Documents: []models.MediaAsset{},
		Icons:     []models.MediaAsset{},
	}
	for _, a := range assets {
		switch a.Kind {
		case models.MediaVideo:
			g.Videos = append(g.Videos, a)
		case models.MediaDocument:
			g.Documents = append(g.Documents, a)
		case models.MediaIcon:
			g.Icons = append(g.Icons, a)
		default:
			g.Images = append(g.Images, a)
		}
	}
	return g
}

// Summarize counts assets per kind
func Summarize(assets []models.MediaAsset) models.MediaSummary {
	g := Group(assets)
	return models.MediaSummary{
		TotalAssets:    len(assets),
		ImagesCount:    len(g.Images),
		VideosCount:    len(g.Videos),
		DocumentsCount: len(g.Documents),
		IconsCount:     len(g.Icons),
	}
}
