package page

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/docutag/aboutus-scraper/models"
	readability "github.com/go-shiori/go-readability"
)

// navRegion matches the structural regions that hold primary navigation
var navRegion = cascadia.MustCompile("nav, header, footer, [role=navigation]")

var backgroundImagePattern = regexp.MustCompile(`(?i)background(?:-image)?\s*:[^;]*url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// documentExtensions are link targets treated as documents
var documentExtensions = []string{".pdf", ".doc", ".docx"}

// videoPlatformHosts are iframe hosts whose embeds are videos
var videoPlatformHosts = []string{"youtube.com", "youtube-nocookie.com", "youtu.be", "vimeo.com", "dailymotion.com", "wistia.com", "wistia.net"}

// Parse builds a Document from a fetched body. finalURL is the post-redirect
// address and is used as the base for relative references unless the page
// declares <base href>.
func Parse(sourceURL, finalURL string, raw []byte) (*Document, error) {
	if finalURL == "" {
		finalURL = sourceURL
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Kind: KindEmptyDocument, URL: finalURL}
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, &ParseError{Kind: KindEmptyDocument, URL: finalURL, Err: err}
	}

	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Kind: KindEmptyDocument, URL: finalURL, Err: err}
	}

	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	doc := &Document{
		SourceURL: sourceURL,
		FinalURL:  finalURL,
		HTML:      string(raw),
		Meta:      extractMeta(dom),
		base:      base,
		dom:       dom,
	}
	if len(dom.Nodes) > 0 {
		doc.Text = Text(dom.Nodes[0])
	}

	article, readErr := readability.FromReader(bytes.NewReader(raw), base)
	if readErr == nil {
		if content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil && len(content.Nodes) > 0 {
			doc.MainText = Text(content.Nodes[0])
		}
	}
	if doc.MainText == "" {
		doc.MainText = doc.Text
	}

	doc.Title = firstNonEmpty(
		CollapseSpace(dom.Find("title").First().Text()),
		doc.MetaContent("og:title", "twitter:title"),
		CollapseSpace(dom.Find("h1").First().Text()),
		articleField(readErr, article.Title),
	)
	doc.Description = firstNonEmpty(
		doc.MetaContent("description", "og:description", "twitter:description"),
		articleField(readErr, article.Excerpt),
	)
	doc.SiteName = firstNonEmpty(
		doc.MetaContent("og:site_name", "application-name"),
		articleField(readErr, article.SiteName),
	)
	doc.Language = detectPageLanguage(dom, doc.Text)
	doc.Anchors = extractAnchors(dom, base)
	doc.Media = extractMedia(dom, base)

	return doc, nil
}

func articleField(err error, v string) string {
	if err != nil {
		return ""
	}
	return CollapseSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// extractMeta maps meta name/property keys to their first non-empty content
func extractMeta(dom *goquery.Document) map[string]string {
	meta := make(map[string]string)
	dom.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		for _, attr := range []string{"name", "property", "itemprop"} {
			key := strings.ToLower(strings.TrimSpace(s.AttrOr(attr, "")))
			if key == "" {
				continue
			}
			if _, exists := meta[key]; !exists {
				meta[key] = content
			}
		}
	})
	return meta
}

func extractAnchors(dom *goquery.Document, base *url.URL) []Anchor {
	var anchors []Anchor
	dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := resolveURL(base, s.AttrOr("href", ""))
		if !ok {
			return
		}
		text := CollapseSpace(s.Text())
		if text == "" {
			text = firstNonEmpty(s.AttrOr("aria-label", ""), s.AttrOr("title", ""))
		}
		anchors = append(anchors, Anchor{
			Href:  href,
			Text:  text,
			InNav: s.ClosestMatcher(navRegion).Length() > 0,
		})
	})
	return anchors
}

func extractMedia(dom *goquery.Document, base *url.URL) []MediaDescriptor {
	var media []MediaDescriptor
	add := func(raw string, kind models.MediaKind, s *goquery.Selection) {
		resolved, ok := resolveMediaURL(base, raw)
		if !ok {
			return
		}
		d := MediaDescriptor{
			URL:     resolved,
			Kind:    kind,
			Tag:     goquery.NodeName(s),
			Context: elementContext(s),
			Width:   dimension(s.AttrOr("width", "")),
			Height:  dimension(s.AttrOr("height", "")),
		}
		if d.Tag == "video" {
			d.Poster, _ = resolveURL(base, s.AttrOr("poster", ""))
		}
		media = append(media, d)
	}

	// Document order across all media elements keeps discovery order stable
	dom.Find("img, video, source, iframe, a[href], link[rel], [style]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "img":
			for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
				if v := s.AttrOr(attr, ""); v != "" {
					add(v, models.MediaImage, s)
					break
				}
			}
		case "video":
			if v := s.AttrOr("src", ""); v != "" {
				add(v, models.MediaVideo, s)
			} else if s.Find("source[src]").Length() == 0 {
				if poster := s.AttrOr("poster", ""); poster != "" {
					add(poster, models.MediaImage, s)
				}
			}
		case "source":
			parent := s.Parent()
			switch goquery.NodeName(parent) {
			case "video":
				if v := s.AttrOr("src", ""); v != "" {
					resolved, ok := resolveMediaURL(base, v)
					if !ok {
						return
					}
					poster, _ := resolveURL(base, parent.AttrOr("poster", ""))
					media = append(media, MediaDescriptor{
						URL:     resolved,
						Kind:    models.MediaVideo,
						Tag:     "video",
						Context: elementContext(parent),
						Poster:  poster,
						Width:   dimension(parent.AttrOr("width", "")),
						Height:  dimension(parent.AttrOr("height", "")),
					})
				}
			case "picture":
				if v := firstSrcset(s.AttrOr("srcset", s.AttrOr("src", ""))); v != "" {
					add(v, models.MediaImage, s)
				}
			}
		case "iframe":
			src := s.AttrOr("src", s.AttrOr("data-src", ""))
			if isVideoPlatform(src) {
				add(src, models.MediaVideo, s)
			}
		case "a":
			href := s.AttrOr("href", "")
			if isDocumentLink(href) {
				add(href, models.MediaDocument, s)
			}
		case "link":
			rel := strings.ToLower(s.AttrOr("rel", ""))
			if rel == "icon" || rel == "shortcut icon" || rel == "apple-touch-icon" || rel == "apple-touch-icon-precomposed" {
				add(s.AttrOr("href", ""), models.MediaIcon, s)
			}
		}

		if style := s.AttrOr("style", ""); style != "" {
			if m := backgroundImagePattern.FindStringSubmatch(style); m != nil {
				add(m[1], models.MediaImage, s)
			}
		}
	})
	return media
}

// resolveMediaURL resolves like resolveURL but lets data: URIs through untouched
func resolveMediaURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "data:") {
		return raw, true
	}
	return resolveURL(base, raw)
}

// elementContext gathers the descriptive attributes of a media element and any enclosing caption
func elementContext(s *goquery.Selection) string {
	var parts []string
	for _, attr := range []string{"alt", "title", "aria-label", "class", "id", "rel"} {
		if v := CollapseSpace(s.AttrOr(attr, "")); v != "" {
			parts = append(parts, v)
		}
	}
	if goquery.NodeName(s) == "a" {
		if text := CollapseSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	if caption := CollapseSpace(s.Closest("figure").Find("figcaption").First().Text()); caption != "" {
		parts = append(parts, caption)
	}
	return strings.Join(parts, " ")
}

func dimension(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(v)), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// firstSrcset returns the first candidate URL of a srcset attribute
func firstSrcset(srcset string) string {
	first := strings.TrimSpace(strings.Split(srcset, ",")[0])
	if fields := strings.Fields(first); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func isDocumentLink(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range documentExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func isVideoPlatform(src string) bool {
	if src == "" {
		return false
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, platform := range videoPlatformHosts {
		if host == platform || strings.HasSuffix(host, "."+platform) {
			return true
		}
	}
	return false
}
