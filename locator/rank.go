// Package locator finds the page of a site that best describes the company.
package locator

import (
	"net/url"
	"sort"
	"strings"

	"github.com/docutag/aboutus-scraper/fetch"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
)

// Score weights
const (
	weightPathKeyword = 3.0
	weightTextKeyword = 2.0
	weightNavRegion   = 2.0
	weightExternal    = -5.0
	weightCommonPath  = 1.0
	weightRootIsAbout = 5.0
)

// Source records where a candidate came from
type Source string

const (
	SourceRoot       Source = "root"
	SourceAnchor     Source = "anchor"
	SourceCommonPath Source = "common_path"
)

// Candidate is a URL hypothesised to be the About page
type Candidate struct {
	URL        string
	Score      float64
	Source     Source
	AnchorText string
	InNav      bool
}

// Label maps a candidate score to a confidence label
func (c Candidate) Label() models.Confidence {
	switch {
	case c.Score >= 5:
		return models.ConfidenceHigh
	case c.Score >= 3:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// pathKeywords are matched against URL paths
var pathKeywords = []string{"about", "company", "our-story", "ourstory", "who-we-are", "our-team"}

// textKeywords are matched against anchor text
var textKeywords = []string{"about", "company", "our story", "who we are", "our team"}

// rootAboutKeywords mark a root URL that already is an about page
var rootAboutKeywords = []string{"about", "company", "who-we-are", "our-story", "our-team"}

// commonPaths are guessed when the navigation does not link an about page
var commonPaths = []string{"/about", "/about-us", "/company", "/our-story", "/pages/about"}

const careersKeyword = "careers"

// candidateSource proposes candidates for a root page
type candidateSource func(root *url.URL, doc *page.Document, config Config) []Candidate

// candidateSources run in discovery order; ties in score keep this order
var candidateSources = []candidateSource{
	rootCandidate,
	anchorCandidates,
	commonPathCandidates,
}

// Rank returns the About-page candidates for rootDoc, best first, deduplicated
// by normalised URL and capped at config.MaxCandidates.
func Rank(rootDoc *page.Document, config Config) []Candidate {
	if rootDoc == nil {
		return nil
	}
	root, err := url.Parse(rootDoc.FinalURL)
	if err != nil || root.Host == "" {
		return nil
	}

	var candidates []Candidate
	for _, source := range candidateSources {
		candidates = append(candidates, source(root, rootDoc, config)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	rootKey := fetch.CanonicalKey(root.String())
	seen := make(map[string]bool)
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := fetch.CanonicalKey(c.URL)
		if seen[key] {
			continue
		}
		if key == rootKey && c.Source != SourceRoot {
			continue
		}
		seen[key] = true
		ranked = append(ranked, c)
		if config.MaxCandidates > 0 && len(ranked) == config.MaxCandidates {
			break
		}
	}
	return ranked
}

// IsAboutPath reports whether a URL path already looks like an about page
func IsAboutPath(path string) bool {
	path = strings.ToLower(path)
	for _, kw := range rootAboutKeywords {
		if strings.Contains(path, kw) {
			return true
		}
	}
	return false
}

func rootCandidate(root *url.URL, _ *page.Document, _ Config) []Candidate {
	if !IsAboutPath(root.Path) {
		return nil
	}
	return []Candidate{{
		URL:    root.String(),
		Score:  weightRootIsAbout + weightPathKeyword,
		Source: SourceRoot,
	}}
}

func anchorCandidates(root *url.URL, doc *page.Document, config Config) []Candidate {
	var out []Candidate
	for _, a := range doc.Anchors {
		u, err := url.Parse(a.Href)
		if err != nil {
			continue
		}
		pathHit := matchesAny(u.Path, pathKeywords, config.IncludeCareers)
		textHit := matchesAny(a.Text, textKeywords, config.IncludeCareers)
		if !pathHit && !textHit {
			continue
		}

		c := Candidate{URL: a.Href, Source: SourceAnchor, AnchorText: a.Text, InNav: a.InNav}
		if pathHit {
			c.Score += weightPathKeyword
		}
		if textHit {
			c.Score += weightTextKeyword
		}
		if a.InNav {
			c.Score += weightNavRegion
		}
		if !fetch.SameSite(u.Hostname(), root.Hostname()) {
			c.Score += weightExternal
		}
		out = append(out, c)
	}
	return out
}

func commonPathCandidates(root *url.URL, _ *page.Document, _ Config) []Candidate {
	out := make([]Candidate, 0, len(commonPaths))
	for _, p := range commonPaths {
		u := url.URL{Scheme: root.Scheme, Host: root.Host, Path: p}
		out = append(out, Candidate{
			URL:    u.String(),
			Score:  weightPathKeyword + weightCommonPath,
			Source: SourceCommonPath,
		})
	}
	return out
}

func matchesAny(s string, keywords []string, includeCareers bool) bool {
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return includeCareers && strings.Contains(s, careersKeyword)
}
