package extract

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
	"github.com/docutag/aboutus-scraper/slug"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Section bounds
const (
	maxExcerptChars = 500
	maxSummaryChars = 200
	maxNameChars    = 80
)

// category is a canonical section name with the heading phrases that map to it
type category struct {
	name     string
	synonyms []string
}

// canonicalCategories are in ranking order
var canonicalCategories = []category{
	{"about", []string{"about", "about us", "who we are", "our story", "story", "company", "overview", "history"}},
	{"culture", []string{"culture", "values", "our values", "life at", "working at", "benefits"}},
	{"team", []string{"team", "our team", "leadership", "people", "our people", "founders", "management"}},
	{"mission", []string{"mission", "vision", "purpose"}},
	{"locations", []string{"locations", "location", "offices", "office", "where we are", "find us", "visit us", "contact"}},
	{"careers", []string{"careers", "jobs", "join us", "work with us", "hiring"}},
}

// sectionSkip elements hold no section content
var sectionSkip = map[atom.Atom]bool{
	atom.Nav: true, atom.Footer: true, atom.Script: true, atom.Style: true,
	atom.Noscript: true, atom.Template: true, atom.Svg: true, atom.Head: true,
}

var headingLevels = map[atom.Atom]int{atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4}

// Categorize returns the canonical category of a heading, or "" when none applies
func Categorize(heading string) string {
	for _, c := range canonicalCategories {
		for _, syn := range c.synonyms {
			if slug.HasToken(heading, syn) {
				return c.name
			}
		}
	}
	return ""
}

func categoryRank(name string) int {
	for i, c := range canonicalCategories {
		if c.name == name {
			return i
		}
	}
	return len(canonicalCategories)
}

type openSection struct {
	level int
	name  string
	text  strings.Builder
}

// ExtractSections splits the page by h1-h4 headings. Text belongs to every open
// heading until a heading of equal or higher level closes it. When maxSections
// is positive the sections are ranked by canonical category and the lowest
// ranked are dropped; otherwise they are returned in document order.
func ExtractSections(doc *page.Document, maxSections int) []models.Section {
	sections := []models.Section{}
	if doc == nil {
		return sections
	}
	body := doc.Selection().Find("body").First()
	if body.Length() == 0 {
		return sections
	}

	var all []*openSection
	var stack []*openSection
	write := func(s string) {
		for _, open := range stack {
			open.text.WriteString(s)
		}
	}

	var f func(*html.Node)
	f = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			write(n.Data)
			return
		case html.ElementNode:
			if sectionSkip[n.DataAtom] {
				return
			}
			if level, ok := headingLevels[n.DataAtom]; ok {
				for len(stack) > 0 && stack[len(stack)-1].level >= level {
					stack = stack[:len(stack)-1]
				}
				s := &openSection{level: level, name: page.CollapseSpace(page.Text(n))}
				if s.name == "" {
					return
				}
				all = append(all, s)
				stack = append(stack, s)
				return
			}
			write(" ")
			defer write(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(body.Nodes[0])

	for _, s := range all {
		text := page.CollapseSpace(s.text.String())
		if text == "" {
			continue
		}
		name := truncateRunes(s.name, maxNameChars)
		sections = append(sections, models.Section{
			Name:           name,
			ContentSummary: shorten(text, maxSummaryChars),
			RawExcerpt:     truncateRunes(text, maxExcerptChars),
			Category:       Categorize(name),
		})
	}

	if maxSections > 0 {
		sort.SliceStable(sections, func(i, j int) bool {
			return categoryRank(sections[i].Category) < categoryRank(sections[j].Category)
		})
		if len(sections) > maxSections {
			sections = sections[:maxSections]
		}
	}
	return sections
}

// shorten cuts text to at most limit characters on a word boundary and adds "..."
func shorten(text string, limit int) string {
	text = page.CollapseSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	cut := truncateRunes(text, limit-3)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + "..."
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
