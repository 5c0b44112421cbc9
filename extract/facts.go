// Package extract pulls company facts, content sections and labelled values out of parsed pages.
package extract

import (
	"fmt"
	"strings"

	"github.com/docutag/aboutus-scraper/confidence"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
	"github.com/docutag/aboutus-scraper/slug"
)

// maxLocations bounds the locations list
const maxLocations = 10

// ErrorKind classifies an extraction problem
type ErrorKind string

// KindNoContent means the page had no extractable text
const KindNoContent ErrorKind = "no_content"

// Error describes a page that yielded nothing. It is informational: callers
// turn it into a note and carry on with empty results.
type Error struct {
	Kind ErrorKind
	URL  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Kind)
}

// CheckContent returns an *Error when doc has no extractable text
func CheckContent(doc *page.Document) error {
	if doc == nil {
		return &Error{Kind: KindNoContent}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return &Error{Kind: KindNoContent, URL: doc.FinalURL}
	}
	return nil
}

// fieldRule is the matcher chain for one field
type fieldRule struct {
	field     string
	matchers  []Matcher
	plausible func(string) bool
	clean     func(string) string
}

func factRules(doc *page.Document) []fieldRule {
	return []fieldRule{
		{field: models.FieldFoundedYear, matchers: foundedYearMatchers, plausible: plausibleYear},
		{field: models.FieldEmployeeCount, matchers: employeeCountMatchers, plausible: plausibleCount, clean: cleanCount},
		{field: models.FieldHeadquarters, matchers: headquartersMatchers, plausible: plausiblePlace, clean: cleanPlace},
		{field: models.FieldMission, matchers: append(append([]Matcher{}, missionMatchers...), missionSectionMatcher(doc)), plausible: plausibleMission},
		{field: models.FieldIndustry, matchers: industryMatchers, plausible: plausibleShort},
		{field: models.FieldCEO, matchers: ceoMatchers, plausible: plausibleShort},
	}
}

// missionSectionMatcher falls back to the summary of a section headed like a mission statement
func missionSectionMatcher(doc *page.Document) Matcher {
	return Matcher{
		Name:       "mission_section",
		Confidence: models.ConfidenceMedium,
		Find: func(string) []string {
			var out []string
			for _, s := range ExtractSections(doc, 0) {
				if slug.HasToken(s.Name, "mission") || slug.HasToken(s.Name, "our purpose") {
					out = append(out, s.ContentSummary)
				}
			}
			return out
		},
	}
}

// NewFacts returns empty programmatic facts with confidence low
func NewFacts() models.CompanyFacts {
	return models.CompanyFacts{
		Locations:       []string{},
		Confidence:      models.ConfidenceLow,
		Provenance:      models.ProvenanceProgrammatic,
		FieldConfidence: map[string]models.Confidence{},
		FieldProvenance: map[string]models.Provenance{},
	}
}

// ExtractFacts runs every field's matcher chain over the page text. The first
// matcher whose value passes the field's plausibility check wins. Pages without
// text give empty facts with confidence low.
func ExtractFacts(doc *page.Document) models.CompanyFacts {
	facts := NewFacts()
	if CheckContent(doc) != nil {
		return facts
	}

	text := doc.Text
	if doc.Description != "" {
		text += "\n" + doc.Description
	}

	for _, rule := range factRules(doc) {
		value, m, ok := rule.apply(text)
		if !ok {
			continue
		}
		facts.Set(rule.field, value)
		facts.FieldConfidence[rule.field] = m.Confidence
		facts.FieldProvenance[rule.field] = models.ProvenanceProgrammatic
	}

	facts.Locations = extractLocations(doc, text, facts.Headquarters)
	if len(facts.Locations) > 0 {
		facts.FieldConfidence[models.FieldLocations] = locationsConfidence(facts)
		facts.FieldProvenance[models.FieldLocations] = models.ProvenanceProgrammatic
	}

	facts.Confidence = confidence.DefaultPolicy().Label(facts)
	return facts
}

func (r fieldRule) apply(text string) (string, Matcher, bool) {
	for _, m := range r.matchers {
		for _, value := range m.Find(text) {
			if r.clean != nil {
				value = r.clean(value)
			}
			value = page.CollapseSpace(value)
			if value != "" && r.plausible(value) {
				return value, m, true
			}
		}
	}
	return "", Matcher{}, false
}

func locationsConfidence(facts models.CompanyFacts) models.Confidence {
	if c, ok := facts.FieldConfidence[models.FieldHeadquarters]; ok {
		return c
	}
	return models.ConfidenceLow
}

// extractLocations lists the headquarters, every "City, Region" mention and every <address> block
func extractLocations(doc *page.Document, text, headquarters string) []string {
	locations := []string{}
	seen := make(map[string]bool)
	add := func(loc string) {
		loc = page.CollapseSpace(loc)
		key := strings.ToLower(loc)
		if loc == "" || seen[key] || len(locations) >= maxLocations {
			return
		}
		seen[key] = true
		locations = append(locations, loc)
	}

	add(headquarters)
	for _, m := range cityRegionPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, n := range doc.Selection().Find("address").Nodes {
		if addr := page.CollapseSpace(page.Text(n)); len(addr) <= 120 {
			add(addr)
		}
	}
	return locations
}

// FillGaps completes primary with the fields it lacks from secondary. It is used
// to let the root page fill in what the About page did not state.
func FillGaps(primary, secondary models.CompanyFacts) models.CompanyFacts {
	out := primary.Clone()
	for _, field := range models.ScalarFields {
		if out.Has(field) || !secondary.Has(field) {
			continue
		}
		out.Set(field, secondary.Get(field))
		if c, ok := secondary.FieldConfidence[field]; ok {
			out.FieldConfidence[field] = c
		}
		out.FieldProvenance[field] = models.ProvenanceProgrammatic
	}

	seen := make(map[string]bool, len(out.Locations))
	for _, loc := range out.Locations {
		seen[strings.ToLower(loc)] = true
	}
	for _, loc := range secondary.Locations {
		if len(out.Locations) >= maxLocations {
			break
		}
		if !seen[strings.ToLower(loc)] {
			seen[strings.ToLower(loc)] = true
			out.Locations = append(out.Locations, loc)
		}
	}
	if len(out.Locations) > 0 {
		if _, ok := out.FieldConfidence[models.FieldLocations]; !ok {
			out.FieldConfidence[models.FieldLocations] = models.ConfidenceLow
			if c, ok := secondary.FieldConfidence[models.FieldLocations]; ok {
				out.FieldConfidence[models.FieldLocations] = c
			}
		}
		out.FieldProvenance[models.FieldLocations] = models.ProvenanceProgrammatic
	}

	out.Confidence = confidence.DefaultPolicy().Label(out)
	return out
}
