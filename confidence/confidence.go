// Package confidence grades extracted company facts, decides when the AI
// enhancer is worth calling and merges its answer into programmatic results.
package confidence

import (
	"fmt"
	"strings"

	"github.com/docutag/aboutus-scraper/models"
)

// Policy holds the tunable thresholds of the scorer and the escalation rule
type Policy struct {
	HighFields    int // Key facts needed for "high"
	MediumFields  int // Key facts needed for "medium"
	MinKeyFields  int // Fewer populated key facts than this escalates to AI
	MinTextLength int // Shorter page text than this escalates to AI
}

// DefaultPolicy returns the default thresholds
func DefaultPolicy() Policy {
	return Policy{
		HighFields:    3,
		MediumFields:  1,
		MinKeyFields:  2,
		MinTextLength: 500,
	}
}

// Assessment is the result of scoring one set of facts
type Assessment struct {
	Label     models.Confidence
	KeyFields int
	Reasons   []string
}

// Label grades facts by how many key facts are populated
func (p Policy) Label(facts models.CompanyFacts) models.Confidence {
	n := facts.KeyFieldCount()
	switch {
	case n >= p.HighFields:
		return models.ConfidenceHigh
	case n >= p.MediumFields:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Score grades facts and lists what is missing
func (p Policy) Score(facts models.CompanyFacts, sections []models.Section) Assessment {
	a := Assessment{
		Label:     p.Label(facts),
		KeyFields: facts.KeyFieldCount(),
	}

	var missing []string
	for _, field := range models.KeyFactFields {
		if !facts.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		a.Reasons = append(a.Reasons, "missing "+strings.Join(missing, ", "))
	}
	if len(sections) == 0 {
		a.Reasons = append(a.Reasons, "no content sections")
	}
	return a
}

// ShouldEscalate applies the escalation rule and returns the reason for calling the AI enhancer
func (p Policy) ShouldEscalate(a Assessment, force bool, textLength int) (bool, string) {
	switch {
	case force:
		return true, "forced by request"
	case a.Label == models.ConfidenceLow:
		return true, "programmatic confidence is low"
	case a.KeyFields < p.MinKeyFields:
		return true, fmt.Sprintf("only %d of %d key facts found", a.KeyFields, len(models.KeyFactFields))
	case textLength < p.MinTextLength:
		return true, fmt.Sprintf("page text too short (%d characters)", textLength)
	default:
		return false, fmt.Sprintf("programmatic confidence is %s", a.Label)
	}
}
