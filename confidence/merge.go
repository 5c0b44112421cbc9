package confidence

import (
	"strings"

	"github.com/docutag/aboutus-scraper/models"
)

// Merge combines programmatic facts with AI facts. An absent programmatic value
// takes the AI value; a present one is replaced only when the AI declares a
// strictly higher confidence for that field. Locations are one field.
// The result's label is recomputed with the policy.
func (p Policy) Merge(programmatic, ai models.CompanyFacts) models.CompanyFacts {
	out := programmatic.Clone()

	for _, field := range models.ScalarFields {
		aiValue := strings.TrimSpace(ai.Get(field))
		if aiValue == "" {
			continue
		}
		if !out.Has(field) || fieldConfidence(ai, field).Rank() > fieldConfidence(programmatic, field).Rank() {
			out.Set(field, aiValue)
			out.FieldConfidence[field] = fieldConfidence(ai, field)
			out.FieldProvenance[field] = models.ProvenanceAI
		}
	}

	if len(ai.Locations) > 0 {
		if len(out.Locations) == 0 || fieldConfidence(ai, models.FieldLocations).Rank() > fieldConfidence(programmatic, models.FieldLocations).Rank() {
			out.Locations = append([]string{}, ai.Locations...)
			out.FieldConfidence[models.FieldLocations] = fieldConfidence(ai, models.FieldLocations)
			out.FieldProvenance[models.FieldLocations] = models.ProvenanceAI
		}
	}

	if ai.Profile != nil {
		profile := *ai.Profile
		out.Profile = &profile
	}

	out.Provenance = provenanceOf(out)
	out.Confidence = p.Label(out)
	return out
}

// fieldConfidence returns the declared confidence of a populated field. A populated
// field without a declaration counts as low.
func fieldConfidence(facts models.CompanyFacts, field string) models.Confidence {
	if c, ok := facts.FieldConfidence[field]; ok {
		return c
	}
	if facts.Has(field) {
		return models.ConfidenceLow
	}
	return ""
}

// provenanceOf derives the overall tag from the per-field provenance of populated fields
func provenanceOf(facts models.CompanyFacts) models.Provenance {
	populated, fromAI := 0, 0
	for _, field := range append(append([]string{}, models.ScalarFields...), models.FieldLocations) {
		if !facts.Has(field) {
			continue
		}
		populated++
		if facts.FieldProvenance[field] == models.ProvenanceAI {
			fromAI++
		}
	}
	switch {
	case fromAI == 0:
		return models.ProvenanceProgrammatic
	case fromAI == populated:
		return models.ProvenanceAI
	default:
		return models.ProvenanceMerged
	}
}
