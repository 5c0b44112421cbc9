package models

import (
	"encoding/json"
	"testing"
)

// TestPaginationNextCursorSerialization verifies next_cursor is null on the last page
func TestPaginationNextCursorSerialization(t *testing.T) {
	cursor := "eyJvZmZzZXQiOjEwfQ"

	withCursor := Pagination{NextCursor: &cursor, HasMore: true, TotalCount: 20}
	jsonBytes, err := json.Marshal(withCursor)
	if err != nil {
		t.Fatalf("Failed to marshal pagination: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	if unmarshaled["next_cursor"] != cursor {
		t.Errorf("next_cursor = %v, want %s", unmarshaled["next_cursor"], cursor)
	}

	lastPage := Pagination{TotalCount: 20}
	jsonBytes2, err := json.Marshal(lastPage)
	if err != nil {
		t.Fatalf("Failed to marshal pagination: %v", err)
	}

	var unmarshaled2 map[string]interface{}
	if err := json.Unmarshal(jsonBytes2, &unmarshaled2); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	value, exists := unmarshaled2["next_cursor"]
	if !exists {
		t.Fatal("next_cursor field is missing from JSON")
	}
	if value != nil {
		t.Errorf("next_cursor = %v, want null", value)
	}
}

func TestCompanyFactsAccessors(t *testing.T) {
	var facts CompanyFacts
	facts.Set(FieldFoundedYear, "1998")
	facts.Set(FieldMission, "To organize the world's information.")
	facts.Set("unknown", "ignored")

	if got := facts.Get(FieldFoundedYear); got != "1998" {
		t.Errorf("Get(founded_year) = %q, want 1998", got)
	}
	if facts.Has(FieldLocations) {
		t.Error("Has(locations) = true for empty locations")
	}
	if got := facts.KeyFieldCount(); got != 2 {
		t.Errorf("KeyFieldCount() = %d, want 2", got)
	}

	facts.Locations = []string{"Austin, TX", "Berlin, Germany"}
	if got := facts.Get(FieldLocations); got != "Austin, TX; Berlin, Germany" {
		t.Errorf("Get(locations) = %q", got)
	}
}

func TestCompanyFactsCloneIsIndependent(t *testing.T) {
	original := CompanyFacts{
		Locations:       []string{"Austin, TX"},
		FieldConfidence: map[string]Confidence{FieldHeadquarters: ConfidenceHigh},
		Profile:         &CompanyProfile{AboutUs: "original"},
	}

	clone := original.Clone()
	clone.Locations[0] = "Paris, France"
	clone.FieldConfidence[FieldHeadquarters] = ConfidenceLow
	clone.Profile.AboutUs = "changed"

	if original.Locations[0] != "Austin, TX" {
		t.Error("Clone shares the locations slice")
	}
	if original.FieldConfidence[FieldHeadquarters] != ConfidenceHigh {
		t.Error("Clone shares the field confidence map")
	}
	if original.Profile.AboutUs != "original" {
		t.Error("Clone shares the profile")
	}
}

func TestConfidenceRank(t *testing.T) {
	if !(ConfidenceLow.Rank() < ConfidenceMedium.Rank() && ConfidenceMedium.Rank() < ConfidenceHigh.Rank()) {
		t.Error("confidence ranks are not ordered low < medium < high")
	}
	if Confidence("bogus").Rank() >= ConfidenceLow.Rank() {
		t.Error("unknown confidence should rank below low")
	}
}
