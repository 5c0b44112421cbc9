package ollama

import (
	"strings"
	"testing"

	"github.com/docutag/aboutus-scraper/models"
)

func TestParseResultTolerance(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantYear string
	}{
		{"bare object", `{"founded_year": "1999"}`, "1999"},
		{"number value", `{"founded_year": 1999}`, "1999"},
		{"object value with number", `{"founded_year": {"value": 1999, "confidence": "high"}}`, "1999"},
		{"prose around", `Sure! {"founded_year": "Founded in 1999"} Hope this helps.`, "1999"},
		{"fenced", "```\n{\"founded_year\": \"1999\"}\n```", "1999"},
		{"null value", `{"founded_year": null}`, ""},
		{"missing keys", `{}`, ""},
		{"array where string expected", `{"founded_year": ["1999"]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseResult(tt.text)
			if err != nil {
				t.Fatalf("ParseResult() error = %v", err)
			}
			if r.Facts.FoundedYear != tt.wantYear {
				t.Errorf("FoundedYear = %q, want %q", r.Facts.FoundedYear, tt.wantYear)
			}
			if r.Facts.Locations == nil {
				t.Error("Locations is nil")
			}
		})
	}
}

func TestParseResultMalformed(t *testing.T) {
	for _, text := range []string{"", "no json here", `{"founded_year": `, "[1, 2, 3]"} {
		t.Run(text, func(t *testing.T) {
			_, err := ParseResult(text)
			e, ok := err.(*Error)
			if !ok || e.Kind != KindMalformedResponse {
				t.Errorf("ParseResult(%q) error = %v, want malformed_response", text, err)
			}
		})
	}
}

func TestParseResultConfidence(t *testing.T) {
	r, err := ParseResult(`{
		"headquarters": {"value": "Paris, France", "confidence": "HIGH"},
		"ceo": {"value": "Marie Curie", "confidence": "certain"},
		"mission_statement": "To advance science for everyone."
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Facts.FieldConfidence[models.FieldHeadquarters]; got != models.ConfidenceHigh {
		t.Errorf("headquarters confidence = %s", got)
	}
	if got := r.Facts.FieldConfidence[models.FieldCEO]; got != models.ConfidenceMedium {
		t.Errorf("unknown confidence label mapped to %s, want medium", got)
	}
	if r.Facts.Mission != "To advance science for everyone." {
		t.Errorf("Mission = %q, want mission_statement fallback", r.Facts.Mission)
	}
	if r.Facts.Profile != nil {
		t.Errorf("Profile = %+v, want nil without profile text", r.Facts.Profile)
	}
}

func TestParseResultLocationsString(t *testing.T) {
	r, err := ParseResult(`{"locations": "Berlin, Germany; Munich, Germany; N/A"}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Facts.Locations) != 2 || r.Facts.Locations[1] != "Munich, Germany" {
		t.Errorf("Locations = %v", r.Facts.Locations)
	}
}

func TestBuildPromptTruncatesText(t *testing.T) {
	text := strings.Repeat("é", 100)
	prompt := buildPrompt(Input{URL: "https://acme.test", Title: "Acme", Text: text}, 51)
	if strings.Count(prompt, "é") != 25 {
		t.Errorf("prompt kept %d runes, want 25", strings.Count(prompt, "é"))
	}
	if !strings.Contains(prompt, "https://acme.test") || !strings.Contains(prompt, "Page Title: Acme") {
		t.Error("prompt is missing the page header")
	}
}
