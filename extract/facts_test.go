package extract

import (
	"errors"
	"testing"

	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
)

func mustParse(t *testing.T, body string) *page.Document {
	t.Helper()
	doc, err := page.Parse("https://acme.test", "https://acme.test/about", []byte("<html><head><title>Acme</title></head><body>"+body+"</body></html>"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestExtractFactsFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  string
		conf  models.Confidence
	}{
		{"founded in", `<p>Acme was founded in 1998 by two engineers.</p>`, models.FieldFoundedYear, "1998", models.ConfidenceHigh},
		{"established", `<p>Established back in 2004, we keep growing.</p>`, models.FieldFoundedYear, "2004", models.ConfidenceHigh},
		{"since", `<p>Serving customers since 1987 with pride.</p>`, models.FieldFoundedYear, "1987", models.ConfidenceMedium},
		{"employees", `<p>We have 250 employees worldwide.</p>`, models.FieldEmployeeCount, "250", models.ConfidenceHigh},
		{"team of", `<p>A team of over 1,200 across the globe.</p>`, models.FieldEmployeeCount, "1200", models.ConfidenceMedium},
		{"headquartered", `<p>We are headquartered in Austin, Texas.</p>`, models.FieldHeadquarters, "Austin, Texas", models.ConfidenceHigh},
		{"based in", `<p>The company is based in San Francisco.</p>`, models.FieldHeadquarters, "San Francisco", models.ConfidenceMedium},
		{"city region", `<p>Visit our office at Portland, OR any weekday.</p>`, models.FieldHeadquarters, "Portland, OR", models.ConfidenceLow},
		{"mission", `<p>Our mission is to make software simple for everyone.</p>`, models.FieldMission, "Our mission is to make software simple for everyone.", models.ConfidenceHigh},
		{"industry label", `<p>Industry: Aerospace</p>`, models.FieldIndustry, "Aerospace", models.ConfidenceHigh},
		{"ceo", `<p>Our CEO Jane Smith leads the company.</p>`, models.FieldCEO, "Jane Smith", models.ConfidenceHigh},
		{"ceo after name", `<p>John Doe, our CEO, joined early.</p>`, models.FieldCEO, "John Doe", models.ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := ExtractFacts(mustParse(t, tt.body))
			if got := facts.Get(tt.field); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
			if got := facts.FieldConfidence[tt.field]; got != tt.conf {
				t.Errorf("confidence = %s, want %s", got, tt.conf)
			}
			if got := facts.FieldProvenance[tt.field]; got != models.ProvenanceProgrammatic {
				t.Errorf("provenance = %s", got)
			}
		})
	}
}

func TestExtractFactsRejectsImplausibleValues(t *testing.T) {
	facts := ExtractFacts(mustParse(t, `<p>Founded in 2999 on Mars.</p><p>We have 0 employees.</p>`))
	if facts.FoundedYear != "" {
		t.Errorf("FoundedYear = %q, want empty", facts.FoundedYear)
	}
	if facts.EmployeeCount != "" {
		t.Errorf("EmployeeCount = %q, want empty", facts.EmployeeCount)
	}
}

func TestExtractFactsSkipsImplausibleMatchForLaterOne(t *testing.T) {
	facts := ExtractFacts(mustParse(t, `<p>Acme was founded on trust, with a 2099 target. Acme was founded in 1999.</p>`))
	if facts.FoundedYear != "1999" {
		t.Errorf("FoundedYear = %q, want 1999", facts.FoundedYear)
	}
}

func TestExtractFactsConfidenceLabel(t *testing.T) {
	doc := mustParse(t, `
		<p>Acme was founded in 1998.</p>
		<p>We are headquartered in Denver, CO.</p>
		<p>We have 300 employees.</p>`)

	facts := ExtractFacts(doc)
	if facts.Confidence != models.ConfidenceHigh {
		t.Errorf("Confidence = %s, want high (facts %+v)", facts.Confidence, facts)
	}
	if facts.Provenance != models.ProvenanceProgrammatic {
		t.Errorf("Provenance = %s", facts.Provenance)
	}
}

func TestExtractFactsEmptyPage(t *testing.T) {
	for name, doc := range map[string]*page.Document{
		"nil":        nil,
		"empty body": mustParse(t, ""),
	} {
		t.Run(name, func(t *testing.T) {
			facts := ExtractFacts(doc)
			if facts.Confidence != models.ConfidenceLow {
				t.Errorf("Confidence = %s, want low", facts.Confidence)
			}
			if facts.KeyFieldCount() != 0 {
				t.Errorf("KeyFieldCount = %d, want 0", facts.KeyFieldCount())
			}
			if facts.Locations == nil {
				t.Error("Locations is nil, want empty slice")
			}
		})
	}
}

func TestCheckContent(t *testing.T) {
	err := CheckContent(mustParse(t, "   "))
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindNoContent {
		t.Fatalf("CheckContent() = %v, want no_content", err)
	}
	if err := CheckContent(mustParse(t, "<p>hello</p>")); err != nil {
		t.Errorf("CheckContent() = %v, want nil", err)
	}
}

func TestExtractLocations(t *testing.T) {
	doc := mustParse(t, `
		<p>We are headquartered in Denver, CO.</p>
		<p>Offices in Austin, TX and Toronto, Canada.</p>
		<address>12 Market Street, Leeds</address>`)

	facts := ExtractFacts(doc)
	want := []string{"Denver, CO", "Austin, TX", "Toronto, Canada", "12 Market Street, Leeds"}
	if len(facts.Locations) != len(want) {
		t.Fatalf("Locations = %v, want %v", facts.Locations, want)
	}
	for i := range want {
		if facts.Locations[i] != want[i] {
			t.Errorf("Locations[%d] = %q, want %q", i, facts.Locations[i], want[i])
		}
	}
	if facts.FieldConfidence[models.FieldLocations] != models.ConfidenceHigh {
		t.Errorf("locations confidence = %s", facts.FieldConfidence[models.FieldLocations])
	}
}

func TestMissionFromSection(t *testing.T) {
	doc := mustParse(t, `<h2>Our Mission</h2><p>Bringing clean water to every village on earth.</p>`)
	facts := ExtractFacts(doc)
	if facts.Mission != "Bringing clean water to every village on earth." {
		t.Errorf("Mission = %q", facts.Mission)
	}
	if facts.FieldConfidence[models.FieldMission] != models.ConfidenceMedium {
		t.Errorf("mission confidence = %s", facts.FieldConfidence[models.FieldMission])
	}
}

func TestFillGaps(t *testing.T) {
	about := ExtractFacts(mustParse(t, `<p>Acme was founded in 1998.</p>`))
	root := ExtractFacts(mustParse(t, `<p>Founded in 2001. We are headquartered in Denver, CO.</p>`))

	merged := FillGaps(about, root)
	if merged.FoundedYear != "1998" {
		t.Errorf("FoundedYear = %q, want primary value", merged.FoundedYear)
	}
	if merged.Headquarters != "Denver, CO" {
		t.Errorf("Headquarters = %q, want filled from secondary", merged.Headquarters)
	}
	if len(merged.Locations) == 0 || merged.Locations[0] != "Denver, CO" {
		t.Errorf("Locations = %v", merged.Locations)
	}
	if about.Headquarters != "" {
		t.Error("primary facts were mutated")
	}
}
