package ollama

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docutag/aboutus-scraper/models"
)

// Result is the structured answer of one enhancement
type Result struct {
	Facts    models.CompanyFacts // Provenance ai on every populated field
	Summary  string
	Mentions []models.MediaMention
}

// defaultConfidence applies to values the model returned without a confidence
const defaultConfidence = models.ConfidenceMedium

type rawResult struct {
	FoundedYear      json.RawMessage `json:"founded_year"`
	EmployeeCount    json.RawMessage `json:"employee_count"`
	Headquarters     json.RawMessage `json:"headquarters"`
	Mission          json.RawMessage `json:"mission"`
	MissionStatement json.RawMessage `json:"mission_statement"`
	Industry         json.RawMessage `json:"industry"`
	CEO              json.RawMessage `json:"ceo"`
	Locations        json.RawMessage `json:"locations"`
	AboutUs          json.RawMessage `json:"about_us"`
	OurCulture       json.RawMessage `json:"our_culture"`
	OurTeam          json.RawMessage `json:"our_team"`
	Noteworthy       json.RawMessage `json:"noteworthy_and_differentiated"`
	LocationsSummary json.RawMessage `json:"locations_summary"`
	Summary          json.RawMessage `json:"summary"`
	Media            json.RawMessage `json:"media"`
}

type rawField struct {
	Value      json.RawMessage `json:"value"`
	Confidence string          `json:"confidence"`
}

type rawMention struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

var (
	codeFence   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	yearInText  = regexp.MustCompile(`\b(1[7-9]\d{2}|20\d{2})\b`)
	countInText = regexp.MustCompile(`\d[\d,]*`)
)

// emptyValues are placeholders models use for unknown facts
var emptyValues = map[string]bool{
	"": true, "unknown": true, "n/a": true, "na": true, "none": true, "null": true,
	"not specified": true, "not mentioned": true, "not available": true, "empty": true,
}

// ParseResult decodes a model answer. It tolerates code fences, prose around
// the JSON object, plain string or number values in place of
// {"value","confidence"} objects and missing keys.
func ParseResult(text string) (*Result, error) {
	obj, err := extractObject(text)
	if err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: err}
	}
	var raw rawResult
	if err := json.Unmarshal(obj, &raw); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: fmt.Errorf("failed to decode profile: %w", err)}
	}

	facts := models.CompanyFacts{
		Locations:       []string{},
		Provenance:      models.ProvenanceAI,
		FieldConfidence: map[string]models.Confidence{},
		FieldProvenance: map[string]models.Provenance{},
	}
	mission := raw.Mission
	if len(mission) == 0 || string(mission) == "null" {
		mission = raw.MissionStatement
	}
	fields := []struct {
		name  string
		raw   json.RawMessage
		clean func(string) string
	}{
		{models.FieldFoundedYear, raw.FoundedYear, cleanYear},
		{models.FieldEmployeeCount, raw.EmployeeCount, cleanCount},
		{models.FieldHeadquarters, raw.Headquarters, nil},
		{models.FieldMission, mission, nil},
		{models.FieldIndustry, raw.Industry, nil},
		{models.FieldCEO, raw.CEO, nil},
	}
	for _, f := range fields {
		value, conf, ok := decodeField(f.raw)
		if !ok {
			continue
		}
		if f.clean != nil {
			value = f.clean(value)
		}
		if value == "" {
			continue
		}
		facts.Set(f.name, value)
		facts.FieldConfidence[f.name] = conf
		facts.FieldProvenance[f.name] = models.ProvenanceAI
	}

	if locs, conf := decodeLocations(raw.Locations); len(locs) > 0 {
		facts.Locations = locs
		facts.FieldConfidence[models.FieldLocations] = conf
		facts.FieldProvenance[models.FieldLocations] = models.ProvenanceAI
	}

	profile := models.CompanyProfile{
		AboutUs:    decodeText(raw.AboutUs),
		OurCulture: decodeText(raw.OurCulture),
		OurTeam:    decodeText(raw.OurTeam),
		Noteworthy: decodeText(raw.Noteworthy),
		Locations:  decodeText(raw.LocationsSummary),
	}
	if profile != (models.CompanyProfile{}) {
		facts.Profile = &profile
	}

	return &Result{
		Facts:    facts,
		Summary:  decodeText(raw.Summary),
		Mentions: decodeMentions(raw.Media),
	}, nil
}

// extractObject returns the outermost JSON object in text
func extractObject(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}
	obj := []byte(text[start : end+1])
	if !json.Valid(obj) {
		return nil, errors.New("response is not valid JSON")
	}
	return obj, nil
}

func decodeField(raw json.RawMessage) (string, models.Confidence, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", "", false
	}
	if raw[0] == '{' {
		var f rawField
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", "", false
		}
		value := scalar(f.Value)
		if value == "" {
			return "", "", false
		}
		return value, parseConfidence(f.Confidence), true
	}
	if value := scalar(raw); value != "" {
		return value, defaultConfidence, true
	}
	return "", "", false
}

// scalar renders a JSON string or number as text, dropping placeholders
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
	case '[', '{', 'n', 't', 'f':
		return ""
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		s = n.String()
	}
	s = strings.Join(strings.Fields(s), " ")
	if emptyValues[strings.ToLower(s)] {
		return ""
	}
	return s
}

func decodeText(raw json.RawMessage) string {
	if v, _, ok := decodeField(raw); ok {
		return v
	}
	return ""
}

func decodeLocations(raw json.RawMessage) ([]string, models.Confidence) {
	raw = bytes.TrimSpace(raw)
	conf := defaultConfidence
	if len(raw) > 0 && raw[0] == '{' {
		var f rawField
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, conf
		}
		raw = bytes.TrimSpace(f.Value)
		conf = parseConfidence(f.Confidence)
	}
	if len(raw) == 0 {
		return nil, conf
	}

	var items []string
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, conf
		}
		for _, item := range list {
			items = append(items, scalar(item))
		}
	} else {
		items = strings.Split(scalar(raw), ";")
	}

	var out []string
	seen := make(map[string]bool)
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || emptyValues[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out, conf
}

func decodeMentions(raw json.RawMessage) []models.MediaMention {
	var list []rawMention
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &list) != nil {
		return nil
	}
	var out []models.MediaMention
	for _, m := range list {
		u := strings.TrimSpace(m.URL)
		if u == "" {
			continue
		}
		out = append(out, models.MediaMention{
			URL:     u,
			Kind:    models.MediaKind(strings.ToLower(strings.TrimSpace(m.Type))),
			Context: strings.TrimSpace(m.Context),
		})
	}
	return out
}

func parseConfidence(s string) models.Confidence {
	switch c := models.Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case models.ConfidenceLow, models.ConfidenceMedium, models.ConfidenceHigh:
		return c
	}
	return defaultConfidence
}

func cleanYear(v string) string {
	if m := yearInText.FindString(v); m != "" {
		return m
	}
	return ""
}

func cleanCount(v string) string {
	if m := countInText.FindString(v); m != "" {
		n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
		if err == nil && n > 0 {
			return strconv.Itoa(n)
		}
	}
	return ""
}
