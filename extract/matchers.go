package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docutag/aboutus-scraper/models"
)

// Matcher proposes values for one field from page text
type Matcher struct {
	Name       string
	Confidence models.Confidence
	Find       func(text string) []string // Candidate values in text order
}

// regexMatcher returns the first capture group of every match of pattern
func regexMatcher(name string, confidence models.Confidence, pattern string) Matcher {
	re := regexp.MustCompile(pattern)
	return Matcher{
		Name:       name,
		Confidence: confidence,
		Find: func(text string) []string {
			return captures(re, text)
		},
	}
}

func captures(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

const (
	yearPattern   = `(1[7-9]\d{2}|20\d{2})`
	numberPattern = `(\d{1,3}(?:,\d{3})+|\d+)`
	// placePattern captures a run of capitalised words such as "San Francisco, California"
	placePattern = `([A-Z][\p{L}'-]*(?:(?:,[ \t]*|[ \t]+)(?:[A-Z][\p{L}'-]*|of|de|la))*)`
)

var usStateCodes = "AL|AK|AZ|AR|CA|CO|CT|DE|FL|GA|HI|ID|IL|IN|IA|KS|KY|LA|ME|MD|MA|MI|MN|MS|MO|MT|NE|NV|NH|NJ|NM|NY|NC|ND|OH|OK|OR|PA|RI|SC|SD|TN|TX|UT|VT|VA|WA|WV|WI|WY|DC"

var countries = "USA|United States|Canada|Mexico|United Kingdom|UK|England|Scotland|Ireland|France|Germany|Spain|Portugal|Italy|Netherlands|Belgium|Switzerland|Austria|Sweden|Norway|Denmark|Finland|Poland|Israel|India|China|Japan|Singapore|Australia|New Zealand|Brazil|Argentina|South Africa"

// cityRegionPattern matches "City, ST" or "City, Country"
var cityRegionPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:[ \t][A-Z][a-z]+){0,2},[ \t](?:` + usStateCodes + `|` + countries + `))\b`)

var foundedYearMatchers = []Matcher{
	regexMatcher("founded", models.ConfidenceHigh, `(?i)\b(?:founded|established|incorporated)\b[^.\d\n]{0,40}?\b`+yearPattern+`\b`),
	regexMatcher("since", models.ConfidenceMedium, `(?i)\bsince\s+`+yearPattern+`\b`),
	regexMatcher("started", models.ConfidenceMedium, `(?i)\b(?:started|launched|began)\b[^.\d\n]{0,40}?\b`+yearPattern+`\b`),
	regexMatcher("year_to_present", models.ConfidenceLow, `(?i)\b`+yearPattern+`\s*(?:-|–|to)\s*(?:present|today|now)\b`),
}

var employeeCountMatchers = []Matcher{
	regexMatcher("employees", models.ConfidenceHigh, `(?i)\b`+numberPattern+`\+?\s+(?:full-time\s+)?(?:employees|staff|team members|people|professionals|workers)\b`),
	regexMatcher("team_of", models.ConfidenceMedium, `(?i)\bteam of\s+(?:over\s+|more than\s+|about\s+)?`+numberPattern),
	regexMatcher("over_people", models.ConfidenceMedium, `(?i)\b(?:over|more than)\s+`+numberPattern+`\s+(?:individuals|experts|specialists|engineers)\b`),
}

var headquartersMatchers = []Matcher{
	regexMatcher("headquartered_in", models.ConfidenceHigh, `(?i:headquartered)\s+in\s+(?:the\s+)?`+placePattern),
	regexMatcher("headquarters_label", models.ConfidenceHigh, `(?i:headquarters|hq)\s*:\s*`+placePattern),
	regexMatcher("based_in", models.ConfidenceMedium, `\b(?i:based)\s+in\s+`+placePattern),
	regexMatcher("located_in", models.ConfidenceMedium, `\b(?i:located)\s+in\s+`+placePattern),
	{
		Name:       "city_region",
		Confidence: models.ConfidenceLow,
		Find: func(text string) []string {
			return captures(cityRegionPattern, text)
		},
	},
}

var missionMatchers = []Matcher{
	regexMatcher("our_mission", models.ConfidenceHigh, `(?i)\b(our mission is[^.!?\n]{5,300}[.!?]?)`),
	regexMatcher("mission_label", models.ConfidenceHigh, `(?i)\bmission(?: statement)?\s*:\s*([^.!?\n]{10,300}[.!?]?)`),
}

var industryMatchers = []Matcher{
	regexMatcher("industry_label", models.ConfidenceHigh, `(?i)\bindustry\s*:\s*([^\n.;|]{2,60})`),
	regexMatcher("sector_label", models.ConfidenceMedium, `(?i)\bsector\s*:\s*([^\n.;|]{2,60})`),
}

const personPattern = `([A-Z][a-z]+(?:\s[A-Z]\.)?(?:\s[A-Z][a-z'-]+){1,2})`

var ceoMatchers = []Matcher{
	regexMatcher("ceo_before_name", models.ConfidenceHigh, `\b(?:CEO|Chief Executive Officer)(?:\s+and\s+(?:co-)?founder)?[,:]?\s+(?:is\s+)?`+personPattern),
	regexMatcher("ceo_after_name", models.ConfidenceMedium, personPattern+`,?\s+(?:(?:our|the)\s+)?(?:(?:co-)?founder\s+(?:and|&)\s+)?(?:CEO|Chief Executive Officer)\b`),
}

// Plausibility checks reject values that cannot be right for a field

func plausibleYear(v string) bool {
	year, err := strconv.Atoi(v)
	return err == nil && year >= 1700 && year <= time.Now().Year()
}

func plausibleCount(v string) bool {
	n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	return err == nil && n >= 1 && n <= 5_000_000
}

func plausiblePlace(v string) bool {
	return len(v) >= 2 && len(v) <= 80 && len(strings.Fields(v)) <= 8
}

func plausibleMission(v string) bool {
	return len(v) >= 15 && len(v) <= 300
}

func plausibleShort(v string) bool {
	return len(v) >= 2 && len(v) <= 60
}

// placeConnectors may join capitalised words but never end a place
var placeConnectors = map[string]bool{"of": true, "de": true, "la": true}

// cleanPlace trims trailing separators and connectors a place capture may end with
func cleanPlace(v string) string {
	words := strings.Fields(strings.TrimRight(strings.TrimSpace(v), ",;:- "))
	for len(words) > 0 && placeConnectors[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.TrimRight(strings.Join(words, " "), ",;:- ")
}

func cleanCount(v string) string {
	return strings.ReplaceAll(v, ",", "")
}
