package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
)

// Key-value limits
const (
	DefaultMaxKeyValues = 10
	MaxKeyValues        = 20
	maxLabelChars       = 40
	maxValueChars       = 200
)

// labelLine matches "Label: Value" on a line of its own
var labelLine = regexp.MustCompile(`^([\p{Lu}][\p{L}&/' -]{1,39}?)\s*:\s*(\S.{0,199})$`)

type narrativePattern struct {
	key string
	re  *regexp.Regexp
}

// narrativePatterns find labelled values in running prose
var narrativePatterns = []narrativePattern{
	{"Founded", regexp.MustCompile(`(?i)\bfounded\s+(?:in\s+)?:?\s*(\d{4})\b`)},
	{"Founded", regexp.MustCompile(`(?i)\bestablished\s+(?:in\s+)?:?\s*(\d{4})\b`)},
	{"Founded", regexp.MustCompile(`(?i)\bsince\s+(\d{4})\b`)},
	{"Employees", regexp.MustCompile(`(?i)\b(\d+(?:,\d{3})*)\+?\s+employees?\b`)},
	{"Location", regexp.MustCompile(`(?i)\bbased\s+in\s+([^,.!?\n]{2,60})`)},
	{"Location", regexp.MustCompile(`(?i)\blocated\s+in\s+([^,.!?\n]{2,60})`)},
	{"Headquarters", regexp.MustCompile(`(?i)\bheadquarter(?:s|ed)?(?:\s+in)?\s*:?\s+([^,.!?\n]{2,60})`)},
	{"Industry", regexp.MustCompile(`(?i)\bindustry\s*:\s*([^,.!?\n]{2,60})`)},
	{"Specialization", regexp.MustCompile(`(?i)\bspeciali[sz](?:e|es|ing)\s+in\s+([^,.!?\n]{2,80})`)},
	{"Awards", regexp.MustCompile(`(?i)\bawards?\s*:\s*([^,.!?\n]{2,80})`)},
	{"Certifications", regexp.MustCompile(`(?i)\bcertifications?\s*:\s*([^,.!?\n]{2,80})`)},
}

// ExtractKeyValues collects labelled values from two-cell table rows, definition
// lists, "Label: Value" lines and common narrative phrasings, in that order.
// Pairs are deduplicated by case-insensitive label and the first occurrence wins.
// max defaults to 10 and is capped at 20.
func ExtractKeyValues(doc *page.Document, max int) []models.KeyValue {
	if max <= 0 {
		max = DefaultMaxKeyValues
	}
	if max > MaxKeyValues {
		max = MaxKeyValues
	}

	kvs := []models.KeyValue{}
	if doc == nil {
		return kvs
	}
	seen := make(map[string]bool)
	add := func(key, value string) bool {
		key = strings.TrimRight(page.CollapseSpace(key), ": ")
		value = page.CollapseSpace(value)
		if key == "" || value == "" || len([]rune(key)) > maxLabelChars {
			return len(kvs) < max
		}
		value = truncateRunes(value, maxValueChars)
		id := strings.ToLower(key)
		if !seen[id] && len(kvs) < max {
			seen[id] = true
			kvs = append(kvs, models.KeyValue{Key: key, Value: value})
		}
		return len(kvs) < max
	}

	sel := doc.Selection()
	sel.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("th, td")
		if cells.Length() != 2 {
			return true
		}
		return add(cells.Eq(0).Text(), cells.Eq(1).Text())
	})

	sel.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return true
		}
		return add(dt.Text(), dd.Text())
	})

	for _, line := range strings.Split(doc.Text, "\n") {
		if len(kvs) >= max {
			return kvs
		}
		m := labelLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || strings.Contains(m[1], "http") || len(strings.Fields(m[1])) > 5 {
			continue
		}
		add(m[1], m[2])
	}

	for _, p := range narrativePatterns {
		for _, m := range p.re.FindAllStringSubmatch(doc.Text, -1) {
			if len(kvs) >= max {
				return kvs
			}
			add(p.key, titleCase(strings.TrimSpace(m[1])))
		}
	}
	return kvs
}

// titleCase upper-cases the first letter of every word
func titleCase(s string) string {
	prev := ' '
	return strings.Map(func(r rune) rune {
		defer func() { prev = r }()
		if unicode.IsSpace(prev) {
			return unicode.ToUpper(r)
		}
		return r
	}, s)
}
