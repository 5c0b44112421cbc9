package ollama

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input is the page handed to the model
type Input struct {
	URL   string
	Title string
	Text  string
}

const systemPrompt = `You extract company information from website text. Answer with a single JSON object and nothing else. Never invent facts: leave a field empty when the text does not state it.`

func buildPrompt(in Input, maxText int) string {
	text := in.Text
	if len(text) > maxText {
		text = text[:maxText]
		for !utf8.ValidString(text) && len(text) > 0 {
			text = text[:len(text)-1]
		}
	}

	return fmt.Sprintf(`Analyze the About page of a company and return its profile.

URL: %s
Page Title: %s

Page Content:
%s

Return a JSON object with exactly these keys:
{
  "founded_year": {"value": "year as four digits or empty", "confidence": "low|medium|high"},
  "employee_count": {"value": "number of employees or empty", "confidence": "low|medium|high"},
  "headquarters": {"value": "city and region or empty", "confidence": "low|medium|high"},
  "mission": {"value": "mission statement or empty", "confidence": "low|medium|high"},
  "industry": {"value": "industry or empty", "confidence": "low|medium|high"},
  "ceo": {"value": "name of the CEO or empty", "confidence": "low|medium|high"},
  "locations": {"value": ["office locations"], "confidence": "low|medium|high"},
  "about_us": "two or three sentences about the company",
  "our_culture": "culture and values",
  "our_team": "team and leadership",
  "noteworthy_and_differentiated": "what makes the company stand out",
  "locations_summary": "where the company operates",
  "summary": "one paragraph summary",
  "media": [{"url": "image, video or document URL named in the text", "type": "image|video|document|icon", "context": "what it shows"}]
}

Use "high" confidence only for facts stated explicitly in the text.`,
		in.URL, in.Title, strings.TrimSpace(text))
}
