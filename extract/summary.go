package extract

import (
	"regexp"
	"strings"
)

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

const (
	summarySentences  = 3
	minSentenceLength = 20
)

// Summarize joins the first three sentences longer than 20 characters. When the
// text has none it falls back to a line built from the page title.
func Summarize(text, title string) string {
	var picked []string
	for _, s := range sentenceBreak.Split(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if len(s) <= minSentenceLength {
			continue
		}
		picked = append(picked, s)
		if len(picked) == summarySentences {
			break
		}
	}
	if len(picked) > 0 {
		return strings.Join(picked, ". ") + "."
	}
	if title = strings.TrimSpace(title); title == "" {
		title = "This company"
	}
	return title + " provides information about their services and offerings."
}
