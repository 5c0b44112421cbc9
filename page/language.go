package page

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pemistahl/lingua-go"
)

// minDetectionText is the shortest visible text handed to statistical detection
const minDetectionText = 40

// maxDetectionText bounds the amount of text scanned by the detector
const maxDetectionText = 2000

// languageSource returns a language tag or "" when it has no opinion
type languageSource func(dom *goquery.Document, text string) string

// languageSources are tried in order until one yields a code
var languageSources = []languageSource{
	htmlLangAttr,
	contentLanguageMeta,
	ogLocale,
	detectLanguage,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English, lingua.French, lingua.German, lingua.Spanish,
				lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Swedish,
				lingua.Danish, lingua.Polish, lingua.Russian, lingua.Japanese,
				lingua.Chinese, lingua.Korean,
			).
			Build()
	})
	return detector
}

func detectPageLanguage(dom *goquery.Document, text string) string {
	for _, source := range languageSources {
		if code := normalizeLanguage(source(dom, text)); code != "" {
			return code
		}
	}
	return ""
}

func htmlLangAttr(dom *goquery.Document, _ string) string {
	lang, _ := dom.Find("html").First().Attr("lang")
	return lang
}

func contentLanguageMeta(dom *goquery.Document, _ string) string {
	var lang string
	dom.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if strings.EqualFold(equiv, "content-language") {
			lang, _ = s.Attr("content")
			return false
		}
		return true
	})
	return lang
}

func ogLocale(dom *goquery.Document, _ string) string {
	locale, _ := dom.Find(`meta[property="og:locale"]`).First().Attr("content")
	return locale
}

func detectLanguage(_ *goquery.Document, text string) string {
	if utf8.RuneCountInString(text) < minDetectionText {
		return ""
	}
	if len(text) > maxDetectionText {
		text = strings.ToValidUTF8(text[:maxDetectionText], "")
	}
	language, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return language.IsoCode639_1().String()
}

// normalizeLanguage reduces tags such as "en-US" or "pt_BR" to the primary subtag
func normalizeLanguage(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	if i := strings.IndexAny(tag, "-_,; "); i >= 0 {
		tag = tag[:i]
	}
	if len(tag) < 2 || len(tag) > 3 {
		return ""
	}
	for _, r := range tag {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return tag
}
