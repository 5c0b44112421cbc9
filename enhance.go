package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strings"
	"time"

	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/extract"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/ollama"
	"github.com/docutag/aboutus-scraper/page"
)

// EnhanceRequest holds the parameters of the enhance flow
type EnhanceRequest struct {
	URL      string
	TextData string // Already extracted text; the page is fetched when empty
}

const flowEnhance = "enhance"

// Enhance always escalates to the AI enhancer, either on TextData or on the
// freshly fetched page text. AI failures fall back to programmatic facts.
func (s *Scraper) Enhance(ctx context.Context, req EnhanceRequest) (*models.EnhanceResponse, error) {
	start := time.Now()
	normalized, key, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	textKey := ""
	if req.TextData != "" {
		sum := sha256.Sum256([]byte(req.TextData))
		textKey = hex.EncodeToString(sum[:])
	}

	resp, _, err := cache.Load(ctx, s.loader, cache.Key(flowEnhance, key, textKey), func(ctx context.Context) (*models.EnhanceResponse, error) {
		return s.enhanceText(ctx, normalized, req.TextData), nil
	}, func(r *models.EnhanceResponse) bool {
		return r != nil && r.Success && r.AIEnhancement.Used
	})
	if err != nil {
		info, ok := abandoned(ctx, err)
		if !ok {
			return nil, err
		}
		resp = newEnhanceResponse(normalized)
		resp.Error = info
		resp.Notes = []string{abandonedNote}
	}

	out := *resp
	out.ProcessingTime = seconds(time.Since(start))
	recordScrape(flowEnhance, out.ApproachUsed, out.Success, start)
	return &out, nil
}

// newEnhanceResponse returns an empty unsuccessful response for normalized
func newEnhanceResponse(normalized string) *models.EnhanceResponse {
	return &models.EnhanceResponse{
		URL:           normalized,
		CompanyInfo:   extract.NewFacts(),
		ApproachUsed:  models.ApproachFast,
		AIEnhancement: models.AIEnhancement{Reason: "forced by request"},
		Notes:         []string{},
	}
}

func (s *Scraper) enhanceText(ctx context.Context, normalized, textData string) *models.EnhanceResponse {
	var n notes
	resp := newEnhanceResponse(normalized)

	var doc *page.Document
	var err error
	if textData != "" {
		doc, err = textDocument(normalized, textData)
	} else {
		doc, err = s.fetchPage(ctx, normalized)
	}
	if err != nil {
		resp.Error = errorInfo(err)
		n.add("No text available for %s", normalized)
		resp.Notes = n.list()
		return resp
	}
	resp.URL = doc.FinalURL

	facts := extract.ExtractFacts(doc)
	facts.Confidence = s.config.Policy.Label(facts)
	resp.Summary = extract.Summarize(doc.MainText, doc.Title)

	switch {
	case s.enhancer == nil:
		resp.AIEnhancement.Note = "AI enhancement is not configured"
		n.add(resp.AIEnhancement.Note)
	default:
		res, err := s.enhance(ctx, ollama.Input{URL: doc.FinalURL, Title: doc.Title, Text: doc.MainText})
		if err != nil {
			resp.AIEnhancement.Note = aiFailureNote(err)
			n.add(resp.AIEnhancement.Note)
			break
		}
		resp.AIEnhancement.Used = true
		resp.ApproachUsed = models.ApproachAIEnhanced
		facts = s.config.Policy.Merge(facts, res.Facts)
		if res.Summary != "" {
			resp.Summary = res.Summary
		}
	}

	resp.CompanyInfo = facts
	resp.Success = true
	resp.Notes = n.list()
	return resp
}

// textDocument wraps caller-supplied text in a minimal page, one paragraph per line
func textDocument(pageURL, text string) (*page.Document, error) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return page.Parse(pageURL, pageURL, []byte(b.String()))
}
