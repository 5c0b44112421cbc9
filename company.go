package scraper

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/extract"
	"github.com/docutag/aboutus-scraper/media"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/ollama"
	"github.com/docutag/aboutus-scraper/page"
)

// CompanyRequest holds the parameters of the intelligent and fast flows
type CompanyRequest struct {
	URL           string
	IncludeMedia  bool
	MaxAboutPages int // Candidate cap; the locator default when not positive
	MaxSections   int // 0 keeps every section in document order
	ForceAI       bool
}

const (
	flowIntelligent = "intelligent"
	flowFast        = "fast"
)

// Intelligent runs the full flow, escalating to the AI enhancer when the
// programmatic results are poor or ForceAI is set
func (s *Scraper) Intelligent(ctx context.Context, req CompanyRequest) (*models.CompanyResponse, error) {
	return s.company(ctx, req, flowIntelligent)
}

// Fast runs the programmatic flow only
func (s *Scraper) Fast(ctx context.Context, req CompanyRequest) (*models.CompanyResponse, error) {
	req.ForceAI = false
	return s.company(ctx, req, flowFast)
}

func (s *Scraper) company(ctx context.Context, req CompanyRequest, flow string) (*models.CompanyResponse, error) {
	start := time.Now()
	normalized, key, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Key(flow, key,
		strconv.FormatBool(req.IncludeMedia),
		strconv.Itoa(req.MaxAboutPages),
		strconv.Itoa(req.MaxSections),
		strconv.FormatBool(req.ForceAI),
	)
	resp, hit, err := cache.Load(ctx, s.loader, cacheKey, func(ctx context.Context) (*models.CompanyResponse, error) {
		return s.analyzeCompany(ctx, normalized, req, flow == flowIntelligent), nil
	}, func(r *models.CompanyResponse) bool {
		return r != nil && r.Success
	})
	if err != nil {
		info, ok := abandoned(ctx, err)
		if !ok {
			return nil, err
		}
		resp = newCompanyResponse(normalized)
		resp.Error = info
		resp.Notes = []string{abandonedNote}
	}

	// Concurrent callers may share one loaded value
	out := *resp
	out.Notes = append([]string{}, resp.Notes...)
	if hit {
		out.Notes = append(out.Notes, "Served from cache")
	}
	out.ProcessingTime = seconds(time.Since(start))
	recordScrape(flow, out.ApproachUsed, out.Success, start)
	return &out, nil
}

// newCompanyResponse returns an empty unsuccessful response for normalized
func newCompanyResponse(normalized string) *models.CompanyResponse {
	return &models.CompanyResponse{
		URL:               normalized,
		BestAboutURL:      normalized,
		CompanyInfo:       extract.NewFacts(),
		Sections:          []models.Section{},
		KeyValues:         []models.KeyValue{},
		AboutPageAnalysis: []models.AboutPageAnalysis{},
		ApproachUsed:      models.ApproachFast,
		AIEnhancement:     models.AIEnhancement{Reason: "not attempted"},
		Notes:             []string{},
	}
}

// analyzeCompany never fails: root failures produce a response with Error set
func (s *Scraper) analyzeCompany(ctx context.Context, normalized string, req CompanyRequest, allowAI bool) *models.CompanyResponse {
	var n notes
	resp := newCompanyResponse(normalized)

	rootDoc, err := s.fetchPage(ctx, normalized)
	if err != nil {
		slog.Warn("root page unavailable", "url", normalized, "error", err)
		resp.Error = errorInfo(err)
		n.add("Could not retrieve %s", normalized)
		resp.Notes = n.list()
		return resp
	}
	resp.URL = rootDoc.FinalURL

	located := s.locator.Locate(ctx, rootDoc, req.MaxAboutPages)
	for _, note := range located.Notes {
		n.add(note)
	}
	aboutDoc := located.Page
	resp.BestAboutURL = located.URL
	resp.AboutPagesFound = located.Found
	if located.Analysis != nil {
		resp.AboutPageAnalysis = located.Analysis
	}

	if err := extract.CheckContent(aboutDoc); err != nil {
		n.add("No extractable text on %s", aboutDoc.FinalURL)
	}

	facts := extract.ExtractFacts(aboutDoc)
	if aboutDoc != rootDoc {
		facts = extract.FillGaps(facts, extract.ExtractFacts(rootDoc))
	}
	facts.Confidence = s.config.Policy.Label(facts)

	resp.Sections = extract.ExtractSections(aboutDoc, req.MaxSections)
	resp.KeyValues = extract.ExtractKeyValues(aboutDoc, extract.DefaultMaxKeyValues)
	resp.Title = firstNonEmpty(aboutDoc.Title, rootDoc.Title)
	resp.Content = truncateRunes(aboutDoc.MainText, s.config.MaxContentChars)
	resp.Description = firstNonEmpty(aboutDoc.Description, rootDoc.Description)
	if resp.Description == "" {
		resp.Description = extract.Summarize(aboutDoc.MainText, resp.Title)
	}

	var mentions []models.MediaMention
	resp.AIEnhancement, facts, mentions = s.escalate(ctx, aboutDoc, facts, resp.Sections, req.ForceAI, allowAI, &n)
	if resp.AIEnhancement.Used {
		resp.ApproachUsed = models.ApproachAIEnhanced
	}
	resp.CompanyInfo = facts

	if req.IncludeMedia {
		assets := media.Discover([]*page.Document{aboutDoc, rootDoc}, mentions)
		groups := media.Group(assets)
		summary := media.Summarize(assets)
		resp.MediaAssets = &groups
		resp.MediaSummary = &summary
	}

	resp.Success = true
	resp.Notes = n.list()
	return resp
}

// escalate applies the escalation policy and merges any AI result into facts
func (s *Scraper) escalate(ctx context.Context, doc *page.Document, facts models.CompanyFacts, sections []models.Section, force, allowAI bool, n *notes) (models.AIEnhancement, models.CompanyFacts, []models.MediaMention) {
	if !allowAI {
		return models.AIEnhancement{Reason: "fast mode skips AI enhancement"}, facts, nil
	}

	assessment := s.config.Policy.Score(facts, sections)
	escalate, reason := s.config.Policy.ShouldEscalate(assessment, force, len(doc.Text))
	info := models.AIEnhancement{Reason: reason}
	if !escalate {
		return info, facts, nil
	}
	if s.enhancer == nil {
		info.Note = "AI enhancement is not configured"
		n.add(info.Note)
		return info, facts, nil
	}

	res, err := s.enhance(ctx, ollama.Input{URL: doc.FinalURL, Title: doc.Title, Text: doc.MainText})
	if err != nil {
		slog.Warn("ai enhancement failed, using programmatic results", "url", doc.FinalURL, "error", err)
		info.Note = aiFailureNote(err)
		n.add(info.Note)
		return info, facts, nil
	}

	info.Used = true
	merged := s.config.Policy.Merge(facts, res.Facts)
	slog.Info("ai enhancement merged",
		"url", doc.FinalURL,
		"reason", reason,
		"before", facts.Confidence,
		"after", merged.Confidence,
		"provenance", merged.Provenance,
	)
	return info, merged, res.Mentions
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
