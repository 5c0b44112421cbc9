package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/extract"
	"github.com/docutag/aboutus-scraper/media"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/ollama"
	"github.com/docutag/aboutus-scraper/page"
)

// TextRequest holds the parameters of the text flow
type TextRequest struct {
	URL          string
	MaxSections  int
	MaxKeyValues int
	UseAI        bool // Ask the enhancer for a summary and media mentions
}

const flowText = "text"

// maxTextImages caps the image list of the compact media block
const maxTextImages = 20

// ScrapeText extracts the title, summary, sections, key values and a compact
// media block of one page. A root failure is reported in the body with
// statusCode 502.
func (s *Scraper) ScrapeText(ctx context.Context, req TextRequest) (*models.TextResponse, error) {
	start := time.Now()
	normalized, key, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Key(flowText, key,
		strconv.Itoa(req.MaxSections),
		strconv.Itoa(req.MaxKeyValues),
		strconv.FormatBool(req.UseAI),
	)
	resp, _, err := cache.Load(ctx, s.loader, cacheKey, func(ctx context.Context) (*models.TextResponse, error) {
		return s.scrapeText(ctx, normalized, req), nil
	}, func(r *models.TextResponse) bool {
		return r != nil && r.StatusCode == http.StatusOK
	})
	if err != nil {
		info, ok := abandoned(ctx, err)
		if !ok {
			return nil, err
		}
		resp = failedTextResponse(newTextResponse(normalized), normalized, info, abandonedNote)
	}

	approach := models.ApproachFast
	if resp.ScrapingData.AIEnhancement != nil && resp.ScrapingData.AIEnhancement.Used {
		approach = models.ApproachAIEnhanced
	}
	recordScrape(flowText, approach, resp.StatusCode == http.StatusOK, start)
	return resp, nil
}

// newTextResponse returns an empty text response for normalized
func newTextResponse(normalized string) *models.TextResponse {
	return &models.TextResponse{
		ScrapingData: models.ScrapingData{
			URL:       normalized,
			Sections:  []models.Section{},
			KeyValues: []models.KeyValue{},
			Media:     models.TextMedia{Images: []string{}, Videos: []models.TextVideo{}},
		},
	}
}

// failedTextResponse marks resp as a failed scrape of normalized
func failedTextResponse(resp *models.TextResponse, normalized string, info *models.ErrorInfo, note string) *models.TextResponse {
	resp.StatusCode = http.StatusBadGateway
	resp.Message = fmt.Sprintf("Failed to scrape %s", normalized)
	resp.Error = info
	resp.ScrapingData.Notes = note
	return resp
}

func (s *Scraper) scrapeText(ctx context.Context, normalized string, req TextRequest) *models.TextResponse {
	var n notes
	resp := newTextResponse(normalized)

	doc, err := s.fetchPage(ctx, normalized)
	if err != nil {
		return failedTextResponse(resp, normalized, errorInfo(err), fmt.Sprintf("Could not retrieve %s", normalized))
	}

	data := &resp.ScrapingData
	data.URL = doc.FinalURL
	data.PageTitle = doc.Title
	data.Language = doc.Language
	data.Sections = extract.ExtractSections(doc, req.MaxSections)
	data.KeyValues = extract.ExtractKeyValues(doc, req.MaxKeyValues)
	data.Summary = extract.Summarize(doc.MainText, doc.Title)
	if err := extract.CheckContent(doc); err != nil {
		n.add("No extractable text on %s", doc.FinalURL)
	}

	var mentions []models.MediaMention
	if req.UseAI {
		info := models.AIEnhancement{Reason: "requested by caller"}
		switch {
		case s.enhancer == nil:
			info.Note = "AI enhancement is not configured"
			n.add(info.Note)
		default:
			res, err := s.enhance(ctx, ollama.Input{URL: doc.FinalURL, Title: doc.Title, Text: doc.MainText})
			if err != nil {
				info.Note = aiFailureNote(err)
				n.add(info.Note)
			} else {
				info.Used = true
				if res.Summary != "" {
					data.Summary = res.Summary
				}
				mentions = res.Mentions
			}
		}
		data.AIEnhancement = &info
	}

	data.Media = compactMedia(media.Discover([]*page.Document{doc}, mentions))
	data.Notes = strings.Join(n.list(), "; ")

	resp.StatusCode = http.StatusOK
	resp.Message = fmt.Sprintf("Successfully scraped %s", doc.FinalURL)
	return resp
}

// compactMedia lists image URLs and videos with their thumbnails, highest priority first
func compactMedia(assets []models.MediaAsset) models.TextMedia {
	out := models.TextMedia{Images: []string{}, Videos: []models.TextVideo{}}
	ordered := append([]models.MediaAsset{}, assets...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })
	for _, a := range ordered {
		switch a.Kind {
		case models.MediaImage:
			if len(out.Images) < maxTextImages {
				out.Images = append(out.Images, a.URL)
			}
		case models.MediaVideo:
			v := models.TextVideo{URL: a.URL}
			if a.Thumbnail != nil {
				v.ThumbnailURL = a.Thumbnail.URL
				v.ThumbnailType = a.Thumbnail.Source
				v.IsPlaceholderThumbnail = a.Thumbnail.IsPlaceholder
			}
			out.Videos = append(out.Videos, v)
		}
	}
	return out
}
