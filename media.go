package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/docutag/aboutus-scraper/cache"
	"github.com/docutag/aboutus-scraper/media"
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/page"
)

// MediaRequest holds the parameters of the media listing
type MediaRequest struct {
	URL    string
	Cursor string
	Limit  int              // 0 means media.DefaultPageLimit
	Kind   models.MediaKind // Empty lists every kind
}

const flowMedia = "media"

// mediaListing is the cached discovery result of one page
type mediaListing struct {
	URL    string              `json:"url"`
	Assets []models.MediaAsset `json:"assets"`
	Error  *models.ErrorInfo   `json:"error,omitempty"`
}

// ScrapeMedia lists the media of one page, one cursor page at a time. The
// body holds no clocks so identical requests over a stable site give
// identical bytes.
func (s *Scraper) ScrapeMedia(ctx context.Context, req MediaRequest) (*models.MediaResponse, error) {
	start := time.Now()
	normalized, key, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	if _, err := media.DecodeCursor(req.Cursor); err != nil {
		return nil, invalidInput("cursor: %v", err)
	}
	kind, err := parseMediaKind(string(req.Kind))
	if err != nil {
		return nil, err
	}

	listing, _, err := cache.Load(ctx, s.loader, cache.Key(flowMedia, key), func(ctx context.Context) (mediaListing, error) {
		doc, err := s.fetchPage(ctx, normalized)
		if err != nil {
			return mediaListing{URL: normalized, Assets: []models.MediaAsset{}, Error: errorInfo(err)}, nil
		}
		return mediaListing{URL: doc.FinalURL, Assets: media.Discover([]*page.Document{doc}, nil)}, nil
	}, func(l mediaListing) bool {
		return l.Error == nil
	})
	if err != nil {
		info, ok := abandoned(ctx, err)
		if !ok {
			return nil, err
		}
		listing = mediaListing{URL: normalized, Assets: []models.MediaAsset{}, Error: info}
	}

	p, err := media.Paginate(listing.Assets, req.Cursor, req.Limit, kind)
	if err != nil {
		if errors.Is(err, media.ErrInvalidCursor) {
			return nil, invalidInput("cursor: %v", err)
		}
		return nil, err
	}

	resp := &models.MediaResponse{
		URL:          listing.URL,
		MediaAssets:  media.Group(p.Assets),
		MediaSummary: media.Summarize(listing.Assets),
		Pagination:   p.Pagination,
		Error:        listing.Error,
	}
	recordScrape(flowMedia, models.ApproachFast, listing.Error == nil, start)
	return resp, nil
}

// parseMediaKind accepts the singular kinds and their plurals
func parseMediaKind(raw string) (models.MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return "", nil
	case "image", "images":
		return models.MediaImage, nil
	case "video", "videos":
		return models.MediaVideo, nil
	case "document", "documents":
		return models.MediaDocument, nil
	case "icon", "icons":
		return models.MediaIcon, nil
	}
	return "", invalidInput("media_type %q", raw)
}
