package media

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/docutag/aboutus-scraper/models"
)

// Page size bounds
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 50
)

// ErrInvalidCursor is returned for cursors this package did not produce
var ErrInvalidCursor = errors.New("invalid cursor")

type cursor struct {
	Offset int `json:"offset"`
}

// EncodeCursor returns the opaque cursor for an offset
func EncodeCursor(offset int) string {
	data, _ := json.Marshal(cursor{Offset: offset})
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor returns the offset of a cursor. An empty cursor is offset 0.
func DecodeCursor(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		// Accept unpadded input too
		if data, err = base64.RawURLEncoding.DecodeString(s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrInvalidCursor)
	}
	return c.Offset, nil
}

// Page is one page of assets
type Page struct {
	Assets     []models.MediaAsset
	Pagination models.Pagination
}

// ClampLimit bounds a requested page size to [1, MaxPageLimit], using
// DefaultPageLimit when none was given
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultPageLimit
	case limit < 1:
		return 1
	case limit > MaxPageLimit:
		return MaxPageLimit
	}
	return limit
}

// Paginate orders assets by priority, highest first with discovery order
// breaking ties, filters them by kind when kind is non-empty and returns the
// page starting at cursor. Walking next_cursor until has_more is false visits
// every asset exactly once.
func Paginate(assets []models.MediaAsset, cursorStr string, limit int, kind models.MediaKind) (Page, error) {
	offset, err := DecodeCursor(cursorStr)
	if err != nil {
		return Page{}, err
	}
	limit = ClampLimit(limit)

	ordered := make([]models.MediaAsset, 0, len(assets))
	for _, a := range assets {
		if kind == "" || a.Kind == kind {
			ordered = append(ordered, a)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	total := len(ordered)
	start := min(offset, total)
	end := min(start+limit, total)

	p := Page{
		Assets: ordered[start:end],
		Pagination: models.Pagination{
			HasMore:          start+limit < total,
			TotalCount:       total,
			CurrentPageStart: start,
			CurrentPageEnd:   end,
		},
	}
	if p.Pagination.HasMore {
		next := EncodeCursor(end)
		p.Pagination.NextCursor = &next
	}
	return p, nil
}
