package media

import (
	"github.com/docutag/aboutus-scraper/models"
	"github.com/docutag/aboutus-scraper/slug"
)

// priorityTiers are checked in order; the first tier with a keyword token in
// the asset's context or file name sets its priority
var priorityTiers = []struct {
	priority int
	keywords []string
}{
	{100, []string{"logo", "logos", "brand", "brands", "branding"}},
	{80, []string{"team", "teams", "founder", "founders", "staff", "people", "leadership"}},
	{60, []string{"office", "offices", "location", "locations", "hq", "headquarters", "building"}},
}

// kindPriority is the priority of an asset whose context matches no tier
var kindPriority = map[models.MediaKind]int{
	models.MediaIcon:     30,
	models.MediaDocument: 25,
	models.MediaVideo:    20,
	models.MediaImage:    10,
}

// Priority scores an asset from its context text and file name
func Priority(kind models.MediaKind, context, rawURL string) int {
	haystack := context + " " + slug.FromURL(rawURL)
	for _, tier := range priorityTiers {
		for _, kw := range tier.keywords {
			if slug.HasToken(haystack, kw) {
				return tier.priority
			}
		}
	}
	if p, ok := kindPriority[kind]; ok {
		return p
	}
	return kindPriority[models.MediaImage]
}
