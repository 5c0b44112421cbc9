package media

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/docutag/aboutus-scraper/models"
)

// platform describes how to find a video ID in a hosting platform's URLs and
// where that platform serves the video's preview image
type platform struct {
	name     string
	hosts    []string
	patterns []*regexp.Regexp
	template string // {id} is replaced with the video ID
}

var platforms = []platform{
	{
		name:  "youtube",
		hosts: []string{"youtube.com", "youtube-nocookie.com", "youtu.be"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^/(?:embed|v|shorts|live)/([\w-]{6,})`),
			regexp.MustCompile(`^/([\w-]{6,})$`),
		},
		template: "https://img.youtube.com/vi/{id}/maxresdefault.jpg",
	},
	{
		name:  "vimeo",
		hosts: []string{"vimeo.com"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^/video/(\d+)`),
			regexp.MustCompile(`^/(?:channels/[\w-]+/)?(\d+)`),
		},
		template: "https://vumbnail.com/{id}.jpg",
	},
	{
		name:  "dailymotion",
		hosts: []string{"dailymotion.com", "dai.ly"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^/(?:embed/)?video/([a-zA-Z0-9]+)`),
			regexp.MustCompile(`^/([a-zA-Z0-9]+)$`),
		},
		template: "https://www.dailymotion.com/thumbnail/video/{id}",
	},
	{
		name:  "wistia",
		hosts: []string{"wistia.com", "wistia.net"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^/(?:embed/)?(?:iframe|medias)/([a-zA-Z0-9]+)`),
		},
		template: "https://fast.wistia.com/embed/medias/{id}/swatch",
	},
}

func (p platform) matchesHost(host string) bool {
	for _, h := range p.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// platformVideo returns the platform and video ID of a hosted video URL
func platformVideo(rawURL string) (platform, string, bool) {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return platform{}, "", false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range platforms {
		if !p.matchesHost(host) {
			continue
		}
		if p.name == "youtube" {
			if v := u.Query().Get("v"); v != "" {
				return p, v, true
			}
		}
		for _, re := range p.patterns {
			if m := re.FindStringSubmatch(u.Path); m != nil {
				return p, m[1], true
			}
		}
	}
	return platform{}, "", false
}

// thumbnailResolver proposes a thumbnail for a video, or nil
type thumbnailResolver func(videoURL, poster string) *models.Thumbnail

// thumbnailResolvers are tried in order; the last always succeeds
var thumbnailResolvers = []thumbnailResolver{
	posterThumbnail,
	platformThumbnail,
	placeholderThumbnail,
}

func posterThumbnail(_, poster string) *models.Thumbnail {
	if poster == "" {
		return nil
	}
	return &models.Thumbnail{URL: poster, Source: models.ThumbnailPoster}
}

func platformThumbnail(videoURL, _ string) *models.Thumbnail {
	p, id, ok := platformVideo(videoURL)
	if !ok {
		return nil
	}
	return &models.Thumbnail{
		URL:      strings.ReplaceAll(p.template, "{id}", url.PathEscape(id)),
		Source:   models.ThumbnailPlatform,
		Platform: p.name,
	}
}

func placeholderThumbnail(_, _ string) *models.Thumbnail {
	return &models.Thumbnail{
		URL:           PlaceholderDataURI(),
		Source:        models.ThumbnailPlaceholder,
		IsPlaceholder: true,
	}
}

// ResolveThumbnail picks a video's preview: its poster, the hosting platform's
// preview image, or a generated placeholder. It never returns nil.
func ResolveThumbnail(videoURL, poster string) *models.Thumbnail {
	for _, resolve := range thumbnailResolvers {
		if t := resolve(videoURL, poster); t != nil {
			return t
		}
	}
	return placeholderThumbnail(videoURL, poster)
}
