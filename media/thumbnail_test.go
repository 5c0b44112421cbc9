package media

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/docutag/aboutus-scraper/models"
)

func TestResolveThumbnail(t *testing.T) {
	tests := []struct {
		name       string
		videoURL   string
		poster     string
		wantURL    string
		wantSource string
		platform   string
	}{
		{"poster wins", "https://www.youtube.com/watch?v=abc123XYZ", "https://acme.test/p.jpg", "https://acme.test/p.jpg", models.ThumbnailPoster, ""},
		{"youtube watch", "https://www.youtube.com/watch?v=abc123XYZ", "", "https://img.youtube.com/vi/abc123XYZ/maxresdefault.jpg", models.ThumbnailPlatform, "youtube"},
		{"youtube short link", "https://youtu.be/abc123XYZ", "", "https://img.youtube.com/vi/abc123XYZ/maxresdefault.jpg", models.ThumbnailPlatform, "youtube"},
		{"youtube nocookie", "https://www.youtube-nocookie.com/embed/abc123XYZ?rel=0", "", "https://img.youtube.com/vi/abc123XYZ/maxresdefault.jpg", models.ThumbnailPlatform, "youtube"},
		{"vimeo player", "https://player.vimeo.com/video/76979871", "", "https://vumbnail.com/76979871.jpg", models.ThumbnailPlatform, "vimeo"},
		{"dailymotion", "https://www.dailymotion.com/embed/video/x7tgad0", "", "https://www.dailymotion.com/thumbnail/video/x7tgad0", models.ThumbnailPlatform, "dailymotion"},
		{"wistia", "https://fast.wistia.net/embed/iframe/e4a27b971d", "", "https://fast.wistia.com/embed/medias/e4a27b971d/swatch", models.ThumbnailPlatform, "wistia"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveThumbnail(tt.videoURL, tt.poster)
			if got.URL != tt.wantURL || got.Source != tt.wantSource || got.Platform != tt.platform {
				t.Errorf("ResolveThumbnail() = %+v", got)
			}
			if got.IsPlaceholder {
				t.Error("IsPlaceholder = true")
			}
		})
	}
}

func TestResolveThumbnailPlaceholder(t *testing.T) {
	got := ResolveThumbnail("https://acme.test/protected.mp4", "")
	if got == nil || !got.IsPlaceholder || got.Source != models.ThumbnailPlaceholder {
		t.Fatalf("ResolveThumbnail() = %+v, want placeholder", got)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(got.URL, prefix) {
		t.Fatalf("URL = %.40s..., want PNG data URI", got.URL)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got.URL, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != PlaceholderWidth || b.Dy() != PlaceholderHeight {
		t.Errorf("placeholder size = %dx%d", b.Dx(), b.Dy())
	}
	if img.At(PlaceholderWidth/2, PlaceholderHeight/2-14) == img.At(2, 2) {
		t.Error("play glyph not drawn")
	}
}

func TestPlaceholderIsRenderedOnce(t *testing.T) {
	if PlaceholderDataURI() != PlaceholderDataURI() {
		t.Error("placeholder changed between calls")
	}
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		url  string
		want models.MediaKind
	}{
		{"https://acme.test/report.pdf", models.MediaDocument},
		{"https://acme.test/clip.webm", models.MediaVideo},
		{"https://vimeo.com/123456", models.MediaVideo},
		{"https://acme.test/favicon.ico", models.MediaIcon},
		{"https://acme.test/photo", models.MediaImage},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := GuessKind(tt.url); got != tt.want {
				t.Errorf("GuessKind(%q) = %s, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.MediaKind
		context string
		url     string
		want    int
	}{
		{"logo in context", models.MediaImage, "Company Logo", "https://acme.test/a.png", 100},
		{"brand in file name", models.MediaImage, "", "https://acme.test/brand-mark.png", 100},
		{"leadership", models.MediaImage, "Our leadership team", "https://acme.test/a.png", 80},
		{"office", models.MediaImage, "Berlin office", "https://acme.test/a.png", 60},
		{"tier beats kind", models.MediaVideo, "Meet our founders", "https://acme.test/a.mp4", 80},
		{"icon default", models.MediaIcon, "", "https://acme.test/favicon.ico", 30},
		{"document default", models.MediaDocument, "Annual report", "https://acme.test/r.pdf", 25},
		{"video default", models.MediaVideo, "", "https://acme.test/a.mp4", 20},
		{"image default", models.MediaImage, "", "https://acme.test/a.png", 10},
		{"hq inside a word", models.MediaImage, "", "https://i.ytimg.com/vi/abc/hqdefault.jpg", 10},
		{"team inside a word", models.MediaImage, "Steam engine", "https://acme.test/a.png", 10},
		{"location inside a word", models.MediaDocument, "Budget allocation", "https://acme.test/r.pdf", 25},
		{"keyword late in long context", models.MediaImage, strings.Repeat("photo caption ", 12) + "team", "https://acme.test/a.png", 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Priority(tt.kind, tt.context, tt.url); got != tt.want {
				t.Errorf("Priority() = %d, want %d", got, tt.want)
			}
		})
	}
}
