package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder thumbnail geometry
const (
	PlaceholderWidth  = 320
	PlaceholderHeight = 180
	PlaceholderLabel  = "Protected Content"
	playGlyphSize     = 26
)

var (
	placeholderBackground = color.RGBA{R: 0x2b, G: 0x2f, B: 0x36, A: 0xff}
	placeholderForeground = color.RGBA{R: 0xe8, G: 0xea, B: 0xed, A: 0xff}
)

var (
	placeholderOnce sync.Once
	placeholderURI  string
)

// PlaceholderDataURI returns the generated placeholder thumbnail as a PNG data
// URI. It is rendered once per process.
func PlaceholderDataURI() string {
	placeholderOnce.Do(func() {
		data, err := renderPlaceholder()
		if err != nil {
			slog.Error("failed to render placeholder thumbnail", "error", err)
			return
		}
		placeholderURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	})
	return placeholderURI
}

// renderPlaceholder draws a play glyph above a text label on a dark background
func renderPlaceholder() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, PlaceholderWidth, PlaceholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	// Right-pointing triangle centred horizontally in the upper part
	cx, cy := PlaceholderWidth/2, PlaceholderHeight/2-14
	left := cx - playGlyphSize/2
	for dy := -playGlyphSize; dy <= playGlyphSize; dy++ {
		span := (playGlyphSize - abs(dy)) * 3 / 2
		for x := left; x <= left+span; x++ {
			img.Set(x, cy+dy, placeholderForeground)
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderForeground),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(PlaceholderLabel).Ceil()
	d.Dot = fixed.P((PlaceholderWidth-width)/2, PlaceholderHeight-30)
	d.DrawString(PlaceholderLabel)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
