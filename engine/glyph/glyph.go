// Package glyph rasterizes a single character into a small straight-alpha RGBA texture used by
// the textured particle style.
package glyph

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultSize is the edge length of a glyph texture in pixels.
	DefaultSize = 32

	// DefaultRune is drawn when no rune is configured.
	DefaultRune = '●'

	// fontScale is the font size relative to the texture edge.
	fontScale = 27.0 / 32.0
)

var (
	parseOnce sync.Once
	parsed    *opentype.Font
	parseErr  error
)

func regular() (*opentype.Font, error) {
	parseOnce.Do(func() {
		parsed, parseErr = opentype.Parse(goregular.TTF)
	})
	return parsed, parseErr
}

// Render draws r centered on a size x size canvas. Every pixel is white and the glyph coverage
// is carried in alpha, so filtering never darkens the edges. A rune the font does not cover is
// drawn as the font's missing-glyph box.
//
// Parameters:
//   - r: the character to draw
//   - size: the texture edge length in pixels
//
// Returns:
//   - common.TextureStagingData: straight-alpha RGBA pixels ready for upload
//   - error: an error if size is not positive or the font cannot be loaded
func Render(r rune, size int) (common.TextureStagingData, error) {
	if size <= 0 {
		return common.TextureStagingData{}, fmt.Errorf("glyph %q: size %d must be positive", r, size)
	}
	f, err := regular()
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("glyph %q: %w", r, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size) * fontScale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("glyph %q: %w", r, err)
	}
	defer face.Close()

	coverage := image.NewAlpha(image.Rect(0, 0, size, size))
	d := &font.Drawer{Dst: coverage, Src: image.Opaque, Face: face}

	s := string(r)
	bounds, advance := d.BoundString(s)
	edge := fixed.I(size)
	d.Dot = fixed.Point26_6{
		X: (edge - advance) / 2,
		Y: (edge-(bounds.Max.Y-bounds.Min.Y))/2 - bounds.Min.Y,
	}
	d.DrawString(s)

	pixels := make([]byte, 0, size*size*4)
	for _, a := range coverage.Pix {
		pixels = append(pixels, 255, 255, 255, a)
	}
	return common.TextureStagingData{
		Pixels: pixels,
		Width:  uint32(size),
		Height: uint32(size),
	}, nil
}
