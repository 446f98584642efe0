package glyph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCentersOpaqueInk(t *testing.T) {
	tex, err := Render('A', DefaultSize)
	require.NoError(t, err)
	require.Equal(t, uint32(DefaultSize), tex.Width)
	require.Equal(t, uint32(DefaultSize), tex.Height)
	require.Len(t, tex.Pixels, DefaultSize*DefaultSize*4)
	assert.False(t, tex.Premultiplied)

	var inked, sumX, sumY int
	for i := 0; i < len(tex.Pixels); i += 4 {
		a := tex.Pixels[i+3]
		require.Equal(t, []byte{255, 255, 255}, tex.Pixels[i:i+3], "pixel %d is not white", i/4)
		if a > 128 {
			px := (i / 4) % DefaultSize
			py := (i / 4) / DefaultSize
			inked++
			sumX += px
			sumY += py
		}
	}
	require.Positive(t, inked)
	assert.InDelta(t, DefaultSize/2, sumX/inked, 4)
	assert.InDelta(t, DefaultSize/2, sumY/inked, 4)

	// corners stay transparent
	assert.Zero(t, tex.Pixels[3])
	assert.Zero(t, tex.Pixels[len(tex.Pixels)-1])
}

func TestRenderDefaultRune(t *testing.T) {
	tex, err := Render(DefaultRune, 16)
	require.NoError(t, err)

	var alpha int
	for i := 3; i < len(tex.Pixels); i += 4 {
		alpha += int(tex.Pixels[i])
	}
	assert.Positive(t, alpha)
}

func TestRenderRejectsBadSize(t *testing.T) {
	_, err := Render('A', 0)
	assert.Error(t, err)
}
