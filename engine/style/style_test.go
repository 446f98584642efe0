package style

import (
	"image"
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const surfaceSize = 64

var black = common.RGBA{A: 1}

func newRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithLogger(zaptest.NewLogger(t)),
		renderer.WithSoftwareOptions(renderer.WithSoftwareSize(surfaceSize, surfaceSize)),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func newStore(t *testing.T, r renderer.Renderer, positions ...common.Vec2) particle.Store {
	t.Helper()
	set := particle.Set{Positions: positions, Velocities: make([]common.Vec2, len(positions))}
	batches, err := particle.Partition(uint32(len(positions)), particle.ElementSize, 0, 0, 1)
	require.NoError(t, err)
	store, err := particle.NewStore(r, set, batches)
	require.NoError(t, err)
	t.Cleanup(store.Destroy)
	return store
}

func drawFrame(t *testing.T, r renderer.Renderer, s Strategy, role int) *image.RGBA {
	t.Helper()
	require.NoError(t, r.BeginFrame(black))
	require.NoError(t, s.Draw(role, surfaceSize, surfaceSize))
	require.NoError(t, r.EndFrame())
	return r.Backend().(renderer.SoftwareBackend).Frame()
}

func TestParseVisualStyle(t *testing.T) {
	cases := map[string]VisualStyle{
		"point":             VisualStylePoint,
		"point-particles":   VisualStylePoint,
		"Quad":              VisualStyleQuad,
		"quad-particles":    VisualStyleQuad,
		"texture-particles": VisualStyleTexturedQuad,
		"texturedQuad":      VisualStyleTexturedQuad,
	}
	for name, want := range cases {
		got, err := ParseVisualStyle(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)

		back, err := ParseVisualStyle(got.String())
		require.NoError(t, err)
		assert.Equal(t, got, back)
	}
	_, err := ParseVisualStyle("sprite")
	assert.Error(t, err)
}

func TestNewSelectsStyle(t *testing.T) {
	for _, vs := range []VisualStyle{VisualStylePoint, VisualStyleQuad, VisualStyleTexturedQuad} {
		s, err := New(vs)
		require.NoError(t, err)
		assert.Equal(t, vs, s.Style())
	}
	_, err := New(VisualStyle(9))
	assert.Error(t, err)
}

func TestPointDrawsOnePixel(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{X: 0, Y: 0}, common.Vec2{X: -0.5, Y: 0.5})
	s := NewPoint(WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	frame := drawFrame(t, r, s, 0)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(32, 32))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(16, 16))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(33, 32))
	assert.Zero(t, s.UniformUploads())
}

func TestQuadCoversParticleSize(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	s := NewQuad(WithParticleSize(10))
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	frame := drawFrame(t, r, s, 0)

	white := color.RGBA{255, 255, 255, 255}
	assert.Equal(t, white, frame.RGBAAt(27, 27))
	assert.Equal(t, white, frame.RGBAAt(32, 32))
	assert.Equal(t, white, frame.RGBAAt(36, 36))
	assert.NotEqual(t, white, frame.RGBAAt(37, 37))
	assert.NotEqual(t, white, frame.RGBAAt(26, 32))
}

func TestTexturedQuadBlendsTexture(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	red := common.TextureStagingData{
		Pixels:        []byte{255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255},
		Width:  2,
		Height: 2,
	}
	s := NewTexturedQuad(WithParticleSize(16), WithTexture(red))
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	frame := drawFrame(t, r, s, 0)

	center := frame.RGBAAt(32, 32)
	assert.Greater(t, center.R, uint8(250))
	assert.Less(t, center.G, uint8(5))
	assert.Equal(t, uint8(255), center.A)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(2, 2))
}

func TestTexturedQuadBlendsWithSourceAlpha(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	halfWhite := common.TextureStagingData{Pixels: make([]byte, 0, 4*4*4), Width: 4, Height: 4}
	for range 16 {
		halfWhite.Pixels = append(halfWhite.Pixels, 255, 255, 255, 128)
	}
	s := NewTexturedQuad(WithParticleSize(16), WithTexture(halfWhite))
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	frame := drawFrame(t, r, s, 0)

	// color: 1*0.5 + 0*0.5, alpha: 0.5*0.5 + 1*0.5
	center := frame.RGBAAt(32, 32)
	assert.InDelta(t, 128, center.R, 2)
	assert.InDelta(t, 128, center.B, 2)
	assert.InDelta(t, 191, center.A, 2)
}

func TestTexturedQuadTransparentTextureKeepsBackground(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	clearTex := common.TextureStagingData{Pixels: make([]byte, 4*4*4), Width: 4, Height: 4, Premultiplied: true}
	s := NewTexturedQuad(WithParticleSize(16), WithTexture(clearTex))
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	frame := drawFrame(t, r, s, 0)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(32, 32))
}

func TestTexturedQuadDefaultGlyph(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	s := NewTexturedQuad(WithParticleSize(32), WithGlyph('A'))
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	drawFrame(t, r, s, 0)
}

func TestResolutionUploadIsDirtyChecked(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	s := NewQuad()
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	writes := func() int { return r.Backend().(renderer.SoftwareBackend).Stats().BufferWrites }
	before := writes()

	require.NoError(t, r.BeginFrame(black))
	require.NoError(t, s.Draw(0, surfaceSize, surfaceSize))
	require.NoError(t, s.Draw(1, surfaceSize, surfaceSize))
	assert.Zero(t, s.UniformUploads())
	assert.Equal(t, before, writes())

	require.NoError(t, s.Draw(0, 128, 32))
	require.NoError(t, s.Draw(1, 128, 32))
	require.NoError(t, r.EndFrame())
	assert.Equal(t, 1, s.UniformUploads())
	assert.Equal(t, before+1, writes())
}

func TestResolutionNeverZero(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	s := NewQuad()
	require.NoError(t, s.Setup(r, store))
	defer s.Release()

	require.NoError(t, r.BeginFrame(black))
	require.NoError(t, s.Draw(0, 0, 0))
	require.NoError(t, r.EndFrame())
	assert.Equal(t, [2]float32{1, 1}, s.(*quadStrategy).uniforms.Resolution)
}

func TestDrawNeedsSetupAndFrame(t *testing.T) {
	r := newRenderer(t)
	store := newStore(t, r, common.Vec2{})
	s := NewQuad()
	assert.Error(t, s.Draw(0, surfaceSize, surfaceSize))

	require.NoError(t, s.Setup(r, store))
	defer s.Release()
	assert.Error(t, s.Draw(0, surfaceSize, surfaceSize), "no frame open")
	assert.Error(t, s.Draw(2, surfaceSize, surfaceSize))
}

func TestReleaseFreesStyleResources(t *testing.T) {
	for _, vs := range []VisualStyle{VisualStylePoint, VisualStyleQuad, VisualStyleTexturedQuad} {
		t.Run(vs.String(), func(t *testing.T) {
			r := newRenderer(t)
			store := newStore(t, r, common.Vec2{})
			stats := func() renderer.SoftwareStats { return r.Backend().(renderer.SoftwareBackend).Stats() }
			storeBuffers := stats().Live()

			s, err := New(vs, WithGlyph('A'))
			require.NoError(t, err)
			require.NoError(t, s.Setup(r, store))

			s.Release()
			s.Release()

			assert.Equal(t, storeBuffers, stats().Live())
			assert.Zero(t, stats().DoubleReleases)
			assert.Empty(t, r.Pipelines())
		})
	}
}
