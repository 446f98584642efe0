// Package style draws the current particle role in one of three visual styles: bare points,
// instanced quads, or instanced quads textured with a glyph.
package style

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/glyph"
	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"go.uber.org/zap"
)

// VisualStyle selects how particles are drawn.
type VisualStyle int

const (
	// VisualStylePoint draws each particle as a 1 px opaque point.
	VisualStylePoint VisualStyle = iota

	// VisualStyleQuad draws each particle as an opaque square of the particle size.
	VisualStyleQuad

	// VisualStyleTexturedQuad draws each particle as a square sampling the glyph texture,
	// blended as src*alpha + dst*(1-alpha).
	VisualStyleTexturedQuad
)

func (s VisualStyle) String() string {
	switch s {
	case VisualStylePoint:
		return "point"
	case VisualStyleQuad:
		return "quad"
	case VisualStyleTexturedQuad:
		return "texturedQuad"
	default:
		return fmt.Sprintf("VisualStyle(%d)", int(s))
	}
}

// ParseVisualStyle parses a style name. Matching is case-insensitive and accepts the control
// panel names ("point-particles", "quad-particles", "texture-particles") as well as the short forms.
//
// Parameters:
//   - name: the style name
//
// Returns:
//   - VisualStyle: the parsed style
//   - error: an error if the name is unknown
func ParseVisualStyle(name string) (VisualStyle, error) {
	n := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "-particles")
	switch n {
	case "point", "points":
		return VisualStylePoint, nil
	case "quad", "quads":
		return VisualStyleQuad, nil
	case "texture", "textured", "texturedquad", "textured-quad":
		return VisualStyleTexturedQuad, nil
	default:
		return 0, fmt.Errorf("unknown visual style %q", name)
	}
}

// Strategy draws the particles of a store under one visual style.
//
// Setup does all program, buffer and texture work once. Draw is called inside an open frame
// once per frame and issues one draw per batch.
type Strategy interface {
	// Style returns the visual style of this strategy.
	//
	// Returns:
	//   - VisualStyle: the style
	Style() VisualStyle

	// Setup registers the render program, uploads the style's uniforms, mesh and texture, and binds them.
	//
	// Parameters:
	//   - r: the renderer to draw with
	//   - store: the particle store to draw
	//
	// Returns:
	//   - error: a *renderer.ShaderCompileError if a program does not build, or an allocation error
	Setup(r renderer.Renderer, store particle.Store) error

	// Draw issues the draw calls for every batch reading the given role. The resolution uniform
	// is uploaded only when width or height differ from the last upload.
	//
	// Parameters:
	//   - role: the role to read, the one most recently written by the simulation
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: an error if the strategy is not set up or a draw call fails
	Draw(role, width, height int) error

	// UniformUploads returns how many times the resolution uniform has been written since Setup.
	//
	// Returns:
	//   - int: the upload count, always 0 for styles without uniforms
	UniformUploads() int

	// Release frees the program, mesh, uniforms and texture. Calling Release more than once is a no-op.
	Release()
}

// New creates the strategy for style.
//
// Parameters:
//   - style: the visual style
//   - options: variadic list of StrategyBuilderOption functions
//
// Returns:
//   - Strategy: the strategy, ready for Setup
//   - error: an error if style is unknown
func New(style VisualStyle, options ...StrategyBuilderOption) (Strategy, error) {
	switch style {
	case VisualStylePoint:
		return NewPoint(options...), nil
	case VisualStyleQuad:
		return NewQuad(options...), nil
	case VisualStyleTexturedQuad:
		return NewTexturedQuad(options...), nil
	default:
		return nil, fmt.Errorf("unknown visual style %s", style)
	}
}

// StrategyBuilderOption is a functional option applied to a style strategy during construction.
type StrategyBuilderOption func(*strategyBase)

// WithLogger sets the logger of the strategy.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - StrategyBuilderOption: the option
func WithLogger(logger *zap.Logger) StrategyBuilderOption {
	return func(s *strategyBase) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParticleSize sets the edge length of a quad in pixels. Point styles ignore it.
//
// Parameters:
//   - size: the particle size in pixels
//
// Returns:
//   - StrategyBuilderOption: the option
func WithParticleSize(size float32) StrategyBuilderOption {
	return func(s *strategyBase) {
		s.size = size
	}
}

// WithTexture replaces the glyph texture of the textured style. Other styles ignore it.
//
// Parameters:
//   - tex: the RGBA texture
//
// Returns:
//   - StrategyBuilderOption: the option
func WithTexture(tex common.TextureStagingData) StrategyBuilderOption {
	return func(s *strategyBase) {
		s.texture = &tex
	}
}

// WithGlyph sets the rune rendered into the textured style's texture. Other styles ignore it.
//
// Parameters:
//   - r: the character to draw
//
// Returns:
//   - StrategyBuilderOption: the option
func WithGlyph(r rune) StrategyBuilderOption {
	return func(s *strategyBase) {
		s.glyph = r
	}
}

// WithPipelineKey overrides the key the render program is registered under.
//
// Parameters:
//   - key: the pipeline key
//
// Returns:
//   - StrategyBuilderOption: the option
func WithPipelineKey(key string) StrategyBuilderOption {
	return func(s *strategyBase) {
		if key != "" {
			s.key = key
		}
	}
}

// strategyBase holds the state shared by every style.
type strategyBase struct {
	key      string
	logger   *zap.Logger
	size     float32
	glyph    rune
	texture  *common.TextureStagingData
	r        renderer.Renderer
	store    particle.Store
	released bool
}

func newStrategyBase(key string, options ...StrategyBuilderOption) strategyBase {
	s := strategyBase{
		key:    key,
		logger: zap.NewNop(),
		size:   10,
		glyph:  glyph.DefaultRune,
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}

func (s *strategyBase) ready(role int) error {
	if s.r == nil || s.store == nil {
		return fmt.Errorf("style %s: not set up", s.key)
	}
	if s.released {
		return fmt.Errorf("style %s: released", s.key)
	}
	if role < 0 || role >= particle.Roles {
		return fmt.Errorf("style %s: role %d out of range", s.key, role)
	}
	return nil
}

func (s *strategyBase) releasePipeline() bool {
	if s.released {
		return false
	}
	s.released = true
	if s.r != nil {
		s.r.ReleasePipelines(s.key)
	}
	return true
}
