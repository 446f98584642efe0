package swarm

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
)

const (
	// MaxParticleCount is the largest particle count a pipeline accepts.
	MaxParticleCount = 20_000_000

	// MaxParticleSpeed is the largest per-frame velocity magnitude a pipeline accepts.
	MaxParticleSpeed = 0.1

	// MaxParticleSize is the largest particle size in pixels a pipeline accepts.
	MaxParticleSize = 100
)

// ErrInvalidConfig matches every error returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// Config is the immutable description of a pipeline. Changing any field means disposing the
// pipeline and building a new one.
type Config struct {
	Model renderer.ExecutionModel
	Style style.VisualStyle

	// ParticleCount is the number of particles, in [0, MaxParticleCount].
	ParticleCount uint32
	// ParticleSpeed is the velocity magnitude per frame in normalized device units, in [0, MaxParticleSpeed].
	ParticleSpeed float32
	// ParticleSize is the quad edge in pixels, in [0, MaxParticleSize]. Points ignore it.
	ParticleSize float32
	// Background is the clear color of every frame.
	Background common.RGBA
}

// DefaultConfig returns the configuration the control panel starts with.
func DefaultConfig() Config {
	return Config{
		Model:         renderer.ExecutionModelRasterStreamOut,
		Style:         style.VisualStyleTexturedQuad,
		ParticleCount: 5000,
		ParticleSpeed: 0.001,
		ParticleSize:  10,
		Background:    common.RGBA{A: 1},
	}
}

// Validate checks every field against its range.
//
// Returns:
//   - error: an error wrapping ErrInvalidConfig naming the first bad field, or nil
func (c Config) Validate() error {
	switch {
	case c.Model != renderer.ExecutionModelRasterStreamOut && c.Model != renderer.ExecutionModelComputeDispatch:
		return fmt.Errorf("%w: unknown execution model %s", ErrInvalidConfig, c.Model)
	case c.Style < style.VisualStylePoint || c.Style > style.VisualStyleTexturedQuad:
		return fmt.Errorf("%w: unknown visual style %s", ErrInvalidConfig, c.Style)
	case c.ParticleCount > MaxParticleCount:
		return fmt.Errorf("%w: particle count %d exceeds %d", ErrInvalidConfig, c.ParticleCount, MaxParticleCount)
	case !(c.ParticleSpeed >= 0 && c.ParticleSpeed <= MaxParticleSpeed):
		return fmt.Errorf("%w: particle speed %g outside [0, %g]", ErrInvalidConfig, c.ParticleSpeed, MaxParticleSpeed)
	case !(c.ParticleSize >= 0 && c.ParticleSize <= MaxParticleSize):
		return fmt.Errorf("%w: particle size %g outside [0, %d]", ErrInvalidConfig, c.ParticleSize, MaxParticleSize)
	}
	return nil
}
