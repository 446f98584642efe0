package control

import (
	"math"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/swarm"
)

// ApplyKey maps a key press onto the settings:
//
//	1 / 2 / 3   point / quad / texture particles
//	G / W       gl / wgpu renderer
//	Up / Down   double / halve the particle count
//	Right/Left  double / halve the particle speed
//
// Parameters:
//   - s: the current settings
//   - keyCode: the virtual key code
//
// Returns:
//   - Settings: the changed settings
//   - bool: false if the key is unbound or the change would leave the valid range
func ApplyKey(s Settings, keyCode uint32) (Settings, bool) {
	switch keyCode {
	case common.Key1:
		s.ParticleType = "point"
	case common.Key2:
		s.ParticleType = "quad"
	case common.Key3:
		s.ParticleType = "texture"
	case common.KeyG:
		s.Renderer = "gl"
	case common.KeyW:
		s.Renderer = "wgpu"
	case common.KeyUp:
		s.ParticleCount = min(max(s.ParticleCount*2, 1), swarm.MaxParticleCount)
	case common.KeyDown:
		s.ParticleCount /= 2
	case common.KeyRight:
		s.ParticleSpeed = math.Min(math.Max(s.ParticleSpeed*2, 0.0001), swarm.MaxParticleSpeed)
	case common.KeyLeft:
		s.ParticleSpeed /= 2
	default:
		return s, false
	}
	if s.Validate() != nil {
		return s, false
	}
	return s, true
}
