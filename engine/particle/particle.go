// Package particle holds the particle state model: seeding, the reflection integrator, the
// partition of a particle set into device sized batches, and the double-buffered device store.
package particle

import (
	"math"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-swarm/common"
)

// Roles is the number of alternating buffer roles per attribute.
const Roles = 2

// Set is an ordered particle set held on the host. Positions and Velocities have equal length.
type Set struct {
	Positions  []common.Vec2
	Velocities []common.Vec2
}

// Len returns the number of particles in the set.
func (s Set) Len() int {
	return len(s.Positions)
}

// Slice returns the particles [offset, offset+count) sharing storage with s.
func (s Set) Slice(offset, count uint32) Set {
	return Set{
		Positions:  s.Positions[offset : offset+count],
		Velocities: s.Velocities[offset : offset+count],
	}
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	return Set{
		Positions:  append([]common.Vec2(nil), s.Positions...),
		Velocities: append([]common.Vec2(nil), s.Velocities...),
	}
}

// Seed creates count particles with positions uniform in [-1, 1] per axis and velocities of
// magnitude speed in a uniformly random direction.
//
// Parameters:
//   - count: the number of particles
//   - speed: the velocity magnitude
//   - rng: the random source; the same source state yields the same set
//
// Returns:
//   - Set: the seeded particles
func Seed(count uint32, speed float32, rng *rand.Rand) Set {
	s := Set{
		Positions:  make([]common.Vec2, count),
		Velocities: make([]common.Vec2, count),
	}
	for i := range s.Positions {
		s.Positions[i] = common.Vec2{
			X: float32(-1 + rng.Float64()*2),
			Y: float32(-1 + rng.Float64()*2),
		}
		theta := rng.Float64() * math.Pi * 2
		s.Velocities[i] = common.Vec2{
			X: float32(math.Cos(theta)) * speed,
			Y: float32(math.Sin(theta)) * speed,
		}
	}
	return s
}

// NewRand returns a PCG source seeded with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Advance applies one integration step to a single particle. A velocity component is negated
// when the matching position component is at or beyond ±1, then the position moves by the
// resulting velocity. Positions are not clamped, so a particle may overshoot the boundary by at
// most one step.
//
// Parameters:
//   - p: the current position
//   - v: the current velocity
//
// Returns:
//   - common.Vec2: the next position
//   - common.Vec2: the next velocity
func Advance(p, v common.Vec2) (common.Vec2, common.Vec2) {
	if p.X <= -1 || p.X >= 1 {
		v.X = -v.X
	}
	if p.Y <= -1 || p.Y >= 1 {
		v.Y = -v.Y
	}
	return p.Add(v), v
}

// Step advances every particle of src into dst. dst must be as long as src and must not share
// storage with it.
func Step(dst, src Set) {
	for i := range src.Positions {
		dst.Positions[i], dst.Velocities[i] = Advance(src.Positions[i], src.Velocities[i])
	}
}
