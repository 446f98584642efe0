package particle

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceReflectsAtBoundary(t *testing.T) {
	p, v := Advance(common.Vec2{X: 1.0, Y: 0}, common.Vec2{X: 0.01, Y: 0})

	assert.InDelta(t, -0.01, v.X, 1e-7)
	assert.InDelta(t, 0.99, p.X, 1e-6)
	assert.Zero(t, p.Y)

	p, v = Advance(common.Vec2{X: -1.0, Y: -1.0}, common.Vec2{X: -0.5, Y: -0.25})
	assert.Equal(t, common.Vec2{X: 0.5, Y: 0.25}, v)
	assert.Equal(t, common.Vec2{X: -0.5, Y: -0.75}, p)
}

func TestAdvanceInteriorMovesFreely(t *testing.T) {
	p, v := Advance(common.Vec2{X: 0.25, Y: -0.5}, common.Vec2{X: 0.125, Y: 0.25})

	assert.Equal(t, common.Vec2{X: 0.125, Y: 0.25}, v)
	assert.Equal(t, common.Vec2{X: 0.375, Y: -0.25}, p)
}

func TestAdvanceOvershootReturns(t *testing.T) {
	// a particle one step past the boundary turns around on the next step
	p, v := Advance(common.Vec2{X: 0.995}, common.Vec2{X: 0.01})
	require.Greater(t, p.X, float32(1))

	p, v = Advance(p, v)
	assert.Less(t, v.X, float32(0))
	assert.Less(t, p.X, float32(1))
}

func TestSeedBoundsAndSpeed(t *testing.T) {
	const speed = float32(0.001)
	set := Seed(500, speed, NewRand(7))

	require.Equal(t, 500, set.Len())
	for i := range set.Positions {
		p, v := set.Positions[i], set.Velocities[i]
		assert.True(t, p.X >= -1 && p.X <= 1 && p.Y >= -1 && p.Y <= 1, "position %d: %+v", i, p)
		mag := math.Hypot(float64(v.X), float64(v.Y))
		assert.InDelta(t, speed, mag, 1e-6, "velocity %d", i)
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	a := Seed(64, 0.01, NewRand(42))
	b := Seed(64, 0.01, NewRand(42))
	c := Seed(64, 0.01, NewRand(43))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestStepStaysInBounds(t *testing.T) {
	const speed = float32(0.05)
	src := Seed(200, speed, NewRand(1))
	dst := src.Clone()

	for frame := 0; frame < 500; frame++ {
		Step(dst, src)
		src, dst = dst, src
	}
	for i, p := range src.Positions {
		assert.LessOrEqual(t, float32(math.Abs(float64(p.X))), 1+speed, "particle %d", i)
		assert.LessOrEqual(t, float32(math.Abs(float64(p.Y))), 1+speed, "particle %d", i)
	}
}

func TestSliceSharesStorage(t *testing.T) {
	set := Seed(10, 0.1, NewRand(3))
	part := set.Slice(4, 3)
	require.Equal(t, 3, part.Len())

	part.Positions[0] = common.Vec2{X: 9, Y: 9}
	assert.Equal(t, common.Vec2{X: 9, Y: 9}, set.Positions[4])

	clone := set.Clone()
	clone.Positions[4] = common.Vec2{}
	assert.Equal(t, common.Vec2{X: 9, Y: 9}, set.Positions[4])
}
