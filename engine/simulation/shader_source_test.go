package simulation

import (
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boundaryTest is the reflection condition of one axis as written in a shader:
// low-op low || high-op high.
type boundaryTest struct {
	lowOp, highOp string
	low, high     float32
}

func (b boundaryTest) flips(x float32) bool {
	cmp := func(op string, a, t float32) bool {
		switch op {
		case "<=":
			return a <= t
		case "<":
			return a < t
		case ">=":
			return a >= t
		case ">":
			return a > t
		}
		return false
	}
	return cmp(b.lowOp, x, b.low) || cmp(b.highOp, x, b.high)
}

const number = `(-?[0-9]+(?:\.[0-9]*)?)`

// parseBoundary finds `if (pos.axis OP n || pos.axis OP n) { vel.axis = -vel.axis; }` in source.
func parseBoundary(t *testing.T, source, pos, vel, axis string) boundaryTest {
	t.Helper()
	p := regexp.QuoteMeta(pos + "." + axis)
	v := regexp.QuoteMeta(vel + "." + axis)
	re := regexp.MustCompile(fmt.Sprintf(`if \(\s*%s\s*(<=|<|>=|>)\s*%s\s*\|\|\s*%s\s*(<=|<|>=|>)\s*%s\s*\)\s*\{\s*%s\s*=\s*-%s\s*;\s*\}`,
		p, number, p, number, v, v))
	m := re.FindStringSubmatch(source)
	require.NotNil(t, m, "no reflection of %s.%s found", pos, axis)

	low, err := strconv.ParseFloat(m[2], 32)
	require.NoError(t, err)
	high, err := strconv.ParseFloat(m[4], 32)
	require.NoError(t, err)
	return boundaryTest{lowOp: m[1], low: float32(low), highOp: m[3], high: float32(high)}
}

func TestShaderSourcesReflectLikeAdvance(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		pos, vel string
		update   []string
	}{
		{
			name:   "stream-out glsl",
			source: reflectVertexSource,
			pos:    "position",
			vel:    "v",
			update: []string{`vec2 v = velocity;`, `outPosition = position + v;`, `outVelocity = v;`},
		},
		{
			name:   "compute wgsl",
			source: reflectComputeSource,
			pos:    "p",
			vel:    "v",
			update: []string{`let p = positionsIn[i];`, `var v = velocitiesIn[i];`, `positionsOut[i] = p + v;`, `velocitiesOut[i] = v;`},
		},
	}

	edges := []float32{-1.5, -1.0001, -1, -0.9999, -0.5, 0, 0.5, 0.9999, 1, 1.0001, 1.5}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, stmt := range tt.update {
				assert.Contains(t, tt.source, stmt)
			}

			for _, axis := range []string{"x", "y"} {
				b := parseBoundary(t, tt.source, tt.pos, tt.vel, axis)
				for _, x := range edges {
					pos := common.Vec2{X: x, Y: x}
					_, v := particle.Advance(pos, common.Vec2{X: 0.01, Y: 0.01})
					want := v.X < 0
					if axis == "y" {
						want = v.Y < 0
					}
					assert.Equal(t, want, b.flips(x), "%s.%s = %v", tt.pos, axis, x)
				}
			}
		})
	}
}
