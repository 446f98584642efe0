package style

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
)

// quadUniformsArg is the pre-processor key of the QuadUniforms struct.
const quadUniformsArg shader.AnnotationArg = "quad_uniforms"

// GPUQuadUniformsSource is the canonical WGSL definition of the QuadUniforms struct.
// Matches GPUQuadUniforms layout exactly (16 bytes, uniform aligned).
//
//go:embed assets/quad_uniforms.wgsl
var GPUQuadUniformsSource string

// GPUQuadUniforms is the GPU-aligned uniform block shared by the quad styles.
// Size: 16 bytes (vec2 resolution + f32 scale + pad). The std140 block in the GLSL programs has the same layout.
type GPUQuadUniforms struct {
	Resolution [2]float32 // offset 0: surface width and height in pixels
	Scale      float32    // offset 8: particle edge length in pixels
	_pad0      float32    // offset 12
}

// Size returns the size of the GPUQuadUniforms struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUQuadUniforms) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUQuadUniforms struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUQuadUniforms) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Resolution[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Resolution[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Scale))
	binary.LittleEndian.PutUint32(buf[12:16], 0) // _pad0
	return buf
}

// unmarshalQuadUniforms is the inverse of Marshal, used by the CPU raster kernels.
func unmarshalQuadUniforms(buf []byte) GPUQuadUniforms {
	var g GPUQuadUniforms
	if len(buf) < 12 {
		return g
	}
	g.Resolution[0] = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	g.Resolution[1] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	g.Scale = math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))
	return g
}

// newPreProcessor returns a pre-processor that knows the structs of this package.
func newPreProcessor() shader.PreProcessor {
	return shader.NewPreProcessor(shader.WithStruct(quadUniformsArg, GPUQuadUniformsSource, "QuadUniforms"))
}

//go:embed assets/point.wgsl
var pointVertexSource string

//go:embed assets/solid_fragment.wgsl
var solidFragmentSource string

//go:embed assets/quad_vertex.wgsl
var quadVertexSource string

//go:embed assets/textured_fragment.wgsl
var texturedFragmentSource string

//go:embed assets/point.vert
var pointVertexGLSL string

//go:embed assets/solid.frag
var solidFragmentGLSL string

//go:embed assets/quad.vert
var quadVertexGLSL string

//go:embed assets/textured.frag
var texturedFragmentGLSL string
