package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUniforms = `struct QuadUniforms {
    resolution: vec2<f32>,
    scale: f32,
};`

const testQuadVertex = `//@oxy:include quad_uniforms
//@oxy:group 0 0 storage_uniform uniforms quad_uniforms

struct InstanceInput {
    @location(0) particlePos: vec2<f32>,
};

struct VertexInput {
    @location(1) pos: vec2<f32>,
};

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn vs_main(instance: InstanceInput, vertex: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(instance.particlePos + vertex.pos * uniforms.scale / uniforms.resolution, 0.0, 1.0);
    return out;
}
`

const testCompute = `//@oxy:provider 0 0 particles positions_in
@group(0) @binding(0) var<storage, read> positionsA: array<vec2<f32>>;
//@oxy:provider 0 2 particles positions_out
@group(0) @binding(2) var<storage, read_write> positionsB: array<vec2<f32>>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    positionsB[id.x] = positionsA[id.x];
}
`

func newTestPreProcessor() PreProcessor {
	return NewPreProcessor(WithStruct("quad_uniforms", testUniforms, "QuadUniforms"))
}

func TestNewShaderVertexLayouts(t *testing.T) {
	s, err := NewShader("quad_vs", ShaderTypeVertex, LanguageWGSL, testQuadVertex, WithPreProcessor(newTestPreProcessor()))
	require.NoError(t, err)

	assert.Equal(t, "vs_main", s.EntryPoint())
	assert.Contains(t, s.Source(), "@group(0) @binding(0) var<uniform> uniforms: QuadUniforms;")
	assert.Contains(t, s.Source(), "struct QuadUniforms")

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 2)
	assert.Equal(t, wgpu.VertexStepModeInstance, layouts[0].StepMode)
	assert.Equal(t, uint64(8), layouts[0].ArrayStride)
	assert.Equal(t, uint32(0), layouts[0].Attributes[0].ShaderLocation)
	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[1].StepMode)
	assert.Equal(t, uint32(1), layouts[1].Attributes[0].ShaderLocation)

	desc := s.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(16), desc.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, "uniforms", s.BindGroupVarName(0, 0))
}

func TestNewShaderCompute(t *testing.T) {
	s, err := NewShader("compute", ShaderTypeCompute, LanguageWGSL, testCompute)
	require.NoError(t, err)

	assert.Equal(t, [3]uint32{256, 1, 1}, s.WorkgroupSize())
	desc := s.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, desc.Entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, desc.Entries[1].Buffer.Type)

	group, binding, ok := FindBinding(s.Declarations(), AnnotationArgParticles, AnnotationArgPositionsOut)
	require.True(t, ok)
	assert.Equal(t, 0, group)
	assert.Equal(t, 2, binding)

	_, _, ok = FindBinding(s.Declarations(), AnnotationArgParticles, AnnotationArgVelocitiesOut)
	assert.False(t, ok)
}

func TestNewShaderErrors(t *testing.T) {
	_, err := NewShader("empty", ShaderTypeVertex, LanguageWGSL, "")
	assert.Error(t, err)

	_, err = NewShader("unregistered", ShaderTypeVertex, LanguageWGSL, testQuadVertex)
	assert.ErrorContains(t, err, "quad_uniforms")

	_, err = NewShader("no entry", ShaderTypeFragment, LanguageWGSL, testCompute)
	assert.ErrorContains(t, err, "entry point")

	_, err = NewShader("bad role", ShaderTypeCompute, LanguageWGSL, "//@oxy:provider 0 0 particles sideways\n"+testCompute)
	assert.ErrorContains(t, err, "binding role")
}

func TestNewShaderGLSLPassThrough(t *testing.T) {
	src := "#version 410 core\n//@oxy:include quad_uniforms\nvoid main() {}\n"
	s, err := NewShader("gl_vs", ShaderTypeVertex, LanguageGLSL, src)
	require.NoError(t, err)
	assert.Equal(t, src, s.Source())
	assert.Equal(t, "main", s.EntryPoint())
	assert.Empty(t, s.VertexLayouts())
	assert.Equal(t, LanguageGLSL, s.Language())
}

const testLayoutSource = `/* glyph pass
   bindings */
struct Padded {
    scale: f32,
    offset: vec2<f32>, // aligned to 8
    tint: vec4<f32>,
}

@group(0) @binding(0) var<uniform> padded: Padded;
@group(0) @binding(1) var<storage, read> ids: array<u32>;
@group(0) @binding(2) var<storage, read_write> positions: array<vec2<f32>>;
@group(1) @binding(0) var glyphSampler: sampler;
@group(1) @binding(1) var glyphTexture: texture_2d<f32>;
`

func TestParseBindGroupLayoutSizes(t *testing.T) {
	groups, names := parseBindGroupLayouts(testLayoutSource, wgpu.ShaderStageFragment)
	require.Len(t, groups, 2)

	tests := []struct {
		name       string
		group      int
		binding    int
		bufferType wgpu.BufferBindingType
		minSize    uint64
	}{
		{"struct rounds to max align", 0, 0, wgpu.BufferBindingTypeUniform, 32},
		{"runtime scalar array", 0, 1, wgpu.BufferBindingTypeReadOnlyStorage, 4},
		{"runtime vec2 array", 0, 2, wgpu.BufferBindingTypeStorage, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := groups[tt.group].Entries[tt.binding]
			assert.Equal(t, uint32(tt.binding), entry.Binding)
			assert.Equal(t, tt.bufferType, entry.Buffer.Type)
			assert.Equal(t, tt.minSize, entry.Buffer.MinBindingSize)
			assert.Equal(t, wgpu.ShaderStageFragment, entry.Visibility)
		})
	}

	textures := groups[1].Entries
	require.Len(t, textures, 2)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, textures[0].Sampler.Type)
	assert.Equal(t, wgpu.TextureViewDimension2D, textures[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, textures[1].Texture.SampleType)
	assert.Equal(t, "glyphTexture", names[1][1])
}

func TestResolveTypeLayoutRejectsFixedArrays(t *testing.T) {
	_, ok := resolveTypeLayout("array<f32, 4>", nil)
	assert.False(t, ok)

	layout, ok := resolveTypeLayout("array<vec4f>", nil)
	require.True(t, ok)
	assert.Equal(t, uint64(16), layout.size)
}
