package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVertex = `struct InstanceInput {
    @location(0) particlePos: vec2<f32>,
};

@vertex
fn vs_main(instance: InstanceInput) -> @builtin(position) vec4<f32> {
    return vec4<f32>(instance.particlePos, 0.0, 1.0);
}
`

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("points", PipelineTypeRender)

	assert.Equal(t, "points", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Nil(t, p.Native())
	assert.Empty(t, p.VertexLayouts())
}

func TestShadersKeyedByLanguage(t *testing.T) {
	wgsl, err := shader.NewShader("vs", shader.ShaderTypeVertex, shader.LanguageWGSL, testVertex)
	require.NoError(t, err)
	glsl, err := shader.NewShader("vs", shader.ShaderTypeVertex, shader.LanguageGLSL, "#version 410 core\nvoid main() {}\n")
	require.NoError(t, err)

	p := NewPipeline("points", PipelineTypeRender, WithShader(wgsl), WithShader(glsl), WithTopology(wgpu.PrimitiveTopologyPointList))

	assert.Same(t, wgsl, p.Shader(shader.ShaderTypeVertex, shader.LanguageWGSL))
	assert.Same(t, glsl, p.Shader(shader.ShaderTypeVertex, shader.LanguageGLSL))
	assert.Nil(t, p.Shader(shader.ShaderTypeFragment, shader.LanguageWGSL))
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, p.Topology())

	layouts := p.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, wgpu.VertexStepModeInstance, layouts[0].StepMode)
}

func TestExplicitVertexLayoutsWin(t *testing.T) {
	wgsl, err := shader.NewShader("vs", shader.ShaderTypeVertex, shader.LanguageWGSL, testVertex)
	require.NoError(t, err)
	explicit := wgpu.VertexBufferLayout{ArrayStride: 16, StepMode: wgpu.VertexStepModeVertex}

	p := NewPipeline("points", PipelineTypeRender, WithShader(wgsl), WithVertexLayouts(explicit))

	require.Len(t, p.VertexLayouts(), 1)
	assert.Equal(t, uint64(16), p.VertexLayouts()[0].ArrayStride)
}

func TestSetNativeReleasesPrevious(t *testing.T) {
	var released []string
	p := NewPipeline("advance", PipelineTypeStreamOut,
		WithStreamOutVaryings("outPosition", "outVelocity"),
		WithBindingName("Uniforms", 0),
	)

	p.SetNative("first", func() { released = append(released, "first") })
	p.SetNative("second", func() { released = append(released, "second") })
	assert.Equal(t, "second", p.Native())

	p.Release()
	p.Release()
	assert.Equal(t, []string{"first", "second"}, released)
	assert.Nil(t, p.Native())
	assert.Equal(t, []string{"outPosition", "outVelocity"}, p.StreamOutVaryings())
	assert.Equal(t, 0, p.BindingNames()["Uniforms"])
}

func TestKernelsAreCarried(t *testing.T) {
	calls := 0
	p := NewPipeline("advance", PipelineTypeCompute, WithComputeKernel(func(uint32, map[int][]byte) { calls++ }))

	require.NotNil(t, p.ComputeKernel())
	p.ComputeKernel()(0, nil)
	assert.Equal(t, 1, calls)
	assert.Nil(t, p.StreamOutKernel())
	assert.Nil(t, p.RasterKernel())
}
