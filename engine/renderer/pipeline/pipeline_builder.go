package pipeline

import (
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShader adds a shader to the pipeline. The stage and language are taken from the shader.
// A pipeline may carry the same stage in several languages.
//
// Parameters:
//   - s: the shader to add
//
// Returns:
//   - PipelineBuilderOption: a function that adds the shader to this pipeline
func WithShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		if s == nil {
			return
		}
		p.shaders[shaderKey{s.ShaderType(), s.Language()}] = s
	}
}

// WithBlendEnabled sets whether blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blending enabled state for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the cull mode for this pipeline.
//
// Parameters:
//   - mode: the cull mode to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithTopology sets the primitive topology for this pipeline.
//
// Parameters:
//   - topology: the primitive topology to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the primitive topology for this pipeline
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

// WithFrontFace sets the front face winding order for this pipeline.
//
// Parameters:
//   - frontFace: the front face winding order to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the front face winding order for this pipeline
func WithFrontFace(frontFace wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.frontFace = frontFace
	}
}

// WithWriteMask sets the color write mask for this pipeline.
//
// Parameters:
//   - writeMask: the color write mask to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the color write mask for this pipeline
func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithBlendState sets the blend state for this pipeline. It takes effect only when blending is enabled.
//
// Parameters:
//   - blendState: the blend state to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend state for this pipeline
func WithBlendState(blendState *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendState = blendState
	}
}

// WithVertexLayouts sets explicit vertex buffer layouts, one per slot. Required for pipelines
// without a WGSL vertex shader to parse them from.
//
// Parameters:
//   - layouts: the vertex buffer layouts in slot order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex layouts for this pipeline
func WithVertexLayouts(layouts ...wgpu.VertexBufferLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexLayouts = layouts
	}
}

// WithStreamOutVaryings sets the vertex outputs captured by a stream-out pipeline. Each varying
// is written to its own output buffer, in the given order.
//
// Parameters:
//   - varyings: the vertex output names to capture
//
// Returns:
//   - PipelineBuilderOption: a function that sets the captured varyings for this pipeline
func WithStreamOutVaryings(varyings ...string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.streamOutVaryings = varyings
	}
}

// WithBindingName maps a GLSL uniform block or sampler uniform name to a binding index.
//
// Parameters:
//   - name: the GLSL name
//   - binding: the binding index used in bind group providers
//
// Returns:
//   - PipelineBuilderOption: a function that records the binding name for this pipeline
func WithBindingName(name string, binding int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.bindingNames[name] = binding
	}
}

// WithComputeKernel sets the CPU rendition of the compute program.
func WithComputeKernel(k ComputeKernel) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeKernel = k
	}
}

// WithStreamOutKernel sets the CPU rendition of the stream-out program.
func WithStreamOutKernel(k StreamOutKernel) PipelineBuilderOption {
	return func(p *pipeline) {
		p.streamOutKernel = k
	}
}

// WithRasterKernel sets the CPU rendition of the render program.
func WithRasterKernel(k RasterKernel) PipelineBuilderOption {
	return func(p *pipeline) {
		p.rasterKernel = k
	}
}
