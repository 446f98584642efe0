package pipeline

import (
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies which kind of GPU program a Pipeline describes.
type PipelineType int

const (
	// PipelineTypeCompute is a compute program dispatched over workgroups.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender is a vertex + fragment program drawing into the surface.
	PipelineTypeRender

	// PipelineTypeStreamOut is a vertex program whose outputs are captured into buffers with
	// rasterization disabled.
	PipelineTypeStreamOut
)

// String returns the pipeline type name.
func (t PipelineType) String() string {
	switch t {
	case PipelineTypeCompute:
		return "compute"
	case PipelineTypeRender:
		return "render"
	case PipelineTypeStreamOut:
		return "stream-out"
	default:
		return "unknown"
	}
}

type shaderKey struct {
	shaderType shader.ShaderType
	language   shader.Language
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	// shaders holds every stage in every language the pipeline was given. Backends pick the
	// language they compile.
	shaders map[shaderKey]shader.Shader

	// native is the backend pipeline object, set by the backend during registration.
	native        any
	releaseNative func()

	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState

	vertexLayouts     []wgpu.VertexBufferLayout
	streamOutVaryings []string
	bindingNames      map[string]int

	computeKernel   ComputeKernel
	streamOutKernel StreamOutKernel
	rasterKernel    RasterKernel
}

// Pipeline describes a GPU program and its fixed-function state independently of any backend.
// Backends compile it during Renderer.RegisterPipelines and store their native object on it.
type Pipeline interface {
	// Type returns the type of the pipeline.
	//
	// Returns:
	//   - PipelineType: PipelineTypeCompute, PipelineTypeRender or PipelineTypeStreamOut
	Type() PipelineType

	// PipelineKey returns the unique key identifying this pipeline in the renderer cache.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// Shader retrieves the shader for a stage in a given language.
	//
	// Parameters:
	//   - shaderType: the pipeline stage
	//   - language: the shading language
	//
	// Returns:
	//   - shader.Shader: the shader, or nil if the pipeline has none for that stage and language
	Shader(shaderType shader.ShaderType, language shader.Language) shader.Shader

	// Native returns the backend pipeline object, or nil before registration.
	//
	// Returns:
	//   - any: the backend object (e.g. *wgpu.RenderPipeline, a GL program name)
	Native() any

	// SetNative stores the backend pipeline object and the function that frees it.
	//
	// Parameters:
	//   - native: the backend object
	//   - release: frees native, may be nil
	SetNative(native any, release func())

	// Release frees the backend pipeline object. Calling Release more than once is a no-op.
	Release()

	BlendEnabled() bool
	CullMode() wgpu.CullMode
	Topology() wgpu.PrimitiveTopology
	FrontFace() wgpu.FrontFace
	WriteMask() wgpu.ColorWriteMask
	BlendState() *wgpu.BlendState

	// VertexLayouts returns the vertex buffer layouts in slot order. Explicit layouts set with
	// WithVertexLayouts win, otherwise the layouts parsed from the WGSL vertex shader are used.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: layouts, one per vertex buffer slot
	VertexLayouts() []wgpu.VertexBufferLayout

	// StreamOutVaryings returns the vertex outputs captured by a stream-out pipeline, in output buffer order.
	//
	// Returns:
	//   - []string: the captured varying names
	StreamOutVaryings() []string

	// BindingNames maps GLSL uniform block and sampler names to binding indices. Used by backends
	// whose shading language cannot declare bindings in source.
	//
	// Returns:
	//   - map[string]int: binding indices keyed by GLSL name
	BindingNames() map[string]int

	// ComputeKernel returns the CPU rendition of the compute program, or nil.
	ComputeKernel() ComputeKernel

	// StreamOutKernel returns the CPU rendition of the stream-out program, or nil.
	StreamOutKernel() StreamOutKernel

	// RasterKernel returns the CPU rendition of the render program, or nil.
	RasterKernel() RasterKernel
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new Pipeline with the given key and type. Render pipelines default to
// a triangle list with no culling and straight alpha blending (disabled until WithBlendEnabled).
//
// Parameters:
//   - pipelineKey: the unique key for the renderer cache
//   - pipelineType: the type of program
//   - opts: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the new Pipeline
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		shaders:      make(map[shaderKey]shader.Shader),
		blendEnabled: false,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
		bindingNames: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType, language shader.Language) shader.Shader {
	return p.shaders[shaderKey{shaderType, language}]
}

func (p *pipeline) Native() any {
	return p.native
}

func (p *pipeline) SetNative(native any, release func()) {
	p.Release()
	p.native = native
	p.releaseNative = release
}

func (p *pipeline) Release() {
	if p.releaseNative != nil {
		p.releaseNative()
		p.releaseNative = nil
	}
	p.native = nil
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) VertexLayouts() []wgpu.VertexBufferLayout {
	if len(p.vertexLayouts) > 0 {
		return p.vertexLayouts
	}
	if vs := p.Shader(shader.ShaderTypeVertex, shader.LanguageWGSL); vs != nil {
		return vs.VertexLayouts()
	}
	return nil
}

func (p *pipeline) StreamOutVaryings() []string {
	return p.streamOutVaryings
}

func (p *pipeline) BindingNames() map[string]int {
	return p.bindingNames
}

func (p *pipeline) ComputeKernel() ComputeKernel {
	return p.computeKernel
}

func (p *pipeline) StreamOutKernel() StreamOutKernel {
	return p.streamOutKernel
}

func (p *pipeline) RasterKernel() RasterKernel {
	return p.rasterKernel
}
