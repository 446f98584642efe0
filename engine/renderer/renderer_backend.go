package renderer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the GPU backend implementation used by the Renderer.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend. It runs the compute-dispatch execution model.
	BackendTypeWGPU BackendType = iota

	// BackendTypeGL selects the OpenGL 4.1 core backend. It runs the raster stream-out execution model.
	BackendTypeGL

	// BackendTypeSoftware selects the CPU backend. It emulates both execution models and renders
	// into an in-memory image.
	BackendTypeSoftware
)

// String returns the backend name.
func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeGL:
		return "gl"
	case BackendTypeSoftware:
		return "software"
	default:
		return fmt.Sprintf("BackendType(%d)", int(t))
	}
}

// ExecutionModel is the way particle state is advanced on the device.
type ExecutionModel int

const (
	// ExecutionModelRasterStreamOut advances particles in a vertex program with rasterization
	// disabled, capturing the vertex outputs into buffers.
	ExecutionModelRasterStreamOut ExecutionModel = iota

	// ExecutionModelComputeDispatch advances particles in a compute program over storage buffers.
	ExecutionModelComputeDispatch
)

// String returns the canonical name of the model.
func (m ExecutionModel) String() string {
	switch m {
	case ExecutionModelRasterStreamOut:
		return "rasterStreamOut"
	case ExecutionModelComputeDispatch:
		return "computeDispatch"
	default:
		return fmt.Sprintf("ExecutionModel(%d)", int(m))
	}
}

// DefaultBackend returns the backend that natively runs the model.
func (m ExecutionModel) DefaultBackend() BackendType {
	if m == ExecutionModelComputeDispatch {
		return BackendTypeWGPU
	}
	return BackendTypeGL
}

// ParseExecutionModel parses a model name. The API names of the original renderers are accepted
// as aliases, case-insensitively.
//
// Parameters:
//   - s: the name to parse
//
// Returns:
//   - ExecutionModel: the parsed model
//   - error: an error if s names no model
func ParseExecutionModel(s string) (ExecutionModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gl", "webgl", "webgl2", "rasterstreamout", "stream-out", "streamout":
		return ExecutionModelRasterStreamOut, nil
	case "wgpu", "webgpu", "computedispatch", "compute":
		return ExecutionModelComputeDispatch, nil
	default:
		return 0, fmt.Errorf("unknown execution model %q", s)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Surface is the drawable area a Renderer presents into. Backends type-assert richer
// interfaces (WGPUSurface, GLSurface) for what they need.
type Surface interface {
	Width() int
	Height() int
}

// WGPUSurface is a Surface that can describe itself to a WebGPU instance.
type WGPUSurface interface {
	Surface
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

// GLSurface is a Surface that owns an OpenGL context.
type GLSurface interface {
	Surface
	MakeContextCurrent()
	SwapBuffers()
}

// StreamOutPass describes one stream-out draw: Count vertices are read from Inputs (one buffer
// per vertex slot) and each captured varying is written to the matching Outputs buffer.
type StreamOutPass struct {
	Inputs  []resource.Buffer
	Outputs []resource.Buffer
	Count   uint32
}

// DrawCall describes one draw within a frame. When IndexBuffer is set the draw is indexed with
// uint32 indices, otherwise VertexCount vertices are drawn.
type DrawCall struct {
	// VertexBuffers are bound in slot order.
	VertexBuffers []resource.Buffer
	IndexBuffer   resource.Buffer
	IndexCount    uint32
	VertexCount   uint32
	InstanceCount uint32
	// BindGroups are bound at their slice index.
	BindGroups []bind_group_provider.BindGroupProvider
}

// RendererBackend is the device-facing half of the Renderer. Each backend translates the neutral
// pipeline, buffer and bind group descriptions into its own API.
type RendererBackend interface {
	// BackendType returns the backend type.
	BackendType() BackendType

	// Supports reports whether the backend can run the given execution model.
	//
	// Parameters:
	//   - model: the execution model
	//
	// Returns:
	//   - bool: true if the model is supported
	Supports(model ExecutionModel) bool

	// Limits returns the device limits. Zero fields are unconstrained.
	Limits() resource.Limits

	// ConfigureSurface is a wrapper for boilerplate logic required when the surface size changes.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// CreateBuffer allocates a device buffer and uploads desc.Contents when present.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - resource.Buffer: the new buffer
	//   - error: an *AllocationError if the device refuses the allocation
	CreateBuffer(desc resource.BufferDescriptor) (resource.Buffer, error)

	// WriteBuffer uploads data into buf at offset.
	WriteBuffer(buf resource.Buffer, offset uint64, data []byte)

	// ReadBuffer copies size bytes starting at offset back from the device, waiting for all
	// submitted work that touches buf.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - offset: the byte offset
	//   - size: the number of bytes
	//
	// Returns:
	//   - []byte: a copy of the buffer contents
	//   - error: an error if the readback fails
	ReadBuffer(buf resource.Buffer, offset, size uint64) ([]byte, error)

	// CreateTexture creates a 2D RGBA8 texture from staging data.
	CreateTexture(label string, data common.TextureStagingData) (resource.Texture, error)

	// CreateSampler creates a sampler from staging data.
	CreateSampler(label string, data common.SamplerStagingData) (resource.Sampler, error)

	// RegisterComputePipeline compiles a compute pipeline and stores its native object on p.
	RegisterComputePipeline(p pipeline.Pipeline) error

	// RegisterRenderPipeline compiles a render pipeline and stores its native object on p.
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// RegisterStreamOutPipeline compiles a stream-out pipeline and stores its native object on p.
	RegisterStreamOutPipeline(p pipeline.Pipeline) error

	// CreateBindGroup creates the backend bind group for one group of p from the resources attached
	// to provider, and stores it on the provider.
	//
	// Parameters:
	//   - p: the registered pipeline the bind group is used with
	//   - group: the bind group index
	//   - descriptor: the merged layout of that group, empty for pipelines without WGSL shaders
	//   - provider: the provider holding the resources to bind
	//
	// Returns:
	//   - error: an error if a binding has no resource attached or the device refuses the bind group
	CreateBindGroup(p pipeline.Pipeline, group int, descriptor wgpu.BindGroupLayoutDescriptor, provider bind_group_provider.BindGroupProvider) error

	// BeginComputeFrame creates a single command encoder for batching all compute dispatches
	// within a frame into one GPU submission.
	BeginComputeFrame() error

	// DispatchCompute encodes a compute pass within the current compute frame.
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// EndComputeFrame submits the batched compute work.
	EndComputeFrame() error

	// StreamOut runs one stream-out pass.
	StreamOut(p pipeline.Pipeline, pass StreamOutPass) error

	// BeginFrame acquires the next frame target and begins a render pass cleared to clear.
	BeginFrame(clear common.RGBA) error

	// DrawCall encodes a single draw within the current render pass.
	DrawCall(p pipeline.Pipeline, call DrawCall) error

	// EndFrame ends the current render pass and submits it.
	EndFrame() error

	// Present presents the frame to the display.
	Present()

	// Release frees the device and every backend object it still holds.
	Release()
}

// bindGroupDescriptor returns the merged layout of one group of p.
func bindGroupDescriptor(p pipeline.Pipeline, group int) wgpu.BindGroupLayoutDescriptor {
	layouts := pipelineLayoutDescriptors(p)
	if group < 0 || group >= len(layouts) {
		return wgpu.BindGroupLayoutDescriptor{}
	}
	return layouts[group]
}

// mergeBindGroupLayouts merges the bind group layout descriptors from two shader stages
// into a unified set of descriptors suitable for a pipeline layout.
//
// For each group index present in either stage:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one stage are included with their original visibility
//
// Parameters:
//   - a: bind group layout descriptors from the first stage
//   - b: bind group layout descriptors from the second stage
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(a, b map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range a {
		groupIndices[g] = true
	}
	for g := range b {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		aDesc, hasA := a[g]
		bDesc, hasB := b[g]

		switch {
		case hasA && !hasB:
			merged[g] = aDesc
		case hasB && !hasA:
			merged[g] = bDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range aDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range bDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   aDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}

// pipelineLayoutDescriptors returns the merged layouts of every WGSL stage of p in group order.
// Missing groups are left as empty descriptors.
func pipelineLayoutDescriptors(p pipeline.Pipeline) []wgpu.BindGroupLayoutDescriptor {
	var merged map[int]wgpu.BindGroupLayoutDescriptor
	for _, st := range []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
		if s := p.Shader(st, shader.LanguageWGSL); s != nil {
			merged = mergeBindGroupLayouts(merged, s.BindGroupLayoutDescriptors())
		}
	}
	maxGroup := -1
	for g := range merged {
		if g > maxGroup {
			maxGroup = g
		}
	}
	out := make([]wgpu.BindGroupLayoutDescriptor, maxGroup+1)
	for g, desc := range merged {
		out[g] = desc
	}
	return out
}

var (
	usageVertex = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	usageIndex  = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
)
