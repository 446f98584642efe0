package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType BackendType
	backend     RendererBackend
	surface     Surface
	width       int
	height      int
	released    bool

	logger *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	softwareOptions      []SoftwareOption
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API designed to simplify device work into a streamlined and idiomatic flow.
// The Renderer manages a cache of pipelines and owns exactly one device or context through its backend.
// Every resource it creates belongs to that device and must be released before the Renderer itself.
type Renderer interface {
	// BackendType returns the type of the backend driving this Renderer.
	BackendType() BackendType

	// Backend returns the backend driving this Renderer. Callers type-assert it to reach
	// backend specific state, e.g. SoftwareBackend for the rendered frame.
	Backend() RendererBackend

	// Supports reports whether the backend can run the given execution model.
	//
	// Parameters:
	//   - model: the execution model
	//
	// Returns:
	//   - bool: true if the model is supported
	Supports(model ExecutionModel) bool

	// Limits returns the device limits relevant to particle storage. Zero fields are unconstrained.
	//
	// Returns:
	//   - resource.Limits: the device limits
	Limits() resource.Limits

	// SurfaceSize returns the current drawable size in pixels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	SurfaceSize() (int, int)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves the entire cache of Pipelines.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by compiling the corresponding device
	// program via the backend, then caching them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate device objects.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: a *ShaderCompileError if a program fails to compile, or another error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReleasePipelines releases the device objects of the given pipelines and drops them from the cache.
	//
	// Parameters:
	//   - keys: the pipeline keys to release
	ReleasePipelines(keys ...string)

	// CreateBuffer allocates a device buffer, uploading desc.Contents when present.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - resource.Buffer: the new buffer, owned by the caller
	//   - error: an *AllocationError if the device refuses the allocation
	CreateBuffer(desc resource.BufferDescriptor) (resource.Buffer, error)

	// WriteBuffers writes all staged buffer writes to the device.
	// Each BufferWrite targets a specific buffer on a BindGroupProvider at a given binding and offset.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// ReadBuffer copies a range of a buffer back to host memory, waiting for outstanding device work.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - offset: the byte offset
	//   - size: the number of bytes
	//
	// Returns:
	//   - []byte: a copy of the contents
	//   - error: an error if the readback fails
	ReadBuffer(buf resource.Buffer, offset, size uint64) ([]byte, error)

	// InitMeshBuffers creates vertex and index buffers from raw byte data and stores them
	// on the given BindGroupProvider, which takes ownership of them.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created buffers on
	//   - vertexData: the raw vertex data bytes to upload
	//   - indexData: the raw uint32 index data bytes to upload
	//   - indexCount: the number of indices, used for draw calls
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	// InitTextureView creates a texture from staging data and stores it on the given
	// BindGroupProvider at the specified binding index. The provider takes ownership of it.
	// Must be called before InitBindGroup for any texture bindings.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created texture on
	//   - bindingKey: the binding index for this texture
	//   - stagingData: the pixel data and dimensions for the texture
	//
	// Returns:
	//   - error: an error if texture creation fails
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error

	// InitSampler creates a sampler from staging data and stores it on the given BindGroupProvider
	// at the specified binding index. The provider takes ownership of it.
	// Must be called before InitBindGroup for any sampler bindings.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created sampler on
	//   - bindingKey: the binding index for this sampler
	//   - samplerStagingData: the sampler configuration
	//
	// Returns:
	//   - error: an error if sampler creation fails
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error

	// InitBindGroup creates the bind group for one group of a registered pipeline from the
	// resources attached to the provider. The layout is merged from every stage of the pipeline.
	//
	// Parameters:
	//   - pipelineKey: the registered pipeline the bind group is used with
	//   - group: the bind group index
	//   - provider: the BindGroupProvider holding the resources
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or bind group creation fails
	InitBindGroup(pipelineKey string, group int, provider bind_group_provider.BindGroupProvider) error

	// BeginComputeFrame creates a single command encoder for batching all compute dispatches
	// within a frame into one device submission. Must be paired with EndComputeFrame after all
	// DispatchCompute calls for the frame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// DispatchCompute looks up the cached compute Pipeline by key, then encodes a compute pass
	// within the current batched compute frame started by BeginComputeFrame.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached compute Pipeline to use
	//   - computeProvider: the BindGroupProvider whose BindGroup will be set at group 0
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: an error if the pipeline is not found or no compute frame is open
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// EndComputeFrame finishes the batched compute command encoder and submits it.
	//
	// Returns:
	//   - error: an error if the submission fails
	EndComputeFrame() error

	// StreamOut runs a stream-out pipeline over pass.Count vertices, capturing its varyings
	// into pass.Outputs. Nothing is rasterized.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached stream-out Pipeline
	//   - pass: the input and output buffers
	//
	// Returns:
	//   - error: an error if the pipeline is not found or the backend cannot stream out
	StreamOut(pipelineKey string, pass StreamOutPass) error

	// BeginFrame acquires the frame target and begins the main render pass, cleared to clear.
	// Must be paired with EndFrame after all DrawCall invocations within a single frame.
	//
	// Parameters:
	//   - clear: the clear color
	//
	// Returns:
	//   - error: an error if the frame target could not be acquired
	BeginFrame(clear common.RGBA) error

	// DrawCall encodes a single draw command within the current render pass.
	// Multiple DrawCall invocations can be made between BeginFrame and EndFrame.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached render Pipeline to use
	//   - call: the buffers, counts and bind groups of the draw
	//
	// Returns:
	//   - error: an error if the pipeline is not found
	DrawCall(pipelineKey string, call DrawCall) error

	// EndFrame ends the current render pass and submits it.
	// Does not present the surface, call Present after EndFrame to display the frame.
	//
	// Returns:
	//   - error: an error if the submission fails
	EndFrame() error

	// Present presents the surface to the display.
	// Must be called once per frame after EndFrame.
	Present()

	// Release releases every cached pipeline and then the device. Calling Release more than once is a no-op.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer for the given backend and surface. It does not consult the
// backend registry; use Acquire to select a backend by execution model.
//
// Parameters:
//   - backendType: the type of backend to create
//   - surface: the drawable surface; it must implement WGPUSurface for BackendTypeWGPU and GLSurface
//     for BackendTypeGL, and may be nil for BackendTypeSoftware
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new Renderer
//   - error: a *DeviceUnavailableError if the device or context could not be acquired
func NewRenderer(backendType BackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		surface:       surface,
		logger:        zap.NewNop(),
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a device.
	for _, opt := range options {
		opt(r)
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		r.backend, err = newWGPURendererBackend(surface, r.forceFallbackAdapter)
	case BackendTypeGL:
		r.backend, err = newGLRendererBackend(surface)
	case BackendTypeSoftware:
		r.backend, err = newSoftwareRendererBackend(surface, r.softwareOptions...)
	default:
		err = &DeviceUnavailableError{Backend: backendType, Reason: "unknown backend"}
	}
	if err != nil {
		return nil, err
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if surface != nil {
		r.width, r.height = surface.Width(), surface.Height()
	}
	r.backend.ConfigureSurface(r.width, r.height)
	if sw, ok := r.backend.(SoftwareBackend); ok {
		r.width, r.height = sw.Size()
	}
	r.logger.Debug("renderer created", zap.Stringer("backend", backendType), zap.Int("width", r.width), zap.Int("height", r.height))
	return r, nil
}

func (r *renderer) BackendType() BackendType {
	return r.backendType
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Supports(model ExecutionModel) bool {
	return r.backend.Supports(model)
}

func (r *renderer) Limits() resource.Limits {
	return r.backend.Limits()
}

func (r *renderer) SurfaceSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		var err error
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			err = r.backend.RegisterComputePipeline(p)
		case pipeline.PipelineTypeRender:
			err = r.backend.RegisterRenderPipeline(p)
		case pipeline.PipelineTypeStreamOut:
			err = r.backend.RegisterStreamOutPipeline(p)
		default:
			err = fmt.Errorf("pipeline %s: unknown type %s", key, p.Type())
		}
		if err != nil {
			return err
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) ReleasePipelines(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		if p, ok := r.pipelineCache[key]; ok {
			p.Release()
			delete(r.pipelineCache, key)
		}
	}
}

func (r *renderer) lookup(key string) (pipeline.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, exists := r.pipelineCache[key]
	if !exists {
		return nil, fmt.Errorf("pipeline %q not found in cache", key)
	}
	return p, nil
}

func (r *renderer) CreateBuffer(desc resource.BufferDescriptor) (resource.Buffer, error) {
	if desc.Size == 0 {
		desc.Size = uint64(len(desc.Contents))
	}
	if limit := r.backend.Limits().MaxBufferSize; limit > 0 && desc.Size > limit {
		return nil, &AllocationError{Label: desc.Label, Size: desc.Size, Limit: limit}
	}
	return r.backend.CreateBuffer(desc)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		if !w.Fits(buf.Size()) {
			r.logger.Warn("buffer write out of range",
				zap.String("buffer", buf.Label()), zap.Uint64("end", w.End()), zap.Uint64("size", buf.Size()))
			continue
		}
		r.backend.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (r *renderer) ReadBuffer(buf resource.Buffer, offset, size uint64) ([]byte, error) {
	if buf == nil {
		return nil, fmt.Errorf("read buffer: nil buffer")
	}
	if offset+size > buf.Size() {
		return nil, fmt.Errorf("read buffer %s: range [%d, %d) exceeds size %d", buf.Label(), offset, offset+size, buf.Size())
	}
	return r.backend.ReadBuffer(buf, offset, size)
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	if len(vertexData) > 0 {
		buf, err := r.backend.CreateBuffer(resource.BufferDescriptor{
			Label:    provider.Label() + " Vertex Buffer",
			Usage:    usageVertex,
			Size:     uint64(len(vertexData)),
			Contents: vertexData,
		})
		if err != nil {
			return err
		}
		provider.Own(buf)
		provider.SetVertexBuffer(buf)
	}

	if len(indexData) > 0 {
		buf, err := r.backend.CreateBuffer(resource.BufferDescriptor{
			Label:    provider.Label() + " Index Buffer",
			Usage:    usageIndex,
			Size:     uint64(len(indexData)),
			Contents: indexData,
		})
		if err != nil {
			return err
		}
		provider.Own(buf)
		provider.SetIndexBuffer(buf)
	}

	provider.SetIndexCount(indexCount)
	return nil
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	if int(stagingData.Width*stagingData.Height*4) != len(stagingData.Pixels) {
		return fmt.Errorf("texture %s: %d bytes of pixels for %dx%d RGBA", provider.Label(), len(stagingData.Pixels), stagingData.Width, stagingData.Height)
	}
	tex, err := r.backend.CreateTexture(provider.Label()+" Texture", stagingData)
	if err != nil {
		return err
	}
	provider.Own(tex)
	provider.SetTexture(bindingKey, tex)
	return nil
}

func (r *renderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	s, err := r.backend.CreateSampler(provider.Label()+" Sampler", samplerStagingData)
	if err != nil {
		return err
	}
	provider.Own(s)
	provider.SetSampler(bindingKey, s)
	return nil
}

func (r *renderer) InitBindGroup(pipelineKey string, group int, provider bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.CreateBindGroup(p, group, bindGroupDescriptor(p, group), provider)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DispatchCompute(p, computeProvider, workGroupCount)
}

func (r *renderer) EndComputeFrame() error {
	return r.backend.EndComputeFrame()
}

func (r *renderer) StreamOut(pipelineKey string, pass StreamOutPass) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	if len(pass.Outputs) != len(p.StreamOutVaryings()) {
		return fmt.Errorf("stream-out %s: %d output buffers for %d varyings", pipelineKey, len(pass.Outputs), len(p.StreamOutVaryings()))
	}
	return r.backend.StreamOut(p, pass)
}

func (r *renderer) BeginFrame(clear common.RGBA) error {
	return r.backend.BeginFrame(clear)
}

func (r *renderer) DrawCall(pipelineKey string, call DrawCall) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DrawCall(p, call)
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()

	r.backend.Release()
	r.logger.Debug("renderer released", zap.Stringer("backend", r.backendType))
}
