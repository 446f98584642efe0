package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// SoftwareStats counts the device activity of a software backend.
type SoftwareStats struct {
	BuffersCreated  int
	BuffersReleased int
	// DoubleReleases counts Release calls on resources that were already released.
	DoubleReleases  int
	BufferWrites    int
	Dispatches      int
	Invocations     int
	StreamOutPasses int
	DrawCalls       int
	// PoolTasks counts the kernel chunks run on the worker pool.
	PoolTasks       int
	Frames          int
	Presents        int
}

// Live returns the number of buffers created and not yet released.
func (s SoftwareStats) Live() int {
	return s.BuffersCreated - s.BuffersReleased
}

// SoftwareSurface is a Surface that receives each presented software frame.
type SoftwareSurface interface {
	Surface
	Blit(frame *image.RGBA)
}

// SoftwareBackend is the CPU backend. It runs the CPU kernels carried by pipelines and rasterizes into
// an in-memory frame.
type SoftwareBackend interface {
	RendererBackend

	// Frame returns the frame being rendered, or the last presented frame between frames.
	Frame() *image.RGBA

	// Stats returns a snapshot of the device activity counters.
	Stats() SoftwareStats

	// Size returns the frame size in pixels.
	Size() (int, int)
}

// SoftwareOption configures a software backend.
type SoftwareOption func(*softwareRendererBackendImpl)

// WithSoftwareLimits sets the device limits the backend reports.
func WithSoftwareLimits(limits resource.Limits) SoftwareOption {
	return func(b *softwareRendererBackendImpl) {
		b.limits = limits
	}
}

// WithSoftwareModels restricts the execution models the backend reports as supported.
// Both models are supported by default.
func WithSoftwareModels(models ...ExecutionModel) SoftwareOption {
	return func(b *softwareRendererBackendImpl) {
		b.models = make(map[ExecutionModel]bool, len(models))
		for _, m := range models {
			b.models[m] = true
		}
	}
}

// WithSoftwareSize sets the frame size used when the backend has no surface.
func WithSoftwareSize(width, height int) SoftwareOption {
	return func(b *softwareRendererBackendImpl) {
		b.defaultWidth, b.defaultHeight = width, height
	}
}

// WithSoftwareAllocator installs a hook consulted before every buffer allocation. A non-nil error
// from the hook fails the allocation with an *AllocationError wrapping it.
func WithSoftwareAllocator(hook func(desc resource.BufferDescriptor) error) SoftwareOption {
	return func(b *softwareRendererBackendImpl) {
		b.allocHook = hook
	}
}

// WithSoftwareCompiler installs a hook consulted when a pipeline is registered. A non-nil error
// fails registration with a *ShaderCompileError carrying the error text as its log.
func WithSoftwareCompiler(hook func(p pipeline.Pipeline) error) SoftwareOption {
	return func(b *softwareRendererBackendImpl) {
		b.compileHook = hook
	}
}

// WithSoftwareWorkers sets how many pool workers run compute workgroups and stream-out vertex
// chunks. With one worker the kernels run inline on the calling goroutine.
func WithSoftwareWorkers(n int) SoftwareOption {
	return func(b *softwareRendererBackendImpl) {
		b.workers = max(n, 1)
	}
}

// softwareStreamOutChunk is the number of vertices one pool task captures.
const softwareStreamOutChunk = 256

type softwareRendererBackendImpl struct {
	mu *sync.Mutex

	surface       Surface
	limits        resource.Limits
	models        map[ExecutionModel]bool
	defaultWidth  int
	defaultHeight int
	allocHook     func(desc resource.BufferDescriptor) error
	compileHook   func(p pipeline.Pipeline) error
	workers       int
	pool          worker.DynamicWorkerPool

	width, height int
	frame         *image.RGBA
	inFrame       bool
	inCompute     bool

	stats SoftwareStats
}

var _ SoftwareBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(surface Surface, opts ...SoftwareOption) (RendererBackend, error) {
	b := &softwareRendererBackendImpl{
		mu:      &sync.Mutex{},
		surface: surface,
		models: map[ExecutionModel]bool{
			ExecutionModelRasterStreamOut: true,
			ExecutionModelComputeDispatch: true,
		},
		defaultWidth:  640,
		defaultHeight: 480,
		workers:       max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers > 1 {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	}
	b.width, b.height = b.defaultWidth, b.defaultHeight
	return b, nil
}

type softwareBuffer struct {
	b        *softwareRendererBackendImpl
	label    string
	usage    wgpu.BufferUsage
	data     []byte
	released bool
}

func (s *softwareBuffer) Label() string           { return s.label }
func (s *softwareBuffer) Size() uint64            { return uint64(len(s.data)) }
func (s *softwareBuffer) Usage() wgpu.BufferUsage { return s.usage }
func (s *softwareBuffer) Native() any             { return s.data }

func (s *softwareBuffer) Release() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.released {
		s.b.stats.DoubleReleases++
		return
	}
	s.released = true
	s.b.stats.BuffersReleased++
}

type softwareTexture struct {
	label string
	img   *image.RGBA
}

func (t *softwareTexture) Label() string  { return t.label }
func (t *softwareTexture) Width() uint32  { return uint32(t.img.Rect.Dx()) }
func (t *softwareTexture) Height() uint32 { return uint32(t.img.Rect.Dy()) }
func (t *softwareTexture) Native() any    { return t.img }
func (t *softwareTexture) Release()       {}

type softwareSampler struct {
	label string
	data  common.SamplerStagingData
}

func (s *softwareSampler) Label() string { return s.label }
func (s *softwareSampler) Native() any   { return s.data }
func (s *softwareSampler) Release()      {}

// softwareBindGroup is the CPU view of a bind group. Buffer slices alias the buffer storage, so
// later writes are visible to kernels.
type softwareBindGroup struct {
	buffers  map[int][]byte
	textures map[int]image.Image
}

func (b *softwareRendererBackendImpl) BackendType() BackendType {
	return BackendTypeSoftware
}

func (b *softwareRendererBackendImpl) Supports(model ExecutionModel) bool {
	return b.models[model]
}

func (b *softwareRendererBackendImpl) Limits() resource.Limits {
	return b.limits
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width > 0 && height > 0 {
		b.width, b.height = width, height
	}
}

func (b *softwareRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *softwareRendererBackendImpl) CreateBuffer(desc resource.BufferDescriptor) (resource.Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = uint64(len(desc.Contents))
	}
	if uint64(len(desc.Contents)) > size {
		return nil, &AllocationError{Label: desc.Label, Size: size, Err: fmt.Errorf("%d bytes of contents", len(desc.Contents))}
	}
	if b.allocHook != nil {
		if err := b.allocHook(desc); err != nil {
			return nil, &AllocationError{Label: desc.Label, Size: size, Err: err}
		}
	}
	if b.limits.MaxBufferSize > 0 && size > b.limits.MaxBufferSize {
		return nil, &AllocationError{Label: desc.Label, Size: size, Limit: b.limits.MaxBufferSize}
	}

	buf := &softwareBuffer{b: b, label: desc.Label, usage: desc.Usage, data: make([]byte, size)}
	copy(buf.data, desc.Contents)

	b.mu.Lock()
	b.stats.BuffersCreated++
	b.mu.Unlock()
	return buf, nil
}

func (b *softwareRendererBackendImpl) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) {
	sb, ok := buf.(*softwareBuffer)
	if !ok || offset >= uint64(len(sb.data)) {
		return
	}
	copy(sb.data[offset:], data)

	b.mu.Lock()
	b.stats.BufferWrites++
	b.mu.Unlock()
}

func (b *softwareRendererBackendImpl) ReadBuffer(buf resource.Buffer, offset, size uint64) ([]byte, error) {
	sb, ok := buf.(*softwareBuffer)
	if !ok {
		return nil, fmt.Errorf("read buffer %s: not a software buffer", buf.Label())
	}
	if sb.released {
		return nil, fmt.Errorf("read buffer %s: buffer released", sb.label)
	}
	out := make([]byte, size)
	copy(out, sb.data[offset:offset+size])
	return out, nil
}

func (b *softwareRendererBackendImpl) CreateTexture(label string, data common.TextureStagingData) (resource.Texture, error) {
	img := image.NewRGBA(image.Rect(0, 0, int(data.Width), int(data.Height)))
	if data.Premultiplied {
		copy(img.Pix, data.Pixels)
	} else {
		for i := 0; i+3 < len(data.Pixels); i += 4 {
			a := uint16(data.Pixels[i+3])
			img.Pix[i+0] = uint8(uint16(data.Pixels[i+0]) * a / 255)
			img.Pix[i+1] = uint8(uint16(data.Pixels[i+1]) * a / 255)
			img.Pix[i+2] = uint8(uint16(data.Pixels[i+2]) * a / 255)
			img.Pix[i+3] = uint8(a)
		}
	}
	return &softwareTexture{label: label, img: img}, nil
}

func (b *softwareRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (resource.Sampler, error) {
	return &softwareSampler{label: label, data: data}, nil
}

func (b *softwareRendererBackendImpl) compile(p pipeline.Pipeline, stage shader.ShaderType, hasKernel bool) error {
	if !hasKernel {
		return &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: stage, Log: "no CPU kernel for the software backend"}
	}
	if b.compileHook != nil {
		if err := b.compileHook(p); err != nil {
			return &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: stage, Log: err.Error()}
		}
	}
	p.SetNative(p.PipelineKey(), nil)
	return nil
}

func (b *softwareRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	return b.compile(p, shader.ShaderTypeCompute, p.ComputeKernel() != nil)
}

func (b *softwareRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	return b.compile(p, shader.ShaderTypeFragment, p.RasterKernel() != nil)
}

func (b *softwareRendererBackendImpl) RegisterStreamOutPipeline(p pipeline.Pipeline) error {
	return b.compile(p, shader.ShaderTypeVertex, p.StreamOutKernel() != nil)
}

func (b *softwareRendererBackendImpl) CreateBindGroup(p pipeline.Pipeline, group int, descriptor wgpu.BindGroupLayoutDescriptor, provider bind_group_provider.BindGroupProvider) error {
	for _, entry := range descriptor.Entries {
		binding := int(entry.Binding)
		switch {
		case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			if provider.Texture(binding) == nil {
				return fmt.Errorf("%s group %d: texture binding %d has no texture, call InitTextureView first", p.PipelineKey(), group, binding)
			}
		case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			if provider.Sampler(binding) == nil {
				return fmt.Errorf("%s group %d: sampler binding %d has no sampler, call InitSampler first", p.PipelineKey(), group, binding)
			}
		default:
			if provider.Buffer(binding) == nil {
				return fmt.Errorf("%s group %d: buffer binding %d has no buffer", p.PipelineKey(), group, binding)
			}
		}
	}

	bg := &softwareBindGroup{
		buffers:  make(map[int][]byte),
		textures: make(map[int]image.Image),
	}
	for binding, buf := range provider.Buffers() {
		if sb, ok := buf.(*softwareBuffer); ok {
			bg.buffers[binding] = sb.data
		}
	}
	for binding, tex := range provider.Textures() {
		if img, ok := tex.Native().(image.Image); ok {
			bg.textures[binding] = img
		}
	}
	provider.SetBindGroup(bg, nil)
	return nil
}

func (b *softwareRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inCompute = true
	return nil
}

func (b *softwareRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	b.mu.Lock()
	open := b.inCompute
	b.mu.Unlock()
	if !open {
		return fmt.Errorf("dispatch %s: no compute frame open", p.PipelineKey())
	}
	bg, ok := provider.BindGroup().(*softwareBindGroup)
	if !ok {
		return fmt.Errorf("dispatch %s: provider %s has no bind group", p.PipelineKey(), provider.Label())
	}

	size := [3]uint32{1, 1, 1}
	if cs := p.Shader(shader.ShaderTypeCompute, shader.LanguageWGSL); cs != nil {
		size = cs.WorkgroupSize()
	}
	group := max(size[0], 1)
	total := workGroupCount[0] * group
	kernel := p.ComputeKernel()
	b.parallel(total, group, func(lo, hi uint32) {
		for id := lo; id < hi; id++ {
			kernel(id, bg.buffers)
		}
	})

	b.mu.Lock()
	b.stats.Dispatches++
	b.stats.Invocations += int(total)
	b.mu.Unlock()
	return nil
}

func (b *softwareRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inCompute = false
	return nil
}

func (b *softwareRendererBackendImpl) StreamOut(p pipeline.Pipeline, pass StreamOutPass) error {
	inputs, err := softwareData(pass.Inputs)
	if err != nil {
		return fmt.Errorf("stream-out %s: %w", p.PipelineKey(), err)
	}
	outputs, err := softwareData(pass.Outputs)
	if err != nil {
		return fmt.Errorf("stream-out %s: %w", p.PipelineKey(), err)
	}

	kernel := p.StreamOutKernel()
	b.parallel(pass.Count, softwareStreamOutChunk, func(lo, hi uint32) {
		for v := lo; v < hi; v++ {
			kernel(v, inputs, outputs)
		}
	})

	b.mu.Lock()
	b.stats.StreamOutPasses++
	b.mu.Unlock()
	return nil
}

// parallel runs fn over [0, n) in chunks of the given size and returns once every chunk is done.
// Kernels write only the elements of their own indices, so chunks never overlap.
func (b *softwareRendererBackendImpl) parallel(n, chunk uint32, fn func(lo, hi uint32)) {
	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()
	if pool == nil || n <= chunk {
		fn(0, n)
		return
	}

	// pool.Wait() waits for workers to go idle, so each pass carries its own barrier.
	var wg sync.WaitGroup
	tasks := 0
	for lo := uint32(0); lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: tasks,
			Do: func() (any, error) {
				defer wg.Done()
				fn(lo, hi)
				return nil, nil
			},
		})
		tasks++
	}
	wg.Wait()

	b.mu.Lock()
	b.stats.PoolTasks += tasks
	b.mu.Unlock()
}

func softwareData(buffers []resource.Buffer) ([][]byte, error) {
	out := make([][]byte, len(buffers))
	for i, buf := range buffers {
		sb, ok := buf.(*softwareBuffer)
		if !ok {
			return nil, fmt.Errorf("buffer %d is not a software buffer", i)
		}
		out[i] = sb.data
	}
	return out, nil
}

func (b *softwareRendererBackendImpl) BeginFrame(clear common.RGBA) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("previous frame not yet ended")
	}
	if b.frame == nil || b.frame.Rect.Dx() != b.width || b.frame.Rect.Dy() != b.height {
		b.frame = image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	}
	draw.Draw(b.frame, b.frame.Rect, image.NewUniform(toNRGBA(clear)), image.Point{}, draw.Src)
	b.inFrame = true
	return nil
}

func toNRGBA(c common.RGBA) color.NRGBA {
	conv := func(v float32) uint8 {
		return uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	return color.NRGBA{R: conv(c.R), G: conv(c.G), B: conv(c.B), A: conv(c.A)}
}

func (b *softwareRendererBackendImpl) DrawCall(p pipeline.Pipeline, call DrawCall) error {
	b.mu.Lock()
	frame, open := b.frame, b.inFrame
	b.mu.Unlock()
	if !open {
		return fmt.Errorf("draw %s: no frame open", p.PipelineKey())
	}

	vertexBuffers, err := softwareData(call.VertexBuffers)
	if err != nil {
		return fmt.Errorf("draw %s: %w", p.PipelineKey(), err)
	}
	in := pipeline.RasterInput{
		VertexBuffers: vertexBuffers,
		IndexCount:    call.IndexCount,
		VertexCount:   call.VertexCount,
		InstanceCount: call.InstanceCount,
		Groups:        make([]pipeline.RasterGroup, len(call.BindGroups)),
	}
	if call.IndexBuffer != nil {
		idx, err := softwareData([]resource.Buffer{call.IndexBuffer})
		if err != nil {
			return fmt.Errorf("draw %s: %w", p.PipelineKey(), err)
		}
		in.IndexBuffer = idx[0]
	}
	for i, provider := range call.BindGroups {
		bg, ok := provider.BindGroup().(*softwareBindGroup)
		if !ok {
			return fmt.Errorf("draw %s: provider %s has no bind group", p.PipelineKey(), provider.Label())
		}
		in.Groups[i] = pipeline.RasterGroup{Buffers: bg.buffers, Textures: bg.textures}
	}

	p.RasterKernel()(frame, in)

	b.mu.Lock()
	b.stats.DrawCalls++
	b.mu.Unlock()
	return nil
}

func (b *softwareRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return fmt.Errorf("no frame open")
	}
	b.inFrame = false
	b.stats.Frames++
	return nil
}

func (b *softwareRendererBackendImpl) Present() {
	b.mu.Lock()
	frame := b.frame
	b.stats.Presents++
	b.mu.Unlock()

	if s, ok := b.surface.(SoftwareSurface); ok && frame != nil {
		s.Blit(frame)
	}
}

func (b *softwareRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = nil
	if b.pool != nil {
		b.pool.Stop()
		b.pool = nil
	}
}

func (b *softwareRendererBackendImpl) Frame() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

func (b *softwareRendererBackendImpl) Stats() SoftwareStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *softwareRendererBackendImpl) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}
