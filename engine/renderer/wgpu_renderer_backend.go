package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	limits        wgpu.Limits
	configured    bool

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// Compute frame state for batching all compute dispatches into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
}

// wgpuPipeline is the native object stored on a registered pipeline.
type wgpuPipeline struct {
	render           *wgpu.RenderPipeline
	compute          *wgpu.ComputePipeline
	layout           *wgpu.PipelineLayout
	bindGroupLayouts []*wgpu.BindGroupLayout
	modules          []*wgpu.ShaderModule
}

func (p *wgpuPipeline) release() {
	if p.render != nil {
		p.render.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	for _, l := range p.bindGroupLayouts {
		l.Release()
	}
	for _, m := range p.modules {
		m.Release()
	}
}

type wgpuBuffer struct {
	label    string
	size     uint64
	usage    wgpu.BufferUsage
	buf      *wgpu.Buffer
	released bool
}

func (b *wgpuBuffer) Label() string           { return b.label }
func (b *wgpuBuffer) Size() uint64            { return b.size }
func (b *wgpuBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *wgpuBuffer) Native() any             { return b.buf }

func (b *wgpuBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.buf.Release()
}

type wgpuTexture struct {
	label   string
	tex     *wgpu.Texture
	view    *wgpu.TextureView
	w, h    uint32
	release sync.Once
}

func (t *wgpuTexture) Label() string  { return t.label }
func (t *wgpuTexture) Width() uint32  { return t.w }
func (t *wgpuTexture) Height() uint32 { return t.h }
func (t *wgpuTexture) Native() any    { return t.view }

func (t *wgpuTexture) Release() {
	t.release.Do(func() {
		t.view.Release()
		t.tex.Release()
	})
}

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
	release sync.Once
}

func (s *wgpuSampler) Label() string { return s.label }
func (s *wgpuSampler) Native() any   { return s.sampler }
func (s *wgpuSampler) Release()      { s.release.Do(s.sampler.Release) }

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surface Surface, forceFallbackAdapter bool) (RendererBackend, error) {
	ws, ok := surface.(WGPUSurface)
	if !ok {
		return nil, &DeviceUnavailableError{Backend: BackendTypeWGPU, Reason: "surface cannot provide a WebGPU surface descriptor"}
	}

	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
	}
	w.surface = w.instance.CreateSurface(ws.SurfaceDescriptor())

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.Release()
		return nil, &DeviceUnavailableError{Backend: BackendTypeWGPU, Reason: "no adapter", Err: err}
	}
	w.adapter = a

	// Start from the WebGPU default limits and raise the storage limits to what the adapter
	// supports so large swarms need fewer batches.
	supported := a.GetLimits().Limits
	limits := wgpu.DefaultLimits()
	limits.MaxStorageBufferBindingSize = supported.MaxStorageBufferBindingSize
	limits.MaxBufferSize = supported.MaxBufferSize
	limits.MaxComputeWorkgroupsPerDimension = supported.MaxComputeWorkgroupsPerDimension

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Swarm Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		w.Release()
		return nil, &DeviceUnavailableError{Backend: BackendTypeWGPU, Reason: "device request refused", Err: err}
	}
	w.device = d
	w.queue = d.GetQueue()
	w.limits = limits

	return w, nil
}

func (b *wgpuRendererBackendImpl) BackendType() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) Supports(model ExecutionModel) bool {
	return model == ExecutionModelComputeDispatch
}

func (b *wgpuRendererBackendImpl) Limits() resource.Limits {
	return resource.Limits{
		MaxStorageBufferBindingSize:      b.limits.MaxStorageBufferBindingSize,
		MaxComputeWorkgroupsPerDimension: b.limits.MaxComputeWorkgroupsPerDimension,
		MaxBufferSize:                    b.limits.MaxBufferSize,
	}
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.configured = true
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc resource.BufferDescriptor) (resource.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, &AllocationError{Label: desc.Label, Size: desc.Size, Err: err}
	}
	if len(desc.Contents) > 0 {
		b.queue.WriteBuffer(buf, 0, desc.Contents)
	}
	return &wgpuBuffer{label: desc.Label, size: desc.Size, usage: desc.Usage, buf: buf}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := buf.Native().(*wgpu.Buffer)
	if !ok {
		return
	}
	b.queue.WriteBuffer(wb, offset, data)
}

func (b *wgpuRendererBackendImpl) ReadBuffer(buf resource.Buffer, offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := buf.Native().(*wgpu.Buffer)
	if !ok {
		return nil, fmt.Errorf("read buffer %s: not a wgpu buffer", buf.Label())
	}

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: buf.Label() + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &AllocationError{Label: buf.Label() + " Readback", Size: size, Err: err}
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(src, offset, staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("read buffer %s: map failed with status %d", buf.Label(), status)
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, stagingData common.TextureStagingData) (resource.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              stagingData.Width,
			Height:             stagingData.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, &AllocationError{Label: label, Size: uint64(len(stagingData.Pixels)), Err: err}
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		stagingData.StraightPixels(),
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  stagingData.Width * 4,
			RowsPerImage: stagingData.Height,
		},
		&wgpu.Extent3D{
			Width:              stagingData.Width,
			Height:             stagingData.Height,
			DepthOrArrayLayers: 1,
		},
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{label: label, tex: tex, view: view, w: stagingData.Width, h: stagingData.Height}, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, samplerStagingData common.SamplerStagingData) (resource.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(samplerStagingData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(samplerStagingData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(samplerStagingData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(samplerStagingData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(samplerStagingData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(samplerStagingData.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(samplerStagingData.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(samplerStagingData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerStagingData.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{label: label, sampler: samp}, nil
}

func (b *wgpuRendererBackendImpl) shaderModule(p pipeline.Pipeline, stage shader.ShaderType) (*wgpu.ShaderModule, shader.Shader, error) {
	s := p.Shader(stage, shader.LanguageWGSL)
	if s == nil {
		return nil, nil, &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: stage, Log: "no WGSL source"}
	}
	m, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
	if err != nil {
		return nil, nil, &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: stage, Log: err.Error()}
	}
	return m, s, nil
}

func (b *wgpuRendererBackendImpl) pipelineLayout(p pipeline.Pipeline, native *wgpuPipeline) error {
	descriptors := pipelineLayoutDescriptors(p)
	native.bindGroupLayouts = make([]*wgpu.BindGroupLayout, len(descriptors))
	for g := range descriptors {
		layout, err := b.device.CreateBindGroupLayout(&descriptors[g])
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		native.bindGroupLayouts[g] = layout
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: native.bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	native.layout = layout
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surfaceFormat == nil {
		return fmt.Errorf("render pipeline %s: surface not configured", p.PipelineKey())
	}

	native := &wgpuPipeline{}
	vs, vertexShader, err := b.shaderModule(p, shader.ShaderTypeVertex)
	if err != nil {
		return err
	}
	native.modules = append(native.modules, vs)
	fs, fragmentShader, err := b.shaderModule(p, shader.ShaderTypeFragment)
	if err != nil {
		native.release()
		return err
	}
	native.modules = append(native.modules, fs)

	if err := b.pipelineLayout(p, native); err != nil {
		native.release()
		return err
	}

	target := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: native.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    p.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		native.release()
		return &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: shader.ShaderTypeVertex, Log: err.Error()}
	}
	native.render = created

	p.SetNative(native, native.release)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	native := &wgpuPipeline{}
	cs, computeShader, err := b.shaderModule(p, shader.ShaderTypeCompute)
	if err != nil {
		return err
	}
	native.modules = append(native.modules, cs)

	if err := b.pipelineLayout(p, native); err != nil {
		native.release()
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: native.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		native.release()
		return &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: shader.ShaderTypeCompute, Log: err.Error()}
	}
	native.compute = created

	p.SetNative(native, native.release)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterStreamOutPipeline(p pipeline.Pipeline) error {
	return fmt.Errorf("stream-out pipeline %s: the wgpu backend has no transform feedback", p.PipelineKey())
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(p pipeline.Pipeline, group int, descriptor wgpu.BindGroupLayoutDescriptor, provider bind_group_provider.BindGroupProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	native, ok := p.Native().(*wgpuPipeline)
	if !ok {
		return fmt.Errorf("bind group %s: pipeline %s is not registered", provider.Label(), p.PipelineKey())
	}
	if group < 0 || group >= len(native.bindGroupLayouts) {
		return fmt.Errorf("bind group %s: pipeline %s has no group %d", provider.Label(), p.PipelineKey(), group)
	}

	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined
		isSampler := entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined

		switch {
		case isTexture:
			tex := provider.Texture(binding)
			if tex == nil {
				return fmt.Errorf("texture binding %d has no texture, call InitTextureView first", binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: tex.Native().(*wgpu.TextureView),
			}
		case isSampler:
			samp := provider.Sampler(binding)
			if samp == nil {
				return fmt.Errorf("sampler binding %d has no sampler, call InitSampler first", binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Sampler: samp.Native().(*wgpu.Sampler),
			}
		default:
			buf := provider.Buffer(binding)
			if buf == nil {
				return fmt.Errorf("buffer binding %d has no buffer", binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  buf.Native().(*wgpu.Buffer),
				Offset:  0,
				Size:    wgpu.WholeSize,
			}
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  native.bindGroupLayouts[group],
		Entries: entries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup, bindGroup.Release)
	return nil
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return nil
	}

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.computeFrameEncoder.Release()
	b.computeFrameEncoder = nil
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return fmt.Errorf("dispatch %s: no compute frame open", p.PipelineKey())
	}
	native, ok := p.Native().(*wgpuPipeline)
	if !ok || native.compute == nil {
		return fmt.Errorf("dispatch %s: not a compute pipeline", p.PipelineKey())
	}
	bindGroup, ok := computeProvider.BindGroup().(*wgpu.BindGroup)
	if !ok {
		return fmt.Errorf("dispatch %s: provider %s has no bind group", p.PipelineKey(), computeProvider.Label())
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(native.compute)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workGroupCount[0], max(workGroupCount[1], 1), max(workGroupCount[2], 1))
	pass.End()
	pass.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) StreamOut(p pipeline.Pipeline, _ StreamOutPass) error {
	return fmt.Errorf("stream-out %s: the wgpu backend has no transform feedback", p.PipelineKey())
}

func (b *wgpuRendererBackendImpl) BeginFrame(clear common.RGBA) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If a previous frame's surface texture is still held, avoid acquiring another one.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}
	if !b.configured {
		return fmt.Errorf("surface not configured")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: float64(clear.R), G: float64(clear.G), B: float64(clear.B), A: float64(clear.A),
				},
			},
		},
	})

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

func (b *wgpuRendererBackendImpl) DrawCall(p pipeline.Pipeline, call DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("draw %s: no frame open", p.PipelineKey())
	}
	native, ok := p.Native().(*wgpuPipeline)
	if !ok || native.render == nil {
		return fmt.Errorf("draw %s: not a render pipeline", p.PipelineKey())
	}
	b.framePass.SetPipeline(native.render)

	for i, bg := range call.BindGroups {
		bindGroup, ok := bg.BindGroup().(*wgpu.BindGroup)
		if !ok {
			return fmt.Errorf("draw %s: provider %s has no bind group", p.PipelineKey(), bg.Label())
		}
		b.framePass.SetBindGroup(uint32(i), bindGroup, nil)
	}

	for slot, vb := range call.VertexBuffers {
		b.framePass.SetVertexBuffer(uint32(slot), vb.Native().(*wgpu.Buffer), 0, wgpu.WholeSize)
	}

	if call.IndexBuffer != nil {
		b.framePass.SetIndexBuffer(call.IndexBuffer.Native().(*wgpu.Buffer), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		b.framePass.DrawIndexed(call.IndexCount, call.InstanceCount, 0, 0, 0)
		return nil
	}
	b.framePass.Draw(call.VertexCount, max(call.InstanceCount, 1), 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("no frame open")
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.frameSurface = nil
		b.frameView = nil
		return err
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
