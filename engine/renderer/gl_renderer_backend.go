package renderer

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/gl/v4.1-core/gl"
)

// glRendererBackendImpl drives an OpenGL 4.1 core context owned by the surface. Bind group
// bindings map onto GL binding points: uniform buffers onto uniform block bindings, textures onto
// texture units, and samplers onto the units of the textures in the same group.
type glRendererBackendImpl struct {
	mu      *sync.Mutex
	surface GLSurface

	width, height int
	inFrame       bool
}

type glPipeline struct {
	program uint32
	vao     uint32
}

func (p *glPipeline) release() {
	gl.DeleteVertexArrays(1, &p.vao)
	gl.DeleteProgram(p.program)
}

type glBuffer struct {
	label    string
	size     uint64
	usage    wgpu.BufferUsage
	id       uint32
	released bool
}

func (b *glBuffer) Label() string           { return b.label }
func (b *glBuffer) Size() uint64            { return b.size }
func (b *glBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *glBuffer) Native() any             { return b.id }

func (b *glBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	gl.DeleteBuffers(1, &b.id)
}

type glTexture struct {
	label    string
	id       uint32
	w, h     uint32
	released bool
}

func (t *glTexture) Label() string  { return t.label }
func (t *glTexture) Width() uint32  { return t.w }
func (t *glTexture) Height() uint32 { return t.h }
func (t *glTexture) Native() any    { return t.id }

func (t *glTexture) Release() {
	if t.released {
		return
	}
	t.released = true
	gl.DeleteTextures(1, &t.id)
}

type glSampler struct {
	label    string
	id       uint32
	released bool
}

func (s *glSampler) Label() string { return s.label }
func (s *glSampler) Native() any   { return s.id }

func (s *glSampler) Release() {
	if s.released {
		return
	}
	s.released = true
	gl.DeleteSamplers(1, &s.id)
}

// glBindGroup records the GL objects of one bind group by binding index.
type glBindGroup struct {
	uniforms map[int]uint32
	textures map[int]uint32
	samplers []uint32
}

var _ RendererBackend = &glRendererBackendImpl{}

func newGLRendererBackend(surface Surface) (RendererBackend, error) {
	gs, ok := surface.(GLSurface)
	if !ok {
		return nil, &DeviceUnavailableError{Backend: BackendTypeGL, Reason: "surface has no OpenGL context"}
	}

	runtime.LockOSThread()
	gs.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return nil, &DeviceUnavailableError{Backend: BackendTypeGL, Reason: "OpenGL 4.1 core unavailable", Err: err}
	}

	return &glRendererBackendImpl{
		mu:      &sync.Mutex{},
		surface: gs,
	}, nil
}

func (b *glRendererBackendImpl) BackendType() BackendType {
	return BackendTypeGL
}

func (b *glRendererBackendImpl) Supports(model ExecutionModel) bool {
	return model == ExecutionModelRasterStreamOut
}

func (b *glRendererBackendImpl) Limits() resource.Limits {
	return resource.Limits{}
}

func (b *glRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

// SetPresentMode is a no-op: the swap interval belongs to the window that owns the context.
func (b *glRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *glRendererBackendImpl) CreateBuffer(desc resource.BufferDescriptor) (resource.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return nil, &AllocationError{Label: desc.Label, Size: desc.Size, Err: fmt.Errorf("glGenBuffers returned no name")}
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	if len(desc.Contents) > 0 {
		data := make([]byte, desc.Size)
		copy(data, desc.Contents)
		gl.BufferData(gl.ARRAY_BUFFER, int(desc.Size), gl.Ptr(data), gl.DYNAMIC_COPY)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, int(desc.Size), nil, gl.DYNAMIC_COPY)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if code := gl.GetError(); code == gl.OUT_OF_MEMORY {
		gl.DeleteBuffers(1, &id)
		return nil, &AllocationError{Label: desc.Label, Size: desc.Size, Err: fmt.Errorf("GL_OUT_OF_MEMORY")}
	}
	return &glBuffer{label: desc.Label, size: desc.Size, usage: desc.Usage, id: id}, nil
}

func (b *glRendererBackendImpl) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) {
	id, ok := buf.Native().(uint32)
	if !ok || len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	gl.BufferSubData(gl.ARRAY_BUFFER, int(offset), len(data), gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (b *glRendererBackendImpl) ReadBuffer(buf resource.Buffer, offset, size uint64) ([]byte, error) {
	id, ok := buf.Native().(uint32)
	if !ok {
		return nil, fmt.Errorf("read buffer %s: not a GL buffer", buf.Label())
	}
	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	gl.BindBuffer(gl.COPY_READ_BUFFER, id)
	gl.GetBufferSubData(gl.COPY_READ_BUFFER, int(offset), int(size), gl.Ptr(out))
	gl.BindBuffer(gl.COPY_READ_BUFFER, 0)
	return out, nil
}

func (b *glRendererBackendImpl) CreateTexture(label string, data common.TextureStagingData) (resource.Texture, error) {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(data.Width), int32(data.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(data.StraightPixels()))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return &glTexture{label: label, id: id, w: data.Width, h: data.Height}, nil
}

func (b *glRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (resource.Sampler, error) {
	var id uint32
	gl.GenSamplers(1, &id)
	gl.SamplerParameteri(id, gl.TEXTURE_MIN_FILTER, glFilter(data.MinFilter))
	gl.SamplerParameteri(id, gl.TEXTURE_MAG_FILTER, glFilter(data.MagFilter))
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_S, glAddress(data.AddressModeU))
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_T, glAddress(data.AddressModeV))
	return &glSampler{label: label, id: id}, nil
}

func glFilter(f wgpu.FilterMode) int32 {
	if f == wgpu.FilterModeNearest {
		return gl.NEAREST
	}
	return gl.LINEAR
}

func glAddress(m wgpu.AddressMode) int32 {
	switch m {
	case wgpu.AddressModeRepeat:
		return gl.REPEAT
	case wgpu.AddressModeMirrorRepeat:
		return gl.MIRRORED_REPEAT
	default:
		return gl.CLAMP_TO_EDGE
	}
}

func compileGLShader(p pipeline.Pipeline, stage shader.ShaderType, kind uint32) (uint32, error) {
	s := p.Shader(stage, shader.LanguageGLSL)
	if s == nil {
		return 0, &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: stage, Log: "no GLSL source"}
	}
	id := gl.CreateShader(kind)
	src, free := gl.Strs(s.Source() + "\x00")
	gl.ShaderSource(id, 1, src, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n)+1)
		gl.GetShaderInfoLog(id, n, nil, gl.Str(log))
		gl.DeleteShader(id)
		return 0, &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: stage, Log: strings.TrimRight(log, "\x00")}
	}
	return id, nil
}

// linkGLProgram compiles the GLSL stages of p and links them, capturing the stream-out varyings
// of p when it declares any.
func linkGLProgram(p pipeline.Pipeline) (*glPipeline, error) {
	vs, err := compileGLShader(p, shader.ShaderTypeVertex, gl.VERTEX_SHADER)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(vs)

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	if p.Shader(shader.ShaderTypeFragment, shader.LanguageGLSL) != nil || p.Type() == pipeline.PipelineTypeRender {
		fs, err := compileGLShader(p, shader.ShaderTypeFragment, gl.FRAGMENT_SHADER)
		if err != nil {
			gl.DeleteProgram(program)
			return nil, err
		}
		defer gl.DeleteShader(fs)
		gl.AttachShader(program, fs)
	}

	if varyings := p.StreamOutVaryings(); len(varyings) > 0 {
		names := make([]string, len(varyings))
		for i, v := range varyings {
			names[i] = v + "\x00"
		}
		cnames, free := gl.Strs(names...)
		gl.TransformFeedbackVaryings(program, int32(len(names)), cnames, gl.SEPARATE_ATTRIBS)
		free()
	}

	gl.LinkProgram(program)
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n)+1)
		gl.GetProgramInfoLog(program, n, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return nil, &ShaderCompileError{Pipeline: p.PipelineKey(), Stage: shader.ShaderTypeVertex, Log: "link: " + strings.TrimRight(log, "\x00")}
	}

	// GLSL 410 cannot declare bindings in source, so they are assigned by name after linking.
	gl.UseProgram(program)
	for name, binding := range p.BindingNames() {
		cname := gl.Str(name + "\x00")
		if idx := gl.GetUniformBlockIndex(program, cname); idx != gl.INVALID_INDEX {
			gl.UniformBlockBinding(program, idx, uint32(binding))
			continue
		}
		if loc := gl.GetUniformLocation(program, cname); loc >= 0 {
			gl.Uniform1i(loc, int32(binding))
		}
	}
	gl.UseProgram(0)

	native := &glPipeline{program: program}
	gl.GenVertexArrays(1, &native.vao)
	return native, nil
}

func (b *glRendererBackendImpl) register(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	native, err := linkGLProgram(p)
	if err != nil {
		return err
	}
	p.SetNative(native, native.release)
	return nil
}

func (b *glRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	return fmt.Errorf("compute pipeline %s: OpenGL 4.1 has no compute shaders", p.PipelineKey())
}

func (b *glRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	return b.register(p)
}

func (b *glRendererBackendImpl) RegisterStreamOutPipeline(p pipeline.Pipeline) error {
	if len(p.StreamOutVaryings()) == 0 {
		return fmt.Errorf("stream-out pipeline %s: no varyings to capture", p.PipelineKey())
	}
	return b.register(p)
}

func (b *glRendererBackendImpl) CreateBindGroup(p pipeline.Pipeline, group int, _ wgpu.BindGroupLayoutDescriptor, provider bind_group_provider.BindGroupProvider) error {
	bg := &glBindGroup{
		uniforms: make(map[int]uint32),
		textures: make(map[int]uint32),
	}
	for binding, buf := range provider.Buffers() {
		if id, ok := buf.Native().(uint32); ok {
			bg.uniforms[binding] = id
		}
	}
	for binding, tex := range provider.Textures() {
		if id, ok := tex.Native().(uint32); ok {
			bg.textures[binding] = id
		}
	}
	for _, s := range provider.Samplers() {
		if id, ok := s.Native().(uint32); ok {
			bg.samplers = append(bg.samplers, id)
		}
	}
	if len(bg.textures) > 0 && len(bg.samplers) == 0 {
		return fmt.Errorf("%s group %d: textures without a sampler", p.PipelineKey(), group)
	}
	provider.SetBindGroup(bg, nil)
	return nil
}

func (b *glRendererBackendImpl) BeginComputeFrame() error {
	return fmt.Errorf("OpenGL 4.1 has no compute shaders")
}

func (b *glRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, _ bind_group_provider.BindGroupProvider, _ [3]uint32) error {
	return fmt.Errorf("dispatch %s: OpenGL 4.1 has no compute shaders", p.PipelineKey())
}

func (b *glRendererBackendImpl) EndComputeFrame() error {
	return nil
}

// bindVertexBuffers points the attributes of every layout slot at the matching buffer.
func bindVertexBuffers(p pipeline.Pipeline, buffers []resource.Buffer) error {
	layouts := p.VertexLayouts()
	if len(buffers) < len(layouts) {
		return fmt.Errorf("%s: %d vertex buffers for %d layouts", p.PipelineKey(), len(buffers), len(layouts))
	}
	for slot, layout := range layouts {
		gl.BindBuffer(gl.ARRAY_BUFFER, buffers[slot].Native().(uint32))
		var divisor uint32
		if layout.StepMode == wgpu.VertexStepModeInstance {
			divisor = 1
		}
		for _, attr := range layout.Attributes {
			gl.EnableVertexAttribArray(attr.ShaderLocation)
			gl.VertexAttribPointerWithOffset(attr.ShaderLocation, glComponents(attr.Format), gl.FLOAT, false, int32(layout.ArrayStride), uintptr(attr.Offset))
			gl.VertexAttribDivisor(attr.ShaderLocation, divisor)
		}
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

func glComponents(f wgpu.VertexFormat) int32 {
	switch f {
	case wgpu.VertexFormatFloat32:
		return 1
	case wgpu.VertexFormatFloat32x3:
		return 3
	case wgpu.VertexFormatFloat32x4:
		return 4
	default:
		return 2
	}
}

func (b *glRendererBackendImpl) StreamOut(p pipeline.Pipeline, pass StreamOutPass) error {
	native, ok := p.Native().(*glPipeline)
	if !ok {
		return fmt.Errorf("stream-out %s: pipeline is not registered", p.PipelineKey())
	}
	if pass.Count == 0 {
		return nil
	}

	gl.UseProgram(native.program)
	gl.BindVertexArray(native.vao)
	if err := bindVertexBuffers(p, pass.Inputs); err != nil {
		gl.BindVertexArray(0)
		return err
	}
	for i, out := range pass.Outputs {
		gl.BindBufferBase(gl.TRANSFORM_FEEDBACK_BUFFER, uint32(i), out.Native().(uint32))
	}

	gl.Enable(gl.RASTERIZER_DISCARD)
	gl.BeginTransformFeedback(gl.POINTS)
	gl.DrawArrays(gl.POINTS, 0, int32(pass.Count))
	gl.EndTransformFeedback()
	gl.Disable(gl.RASTERIZER_DISCARD)

	for i := range pass.Outputs {
		gl.BindBufferBase(gl.TRANSFORM_FEEDBACK_BUFFER, uint32(i), 0)
	}
	gl.BindVertexArray(0)
	return nil
}

func (b *glRendererBackendImpl) BeginFrame(clear common.RGBA) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("previous frame not yet ended")
	}
	b.surface.MakeContextCurrent()
	gl.Viewport(0, 0, int32(b.width), int32(b.height))
	gl.ClearColor(clear.R, clear.G, clear.B, clear.A)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	b.inFrame = true
	return nil
}

func glTopology(t wgpu.PrimitiveTopology) uint32 {
	switch t {
	case wgpu.PrimitiveTopologyPointList:
		return gl.POINTS
	case wgpu.PrimitiveTopologyLineList:
		return gl.LINES
	case wgpu.PrimitiveTopologyLineStrip:
		return gl.LINE_STRIP
	case wgpu.PrimitiveTopologyTriangleStrip:
		return gl.TRIANGLE_STRIP
	default:
		return gl.TRIANGLES
	}
}

func glBlendFactor(f wgpu.BlendFactor) uint32 {
	switch f {
	case wgpu.BlendFactorZero:
		return gl.ZERO
	case wgpu.BlendFactorSrcAlpha:
		return gl.SRC_ALPHA
	case wgpu.BlendFactorOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case wgpu.BlendFactorDstAlpha:
		return gl.DST_ALPHA
	case wgpu.BlendFactorOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	default:
		return gl.ONE
	}
}

func (b *glRendererBackendImpl) DrawCall(p pipeline.Pipeline, call DrawCall) error {
	native, ok := p.Native().(*glPipeline)
	if !ok {
		return fmt.Errorf("draw %s: pipeline is not registered", p.PipelineKey())
	}

	gl.UseProgram(native.program)
	if p.BlendEnabled() {
		bs := p.BlendState()
		gl.Enable(gl.BLEND)
		gl.BlendFuncSeparate(
			glBlendFactor(bs.Color.SrcFactor), glBlendFactor(bs.Color.DstFactor),
			glBlendFactor(bs.Alpha.SrcFactor), glBlendFactor(bs.Alpha.DstFactor),
		)
	} else {
		gl.Disable(gl.BLEND)
	}

	for _, provider := range call.BindGroups {
		bg, ok := provider.BindGroup().(*glBindGroup)
		if !ok {
			return fmt.Errorf("draw %s: provider %s has no bind group", p.PipelineKey(), provider.Label())
		}
		for binding, id := range bg.uniforms {
			gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(binding), id)
		}
		for unit, id := range bg.textures {
			gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
			gl.BindTexture(gl.TEXTURE_2D, id)
			for _, s := range bg.samplers {
				gl.BindSampler(uint32(unit), s)
			}
		}
	}

	gl.BindVertexArray(native.vao)
	if err := bindVertexBuffers(p, call.VertexBuffers); err != nil {
		gl.BindVertexArray(0)
		return err
	}

	mode := glTopology(p.Topology())
	instances := int32(max(call.InstanceCount, 1))
	if call.IndexBuffer != nil {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, call.IndexBuffer.Native().(uint32))
		gl.DrawElementsInstanced(mode, int32(call.IndexCount), gl.UNSIGNED_INT, gl.PtrOffset(0), instances)
	} else {
		gl.DrawArraysInstanced(mode, 0, int32(call.VertexCount), instances)
	}
	gl.BindVertexArray(0)
	return nil
}

func (b *glRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return fmt.Errorf("no frame open")
	}
	b.inFrame = false
	gl.Flush()
	return nil
}

func (b *glRendererBackendImpl) Present() {
	b.surface.SwapBuffers()
}

// Release is a no-op: the context is owned by the surface and is destroyed with it.
func (b *glRendererBackendImpl) Release() {}
