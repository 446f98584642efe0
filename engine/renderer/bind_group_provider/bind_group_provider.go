package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
)

// releaser is anything holding device memory.
type releaser interface {
	Release()
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the backend bind group object created for this provider, or nil if not initialized with the Renderer.
	bindGroup any
	// releaseBindGroup frees bindGroup. Set by the backend that created it.
	releaseBindGroup func()

	// buffers holds the buffers bound by this provider, keyed by binding index.
	buffers map[int]resource.Buffer
	// textures holds the textures bound by this provider, keyed by binding index.
	textures map[int]resource.Texture
	// samplers holds the samplers bound by this provider, keyed by binding index.
	samplers map[int]resource.Sampler

	// vertexBuffer and indexBuffer hold per-vertex mesh geometry for draw calls.
	vertexBuffer resource.Buffer
	indexBuffer  resource.Buffer
	// indexCount is the number of indices for draw calls, used by the Renderer to issue drawIndexed calls for this provider.
	indexCount int

	// owned lists the resources created by the Renderer on behalf of this provider. Only these are
	// freed by Release; resources attached with Set* belong to the caller.
	owned []releaser
}

// BindGroupProvider defines the interface for components that require GPU bind group resources.
// Components (particle stores, visual styles) hold a BindGroupProvider to describe their GPU binding
// requirements. The Renderer then uses this provider to initialize and update GPU resources.
//
// Usage pattern:
//  1. Component creates a BindGroupProvider with a debug label
//  2. Component attaches buffers it owns via SetBuffer(), or asks the Renderer to create
//     textures, samplers and mesh buffers for it (those become owned by the provider)
//  3. Component calls Renderer.InitBindGroup(pipelineKey, group, provider) to create the bind group
//  4. Component queues Renderer.WriteBuffers(...) to update uniforms
//  5. Component passes the provider to DispatchCompute or DrawCall
type BindGroupProvider interface {
	// Release releases the bind group and every resource the Renderer created on behalf of this provider.
	// Buffers attached via SetBuffer are left untouched. Calling Release more than once is a no-op.
	Release()

	// Label returns the debug label for this provider.
	// Used for debugging and profiling purposes.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created backend bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - any: the backend bind group or nil
	BindGroup() any

	// Buffer returns the buffer attached at the given binding.
	// Returns nil if no buffer has been attached.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - resource.Buffer: the buffer or nil
	Buffer(binding int) resource.Buffer

	// Buffers returns a map of all buffers associated with this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]resource.Buffer: a map of buffers keyed by binding index
	Buffers() map[int]resource.Buffer

	// Texture returns the texture for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - resource.Texture: the texture or nil
	Texture(binding int) resource.Texture

	// Textures returns a map of all textures associated with this provider, keyed by binding index.
	Textures() map[int]resource.Texture

	// Sampler returns the sampler for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - resource.Sampler: the sampler or nil
	Sampler(binding int) resource.Sampler

	// Samplers returns a map of all samplers associated with this provider, keyed by binding index.
	Samplers() map[int]resource.Sampler

	// VertexBuffer returns the mesh vertex buffer, or nil if not initialized.
	VertexBuffer() resource.Buffer

	// IndexBuffer returns the mesh index buffer, or nil if not initialized.
	IndexBuffer() resource.Buffer

	// IndexCount returns the number of indices in the mesh index buffer.
	IndexCount() int

	// SetBindGroup stores the backend bind group object along with the function that frees it.
	//
	// Parameters:
	//   - bg: the backend bind group object
	//   - release: frees bg, may be nil when the backend holds nothing to free
	SetBindGroup(bg any, release func())

	// SetBuffer attaches a caller-owned buffer at the given binding.
	SetBuffer(binding int, buf resource.Buffer)

	// SetBuffers replaces every attached buffer.
	SetBuffers(buffers map[int]resource.Buffer)

	// SetTexture attaches a texture at the given binding.
	SetTexture(binding int, tex resource.Texture)

	// SetSampler attaches a sampler at the given binding.
	SetSampler(binding int, s resource.Sampler)

	// SetVertexBuffer sets the mesh vertex buffer.
	SetVertexBuffer(buf resource.Buffer)

	// SetIndexBuffer sets the mesh index buffer.
	SetIndexBuffer(buf resource.Buffer)

	// SetIndexCount sets the number of indices in the mesh index buffer.
	SetIndexCount(count int)

	// Own transfers ownership of a resource to the provider so that Release frees it.
	//
	// Parameters:
	//   - r: the resource to own
	Own(r interface{ Release() })
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new, empty BindGroupProvider.
//
// Parameters:
//   - label: debug label used in backend object labels and logs
//   - options: functional options applied to the provider
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:    label,
		buffers:  make(map[int]resource.Buffer),
		textures: make(map[int]resource.Texture),
		samplers: make(map[int]resource.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() any {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) resource.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]resource.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) Texture(binding int) resource.Texture {
	return p.textures[binding]
}

func (p *bindGroupProvider) Textures() map[int]resource.Texture {
	return p.textures
}

func (p *bindGroupProvider) Sampler(binding int) resource.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) Samplers() map[int]resource.Sampler {
	return p.samplers
}

func (p *bindGroupProvider) VertexBuffer() resource.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() resource.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(bg any, release func()) {
	if p.releaseBindGroup != nil {
		p.releaseBindGroup()
	}
	p.bindGroup = bg
	p.releaseBindGroup = release
}

func (p *bindGroupProvider) SetBuffer(binding int, buf resource.Buffer) {
	if p.buffers == nil {
		p.buffers = make(map[int]resource.Buffer)
	}
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetBuffers(buffers map[int]resource.Buffer) {
	p.buffers = buffers
}

func (p *bindGroupProvider) SetTexture(binding int, tex resource.Texture) {
	if p.textures == nil {
		p.textures = make(map[int]resource.Texture)
	}
	p.textures[binding] = tex
}

func (p *bindGroupProvider) SetSampler(binding int, s resource.Sampler) {
	if p.samplers == nil {
		p.samplers = make(map[int]resource.Sampler)
	}
	p.samplers[binding] = s
}

func (p *bindGroupProvider) SetVertexBuffer(buf resource.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) SetIndexBuffer(buf resource.Buffer) {
	p.indexBuffer = buf
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}

func (p *bindGroupProvider) Own(r interface{ Release() }) {
	p.owned = append(p.owned, r)
}

func (p *bindGroupProvider) Release() {
	if p.releaseBindGroup != nil {
		p.releaseBindGroup()
		p.releaseBindGroup = nil
	}
	p.bindGroup = nil

	// release in reverse creation order
	for i := len(p.owned) - 1; i >= 0; i-- {
		p.owned[i].Release()
	}
	p.owned = nil

	clear(p.buffers)
	clear(p.textures)
	clear(p.samplers)
	p.vertexBuffer = nil
	p.indexBuffer = nil
	p.indexCount = 0
}
