package pipeline

import (
	"image"
	"image/draw"
)

// ComputeKernel is the CPU rendition of a compute program. It is invoked once per global
// invocation id, including the tail of the last workgroup, and must bounds-check itself the
// same way the GPU program does.
//
// Parameters:
//   - globalID: the x component of the global invocation id
//   - bindings: the contents of each bound buffer, keyed by binding index
type ComputeKernel func(globalID uint32, bindings map[int][]byte)

// StreamOutKernel is the CPU rendition of a stream-out vertex program. It is invoked once per vertex.
//
// Parameters:
//   - vertex: the vertex index
//   - inputs: the contents of the input vertex buffers in slot order
//   - outputs: the contents of the capture buffers in varying order
type StreamOutKernel func(vertex uint32, inputs, outputs [][]byte)

// RasterKernel is the CPU rendition of a render program. It composites one draw call into target.
//
// Parameters:
//   - target: the frame being rendered
//   - in: the draw call's resolved inputs
type RasterKernel func(target draw.Image, in RasterInput)

// RasterInput carries the contents of everything a draw call binds.
type RasterInput struct {
	// VertexBuffers holds the contents of each vertex buffer slot.
	VertexBuffers [][]byte
	// IndexBuffer holds uint32 indices, or nil for non-indexed draws.
	IndexBuffer   []byte
	IndexCount    uint32
	VertexCount   uint32
	InstanceCount uint32
	// Groups holds the resources of each bind group, indexed by group.
	Groups []RasterGroup
}

// RasterGroup is the CPU view of one bind group.
type RasterGroup struct {
	Buffers  map[int][]byte
	Textures map[int]image.Image
}
