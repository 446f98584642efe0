// Package resource defines the backend-neutral handles for GPU memory objects. Each renderer
// backend returns its own implementation of these interfaces.
package resource

import "github.com/cogentcore/webgpu/wgpu"

// Buffer is a device-side buffer allocation.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Size returns the allocation size in bytes.
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	Usage() wgpu.BufferUsage

	// Native returns the backend handle (*wgpu.Buffer, a GL buffer name, or a byte slice).
	Native() any

	// Release frees the allocation. Calling Release more than once is a no-op.
	Release()
}

// Texture is a device-side 2D RGBA texture.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Native() any
	Release()
}

// Sampler is a device-side sampler object.
type Sampler interface {
	Label() string
	Native() any
	Release()
}

// BufferDescriptor describes a buffer allocation. When Contents is non-empty it is uploaded
// immediately after creation and Size may be left zero to use len(Contents).
type BufferDescriptor struct {
	Label    string
	Size     uint64
	Usage    wgpu.BufferUsage
	Contents []byte
}

// Limits are the device limits that constrain particle storage layout. A zero value means
// the backend imposes no constraint.
type Limits struct {
	// MaxStorageBufferBindingSize is the largest byte range a single storage binding may cover.
	MaxStorageBufferBindingSize uint64
	// MaxComputeWorkgroupsPerDimension is the largest workgroup count accepted per dispatch dimension.
	MaxComputeWorkgroupsPerDimension uint32
	// MaxBufferSize is the largest single buffer allocation.
	MaxBufferSize uint64
}
