package shader

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatInfo pairs a WGSL vertex attribute type with its wgpu format and byte size.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// sampledTextureInfo pairs a WGSL texture type with its view dimension.
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout is the byte size and alignment of a WGSL type per the WGSL specification,
// used for MinBindingSize of storage and uniform bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one member of a WGSL struct. location is -1 when the member has no @location.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is a WGSL struct block.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// vertexInput reports whether the struct only carries @location members, which separates vertex
// inputs such as InstanceInput from vertex outputs that also hold @builtin(position).
func (ps parsedStruct) vertexInput() bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

// stepMode is VertexStepModeInstance for structs named Instance*, so per-particle positions
// advance once per instance while the quad corners advance per vertex.
func (ps parsedStruct) stepMode() wgpu.VertexStepMode {
	if strings.HasPrefix(ps.name, "Instance") {
		return wgpu.VertexStepModeInstance
	}
	return wgpu.VertexStepModeVertex
}
