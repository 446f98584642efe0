package shader

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap holds the size and alignment of the host-shareable types the particle
// and style programs bind: scalars, vec2 and vec4.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32":       {4, 4},
	"i32":       {4, 4},
	"u32":       {4, 4},
	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},
}

func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout returns the layout of a primitive, a struct already in knownTypes, or a
// runtime-sized array<T>. A runtime array reports one element stride, the smallest useful
// binding. Fixed-size arrays are not bound by any program and resolve to false.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "f32", "QuadUniforms", "array<vec2<f32>>"
//   - knownTypes: struct layouts resolved so far
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: false if the type is unknown
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	elem, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(elem, ">") || strings.Contains(elem, ",") {
		return wgslTypeLayout{}, false
	}
	layout, ok := resolveTypeLayout(strings.TrimSpace(strings.TrimSuffix(elem, ">")), knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{roundUpAlign(layout.align, layout.size), layout.align}, true
}

// computeStructSizes lays out each struct in declaration order: every member at its next
// aligned offset, the total rounded up to the largest member alignment. @builtin members are
// not part of a buffer and are skipped. A struct may use structs declared before it; one with
// an unresolvable member is left out of the result.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))

next:
	for _, ps := range structs {
		var offset uint64
		maxAlign := uint64(1)
		for _, f := range ps.fields {
			if f.isBuiltin {
				continue
			}
			layout, ok := resolveTypeLayout(f.typeName, resolved)
			if !ok {
				continue next
			}
			offset = roundUpAlign(layout.align, offset) + layout.size
			maxAlign = max(maxAlign, layout.align)
		}
		resolved[ps.name] = wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}
	}
	return resolved
}

// classifyResource builds the layout entry of one @group/@binding declaration. Variables with an
// address space are uniform or storage buffers; the rest are samplers or sampled textures.
//
// Parameters:
//   - binding: the binding index from @binding(N)
//   - visibility: the stage that declared the resource
//   - addressSpace: e.g. "uniform" or "storage, read_write", empty for handle types
//   - typeName: the WGSL type, e.g. "QuadUniforms", "texture_2d<f32>", "sampler"
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the populated layout entry
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage") && strings.Contains(addressSpace, "read_write"):
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case strings.HasPrefix(typeName, "texture_"):
		base, param, _ := strings.Cut(typeName, "<")
		if info, ok := wgslSampledTextureMap[base]; ok {
			entry.Texture.ViewDimension = info.viewDimension
			entry.Texture.Multisampled = info.multisampled
		}
		if st, ok := wgslSampleTypeMap[strings.TrimSpace(strings.TrimSuffix(param, ">"))]; ok {
			entry.Texture.SampleType = st
		}
	}
	return entry
}

// stripComments removes // line comments and /* */ block comments, so annotations and prose never
// reach the struct and binding parsers.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	for {
		start := strings.Index(source, "/*")
		if start < 0 {
			break
		}
		sb.WriteString(source[:start])
		end := strings.Index(source[start+2:], "*/")
		if end < 0 {
			source = ""
			break
		}
		source = source[start+2+end+2:]
	}
	sb.WriteString(source)
	return stripLineComments(sb.String())
}

func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if before, _, ok := strings.Cut(line, "//"); ok {
			line = before
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// buildVertexBufferLayout packs the @location members of a vertex input struct back to back
// into one buffer slot. It fails on a member type with no vertex format.
//
// Parameters:
//   - ps: a struct for which vertexInput() is true
//
// Returns:
//   - wgpu.VertexBufferLayout: the slot layout, stepped per instance for Instance* structs
//   - bool: false if a member type could not be mapped
func buildVertexBufferLayout(ps parsedStruct) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(ps.fields))
	var offset uint64
	for _, f := range ps.fields {
		info, ok := wgslVertexFormatMap[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += info.size
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    ps.stepMode(),
		Attributes:  attrs,
	}, true
}
