// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Vec2 is a two component float32 vector. It matches the memory layout of a WGSL vec2<f32>
// and a GLSL vec2, 8 bytes with no padding.
type Vec2 struct {
	X, Y float32
}

// Add returns the component-wise sum of v and o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// RGBA is a normalized color with each channel in [0, 1].
type RGBA struct {
	R, G, B, A float32
}

// TextureStagingData holds RGBA pixel data for a texture binding pending GPU upload.
// This is primarily used in the BindGroupProvider to stage texture data before creating the GPU texture and bind group.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Width uint32
	// Height is the height of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Height uint32
	// Premultiplied reports whether the pixel color channels are already multiplied by alpha.
	Premultiplied bool
}

// StraightPixels returns the pixels with color channels not multiplied by alpha, the form the
// GPU blend state expects. Straight data is returned as is; premultiplied data is converted into
// a new slice.
func (t TextureStagingData) StraightPixels() []byte {
	if !t.Premultiplied {
		return t.Pixels
	}
	out := make([]byte, len(t.Pixels))
	for i := 0; i+3 < len(t.Pixels); i += 4 {
		a := uint32(t.Pixels[i+3])
		out[i+3] = uint8(a)
		if a == 0 {
			continue
		}
		for c := range 3 {
			out[i+c] = uint8(min((uint32(t.Pixels[i+c])*255+a/2)/a, 255))
		}
	}
	return out
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// This is primarily used in the BindGroupProvider to stage sampler data before creating the GPU sampler and bind group.
// Backends other than WGPU translate these values into their own sampler parameters.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}
