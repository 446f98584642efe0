package common

import (
	"encoding/binary"
	"math"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// CeilDiv returns ceil(n / d) for d > 0.
func CeilDiv(n, d uint64) uint64 {
	return (n + d - 1) / d
}

// Vec2Size is the byte size of one packed Vec2.
const Vec2Size = 8

// Vec2At decodes the i-th little-endian Vec2 from a packed byte slice.
func Vec2At(b []byte, i uint32) Vec2 {
	off := int(i) * Vec2Size
	return Vec2{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[off:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:])),
	}
}

// PutVec2 encodes v as the i-th little-endian Vec2 of a packed byte slice.
func PutVec2(b []byte, i uint32, v Vec2) {
	off := int(i) * Vec2Size
	binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[off+4:], math.Float32bits(v.Y))
}

// Vec2Bytes packs a slice of Vec2 into the byte layout used by GPU vertex and storage buffers.
//
// Parameters:
//   - vs: the vectors to pack
//
// Returns:
//   - []byte: little-endian packed data, 8 bytes per vector
func Vec2Bytes(vs []Vec2) []byte {
	out := make([]byte, len(vs)*Vec2Size)
	for i, v := range vs {
		PutVec2(out, uint32(i), v)
	}
	return out
}

// BytesVec2 unpacks GPU buffer contents into a slice of Vec2. Trailing bytes that do not form
// a whole vector are ignored.
//
// Parameters:
//   - b: little-endian packed data
//
// Returns:
//   - []Vec2: the decoded vectors
func BytesVec2(b []byte) []Vec2 {
	n := len(b) / Vec2Size
	out := make([]Vec2, n)
	for i := range out {
		out[i] = Vec2At(b, uint32(i))
	}
	return out
}

// Float32Bytes packs float32 values little-endian, 4 bytes each.
func Float32Bytes(fs ...float32) []byte {
	out := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// Uint32Bytes packs uint32 values little-endian, 4 bytes each.
func Uint32Bytes(us ...uint32) []byte {
	out := make([]byte, len(us)*4)
	for i, u := range us {
		binary.LittleEndian.PutUint32(out[i*4:], u)
	}
	return out
}
