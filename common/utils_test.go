package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint64(0), CeilDiv(0, 256))
	assert.Equal(t, uint64(1), CeilDiv(1, 256))
	assert.Equal(t, uint64(1), CeilDiv(256, 256))
	assert.Equal(t, uint64(2), CeilDiv(257, 256))
}

func TestVec2Packing(t *testing.T) {
	vs := []Vec2{{0.25, -0.5}, {1, -1}}
	b := Vec2Bytes(vs)
	assert.Len(t, b, 16)
	assert.Equal(t, Vec2{1, -1}, Vec2At(b, 1))

	PutVec2(b, 0, Vec2{0.75, 0})
	assert.Equal(t, []Vec2{{0.75, 0}, {1, -1}}, BytesVec2(b))
	assert.Len(t, BytesVec2(b[:12]), 1)
}

func TestStraightPixels(t *testing.T) {
	straight := TextureStagingData{Pixels: []byte{255, 255, 255, 128}}
	assert.Equal(t, straight.Pixels, straight.StraightPixels())

	premul := TextureStagingData{Pixels: []byte{128, 64, 0, 128, 9, 9, 9, 0}, Premultiplied: true}
	assert.Equal(t, []byte{255, 128, 0, 128, 0, 0, 0, 0}, premul.StraightPixels())
	assert.Equal(t, byte(128), premul.Pixels[0], "source pixels are left untouched")
}
