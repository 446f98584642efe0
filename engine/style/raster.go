package style

import (
	"image"
	"image/color"
	"math"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"golang.org/x/image/draw"
)

// ndcToPixel maps a normalized device coordinate to a pixel of b, with +y up.
func ndcToPixel(p common.Vec2, b image.Rectangle) image.Point {
	x := math.Floor(float64((p.X + 1) / 2 * float32(b.Dx())))
	y := math.Floor(float64((1 - p.Y) / 2 * float32(b.Dy())))
	return image.Pt(b.Min.X+int(x), b.Min.Y+int(y))
}

// rasterPoints plots one opaque white pixel per vertex.
func rasterPoints(target draw.Image, in pipeline.RasterInput) {
	if len(in.VertexBuffers) == 0 {
		return
	}
	b := target.Bounds()
	positions := in.VertexBuffers[0]
	for i := range in.VertexCount {
		if pt := ndcToPixel(common.Vec2At(positions, i), b); pt.In(b) {
			target.Set(pt.X, pt.Y, color.White)
		}
	}
}

// quadRect returns the pixel rectangle covered by a quad centered at center. The quad spans
// ±scale/resolution in NDC.
func quadRect(center common.Vec2, u GPUQuadUniforms, b image.Rectangle) image.Rectangle {
	if u.Resolution[0] <= 0 || u.Resolution[1] <= 0 {
		return image.Rectangle{}
	}
	half := common.Vec2{X: u.Scale / u.Resolution[0], Y: u.Scale / u.Resolution[1]}
	topLeft := ndcToPixel(common.Vec2{X: center.X - half.X, Y: center.Y + half.Y}, b)
	bottomRight := ndcToPixel(common.Vec2{X: center.X + half.X, Y: center.Y - half.Y}, b)
	return image.Rectangle{Min: topLeft, Max: bottomRight}
}

// rasterQuads returns the CPU rendition of the quad programs. Instances read their center from
// vertex slot 0 and the uniforms from group 0. With textured set, each quad is the glyph
// texture scaled bilinearly and blended with alphaOver; otherwise it is a solid white square.
func rasterQuads(textured bool, uniformBinding, textureBinding int) pipeline.RasterKernel {
	return func(target draw.Image, in pipeline.RasterInput) {
		if len(in.VertexBuffers) == 0 || len(in.Groups) == 0 {
			return
		}
		group := in.Groups[0]
		u := unmarshalQuadUniforms(group.Buffers[uniformBinding])

		var tex image.Image
		if textured {
			if tex = group.Textures[textureBinding]; tex == nil {
				return
			}
		}

		b := target.Bounds()
		positions := in.VertexBuffers[0]
		for i := range in.InstanceCount {
			r := quadRect(common.Vec2At(positions, i), u, b)
			if r.Empty() {
				continue
			}
			if textured {
				blendAlphaOver(target, r, tex)
			} else {
				draw.Draw(target, r, image.White, image.Point{}, draw.Src)
			}
		}
	}
}

// blendAlphaOver scales tex onto r of target and blends it the way the alphaOver blend state
// does: color and alpha both become src*src.a + dst*(1-src.a). tex holds premultiplied pixels,
// so src*src.a is the stored color channel.
func blendAlphaOver(target draw.Image, r image.Rectangle, tex image.Image) {
	dst, ok := target.(*image.RGBA)
	if !ok {
		draw.ApproxBiLinear.Scale(target, r, tex, tex.Bounds(), draw.Over, nil)
		return
	}
	src := image.NewRGBA(r)
	draw.ApproxBiLinear.Scale(src, r, tex, tex.Bounds(), draw.Src, nil)

	clip := r.Intersect(dst.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			s := src.Pix[src.PixOffset(x, y):]
			d := dst.Pix[dst.PixOffset(x, y):]
			sa := uint32(s[3])
			inv := 255 - sa
			for c := range 3 {
				d[c] = uint8(min((uint32(s[c])*255+uint32(d[c])*inv+127)/255, 255))
			}
			d[3] = uint8((sa*sa + uint32(d[3])*inv + 127) / 255)
		}
	}
}
