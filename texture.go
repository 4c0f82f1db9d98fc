package quad

import (
	"image"
	"image/draw"
	"math"
)

// TextureView is a GPU texture view owned by the GPU binding. hal.TextureView
// satisfies it.
type TextureView interface {
	NativeHandle() uintptr
}

// Sampler is a GPU sampler owned by the GPU binding. hal.Sampler satisfies it.
type Sampler interface {
	NativeHandle() uintptr
}

// TextureBinding references a texture and sampler for TexturedQuad draws.
// The binding does not own either resource; the caller keeps them alive
// until every frame that recorded them has been rendered.
type TextureBinding struct {
	Texture TextureView
	Sampler Sampler
}

// complete reports whether both references are set.
func (b TextureBinding) complete() bool {
	return b.Texture != nil && b.Sampler != nil
}

// ImageTexture is a CPU-side texture. The software renderer samples it
// directly; the GPU renderer uploads it on first use.
type ImageTexture struct {
	img *image.RGBA
}

// NewImageTexture copies img into an ImageTexture.
func NewImageTexture(img image.Image) *ImageTexture {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return &ImageTexture{img: rgba}
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return &ImageTexture{img: rgba}
}

// NativeHandle returns 0: an ImageTexture has no GPU handle until uploaded.
func (t *ImageTexture) NativeHandle() uintptr { return 0 }

// Image returns the backing image. Its origin is (0, 0).
func (t *ImageTexture) Image() *image.RGBA { return t.img }

// Size returns the texture dimensions in texels.
func (t *ImageTexture) Size() (int, int) {
	return t.img.Rect.Dx(), t.img.Rect.Dy()
}

// Filter selects how ImageSampler reconstructs between texels.
type Filter uint8

const (
	// FilterLinear blends the four nearest texels.
	FilterLinear Filter = iota
	// FilterNearest picks the nearest texel.
	FilterNearest
)

// ImageSampler samples ImageTextures on the CPU with clamp-to-edge
// addressing.
type ImageSampler struct {
	Filter Filter
}

// NativeHandle returns 0: ImageSampler is CPU only.
func (s *ImageSampler) NativeHandle() uintptr { return 0 }

// Sample returns the premultiplied texel color at uv. uv (0,0) is the
// top-left corner of the texture.
func (s *ImageSampler) Sample(t *ImageTexture, uv Vec2) RGBA {
	w, h := t.Size()
	if w == 0 || h == 0 {
		return Transparent
	}
	x := float64(uv.X)*float64(w) - 0.5
	y := float64(uv.Y)*float64(h) - 0.5

	if s.Filter == FilterNearest {
		return texel(t.img, int(math.Floor(x+0.5)), int(math.Floor(y+0.5)))
	}

	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := float32(x-x0), float32(y-y0)
	ix, iy := int(x0), int(y0)

	top := lerp(texel(t.img, ix, iy), texel(t.img, ix+1, iy), fx)
	bottom := lerp(texel(t.img, ix, iy+1), texel(t.img, ix+1, iy+1), fx)
	return lerp(top, bottom, fy)
}

// texel reads one texel with clamp-to-edge addressing. The bytes are taken
// as stored, which is what the GPU sees in an RGBA8Unorm texture uploaded
// from the same buffer.
func texel(img *image.RGBA, x, y int) RGBA {
	x = clampInt(x, 0, img.Rect.Dx()-1)
	y = clampInt(y, 0, img.Rect.Dy()-1)
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	return RGBA{
		R: float32(p[0]) / 255,
		G: float32(p[1]) / 255,
		B: float32(p[2]) / 255,
		A: float32(p[3]) / 255,
	}
}

func lerp(a, b RGBA, t float32) RGBA {
	return a.Scale(1 - t).Add(b.Scale(t))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
