package text

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Metrics are the vertical metrics of a font at a size, in pixels.
type Metrics struct {
	// Ascent is the distance from the baseline to the top of the line.
	Ascent float32
	// Descent is the distance from the baseline to the bottom of the line.
	Descent float32
	// LineHeight is the recommended baseline-to-baseline distance.
	LineHeight float32
}

// Metrics returns the vertical metrics at size pixels per em.
func (f *Font) Metrics(size float32) (Metrics, error) {
	if size <= 0 {
		return Metrics{}, ErrInvalidSize
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.sfnt.Metrics(&f.buf, toFixed(size), font.HintingNone)
	if err != nil {
		return Metrics{}, fmt.Errorf("text: metrics: %w", err)
	}
	return Metrics{
		Ascent:     fromFixed(m.Ascent),
		Descent:    fromFixed(m.Descent),
		LineHeight: fromFixed(m.Height),
	}, nil
}

// GlyphBounds returns the pixel bounds of glyph gid at size, relative to
// the glyph origin on the baseline (y down). Glyphs without ink, such as
// spaces, have empty bounds.
func (f *Font) GlyphBounds(gid uint32, size float32) (image.Rectangle, error) {
	k := glyphKey{gid: gid, size: sizeKey(size)}
	if r, ok := f.bounds.Get(k); ok {
		return r, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	segs, err := f.loadGlyph(gid, size)
	if err != nil {
		return image.Rectangle{}, err
	}
	r := pixelBounds(segs)
	f.bounds.Set(k, r)
	return r, nil
}

// Rasterize renders glyph gid at size into a coverage mask whose origin is
// (0, 0). The returned rectangle places the mask relative to the glyph
// origin, as GlyphBounds does. Glyphs without ink return a nil mask.
func (f *Font) Rasterize(gid uint32, size float32) (*image.Alpha, image.Rectangle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	segs, err := f.loadGlyph(gid, size)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	r := pixelBounds(segs)
	f.bounds.Set(glyphKey{gid: gid, size: sizeKey(size)}, r)
	if r.Empty() {
		return nil, r, nil
	}

	dx, dy := float32(-r.Min.X), float32(-r.Min.Y)
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = draw.Src
	for i, s := range segs {
		p := s.Args
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if i > 0 {
				z.ClosePath()
			}
			z.MoveTo(fromFixed(p[0].X)+dx, fromFixed(p[0].Y)+dy)
		case sfnt.SegmentOpLineTo:
			z.LineTo(fromFixed(p[0].X)+dx, fromFixed(p[0].Y)+dy)
		case sfnt.SegmentOpQuadTo:
			z.QuadTo(
				fromFixed(p[0].X)+dx, fromFixed(p[0].Y)+dy,
				fromFixed(p[1].X)+dx, fromFixed(p[1].Y)+dy)
		case sfnt.SegmentOpCubeTo:
			z.CubeTo(
				fromFixed(p[0].X)+dx, fromFixed(p[0].Y)+dy,
				fromFixed(p[1].X)+dx, fromFixed(p[1].Y)+dy,
				fromFixed(p[2].X)+dx, fromFixed(p[2].Y)+dy)
		}
	}
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask, r, nil
}

// loadGlyph returns the outline of gid. The segments alias f.buf; callers
// hold f.mu.
func (f *Font) loadGlyph(gid uint32, size float32) (sfnt.Segments, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	segs, err := f.sfnt.LoadGlyph(&f.buf, sfnt.GlyphIndex(gid), toFixed(size), nil) //nolint:gosec // glyph IDs come from the same font
	if err != nil {
		return nil, fmt.Errorf("text: load glyph %d: %w", gid, err)
	}
	return segs, nil
}

// pixelBounds returns the integer bounds covering every segment.
func pixelBounds(segs sfnt.Segments) image.Rectangle {
	if len(segs) == 0 {
		return image.Rectangle{}
	}
	b := segs.Bounds()
	return image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
}

// sizeKey quantizes a size to 26.6 fixed point for cache keys.
func sizeKey(size float32) uint32 {
	return uint32(math.Round(float64(size) * 64))
}

func toFixed(v float32) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(float64(v) * 64))
}

func fromFixed(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
