package text

import (
	"fmt"
	"image"

	"github.com/gogpu/quad"
	"github.com/gogpu/quad/atlas"
)

// Glyph is one shaped glyph of a Run.
type Glyph struct {
	// ID is the glyph index in the font.
	ID uint32
	// Cluster is the index of the first rune of the source text this glyph
	// belongs to.
	Cluster int
	// X and Y place the glyph origin relative to the run origin, y down.
	X, Y float32
	// Advance is how far the pen moves after this glyph.
	Advance float32
}

// Run is a single line of shaped text.
type Run struct {
	Font *Font
	Size float32
	// Text is the normalized source text.
	Text   string
	Glyphs []Glyph

	// Advance is the total pen advance.
	Advance float32
	// Ascent and Descent are the font line metrics at Size.
	Ascent, Descent float32
}

// Bounds returns the line box of the run when its baseline starts at
// origin.
func (r *Run) Bounds(origin quad.Vec2) quad.Rect {
	return quad.Rect{
		X: origin.X,
		Y: origin.Y - r.Ascent,
		W: r.Advance,
		H: r.Ascent + r.Descent,
	}
}

// Quads pushes one textured quad per inked glyph into b, which must have a
// TexturedQuad shape in progress. origin is the pen position on the
// baseline in the projection's coordinate space (pixels for
// quad.PixelProjection). Glyph masks are rasterized on first use and cached
// in a; bind a.Binding(...) for the draw after the last Quads call that may
// insert.
func (r *Run) Quads(b *quad.StreamBuilder, a *atlas.Atlas, origin quad.Vec2, tint quad.RGBA) error {
	if r.Font == nil {
		return ErrNilFont
	}
	if a.Kind() != atlas.KindGray {
		return fmt.Errorf("%w: got %s", ErrAtlasKind, a.Kind())
	}

	for _, g := range r.Glyphs {
		bounds, err := r.Font.GlyphBounds(g.ID, r.Size)
		if err != nil {
			return err
		}
		if bounds.Empty() {
			continue
		}

		key := atlas.Key{Source: r.Font.ID(), ID: g.ID, Size: sizeKey(r.Size)}
		region, err := a.GetOrInsert(key, func() (image.Image, error) {
			mask, _, err := r.Font.Rasterize(g.ID, r.Size)
			return mask, err
		})
		if err != nil {
			return fmt.Errorf("text: glyph %d: %w", g.ID, err)
		}

		dst := quad.Rect{
			X: origin.X + g.X + float32(bounds.Min.X),
			Y: origin.Y + g.Y + float32(bounds.Min.Y),
			W: float32(bounds.Dx()),
			H: float32(bounds.Dy()),
		}
		if err := b.PushQuad(dst, tint, a.UV(region)); err != nil {
			return err
		}
	}
	return nil
}
