package quad

import (
	"fmt"
)

// Vertex is one entry of a vertex stream. Attrs records which attributes
// the caller supplied; the variant decides which ones it accepts.
type Vertex struct {
	Position Vec2
	UV       Vec2
	Color    RGBA
	Attrs    AttrMask
}

// V returns a vertex with only a position.
func V(x, y float32) Vertex {
	return Vertex{Position: Vec2{X: x, Y: y}, Attrs: AttrPosition}
}

// WithUV returns a copy of v with texture coordinates.
func (v Vertex) WithUV(u, w float32) Vertex {
	v.UV = Vec2{X: u, Y: w}
	v.Attrs |= AttrUV
	return v
}

// WithColor returns a copy of v with a vertex color.
func (v Vertex) WithColor(c RGBA) Vertex {
	v.Color = c
	v.Attrs |= AttrColor
	return v
}

// Stream is a finished, validated vertex sequence for one variant. The
// order of vertices is the draw order; every three vertices form one
// triangle.
type Stream struct {
	variant  Variant
	vertices []Vertex
}

// Variant returns the variant the stream was built for.
func (s Stream) Variant() Variant { return s.variant }

// Vertices returns the vertices in draw order.
func (s Stream) Vertices() []Vertex { return s.vertices }

// Len returns the number of vertices.
func (s Stream) Len() int { return len(s.vertices) }

// Bytes serializes the stream in the vertex layout of its variant:
//
//	position (vec2<f32>)                 location 0
//	uv       (vec2<f32>, textured only)  location 1
//	color    (vec4<f32>, colored only)   location 1 or 2
func (s Stream) Bytes() []byte {
	l := s.variant.Layout()
	buf := make([]byte, 0, len(s.vertices)*l.VertexStride)
	for _, v := range s.vertices {
		buf = appendFloats(buf, v.Position.X, v.Position.Y)
		if l.Attrs.Has(AttrUV) {
			buf = appendFloats(buf, v.UV.X, v.UV.Y)
		}
		if l.Attrs.Has(AttrColor) {
			c := v.Color.Array()
			buf = appendFloats(buf, c[:]...)
		}
	}
	return buf
}

// StreamBuilder assembles a Stream: BeginShape, then PushVertex or PushQuad
// any number of times, then Finish. A StreamBuilder can be reused after
// Finish. It is not safe for concurrent use.
type StreamBuilder struct {
	variant  Variant
	open     bool
	ignored  int
	vertices []Vertex
}

// BeginShape starts a new shape for variant v, discarding any shape in
// progress.
func (b *StreamBuilder) BeginShape(v Variant) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
	b.variant = v
	b.open = true
	b.ignored = 0
	b.vertices = b.vertices[:0]
	return nil
}

// PushVertex appends a vertex to the shape in progress. Its attributes must
// match the variant exactly. Vertices pushed for a fixed-geometry variant
// are ignored.
func (b *StreamBuilder) PushVertex(v Vertex) error {
	if !b.open {
		return ErrNoShape
	}
	l := b.variant.Layout()
	if l.Fixed != nil {
		b.ignored++
		return nil
	}
	if v.Attrs != l.Attrs {
		return fmt.Errorf("%w: %s takes %s, got %s", ErrAttributeMismatch, b.variant, l.Attrs, v.Attrs)
	}
	b.vertices = append(b.vertices, v)
	return nil
}

// PushQuad appends the two triangles covering r, with corners top-left,
// bottom-left, top-right and top-right, bottom-left, bottom-right (y down).
// For TexturedQuad the corners take their UVs from uv, or the full texture
// when uv is empty; other variants ignore uv.
func (b *StreamBuilder) PushQuad(r Rect, c RGBA, uv Rect) error {
	if !b.open {
		return ErrNoShape
	}
	if uv.IsEmpty() {
		uv = UnitRect
	}
	textured := b.variant.Layout().Attrs.Has(AttrUV)

	corner := func(x, y, u, w float32) Vertex {
		v := V(x, y).WithColor(c)
		if textured {
			v = v.WithUV(u, w)
		}
		return v
	}
	tl := corner(r.X, r.Y, uv.X, uv.Y)
	bl := corner(r.X, r.Y+r.H, uv.X, uv.Y+uv.H)
	tr := corner(r.X+r.W, r.Y, uv.X+uv.W, uv.Y)
	br := corner(r.X+r.W, r.Y+r.H, uv.X+uv.W, uv.Y+uv.H)

	for _, v := range [...]Vertex{tl, bl, tr, tr, bl, br} {
		if err := b.PushVertex(v); err != nil {
			return err
		}
	}
	return nil
}

// Finish closes the shape and returns the stream. Fixed-geometry variants
// always yield their built-in shape. Other variants fail with ErrEmptyShape
// when no vertex was pushed and with ErrAttributeMismatch when the vertex
// count is not a whole number of triangles.
func (b *StreamBuilder) Finish() (Stream, error) {
	if !b.open {
		return Stream{}, ErrNoShape
	}
	b.open = false

	l := b.variant.Layout()
	if l.Fixed != nil {
		if b.ignored > 0 {
			Logger().Debug("quad: caller vertices ignored", "variant", b.variant, "count", b.ignored)
		}
		return FixedStream(b.variant), nil
	}

	switch {
	case len(b.vertices) == 0:
		return Stream{}, fmt.Errorf("%w: %s", ErrEmptyShape, b.variant)
	case len(b.vertices)%3 != 0:
		return Stream{}, fmt.Errorf("%w: %d vertices is not a triangle list", ErrAttributeMismatch, len(b.vertices))
	}

	vertices := make([]Vertex, len(b.vertices))
	copy(vertices, b.vertices)
	return Stream{variant: b.variant, vertices: vertices}, nil
}

// FixedStream returns the built-in stream of a fixed-geometry variant, or an
// empty stream for any other variant.
func FixedStream(v Variant) Stream {
	fixed := v.Layout().Fixed
	if fixed == nil {
		return Stream{variant: v}
	}
	vertices := make([]Vertex, len(fixed))
	for i, p := range fixed {
		vertices[i] = V(p.X, p.Y)
	}
	return Stream{variant: v, vertices: vertices}
}
