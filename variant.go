package quad

import "fmt"

// Variant selects one pipeline: a fixed combination of uniform layout,
// vertex layout and shader logic. The set is closed.
type Variant uint8

const (
	// FlatTriangle draws a built-in triangle with the globals color under a
	// 3x3 projection. Caller vertices are ignored.
	FlatTriangle Variant = iota

	// FlatQuad2D draws caller triangles with per-vertex colors under a 4x4
	// projection.
	FlatQuad2D

	// FlatQuad3DView draws a built-in quad with the globals color under a
	// 4x4 projection and a 4x4 view. Caller vertices are ignored.
	FlatQuad3DView

	// TexturedQuad draws caller triangles with texture coordinates; the
	// sampled texel is tinted by the per-vertex color.
	TexturedQuad

	variantCount
)

// VariantCount is the number of pipeline variants.
const VariantCount = int(variantCount)

// Variants lists every pipeline variant in declaration order.
func Variants() []Variant {
	return []Variant{FlatTriangle, FlatQuad2D, FlatQuad3DView, TexturedQuad}
}

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case FlatTriangle:
		return "FlatTriangle"
	case FlatQuad2D:
		return "FlatQuad2D"
	case FlatQuad3DView:
		return "FlatQuad3DView"
	case TexturedQuad:
		return "TexturedQuad"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Valid reports whether v is one of the declared variants.
func (v Variant) Valid() bool {
	return v < variantCount
}

// AttrMask is a set of vertex attributes.
type AttrMask uint8

// Vertex attributes.
const (
	AttrPosition AttrMask = 1 << iota
	AttrUV
	AttrColor
)

// Has reports whether all attributes in o are present in m.
func (m AttrMask) Has(o AttrMask) bool {
	return m&o == o
}

// String lists the attributes, e.g. "position|uv|color".
func (m AttrMask) String() string {
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if m.Has(AttrPosition) {
		add("position")
	}
	if m.Has(AttrUV) {
		add("uv")
	}
	if m.Has(AttrColor) {
		add("color")
	}
	if s == "" {
		return "none"
	}
	return s
}

// Layout describes the uniform and vertex layouts a variant fixes.
type Layout struct {
	// HasColor reports a vec4 color slot in the globals.
	HasColor bool

	// ProjectionDim is 3 for a mat3x3 projection, 4 for mat4x4.
	ProjectionDim int

	// HasView reports a mat4x4 view slot in the globals.
	HasView bool

	// UniformSize is the globals size in bytes, WGSL uniform layout.
	UniformSize int

	// Attrs are the vertex attributes the variant reads.
	Attrs AttrMask

	// VertexStride is the byte stride per vertex.
	VertexStride int

	// Textured reports the texture and sampler bindings in group 1.
	Textured bool

	// Fixed holds the built-in positions for variants that ignore caller
	// geometry; nil otherwise.
	Fixed []Vec2
}

// Built-in geometry. Every triangle winds counter-clockwise in clip space.
var (
	fixedTriangle = []Vec2{
		{X: 0, Y: 0.5},
		{X: -0.5, Y: -0.5},
		{X: 0.5, Y: -0.5},
	}

	fixedQuad = []Vec2{
		{X: -0.5, Y: 0.5},
		{X: -0.5, Y: -0.5},
		{X: 0.5, Y: 0.5},

		{X: 0.5, Y: 0.5},
		{X: -0.5, Y: -0.5},
		{X: 0.5, Y: -0.5},
	}
)

// Layout returns the layouts of the variant. It returns the zero Layout for
// an invalid variant.
func (v Variant) Layout() Layout {
	switch v {
	case FlatTriangle:
		return Layout{
			HasColor:      true,
			ProjectionDim: 3,
			UniformSize:   16 + 48,
			Attrs:         AttrPosition,
			VertexStride:  8,
			Fixed:         fixedTriangle,
		}
	case FlatQuad2D:
		return Layout{
			ProjectionDim: 4,
			UniformSize:   64,
			Attrs:         AttrPosition | AttrColor,
			VertexStride:  8 + 16,
		}
	case FlatQuad3DView:
		return Layout{
			HasColor:      true,
			ProjectionDim: 4,
			HasView:       true,
			UniformSize:   16 + 64 + 64,
			Attrs:         AttrPosition,
			VertexStride:  8,
			Fixed:         fixedQuad,
		}
	case TexturedQuad:
		return Layout{
			ProjectionDim: 4,
			UniformSize:   64,
			Attrs:         AttrPosition | AttrUV | AttrColor,
			VertexStride:  8 + 8 + 16,
			Textured:      true,
		}
	default:
		return Layout{}
	}
}

// FixedGeometry reports whether the variant ignores caller vertices.
func (v Variant) FixedGeometry() bool {
	return v.Layout().Fixed != nil
}
