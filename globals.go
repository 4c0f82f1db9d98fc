package quad

import "fmt"

// Globals is the per-frame uniform data shared by every draw of one variant:
// a flat color, a projection and a view. Which fields are required depends on
// the variant:
//
//	FlatTriangle    Color + 3x3 Projection
//	FlatQuad2D      4x4 Projection
//	FlatQuad3DView  Color + 4x4 Projection + View
//	TexturedQuad    4x4 Projection
//
// Supplying a field the variant has no slot for is an error, as is omitting
// a required one.
type Globals struct {
	Color      *RGBA
	Projection Matrix
	View       *Mat4
}

// Validate checks g against the uniform layout of v.
func (g Globals) Validate(v Variant) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
	l := v.Layout()

	switch {
	case l.HasColor && g.Color == nil:
		return fmt.Errorf("%w: %s requires a color", ErrLayoutMismatch, v)
	case !l.HasColor && g.Color != nil:
		return fmt.Errorf("%w: %s has no color slot", ErrLayoutMismatch, v)
	case g.Projection == nil:
		return fmt.Errorf("%w: %s requires a projection", ErrLayoutMismatch, v)
	case g.Projection.Dim() != l.ProjectionDim:
		return fmt.Errorf("%w: %s expects a %dx%d projection, got %dx%d",
			ErrLayoutMismatch, v, l.ProjectionDim, l.ProjectionDim, g.Projection.Dim(), g.Projection.Dim())
	case l.HasView && g.View == nil:
		return fmt.Errorf("%w: %s requires a view matrix", ErrLayoutMismatch, v)
	case !l.HasView && g.View != nil:
		return fmt.Errorf("%w: %s has no view slot", ErrLayoutMismatch, v)
	}
	return nil
}

// Encode validates g and serializes it in the WGSL uniform layout of v.
//
// Matrices are written row by row. WGSL reads matrix memory column by
// column, so the buffer holds the transpose of each host matrix, and the
// shaders apply transpose() once to recover it.
func (g Globals) Encode(v Variant) ([]byte, error) {
	if err := g.Validate(v); err != nil {
		return nil, err
	}
	l := v.Layout()

	buf := make([]byte, 0, l.UniformSize)
	if l.HasColor {
		c := g.Color.Array()
		buf = appendFloats(buf, c[:]...)
	}
	buf = g.Projection.appendUniform(buf)
	if l.HasView {
		buf = g.View.appendUniform(buf)
	}
	return buf, nil
}

// uniformView decodes encoded globals the way the GPU reads them.
type uniformView struct {
	layout Layout
	data   []byte
}

func (u uniformView) color() RGBA {
	if !u.layout.HasColor {
		return RGBA{}
	}
	return RGBA{
		R: readFloat(u.data, 0),
		G: readFloat(u.data, 4),
		B: readFloat(u.data, 8),
		A: readFloat(u.data, 12),
	}
}

func (u uniformView) projectionOffset() int {
	if u.layout.HasColor {
		return 16
	}
	return 0
}

// gpuMat4 returns the matrix at off exactly as a WGSL mat4x4 sees it:
// element (row r, column c) comes from column c in memory.
func (u uniformView) gpuMat4(off int) Mat4 {
	var m Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			m[r*4+c] = readFloat(u.data, off+c*16+r*4)
		}
	}
	return m
}

// gpuMat3 is gpuMat4 for a mat3x3 with 16-byte column stride.
func (u uniformView) gpuMat3(off int) Mat3 {
	var m Mat3
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			m[r*3+c] = readFloat(u.data, off+c*16+r*4)
		}
	}
	return m
}
