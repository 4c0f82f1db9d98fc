package quad

import "fmt"

// Varying is the per-fragment input interpolated from the vertex stage.
type Varying struct {
	UV    Vec2
	Color RGBA
}

// EvalVertex runs the vertex stage of v on the CPU. uniform is the encoded
// globals as produced by Globals.Encode; the matrices are read from it the
// way the GPU reads them and transposed back, exactly as the WGSL sources
// do:
//
//	clip = transpose(P) * transpose(V) * vec4(position, 1, 1)   (4x4 variants)
//	clip = vec4((transpose(P) * vec3(position, 1)).xy, 0, 1)    (3x3 variant)
func EvalVertex(v Variant, uniform []byte, vert Vertex) (Vec4, error) {
	u, err := newUniformView(v, uniform)
	if err != nil {
		return Vec4{}, err
	}
	off := u.projectionOffset()

	if u.layout.ProjectionDim == 3 {
		p := u.gpuMat3(off).Transpose()
		x, y, _ := p.MulVec(vert.Position.X, vert.Position.Y, 1)
		return Vec4{X: x, Y: y, Z: 0, W: 1}, nil
	}

	pos := Vec4{X: vert.Position.X, Y: vert.Position.Y, Z: 1, W: 1}
	m := u.gpuMat4(off).Transpose()
	if u.layout.HasView {
		m = m.Mul(u.gpuMat4(off + 64).Transpose())
	}
	return m.MulVec(pos), nil
}

// EvalFragment runs the fragment stage of v on the CPU. sample returns the
// texel at a texture coordinate; it is required for TexturedQuad and ignored
// otherwise.
func EvalFragment(v Variant, uniform []byte, in Varying, sample func(uv Vec2) RGBA) (RGBA, error) {
	u, err := newUniformView(v, uniform)
	if err != nil {
		return RGBA{}, err
	}

	switch v {
	case FlatTriangle, FlatQuad3DView:
		return u.color(), nil
	case FlatQuad2D:
		return in.Color, nil
	case TexturedQuad:
		if sample == nil {
			return RGBA{}, fmt.Errorf("%w: %s", ErrUnboundResource, v)
		}
		return in.Color.Mul(sample(in.UV)), nil
	default:
		return RGBA{}, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
}

func newUniformView(v Variant, uniform []byte) (uniformView, error) {
	if !v.Valid() {
		return uniformView{}, fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
	l := v.Layout()
	if len(uniform) < l.UniformSize {
		return uniformView{}, fmt.Errorf("%w: %s globals need %d bytes, got %d",
			ErrLayoutMismatch, v, l.UniformSize, len(uniform))
	}
	return uniformView{layout: l, data: uniform}, nil
}
