package quad

import (
	"encoding/binary"
	"math"
)

// Matrix is a projection or view matrix accepted by Globals. The set of
// implementations is closed: Mat3 and Mat4.
type Matrix interface {
	// Dim returns the matrix dimension (3 or 4).
	Dim() int

	// appendUniform appends the matrix in WGSL uniform layout.
	appendUniform(buf []byte) []byte
}

// Mat3 is a 3x3 matrix in row-major order:
//
//	| m[0] m[1] m[2] |
//	| m[3] m[4] m[5] |
//	| m[6] m[7] m[8] |
type Mat3 [9]float32

// Mat4 is a 4x4 matrix in row-major order. Element (row r, column c) is
// m[r*4+c].
type Mat4 [16]float32

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Affine3 returns the 3x3 matrix of the 2D transform
// x' = sx*x + tx, y' = sy*y + ty.
func Affine3(sx, sy, tx, ty float32) Mat3 {
	return Mat3{
		sx, 0, tx,
		0, sy, ty,
		0, 0, 1,
	}
}

// Translate4 returns a translation matrix.
func Translate4(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

// Scale4 returns a scaling matrix.
func Scale4(x, y, z float32) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// RotateZ4 returns a rotation about the z axis (angle in radians,
// counter-clockwise).
func RotateZ4(angle float64) Mat4 {
	c := float32(math.Cos(angle))
	s := float32(math.Sin(angle))
	return Mat4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Ortho returns an orthographic projection mapping the box
// [left,right]x[bottom,top]x[near,far] to clip space with depth in [0, 1].
func Ortho(left, right, bottom, top, near, far float32) Mat4 {
	return Mat4{
		2 / (right - left), 0, 0, -(right + left) / (right - left),
		0, 2 / (top - bottom), 0, -(top + bottom) / (top - bottom),
		0, 0, 1 / (far - near), -near / (far - near),
		0, 0, 0, 1,
	}
}

// PixelProjection maps pixel coordinates (origin top-left, y down) of a
// width x height target to clip space. The depth range is [0, 2] so the
// z=1 supplied by the vertex stage lands mid-range.
func PixelProjection(width, height int) Mat4 {
	return Ortho(0, float32(width), float32(height), 0, 0, 2)
}

// Dim implements Matrix.
func (m Mat3) Dim() int { return 3 }

// Dim implements Matrix.
func (m Mat4) Dim() int { return 4 }

// Transpose returns the transposed matrix.
func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t[c*3+r] = m[r*3+c]
		}
	}
	return t
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[c*4+r] = m[r*4+c]
		}
	}
	return t
}

// Mul returns m * o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var p Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var s float32
			for k := 0; k < 3; k++ {
				s += m[r*3+k] * o[k*3+c]
			}
			p[r*3+c] = s
		}
	}
	return p
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var p Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var s float32
			for k := 0; k < 4; k++ {
				s += m[r*4+k] * o[k*4+c]
			}
			p[r*4+c] = s
		}
	}
	return p
}

// MulVec returns m * (x, y, z) treating the argument as a column vector.
func (m Mat3) MulVec(x, y, z float32) (float32, float32, float32) {
	return m[0]*x + m[1]*y + m[2]*z,
		m[3]*x + m[4]*y + m[5]*z,
		m[6]*x + m[7]*y + m[8]*z
}

// MulVec returns m * v treating v as a column vector.
func (m Mat4) MulVec(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3]*v.W,
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7]*v.W,
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11]*v.W,
		W: m[12]*v.X + m[13]*v.Y + m[14]*v.Z + m[15]*v.W,
	}
}

// appendUniform writes the rows of m as the three 16-byte aligned columns
// of a WGSL mat3x3<f32>; the fourth float of each column is padding.
func (m Mat3) appendUniform(buf []byte) []byte {
	for r := 0; r < 3; r++ {
		buf = appendFloats(buf, m[r*3], m[r*3+1], m[r*3+2], 0)
	}
	return buf
}

// appendUniform writes the rows of m as the columns of a WGSL mat4x4<f32>.
func (m Mat4) appendUniform(buf []byte) []byte {
	return appendFloats(buf, m[:]...)
}

func appendFloats(buf []byte, vs ...float32) []byte {
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func readFloat(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}
