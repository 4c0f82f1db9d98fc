package quad

// Vec2 is a 2-component float vector, used for positions and texture
// coordinates.
type Vec2 struct {
	X, Y float32
}

// Vec4 is a 4-component float vector in homogeneous coordinates.
type Vec4 struct {
	X, Y, Z, W float32
}

// Add returns the component-wise sum of two vectors.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{X: v.X + w.X, Y: v.Y + w.Y}
}

// Sub returns the component-wise difference of two vectors.
func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{X: v.X - w.X, Y: v.Y - w.Y}
}

// Scale multiplies both components by s.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Cross returns the z component of the 3D cross product of v and w.
// The sign gives the winding of the turn from v to w.
func (v Vec2) Cross(w Vec2) float32 {
	return v.X*w.Y - v.Y*w.X
}

// XY drops the z and w components.
func (v Vec4) XY() Vec2 {
	return Vec2{X: v.X, Y: v.Y}
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y, W, H float32
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// UnitRect covers the whole texture in UV space.
var UnitRect = Rect{X: 0, Y: 0, W: 1, H: 1}
