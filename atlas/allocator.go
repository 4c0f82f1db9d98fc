package atlas

import "fmt"

// Region is a rectangle of texels in an atlas. The zero Region is invalid.
type Region struct {
	X, Y          int
	Width, Height int
}

// IsValid reports whether the region has a positive area.
func (r Region) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains reports whether the texel (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Overlaps reports whether r and o share at least one texel.
func (r Region) Overlaps(o Region) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// shelf is a horizontal strip of the allocator.
type shelf struct {
	y      int // top edge
	height int // tallest item so far
	x      int // next free column
}

// Allocator packs rectangles into a fixed area with the shelf algorithm:
// rectangles are placed left to right on the first shelf with room, and a
// new shelf is opened below the last one when none has. Only the last shelf
// may grow taller, so regions never overlap.
//
// Allocator is not safe for concurrent use; Atlas serializes access to it.
type Allocator struct {
	width, height int
	padding       int
	shelves       []shelf

	allocCount int
	usedArea   int
}

// NewAllocator creates an allocator for a width x height area. padding
// texels are left free to the right of and below every region.
func NewAllocator(width, height, padding int) *Allocator {
	return &Allocator{
		width:   max(width, 0),
		height:  max(height, 0),
		padding: max(padding, 0),
		shelves: make([]shelf, 0, 16),
	}
}

// Allocate reserves a width x height region. It reports false when the
// size is not positive or no space is left.
func (a *Allocator) Allocate(width, height int) (Region, bool) {
	if width <= 0 || height <= 0 || width > a.width || height > a.height {
		return Region{}, false
	}

	last := len(a.shelves) - 1
	for i := range a.shelves {
		s := &a.shelves[i]
		if s.x+width > a.width {
			continue
		}
		if height > s.height {
			// Only the bottom shelf can grow.
			if i != last || s.y+height > a.height {
				continue
			}
			s.height = height
		}
		return a.place(s, width, height), true
	}

	y := 0
	if last >= 0 {
		y = a.shelves[last].y + a.shelves[last].height + a.padding
	}
	if y+height > a.height {
		return Region{}, false
	}
	a.shelves = append(a.shelves, shelf{y: y, height: height})
	return a.place(&a.shelves[len(a.shelves)-1], width, height), true
}

func (a *Allocator) place(s *shelf, width, height int) Region {
	r := Region{X: s.x, Y: s.y, Width: width, Height: height}
	s.x += width + a.padding
	a.allocCount++
	a.usedArea += width * height
	return r
}

// Reset frees every region.
func (a *Allocator) Reset() {
	a.shelves = a.shelves[:0]
	a.allocCount = 0
	a.usedArea = 0
}

// Size returns the dimensions of the packed area.
func (a *Allocator) Size() (int, int) { return a.width, a.height }

// ShelfCount returns the number of open shelves.
func (a *Allocator) ShelfCount() int { return len(a.shelves) }

// AllocCount returns the number of successful allocations since the last
// Reset.
func (a *Allocator) AllocCount() int { return a.allocCount }

// UsedArea returns the total area of allocated regions, padding excluded.
func (a *Allocator) UsedArea() int { return a.usedArea }

// Utilization returns the fraction of the area in use (0.0 to 1.0).
func (a *Allocator) Utilization() float64 {
	total := a.width * a.height
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}
