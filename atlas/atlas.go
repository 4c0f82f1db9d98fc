package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/gogpu/quad"
)

// Atlas errors.
var (
	// ErrAtlasFull is returned when no region large enough is left.
	ErrAtlasFull = errors.New("atlas: full")

	// ErrEmptyImage is returned when inserting an image without texels.
	ErrEmptyImage = errors.New("atlas: empty image")
)

// Default atlas settings.
const (
	// DefaultSize is the default atlas dimension (1024x1024).
	DefaultSize = 1024

	// MinSize is the smallest atlas dimension.
	MinSize = 64

	// DefaultPadding is the default spacing between regions.
	DefaultPadding = 1
)

// Kind is the texel interpretation of an atlas.
type Kind uint8

const (
	// KindGray stores coverage masks such as glyphs. A texel is stored as
	// premultiplied white with the coverage in alpha, so a TexturedQuad
	// vertex color scales it to color*coverage.
	KindGray Kind = iota

	// KindColor stores RGBA images such as sprites and emoji.
	KindColor
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindGray:
		return "gray"
	case KindColor:
		return "color"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Key identifies an atlas entry. Source separates namespaces (for example
// one per font), ID the item within it and Size the raster size, so one
// glyph at two sizes gets two entries.
type Key struct {
	Source uint64
	ID     uint32
	Size   uint32
}

// Config configures an Atlas.
type Config struct {
	Kind Kind

	// Size is the width and height in texels. Values below MinSize select
	// DefaultSize.
	Size int

	// Padding is the spacing between regions. Negative values select
	// DefaultPadding.
	Padding int
}

// Atlas packs many small images into one texture that TexturedQuad draws
// address by UV rectangle. Entries are inserted once per key and never
// move. The CPU store is exposed as snapshots (Texture) that the software
// renderer samples and the GPU renderer uploads.
//
// Atlas is safe for concurrent use.
type Atlas struct {
	mu sync.Mutex

	kind    Kind
	size    int
	alloc   *Allocator
	store   *image.RGBA
	regions map[Key]Region

	dirty    image.Rectangle
	snapshot *quad.ImageTexture

	hits, misses uint64
}

// New creates an empty atlas.
func New(cfg Config) *Atlas {
	size := cfg.Size
	if size < MinSize {
		size = DefaultSize
	}
	padding := cfg.Padding
	if padding < 0 {
		padding = DefaultPadding
	}
	return &Atlas{
		kind:    cfg.Kind,
		size:    size,
		alloc:   NewAllocator(size, size, padding),
		store:   image.NewRGBA(image.Rect(0, 0, size, size)),
		regions: make(map[Key]Region),
	}
}

// Kind returns the texel interpretation of the atlas.
func (a *Atlas) Kind() Kind { return a.kind }

// Size returns the atlas width and height in texels.
func (a *Atlas) Size() int { return a.size }

// Len returns the number of entries.
func (a *Atlas) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.regions)
}

// Lookup returns the region of key if it was inserted.
func (a *Atlas) Lookup(key Key) (Region, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.regions[key]
	return r, ok
}

// Insert stores img under key and returns its region. If key is already
// present its region is returned and img is ignored.
func (a *Atlas) Insert(key Key, img image.Image) (Region, error) {
	return a.GetOrInsert(key, func() (image.Image, error) { return img, nil })
}

// GetOrInsert returns the region of key, calling load to produce the image
// only when key is not present yet. load runs with the atlas locked and
// must not call back into it.
func (a *Atlas) GetOrInsert(key Key, load func() (image.Image, error)) (Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r, ok := a.regions[key]; ok {
		a.hits++
		return r, nil
	}
	a.misses++

	img, err := load()
	if err != nil {
		return Region{}, err
	}
	if img == nil || img.Bounds().Empty() {
		return Region{}, ErrEmptyImage
	}

	b := img.Bounds()
	r, ok := a.alloc.Allocate(b.Dx(), b.Dy())
	if !ok {
		quad.Logger().Debug("atlas: full", "kind", a.kind, "entries", len(a.regions),
			"width", b.Dx(), "height", b.Dy())
		return Region{}, fmt.Errorf("%w: no room for %dx%d in %s atlas",
			ErrAtlasFull, b.Dx(), b.Dy(), a.kind)
	}

	a.write(r, img)
	a.regions[key] = r
	a.dirty = a.dirty.Union(image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	return r, nil
}

// write copies img into r, converting to the atlas kind.
func (a *Atlas) write(r Region, img image.Image) {
	dst := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
	src := img.Bounds().Min

	if a.kind == KindColor {
		draw.Draw(a.store, dst, img, src, draw.Src)
		return
	}

	mask, isAlpha := img.(*image.Alpha)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			var c uint8
			if isAlpha {
				c = mask.AlphaAt(src.X+x, src.Y+y).A
			} else {
				_, _, _, ca := img.At(src.X+x, src.Y+y).RGBA()
				c = uint8(ca >> 8)
			}
			i := a.store.PixOffset(r.X+x, r.Y+y)
			p := a.store.Pix[i : i+4 : i+4]
			p[0], p[1], p[2], p[3] = c, c, c, c
		}
	}
}

// UV returns the texture coordinates of r in [0,1]², suitable for
// StreamBuilder.PushQuad.
func (a *Atlas) UV(r Region) quad.Rect {
	s := float32(a.size)
	return quad.Rect{
		X: float32(r.X) / s,
		Y: float32(r.Y) / s,
		W: float32(r.Width) / s,
		H: float32(r.Height) / s,
	}
}

// Dirty returns the bounding box of texels written since the last
// snapshot, or an empty rectangle.
func (a *Atlas) Dirty() image.Rectangle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Texture returns a snapshot of the atlas texels. The same snapshot is
// returned until an insert changes the atlas; the next call then returns
// a new one. Snapshots are never modified, so frames that recorded an
// older one still render it. A GPU renderer caches uploads per snapshot;
// release the old one (gpu.Renderer.ReleaseTexture) once it is replaced.
func (a *Atlas) Texture() *quad.ImageTexture {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.snapshot != nil && a.dirty.Empty() {
		return a.snapshot
	}
	pix := image.NewRGBA(a.store.Rect)
	copy(pix.Pix, a.store.Pix)
	a.snapshot = quad.NewImageTexture(pix)
	a.dirty = image.Rectangle{}
	return a.snapshot
}

// Binding returns a texture binding of the current snapshot sampled with
// filter.
func (a *Atlas) Binding(filter quad.Filter) quad.TextureBinding {
	return quad.TextureBinding{Texture: a.Texture(), Sampler: &quad.ImageSampler{Filter: filter}}
}

// Clear removes every entry and zeroes the texels.
func (a *Atlas) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.alloc.Reset()
	clear(a.regions)
	clear(a.store.Pix)
	a.dirty = a.store.Rect
}

// Utilization returns the fraction of texels in use (0.0 to 1.0).
func (a *Atlas) Utilization() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alloc.Utilization()
}

// Stats returns the number of lookups served from existing entries and
// the number that inserted.
func (a *Atlas) Stats() (hits, misses uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits, a.misses
}
