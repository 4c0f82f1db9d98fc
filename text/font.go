package text

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"sync"

	"github.com/go-text/typesetting/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/gogpu/quad/internal/cache"
)

// Errors returned by the text package.
var (
	// ErrNilFont is returned when a nil font is passed.
	ErrNilFont = errors.New("text: nil font")

	// ErrInvalidSize is returned for a font size that is not positive.
	ErrInvalidSize = errors.New("text: font size must be positive")

	// ErrAtlasKind is returned when glyphs are placed into a color atlas.
	ErrAtlasKind = errors.New("text: glyphs need a gray atlas")
)

// Font is a parsed TrueType or OpenType font. The same data is parsed
// twice: by go-text/typesetting for shaping and by x/image/font/sfnt for
// outlines.
//
// Font is safe for concurrent use.
type Font struct {
	id     uint64
	name   string
	shaped *font.Font
	sfnt   *sfnt.Font

	mu  sync.Mutex
	buf sfnt.Buffer

	bounds *cache.Cache[glyphKey, image.Rectangle]
}

// boundsCacheSize bounds the glyph measurements kept per font.
const boundsCacheSize = 4096

type glyphKey struct {
	gid  uint32
	size uint32
}

// ParseFont parses font data. The data is not retained.
func ParseFont(data []byte) (*Font, error) {
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("text: failed to parse font: %w", err)
	}
	sf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("text: failed to parse font outlines: %w", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(data)

	f := &Font{
		id:     h.Sum64(),
		shaped: face.Font,
		sfnt:   sf,
		bounds: cache.New[glyphKey, image.Rectangle](boundsCacheSize),
	}
	if name, err := sf.Name(nil, sfnt.NameIDFamily); err == nil {
		f.name = name
	}
	return f, nil
}

// ID returns a hash of the font data. Fonts parsed from the same bytes
// share an ID, and with it their atlas entries.
func (f *Font) ID() uint64 { return f.id }

// Stats returns the hit and miss counts of the glyph bounds cache.
func (f *Font) Stats() (hits, misses uint64) {
	s := f.bounds.Stats()
	return s.Hits, s.Misses
}

// Name returns the family name, or "" when the font has none.
func (f *Font) Name() string { return f.name }

// GlyphIndex returns the glyph of r, or 0 (.notdef) if the font lacks it.
func (f *Font) GlyphIndex(r rune) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, err := f.sfnt.GlyphIndex(&f.buf, r)
	if err != nil {
		return 0
	}
	return uint32(idx)
}
