package text

import (
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/text/unicode/norm"
)

// Shaper turns strings into positioned glyph runs with HarfBuzz shaping
// from go-text/typesetting, so kerning and ligatures are applied.
//
// Text is NFC-normalized before shaping. Runs are single lines laid out
// left to right; line breaking and bidi reordering are left to the caller.
//
// Shaper is safe for concurrent use. HarfbuzzShaper instances are pooled
// since they are not.
type Shaper struct {
	pool sync.Pool
	lang language.Language
}

// NewShaper creates a shaper for English text.
func NewShaper() *Shaper {
	return NewShaperLanguage(language.NewLanguage("en"))
}

// NewShaperLanguage creates a shaper for text in lang, which selects
// language-specific OpenType features.
func NewShaperLanguage(lang language.Language) *Shaper {
	return &Shaper{
		pool: sync.Pool{
			New: func() any { return &shaping.HarfbuzzShaper{} },
		},
		lang: lang,
	}
}

// Shape shapes s with f at size pixels per em. An empty string yields a
// run without glyphs.
func (sh *Shaper) Shape(f *Font, s string, size float32) (*Run, error) {
	if f == nil {
		return nil, ErrNilFont
	}
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	m, err := f.Metrics(size)
	if err != nil {
		return nil, err
	}

	s = norm.NFC.String(s)
	run := &Run{
		Font:    f,
		Size:    size,
		Text:    s,
		Ascent:  m.Ascent,
		Descent: m.Descent,
	}
	if s == "" {
		return run, nil
	}

	runes := []rune(s)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      font.NewFace(f.shaped),
		Size:      toFixed(size),
		Script:    detectScript(runes),
		Language:  sh.lang,
	}

	hb := sh.pool.Get().(*shaping.HarfbuzzShaper)
	output := hb.Shape(input)
	sh.pool.Put(hb)

	run.Glyphs = make([]Glyph, len(output.Glyphs))
	var x float32
	for i, g := range output.Glyphs {
		adv := fromFixed(g.Advance)
		run.Glyphs[i] = Glyph{
			ID:      uint32(g.GlyphID),
			Cluster: g.TextIndex(),
			X:       x + fromFixed(g.XOffset),
			Y:       -fromFixed(g.YOffset), // shaping offsets are y up
			Advance: adv,
		}
		x += adv
	}
	run.Advance = x
	return run, nil
}

// detectScript returns the script of the first non-space rune. Mixed-script
// text should be split into runs by the caller.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
