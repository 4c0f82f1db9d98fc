package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // scene images may be JPEG
	_ "image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/gofont/goregular"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/quad"
	"github.com/gogpu/quad/atlas"
	"github.com/gogpu/quad/text"
)

const defaultSceneSize = 256

// Scene is the YAML description of one frame.
type Scene struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Clear  string `yaml:"clear,omitempty"`
	Draws  []Draw `yaml:"draws"`
}

// Draw is one draw call of a scene. Which fields apply depends on the
// variant:
//
//	FlatTriangle    color, transform (scale and translate only)
//	FlatQuad2D      quads, projection, transform
//	FlatQuad3DView  color, projection, transform (the view matrix)
//	TexturedQuad    image + quads, or text; projection, transform
type Draw struct {
	Variant    string     `yaml:"variant"`
	Color      string     `yaml:"color,omitempty"`
	Projection string     `yaml:"projection,omitempty"`
	Transform  *Transform `yaml:"transform,omitempty"`
	Quads      []Quad     `yaml:"quads,omitempty"`
	Image      string     `yaml:"image,omitempty"`
	Filter     string     `yaml:"filter,omitempty"`
	Text       *Text      `yaml:"text,omitempty"`
}

// Transform is translate * rotate * scale.
type Transform struct {
	Translate [2]float32 `yaml:"translate,omitempty"`
	Scale     []float32  `yaml:"scale,omitempty"`
	Rotate    float64    `yaml:"rotate,omitempty"` // degrees, counter-clockwise
}

// Quad is an axis-aligned rectangle [x, y, w, h] with an optional texture
// rectangle in [0,1]².
type Quad struct {
	Rect  [4]float32 `yaml:"rect"`
	UV    []float32  `yaml:"uv,omitempty"`
	Color string     `yaml:"color,omitempty"`
}

// Text is a single line of text drawn with TexturedQuad.
type Text struct {
	Value string     `yaml:"value"`
	Size  float32    `yaml:"size,omitempty"`
	At    [2]float32 `yaml:"at"`
	Font  string     `yaml:"font,omitempty"`
}

// LoadScene reads and validates a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	s, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScene decodes a YAML scene and fills in defaults.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if s.Width <= 0 {
		s.Width = defaultSceneSize
	}
	if s.Height <= 0 {
		s.Height = defaultSceneSize
	}
	for i := range s.Draws {
		if _, err := parseVariant(s.Draws[i].Variant); err != nil {
			return nil, fmt.Errorf("draw %d: %w", i, err)
		}
	}
	return &s, nil
}

// ClearColor returns the clear color, opaque black by default.
func (s *Scene) ClearColor() quad.RGBA {
	if s.Clear == "" {
		return quad.Black
	}
	return quad.Hex(s.Clear)
}

var variantAliases = map[string]quad.Variant{
	"triangle": quad.FlatTriangle,
	"quad2d":   quad.FlatQuad2D,
	"quad3d":   quad.FlatQuad3DView,
	"textured": quad.TexturedQuad,
}

func parseVariant(name string) (quad.Variant, error) {
	if v, ok := variantAliases[strings.ToLower(name)]; ok {
		return v, nil
	}
	for _, v := range quad.Variants() {
		if strings.EqualFold(v.String(), name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", quad.ErrUnknownVariant, name)
}

func parseFilter(name string) (quad.Filter, error) {
	switch strings.ToLower(name) {
	case "", "linear":
		return quad.FilterLinear, nil
	case "nearest":
		return quad.FilterNearest, nil
	default:
		return 0, fmt.Errorf("unknown filter %q", name)
	}
}

// builder turns scene draws into frame commands. Image paths and font
// paths are relative to dir.
type builder struct {
	scene  *Scene
	dir    string
	glyphs *atlas.Atlas
	shaper *text.Shaper
	fonts  map[string]*text.Font
	images map[string]*quad.ImageTexture
}

func newBuilder(s *Scene, dir string) *builder {
	return &builder{
		scene:  s,
		dir:    dir,
		glyphs: atlas.New(atlas.Config{Kind: atlas.KindGray}),
		shaper: text.NewShaper(),
		fonts:  make(map[string]*text.Font),
		images: make(map[string]*quad.ImageTexture),
	}
}

// Build records every draw of the scene into frame index and ends it.
func (b *builder) Build(index uint64) ([]quad.DrawCommand, error) {
	f := quad.NewFrame(index)
	for i, d := range b.scene.Draws {
		if err := b.draw(f, d); err != nil {
			return nil, fmt.Errorf("draw %d (%s): %w", i, d.Variant, err)
		}
	}
	return f.End()
}

// logStats reports glyph atlas and font cache usage after Build.
func (b *builder) logStats(logger *slog.Logger) {
	hits, misses := b.glyphs.Stats()
	logger.Debug("glyph atlas", "glyphs", b.glyphs.Len(), "utilization", b.glyphs.Utilization(),
		"hits", hits, "misses", misses)
	for path, f := range b.fonts {
		hits, misses := f.Stats()
		logger.Debug("glyph bounds cache", "font", f.Name(), "path", path, "hits", hits, "misses", misses)
	}
}

func (b *builder) draw(f *quad.Frame, d Draw) error {
	v, err := parseVariant(d.Variant)
	if err != nil {
		return err
	}
	g, err := b.globals(v, d)
	if err != nil {
		return err
	}
	if err := f.SetGlobals(v, g); err != nil {
		return err
	}

	var sb quad.StreamBuilder
	if err := sb.BeginShape(v); err != nil {
		return err
	}

	if v == quad.TexturedQuad {
		binding, err := b.texture(&sb, d)
		if err != nil {
			return err
		}
		if err := f.BindTexture(binding); err != nil {
			return err
		}
	} else {
		for _, q := range d.Quads {
			if err := sb.PushQuad(rect(q.Rect), color(q.Color, quad.White), quad.Rect{}); err != nil {
				return err
			}
		}
	}

	s, err := sb.Finish()
	if err != nil {
		return err
	}
	return f.Draw(v, s)
}

// texture pushes the geometry of a textured draw and returns its binding.
func (b *builder) texture(sb *quad.StreamBuilder, d Draw) (quad.TextureBinding, error) {
	filter, err := parseFilter(d.Filter)
	if err != nil {
		return quad.TextureBinding{}, err
	}

	if d.Text != nil {
		if d.Image != "" {
			return quad.TextureBinding{}, errors.New("text and image are exclusive")
		}
		run, err := b.shape(d.Text)
		if err != nil {
			return quad.TextureBinding{}, err
		}
		at := quad.Vec2{X: d.Text.At[0], Y: d.Text.At[1]}
		if err := run.Quads(sb, b.glyphs, at, color(d.Color, quad.White)); err != nil {
			return quad.TextureBinding{}, err
		}
		return b.glyphs.Binding(filter), nil
	}

	if d.Image == "" {
		return quad.TextureBinding{}, fmt.Errorf("%w: textured draw needs an image or text", quad.ErrUnboundResource)
	}
	tex, err := b.image(d.Image)
	if err != nil {
		return quad.TextureBinding{}, err
	}
	for _, q := range d.Quads {
		var uv quad.Rect
		if len(q.UV) == 4 {
			uv = rect([4]float32(q.UV))
		}
		if err := sb.PushQuad(rect(q.Rect), color(q.Color, quad.White), uv); err != nil {
			return quad.TextureBinding{}, err
		}
	}
	return quad.TextureBinding{Texture: tex, Sampler: &quad.ImageSampler{Filter: filter}}, nil
}

func (b *builder) shape(t *Text) (*text.Run, error) {
	f, err := b.font(t.Font)
	if err != nil {
		return nil, err
	}
	size := t.Size
	if size <= 0 {
		size = 16
	}
	return b.shaper.Shape(f, t.Value, size)
}

func (b *builder) font(path string) (*text.Font, error) {
	if f, ok := b.fonts[path]; ok {
		return f, nil
	}
	data := goregular.TTF
	if path != "" {
		var err error
		if data, err = os.ReadFile(b.resolve(path)); err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
	}
	f, err := text.ParseFont(data)
	if err != nil {
		return nil, err
	}
	b.fonts[path] = f
	return f, nil
}

func (b *builder) image(path string) (*quad.ImageTexture, error) {
	if t, ok := b.images[path]; ok {
		return t, nil
	}
	file, err := os.Open(b.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	t := quad.NewImageTexture(img)
	b.images[path] = t
	return t, nil
}

func (b *builder) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.dir, path)
}

// globals derives the uniform data of a draw. Caller-geometry variants
// default to pixel coordinates; the fixed shapes default to clip space.
func (b *builder) globals(v quad.Variant, d Draw) (quad.Globals, error) {
	var g quad.Globals
	l := v.Layout()
	if l.HasColor {
		c := color(d.Color, quad.White)
		g.Color = &c
	}

	if l.ProjectionDim == 3 {
		if d.Transform != nil && d.Transform.Rotate != 0 {
			return g, fmt.Errorf("%w: %s transform cannot rotate", quad.ErrLayoutMismatch, v)
		}
		sx, sy, tx, ty := float32(1), float32(1), float32(0), float32(0)
		if d.Transform != nil {
			sx, sy = d.Transform.scale()
			tx, ty = d.Transform.Translate[0], d.Transform.Translate[1]
		}
		g.Projection = quad.Affine3(sx, sy, tx, ty)
		return g, nil
	}

	proj := quad.Identity4()
	switch strings.ToLower(d.Projection) {
	case "":
		if !v.FixedGeometry() {
			proj = quad.PixelProjection(b.scene.Width, b.scene.Height)
		}
	case "pixels":
		proj = quad.PixelProjection(b.scene.Width, b.scene.Height)
	case "identity":
	default:
		return g, fmt.Errorf("unknown projection %q", d.Projection)
	}

	model := quad.Identity4()
	if d.Transform != nil {
		model = d.Transform.matrix()
	}
	if l.HasView {
		g.View = &model
		g.Projection = proj
	} else {
		g.Projection = proj.Mul(model)
	}
	return g, nil
}

func (t *Transform) scale() (float32, float32) {
	switch len(t.Scale) {
	case 0:
		return 1, 1
	case 1:
		return t.Scale[0], t.Scale[0]
	default:
		return t.Scale[0], t.Scale[1]
	}
}

func (t *Transform) matrix() quad.Mat4 {
	sx, sy := t.scale()
	m := quad.Translate4(t.Translate[0], t.Translate[1], 0)
	m = m.Mul(quad.RotateZ4(t.Rotate * math.Pi / 180))
	return m.Mul(quad.Scale4(sx, sy, 1))
}

func rect(r [4]float32) quad.Rect {
	return quad.Rect{X: r[0], Y: r[1], W: r[2], H: r[3]}
}

func color(hex string, def quad.RGBA) quad.RGBA {
	if hex == "" {
		return def
	}
	return quad.Hex(hex)
}
