package quad

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/gogpu/quad/internal/parallel"
)

// minBandRows is the smallest band handed to a worker.
const minBandRows = 16

// SoftwareRenderer executes draw commands on the CPU. It runs the same
// vertex and fragment stages as the shaders (EvalVertex, EvalFragment),
// clips triangles to the clip volume, computes their coverage with
// golang.org/x/image/vector and composites premultiplied fragment colors
// source-over, weighted by edge coverage.
//
// Textured draws need an *ImageTexture bound with an *ImageSampler.
//
// With WithWorkers the fragment stage of each command runs in row bands on
// a worker pool; Close stops the pool. Draw order is kept: commands are
// still executed one after another.
type SoftwareRenderer struct {
	width, height int
	opts          options
	pool          *parallel.Pool

	raster *vector.Rasterizer
	mask   *image.Alpha
	best   []float32
	frag   []RGBA
}

// NewSoftwareRenderer creates a renderer for a width x height target.
func NewSoftwareRenderer(width, height int, opts ...Option) *SoftwareRenderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	width, height = max(width, 1), max(height, 1)
	r := &SoftwareRenderer{
		width:  width,
		height: height,
		opts:   o,
		raster: vector.NewRasterizer(width, height),
		mask:   image.NewAlpha(image.Rect(0, 0, width, height)),
		best:   make([]float32, width*height),
		frag:   make([]RGBA, width*height),
	}
	if o.workers > 1 {
		r.pool = parallel.NewPool(o.workers)
	}
	return r
}

// Close stops the worker pool, if any. The renderer keeps working on the
// calling goroutine afterwards.
func (r *SoftwareRenderer) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Size returns the target dimensions.
func (r *SoftwareRenderer) Size() (int, int) { return r.width, r.height }

// Render implements Renderer.
func (r *SoftwareRenderer) Render(cmds []DrawCommand) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(dst, dst.Rect, image.NewUniform(r.opts.clearColor), image.Point{}, draw.Src)

	for i := range cmds {
		if err := r.draw(dst, &cmds[i]); err != nil {
			return nil, fmt.Errorf("draw %d (%s): %w", cmds[i].Seq, cmds[i].Variant, err)
		}
	}
	Logger().Debug("quad: software frame rendered", "draws", len(cmds), "width", r.width, "height", r.height)
	return dst, nil
}

// clipVertex is a vertex after the vertex stage, in clip space.
type clipVertex struct {
	pos Vec4
	in  Varying
}

// screenVertex is a clipped vertex in pixel coordinates.
type screenVertex struct {
	p  Vec2
	in Varying
}

func (r *SoftwareRenderer) draw(dst *image.RGBA, cmd *DrawCommand) error {
	sample, err := r.sampler(cmd)
	if err != nil {
		return err
	}

	verts, err := decodeVertices(cmd.Variant, cmd.Vertices, int(cmd.VertexCount))
	if err != nil {
		return err
	}

	clip := make([]clipVertex, len(verts))
	for i, v := range verts {
		pos, err := EvalVertex(cmd.Variant, cmd.Uniform, v)
		if err != nil {
			return err
		}
		clip[i] = clipVertex{pos: pos, in: Varying{UV: v.UV, Color: v.Color}}
	}

	screen := make([]screenVertex, 0, len(clip))
	for t := 0; t+2 < len(clip); t += 3 {
		poly := clipTriangle([3]clipVertex{clip[t], clip[t+1], clip[t+2]})
		for k := 1; k+1 < len(poly); k++ {
			screen = append(screen, r.toScreen(poly[0]), r.toScreen(poly[k]), r.toScreen(poly[k+1]))
		}
	}
	if len(screen) == 0 {
		return nil
	}

	// One coverage mask for the whole command, so edges shared by adjacent
	// triangles of the same winding accumulate to full coverage.
	bounds := r.coverage(screen)
	if bounds.Empty() {
		return nil
	}

	bands := []image.Rectangle{bounds}
	if r.pool != nil {
		bands = parallel.Bands(bounds, r.pool.Workers()*2, minBandRows)
	}
	errs := make([]error, len(bands))
	tasks := make([]func(), len(bands))
	for i, band := range bands {
		tasks[i] = func() { errs[i] = r.shade(dst, cmd, screen, band, sample) }
	}
	if r.pool != nil {
		r.pool.Run(tasks)
	} else {
		tasks[0]()
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// shade runs the fragment stage for the pixels of band and writes them to
// dst. Bands of one command touch disjoint rows of r.best, r.frag and dst.
func (r *SoftwareRenderer) shade(dst *image.RGBA, cmd *DrawCommand, screen []screenVertex, band image.Rectangle, sample func(Vec2) RGBA) error {
	for y := band.Min.Y; y < band.Max.Y; y++ {
		for x := band.Min.X; x < band.Max.X; x++ {
			r.best[y*r.width+x] = float32(math.Inf(-1))
		}
	}

	// A pixel whose center lies inside a triangle takes that triangle's
	// varyings, later triangles replacing earlier ones. Edge pixels with no
	// containing triangle take the nearest one.
	for t := 0; t+2 < len(screen); t += 3 {
		a, b, c := screen[t], screen[t+1], screen[t+2]
		area := edge(a.p, b.p, c.p)
		if area == 0 {
			continue
		}
		tb := triangleBounds(a, b, c).Inset(-1).Intersect(band)
		for y := tb.Min.Y; y < tb.Max.Y; y++ {
			for x := tb.Min.X; x < tb.Max.X; x++ {
				if r.mask.Pix[r.mask.PixOffset(x, y)] == 0 {
					continue
				}
				px := Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}
				w0 := edge(b.p, c.p, px) / area
				w1 := edge(c.p, a.p, px) / area
				w2 := 1 - w0 - w1
				score := min(w0, w1, w2)
				i := y*r.width + x
				if score < 0 && score <= r.best[i] {
					continue
				}
				r.best[i] = score
				in := interpolate(a.in, b.in, c.in, clamp01(w0), clamp01(w1), clamp01(w2))
				col, err := EvalFragment(cmd.Variant, cmd.Uniform, in, sample)
				if err != nil {
					return err
				}
				r.frag[i] = col
			}
		}
	}

	for y := band.Min.Y; y < band.Max.Y; y++ {
		for x := band.Min.X; x < band.Max.X; x++ {
			cov := r.mask.Pix[r.mask.PixOffset(x, y)]
			i := y*r.width + x
			if cov == 0 || math.IsInf(float64(r.best[i]), -1) {
				continue
			}
			writePixel(dst, x, y, r.frag[i], float32(cov)/255)
		}
	}
	return nil
}

// coverage rasterizes every triangle of the command into r.mask and returns
// the pixel bounds touched.
func (r *SoftwareRenderer) coverage(screen []screenVertex) image.Rectangle {
	r.raster.Reset(r.width, r.height)
	r.raster.DrawOp = draw.Src

	var bounds image.Rectangle
	for t := 0; t+2 < len(screen); t += 3 {
		a, b, c := screen[t], screen[t+1], screen[t+2]
		if edge(a.p, b.p, c.p) == 0 {
			continue
		}
		r.raster.MoveTo(a.p.X, a.p.Y)
		r.raster.LineTo(b.p.X, b.p.Y)
		r.raster.LineTo(c.p.X, c.p.Y)
		r.raster.ClosePath()
		bounds = bounds.Union(triangleBounds(a, b, c))
	}
	bounds = bounds.Intersect(r.mask.Rect)
	if bounds.Empty() {
		return bounds
	}
	r.raster.Draw(r.mask, r.mask.Rect, image.Opaque, image.Point{})
	return bounds
}

// sampler resolves the texture binding of cmd into a CPU sample function.
func (r *SoftwareRenderer) sampler(cmd *DrawCommand) (func(Vec2) RGBA, error) {
	if !cmd.Variant.Layout().Textured {
		return nil, nil
	}
	if cmd.Texture == nil || !cmd.Texture.complete() {
		return nil, ErrUnboundResource
	}
	tex, ok := cmd.Texture.Texture.(*ImageTexture)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTexture, cmd.Texture.Texture)
	}
	s, ok := cmd.Texture.Sampler.(*ImageSampler)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTexture, cmd.Texture.Sampler)
	}
	return func(uv Vec2) RGBA { return s.Sample(tex, uv) }, nil
}

// decodeVertices is the inverse of Stream.Bytes.
func decodeVertices(v Variant, data []byte, count int) ([]Vertex, error) {
	l := v.Layout()
	if l.VertexStride == 0 || len(data) < count*l.VertexStride {
		return nil, fmt.Errorf("%w: %d bytes for %d vertices of %s",
			ErrAttributeMismatch, len(data), count, v)
	}
	out := make([]Vertex, count)
	for i := range out {
		off := i * l.VertexStride
		vert := V(readFloat(data, off), readFloat(data, off+4))
		off += 8
		if l.Attrs.Has(AttrUV) {
			vert = vert.WithUV(readFloat(data, off), readFloat(data, off+4))
			off += 8
		}
		if l.Attrs.Has(AttrColor) {
			vert = vert.WithColor(RGBA{
				R: readFloat(data, off),
				G: readFloat(data, off+4),
				B: readFloat(data, off+8),
				A: readFloat(data, off+12),
			})
		}
		out[i] = vert
	}
	return out, nil
}

// edge is twice the signed area of (a, b, p).
func edge(a, b, p Vec2) float32 {
	return b.Sub(a).Cross(p.Sub(a))
}

func triangleBounds(a, b, c screenVertex) image.Rectangle {
	minX := math.Floor(float64(min(a.p.X, b.p.X, c.p.X)))
	minY := math.Floor(float64(min(a.p.Y, b.p.Y, c.p.Y)))
	maxX := math.Ceil(float64(max(a.p.X, b.p.X, c.p.X)))
	maxY := math.Ceil(float64(max(a.p.Y, b.p.Y, c.p.Y)))
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}

// toScreen divides by w and maps normalized device coordinates to pixels,
// y pointing down.
func (r *SoftwareRenderer) toScreen(v clipVertex) screenVertex {
	ndc := v.pos.XY().Scale(1 / v.pos.W)
	return screenVertex{
		p: Vec2{
			X: (ndc.X + 1) * 0.5 * float32(r.width),
			Y: (1 - ndc.Y) * 0.5 * float32(r.height),
		},
		in: v.in,
	}
}

// minClipW keeps the perspective divide finite.
const minClipW = 1e-6

// clipPlanes are the signed distances to the planes of the clip volume
// -w <= x, y <= w, 0 <= z <= w. A vertex is inside a plane when its
// distance is not negative.
var clipPlanes = [...]func(Vec4) float32{
	func(p Vec4) float32 { return p.W + p.X },
	func(p Vec4) float32 { return p.W - p.X },
	func(p Vec4) float32 { return p.W + p.Y },
	func(p Vec4) float32 { return p.W - p.Y },
	func(p Vec4) float32 { return p.Z },
	func(p Vec4) float32 { return p.W - p.Z },
	func(p Vec4) float32 { return p.W - minClipW },
}

// depthPlanes are the clipPlanes a triangle is cut against. Crossings of
// the x and y planes are left to the coverage rasterizer, which clips to
// the target.
var depthPlanes = clipPlanes[4:]

// clipTriangle returns the part of tri inside the clip volume as a convex
// polygon, or nil when nothing is visible.
func clipTriangle(tri [3]clipVertex) []clipVertex {
	inside := true
	for _, dist := range clipPlanes {
		d0, d1, d2 := dist(tri[0].pos), dist(tri[1].pos), dist(tri[2].pos)
		if d0 < 0 && d1 < 0 && d2 < 0 {
			return nil
		}
		inside = inside && d0 >= 0 && d1 >= 0 && d2 >= 0
	}
	if inside {
		return tri[:]
	}

	poly := tri[:]
	for _, dist := range depthPlanes {
		poly = clipPolygon(poly, dist)
		if len(poly) < 3 {
			return nil
		}
	}
	return poly
}

// clipPolygon keeps the part of poly on the inner side of one plane.
func clipPolygon(poly []clipVertex, dist func(Vec4) float32) []clipVertex {
	out := make([]clipVertex, 0, len(poly)+1)
	for i, cur := range poly {
		next := poly[(i+1)%len(poly)]
		dc, dn := dist(cur.pos), dist(next.pos)
		if dc >= 0 {
			out = append(out, cur)
		}
		if (dc >= 0) != (dn >= 0) {
			out = append(out, lerpClip(cur, next, dc/(dc-dn)))
		}
	}
	return out
}

func lerpClip(a, b clipVertex, t float32) clipVertex {
	return clipVertex{
		pos: Vec4{
			X: a.pos.X + (b.pos.X-a.pos.X)*t,
			Y: a.pos.Y + (b.pos.Y-a.pos.Y)*t,
			Z: a.pos.Z + (b.pos.Z-a.pos.Z)*t,
			W: a.pos.W + (b.pos.W-a.pos.W)*t,
		},
		in: Varying{
			UV:    a.in.UV.Add(b.in.UV.Sub(a.in.UV).Scale(t)),
			Color: a.in.Color.Scale(1 - t).Add(b.in.Color.Scale(t)),
		},
	}
}

func interpolate(a, b, c Varying, w0, w1, w2 float32) Varying {
	sum := w0 + w1 + w2
	if sum == 0 {
		return a
	}
	w0, w1, w2 = w0/sum, w1/sum, w2/sum
	return Varying{
		UV: Vec2{
			X: a.UV.X*w0 + b.UV.X*w1 + c.UV.X*w2,
			Y: a.UV.Y*w0 + b.UV.Y*w1 + c.UV.Y*w2,
		},
		Color: a.Color.Scale(w0).Add(b.Color.Scale(w1)).Add(c.Color.Scale(w2)),
	}
}

func clamp01(x float32) float32 {
	return min(max(x, 0), 1)
}

// writePixel composites the premultiplied color c, scaled by edge
// coverage, over the pixel (source-over). This is the blend state of the
// GPU pipelines: src + dst*(1-src.A) on every channel.
func writePixel(dst *image.RGBA, x, y int, c RGBA, cov float32) {
	i := dst.PixOffset(x, y)
	p := dst.Pix[i : i+4 : i+4]
	src := c.Scale(cov).Array()
	keep := 1 - src[3]
	for k := range p {
		p[k] = to8(src[k] + float32(p[k])/255*keep)
	}
}
