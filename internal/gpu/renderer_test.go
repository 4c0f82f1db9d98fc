//go:build !nogpu

package gpu

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/quad"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestRenderer(t *testing.T, cfg Config) *Renderer {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	r, err := NewRenderer(device, queue, cfg)
	if err != nil {
		cleanup()
		t.Fatalf("NewRenderer failed: %v", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		cleanup()
	})
	return r
}

func ptr[T any](v T) *T { return &v }

func globalsFor(v quad.Variant) quad.Globals {
	switch v {
	case quad.FlatTriangle:
		return quad.Globals{Color: ptr(quad.Red), Projection: quad.Identity3()}
	case quad.FlatQuad3DView:
		return quad.Globals{Color: ptr(quad.Red), Projection: quad.PixelProjection(64, 64), View: ptr(quad.Identity4())}
	default:
		return quad.Globals{Projection: quad.PixelProjection(64, 64)}
	}
}

func streamFor(t *testing.T, v quad.Variant) quad.Stream {
	t.Helper()
	var b quad.StreamBuilder
	if err := b.BeginShape(v); err != nil {
		t.Fatal(err)
	}
	if !v.FixedGeometry() {
		if err := b.PushQuad(quad.Rect{X: 8, Y: 8, W: 16, H: 16}, quad.Green, quad.Rect{}); err != nil {
			t.Fatal(err)
		}
	}
	s, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// frameWith draws one shape of every given variant into a new frame.
func frameWith(t *testing.T, tex quad.TextureBinding, variants ...quad.Variant) []quad.DrawCommand {
	t.Helper()
	f := quad.NewFrame(1)
	if tex.Texture != nil {
		if err := f.BindTexture(tex); err != nil {
			t.Fatal(err)
		}
	}
	for _, v := range variants {
		if err := f.SetGlobals(v, globalsFor(v)); err != nil {
			t.Fatal(err)
		}
		if err := f.Draw(v, streamFor(t, v)); err != nil {
			t.Fatalf("Draw(%s): %v", v, err)
		}
	}
	cmds, err := f.End()
	if err != nil {
		t.Fatal(err)
	}
	return cmds
}

func checker() quad.TextureBinding {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	img.Set(1, 1, color.White)
	return quad.TextureBinding{Texture: quad.NewImageTexture(img), Sampler: &quad.ImageSampler{}}
}

func TestNewRendererDefaults(t *testing.T) {
	r := newTestRenderer(t, Config{})
	if r.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", r.Format())
	}
	w, h := r.Size()
	if w != 1 || h != 1 {
		t.Errorf("Size() = (%d, %d), want (1, 1)", w, h)
	}
	for v, p := range r.pipelines {
		if p != nil {
			t.Errorf("pipeline %d allocated before first frame", v)
		}
	}
}

func TestNewRendererNilDevice(t *testing.T) {
	if _, err := NewRenderer(nil, nil, Config{}); err == nil {
		t.Fatal("expected error for nil device")
	}
}

func TestRendererEmptyFrame(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 32, Height: 16})

	img, err := r.Render(nil)
	if err != nil {
		t.Fatalf("Render(nil) failed: %v", err)
	}
	if img.Rect.Dx() != 32 || img.Rect.Dy() != 16 {
		t.Errorf("image bounds = %v, want 32x16", img.Rect)
	}
	if r.target.tex == nil {
		t.Error("expected target texture after Render")
	}
}

func TestRendererEveryVariant(t *testing.T) {
	for _, v := range quad.Variants() {
		t.Run(v.String(), func(t *testing.T) {
			r := newTestRenderer(t, Config{Width: 64, Height: 64})
			var tex quad.TextureBinding
			if v == quad.TexturedQuad {
				tex = checker()
			}
			cmds := frameWith(t, tex, v)
			if _, err := r.Render(cmds); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if r.pipelines[v] == nil || r.pipelines[v].pipeline == nil {
				t.Errorf("expected %s pipeline after render", v)
			}
			for _, other := range quad.Variants() {
				if other != v && r.pipelines[other] != nil {
					t.Errorf("unexpected %s pipeline", other)
				}
			}
		})
	}
}

func TestRendererMixedFrame(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 64, Height: 64})
	cmds := frameWith(t, checker(), quad.Variants()...)

	res, err := r.buildResources(cmds)
	if err != nil {
		t.Fatalf("buildResources failed: %v", err)
	}
	defer res.destroy(r.device)

	if len(res.draws) != len(cmds) {
		t.Fatalf("draws = %d, want %d", len(res.draws), len(cmds))
	}
	var offset uint64
	for i, d := range res.draws {
		if d.offset != offset {
			t.Errorf("draw %d offset = %d, want %d", i, d.offset, offset)
		}
		if d.count != cmds[i].VertexCount {
			t.Errorf("draw %d count = %d, want %d", i, d.count, cmds[i].VertexCount)
		}
		offset += uint64(len(cmds[i].Vertices))
	}
	// One globals generation per variant, one texture bind group.
	if len(res.uniformBufs) != quad.VariantCount {
		t.Errorf("uniform buffers = %d, want %d", len(res.uniformBufs), quad.VariantCount)
	}
	if len(res.bindGroups) != quad.VariantCount+1 {
		t.Errorf("bind groups = %d, want %d", len(res.bindGroups), quad.VariantCount+1)
	}

	if _, err := r.Render(cmds); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
}

func TestRendererUniformGenerations(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 64, Height: 64})

	f := quad.NewFrame(2)
	v := quad.FlatQuad2D
	s := streamFor(t, v)
	if err := f.SetGlobals(v, globalsFor(v)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := f.Draw(v, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SetGlobals(v, quad.Globals{Projection: quad.Identity4()}); err != nil {
		t.Fatal(err)
	}
	if err := f.Draw(v, s); err != nil {
		t.Fatal(err)
	}
	cmds, _ := f.End()

	res, err := r.buildResources(cmds)
	if err != nil {
		t.Fatalf("buildResources failed: %v", err)
	}
	defer res.destroy(r.device)

	if len(res.uniformBufs) != 2 {
		t.Errorf("uniform buffers = %d, want 2", len(res.uniformBufs))
	}
}

func TestRendererRejectsInvalidCommands(t *testing.T) {
	valid := frameWith(t, quad.TextureBinding{}, quad.FlatQuad2D)[0]

	tests := []struct {
		name   string
		modify func(*quad.DrawCommand)
		want   error
	}{
		{"unknown variant", func(c *quad.DrawCommand) { c.Variant = quad.Variant(42) }, quad.ErrUnknownVariant},
		{"short uniform", func(c *quad.DrawCommand) { c.Uniform = c.Uniform[:8] }, quad.ErrLayoutMismatch},
		{"no vertices", func(c *quad.DrawCommand) { c.VertexCount = 0 }, quad.ErrEmptyShape},
		{"short vertices", func(c *quad.DrawCommand) { c.Vertices = c.Vertices[:10] }, quad.ErrAttributeMismatch},
		{"textured without binding", func(c *quad.DrawCommand) {
			c.Variant = quad.TexturedQuad
			c.Vertices = make([]byte, 6*quad.TexturedQuad.Layout().VertexStride)
			c.VertexCount = 6
		}, quad.ErrUnboundResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t, Config{Width: 8, Height: 8})
			cmd := valid
			cmd.Vertices = append([]byte(nil), valid.Vertices...)
			tt.modify(&cmd)
			_, err := r.Render([]quad.DrawCommand{cmd})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Render error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRendererUnsupportedTexture(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 8, Height: 8})
	cmds := frameWith(t, quad.TextureBinding{Texture: fakeView(1), Sampler: fakeView(2)}, quad.TexturedQuad)

	_, err := r.Render(cmds)
	if !errors.Is(err, quad.ErrUnsupportedTexture) {
		t.Fatalf("Render error = %v, want ErrUnsupportedTexture", err)
	}
}

// fakeView is a handle the renderer cannot resolve.
type fakeView uintptr

func (v fakeView) NativeHandle() uintptr { return uintptr(v) }

func TestRendererImageTextureCached(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 16, Height: 16})
	tex := checker()
	cmds := frameWith(t, tex, quad.TexturedQuad)

	for i := 0; i < 2; i++ {
		if _, err := r.Render(cmds); err != nil {
			t.Fatalf("Render %d failed: %v", i, err)
		}
	}
	if len(r.textures.uploads) != 1 {
		t.Errorf("uploads = %d, want 1", len(r.textures.uploads))
	}
	if len(r.textures.samplers) != 1 {
		t.Errorf("samplers = %d, want 1", len(r.textures.samplers))
	}
}

func TestRendererReleaseTexture(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 16, Height: 16})
	tex := checker()
	cmds := frameWith(t, tex, quad.TexturedQuad)

	if _, err := r.Render(cmds); err != nil {
		t.Fatal(err)
	}
	img := tex.Texture.(*quad.ImageTexture)
	r.ReleaseTexture(img)
	if len(r.textures.uploads) != 0 {
		t.Fatalf("uploads = %d after release, want 0", len(r.textures.uploads))
	}
	r.ReleaseTexture(img)
	r.ReleaseTexture(nil)

	if _, err := r.Render(cmds); err != nil {
		t.Fatal(err)
	}
	if len(r.textures.uploads) != 1 {
		t.Errorf("uploads = %d after re-render, want 1", len(r.textures.uploads))
	}
}

func TestRendererNewTexture(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 16, Height: 16})

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	tex, err := r.NewTexture(img, quad.FilterNearest)
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	defer tex.Destroy()

	if w, h := tex.Size(); w != 4 || h != 3 {
		t.Errorf("Size() = (%d, %d), want (4, 3)", w, h)
	}
	cmds := frameWith(t, tex.Binding(), quad.TexturedQuad)
	if _, err := r.Render(cmds); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(r.textures.uploads) != 0 {
		t.Error("device texture should not be uploaded again")
	}

	tex.Destroy()
	tex.Destroy()
}

func TestRendererNewTextureEmpty(t *testing.T) {
	r := newTestRenderer(t, Config{})
	_, err := r.NewTexture(image.NewRGBA(image.Rectangle{}), quad.FilterLinear)
	if !errors.Is(err, quad.ErrUnsupportedTexture) {
		t.Fatalf("NewTexture error = %v, want ErrUnsupportedTexture", err)
	}
}

func TestRendererResize(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 32, Height: 32})
	if _, err := r.Render(nil); err != nil {
		t.Fatal(err)
	}

	r.Resize(100, 50)
	img, err := r.Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if img.Rect.Dx() != 100 || img.Rect.Dy() != 50 {
		t.Errorf("image bounds = %v, want 100x50", img.Rect)
	}
	if r.target.width != 100 || r.target.height != 50 {
		t.Errorf("target = %dx%d, want 100x50", r.target.width, r.target.height)
	}

	r.Resize(0, -3)
	if w, h := r.Size(); w != 1 || h != 1 {
		t.Errorf("Size() after Resize(0, -3) = (%d, %d), want (1, 1)", w, h)
	}
}

func TestRendererSurface(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 64, Height: 64})

	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_surface",
		Size:          hal.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        r.Format(),
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.device.DestroyTexture(tex)
	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "test_surface_view"})
	if err != nil {
		t.Fatal(err)
	}
	defer r.device.DestroyTextureView(view)

	cmds := frameWith(t, quad.TextureBinding{}, quad.FlatTriangle, quad.FlatQuad2D)
	if err := r.RenderToSurface(view, cmds); err != nil {
		t.Fatalf("RenderToSurface failed: %v", err)
	}
	if r.target.tex != nil {
		t.Error("surface rendering should not allocate the offscreen target")
	}
	if err := r.RenderToSurface(nil, cmds); err == nil {
		t.Error("expected error for nil surface view")
	}
}

func TestRendererDestroyIdempotent(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r, err := NewRenderer(device, queue, Config{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render(frameWith(t, checker(), quad.TexturedQuad)); err != nil {
		t.Fatal(err)
	}

	r.Destroy()
	r.Destroy()

	for v, p := range r.pipelines {
		if p != nil {
			t.Errorf("pipeline %d not released", v)
		}
	}
	if r.target.tex != nil {
		t.Error("target not released")
	}
	if _, err := r.Render(nil); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Render after Destroy = %v, want ErrDestroyed", err)
	}
	if _, err := r.NewTexture(image.NewRGBA(image.Rect(0, 0, 1, 1)), quad.FilterLinear); !errors.Is(err, ErrDestroyed) {
		t.Errorf("NewTexture after Destroy = %v, want ErrDestroyed", err)
	}
}

func TestRendererSPIRV(t *testing.T) {
	r := newTestRenderer(t, Config{Width: 8, Height: 8, SPIRV: true})
	cmds := frameWith(t, quad.TextureBinding{}, quad.FlatQuad2D)
	if _, err := r.Render(cmds); err != nil {
		t.Skipf("naga cannot compile the shader yet: %v", err)
	}
	if r.pipelines[quad.FlatQuad2D].pipeline == nil {
		t.Error("expected pipeline from SPIR-V module")
	}
}

// stallDevice never signals fences and fails staging buffer creation on
// demand. Encoders it creates count their discards.
type stallDevice struct {
	hal.Device
	failBuffers bool
	discards    *int
}

func (d stallDevice) Wait(hal.Fence, uint64, time.Duration) (bool, error) { return false, nil }

func (d stallDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if d.failBuffers {
		return nil, errors.New("out of memory")
	}
	return d.Device.CreateBuffer(desc)
}

func (d stallDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return countingEncoder{CommandEncoder: enc, discards: d.discards}, nil
}

type countingEncoder struct {
	hal.CommandEncoder
	discards *int
}

func (e countingEncoder) DiscardEncoding() {
	*e.discards++
	e.CommandEncoder.DiscardEncoding()
}

func newStallRenderer(t *testing.T, failBuffers bool) (*Renderer, *int) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	discards := new(int)
	r, err := NewRenderer(stallDevice{Device: device, failBuffers: failBuffers, discards: discards}, queue,
		Config{Width: 8, Height: 8})
	if err != nil {
		cleanup()
		t.Fatalf("NewRenderer failed: %v", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		cleanup()
	})
	return r, discards
}

func TestRendererFenceTimeout(t *testing.T) {
	r, _ := newStallRenderer(t, false)

	_, err := r.Render(nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Render error = %v, want ErrTimeout", err)
	}
}

func TestRendererDiscardsEncoderOnError(t *testing.T) {
	r, discards := newStallRenderer(t, true)

	if _, err := r.Render(nil); err == nil {
		t.Fatal("Render should fail when the staging buffer cannot be created")
	}
	if *discards != 1 {
		t.Errorf("encoder discarded %d times, want 1", *discards)
	}
}
