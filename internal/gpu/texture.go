//go:build !nogpu

package gpu

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
)

// Texture is an RGBA8Unorm texture on the device with a view and a sampler.
// The renderer that created it must outlive it.
type Texture struct {
	device  hal.Device
	tex     hal.Texture
	view    hal.TextureView
	sampler *samplerRef
	width   uint32
	height  uint32
}

// samplerRef adapts a hal.Sampler to quad.Sampler.
type samplerRef struct {
	s hal.Sampler
}

// NativeHandle returns the backend handle of the sampler, or 0 when the
// backend does not expose one.
func (r *samplerRef) NativeHandle() uintptr { return nativeHandle(r.s) }

// Binding returns the binding to pass to quad.Frame.BindTexture.
func (t *Texture) Binding() quad.TextureBinding {
	return quad.TextureBinding{Texture: t.view, Sampler: t.sampler}
}

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (int, int) {
	return int(t.width), int(t.height)
}

// Destroy releases the sampler, view and texture. Safe to call multiple
// times.
func (t *Texture) Destroy() {
	if t.device == nil {
		return
	}
	if t.sampler != nil {
		t.device.DestroySampler(t.sampler.s)
		t.sampler = nil
	}
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// uploadTexture creates a texture of img's size, writes its pixels and
// creates a view and a sampler with the given filter.
func uploadTexture(device hal.Device, queue hal.Queue, img *image.RGBA, filter quad.Filter, label string) (*Texture, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty %dx%d image", quad.ErrUnsupportedTexture, w, h)
	}
	size := hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1} //nolint:gosec // image size fits uint32

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	t := &Texture{device: device, tex: tex, width: size.Width, height: size.Height}

	queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		tightPixels(img),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: size.Width * 4, RowsPerImage: size.Height},
		&size,
	)

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("create %s view: %w", label, err)
	}
	t.view = view

	sampler, err := createSampler(device, filter, label+"_sampler")
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.sampler = &samplerRef{s: sampler}
	return t, nil
}

// createSampler creates a clamp-to-edge sampler.
func createSampler(device hal.Device, filter quad.Filter, label string) (hal.Sampler, error) {
	mode := gputypes.FilterModeLinear
	if filter == quad.FilterNearest {
		mode = gputypes.FilterModeNearest
	}
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    mode,
		MinFilter:    mode,
		MipmapFilter: mode,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return sampler, nil
}

// tightPixels returns the pixels of img without row padding.
func tightPixels(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w*4 && img.Rect.Min == (image.Point{}) {
		return img.Pix[:w*h*4]
	}
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		i := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], img.Pix[i:i+w*4])
	}
	return out
}

// nativeHandle returns the backend handle of a HAL object that exposes one.
func nativeHandle(obj any) uintptr {
	if h, ok := obj.(interface{ NativeHandle() uintptr }); ok {
		return h.NativeHandle()
	}
	return 0
}

// textureCache holds GPU copies of quad.ImageTexture bindings and the
// samplers created for quad.ImageSampler, so a frame built for the software
// renderer can be submitted unchanged.
type textureCache struct {
	uploads  map[*quad.ImageTexture]*Texture
	samplers map[quad.Filter]hal.Sampler
}

// resolve maps a binding to the view and sampler to put in bind group 1.
func (c *textureCache) resolve(device hal.Device, queue hal.Queue, b *quad.TextureBinding) (hal.TextureView, hal.Sampler, error) {
	if b == nil || b.Texture == nil || b.Sampler == nil {
		return nil, nil, quad.ErrUnboundResource
	}

	var view hal.TextureView
	switch t := b.Texture.(type) {
	case *quad.ImageTexture:
		up, err := c.upload(device, queue, t)
		if err != nil {
			return nil, nil, err
		}
		view = up.view
	case hal.TextureView:
		view = t
	default:
		return nil, nil, fmt.Errorf("%w: %T", quad.ErrUnsupportedTexture, b.Texture)
	}

	switch s := b.Sampler.(type) {
	case *quad.ImageSampler:
		sampler, err := c.sampler(device, s.Filter)
		if err != nil {
			return nil, nil, err
		}
		return view, sampler, nil
	case *samplerRef:
		return view, s.s, nil
	default:
		return nil, nil, fmt.Errorf("%w: %T", quad.ErrUnsupportedTexture, b.Sampler)
	}
}

func (c *textureCache) upload(device hal.Device, queue hal.Queue, img *quad.ImageTexture) (*Texture, error) {
	if t, ok := c.uploads[img]; ok {
		return t, nil
	}
	t, err := uploadTexture(device, queue, img.Image(), quad.FilterLinear, "quad_image_texture")
	if err != nil {
		return nil, err
	}
	if c.uploads == nil {
		c.uploads = make(map[*quad.ImageTexture]*Texture)
	}
	c.uploads[img] = t
	w, h := t.Size()
	slogger().Debug("gpu: image texture uploaded", "width", w, "height", h)
	return t, nil
}

func (c *textureCache) sampler(device hal.Device, f quad.Filter) (hal.Sampler, error) {
	if s, ok := c.samplers[f]; ok {
		return s, nil
	}
	s, err := createSampler(device, f, "quad_image_sampler")
	if err != nil {
		return nil, err
	}
	if c.samplers == nil {
		c.samplers = make(map[quad.Filter]hal.Sampler)
	}
	c.samplers[f] = s
	return s, nil
}

// evict releases the upload of img, if any.
func (c *textureCache) evict(img *quad.ImageTexture) bool {
	t, ok := c.uploads[img]
	if !ok {
		return false
	}
	t.Destroy()
	delete(c.uploads, img)
	return true
}

// destroy releases every cached upload and sampler.
func (c *textureCache) destroy(device hal.Device) {
	for img, t := range c.uploads {
		t.Destroy()
		delete(c.uploads, img)
	}
	for f, s := range c.samplers {
		device.DestroySampler(s)
		delete(c.samplers, f)
	}
}
