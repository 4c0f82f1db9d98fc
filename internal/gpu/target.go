//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row pitch alignment WebGPU requires for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// offscreenTarget is the color texture the renderer draws into when no
// surface view is provided. It is single sampled and readable
// (RenderAttachment | CopySrc).
type offscreenTarget struct {
	tex    hal.Texture
	view   hal.TextureView
	format gputypes.TextureFormat
	width  uint32
	height uint32
}

// ensureTexture creates or recreates the texture if the requested dimensions
// or format differ from the current ones. If they match, this is a no-op.
func (t *offscreenTarget) ensureTexture(device hal.Device, w, h uint32, format gputypes.TextureFormat) error {
	if t.width == w && t.height == h && t.format == format && t.tex != nil {
		return nil
	}
	t.destroyTexture(device)

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "quad_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	t.tex = tex

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "quad_target_view",
	})
	if err != nil {
		t.destroyTexture(device)
		return fmt.Errorf("create target view: %w", err)
	}
	t.view = view

	t.format = format
	t.width = w
	t.height = h
	slogger().Debug("gpu: target allocated", "width", w, "height", h, "format", format)
	return nil
}

// destroyTexture releases the texture and view and resets dimensions.
func (t *offscreenTarget) destroyTexture(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
		t.tex = nil
	}
	t.width = 0
	t.height = 0
}

// alignedBytesPerRow returns the padded row pitch of a w pixel wide RGBA
// copy.
func alignedBytesPerRow(w uint32) uint32 {
	return (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// unpackRows strips per-row padding from readback into dst, a tightly packed
// w*h*4 buffer. When bgra is set the red and blue channels are swapped.
func unpackRows(dst, readback []byte, w, h uint32, bgra bool) {
	bytesPerRow := int(w) * 4
	pitch := int(alignedBytesPerRow(w))
	for row := 0; row < int(h); row++ {
		src := readback[row*pitch : row*pitch+bytesPerRow]
		out := dst[row*bytesPerRow : (row+1)*bytesPerRow]
		if !bgra {
			copy(out, src)
			continue
		}
		convertBGRAToRGBA(src, out, int(w))
	}
}

// convertBGRAToRGBA swaps the B and R channels of n pixels.
func convertBGRAToRGBA(src, dst []byte, n int) {
	for i := 0; i < n; i++ {
		o := i * 4
		dst[o+0] = src[o+2]
		dst[o+1] = src[o+1]
		dst[o+2] = src[o+0]
		dst[o+3] = src[o+3]
	}
}

// isBGRA reports whether format stores blue first.
func isBGRA(format gputypes.TextureFormat) bool {
	return format == gputypes.TextureFormatBGRA8Unorm
}
