//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
)

// fenceTimeout bounds the wait for a submitted frame.
const fenceTimeout = 5 * time.Second

// ErrDestroyed is returned by a Renderer after Destroy.
var ErrDestroyed = errors.New("gpu: renderer destroyed")

// ErrTimeout is returned when a submitted frame does not complete in time.
var ErrTimeout = errors.New("gpu: timed out waiting for frame")

// Config configures a Renderer.
type Config struct {
	// Width and Height are the offscreen target size. Values below 1 are
	// raised to 1.
	Width, Height int

	// Format is the color format of the target and of every pipeline.
	// Defaults to RGBA8Unorm. A surface view passed to RenderToSurface must
	// have this format.
	Format gputypes.TextureFormat

	// ClearColor is written to the target before the first draw.
	ClearColor quad.RGBA

	// SPIRV makes the renderer compile shaders to SPIR-V with naga instead of
	// handing WGSL to the backend.
	SPIRV bool
}

// Renderer submits quad draw commands to a HAL device.
//
// Architecture:
//
//	Renderer
//	  +-- one variantPipeline per variant (lazy)
//	  +-- offscreenTarget (lazy, recreated on Resize)
//	  +-- textureCache (uploads of quad.ImageTexture, samplers)
//	  +-- per frame: vertex buffer + uniform buffers + bind groups
//	  +-- single render pass, single submit + fence wait
type Renderer struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	// Set when the renderer opened the device itself.
	instance hal.Instance
	owned    bool

	cfg       Config
	pipelines [quad.VariantCount]*variantPipeline
	target    offscreenTarget
	textures  textureCache
	textureN  int
	destroyed bool
}

// NewRenderer creates a renderer on an existing device and queue. The caller
// keeps ownership of both. Pipelines and targets are not allocated until the
// first frame.
func NewRenderer(device hal.Device, queue hal.Queue, cfg Config) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: nil device or queue")
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = gputypes.TextureFormatRGBA8Unorm
	}
	cfg.Width, cfg.Height = max(cfg.Width, 1), max(cfg.Height, 1)
	return &Renderer{device: device, queue: queue, cfg: cfg}, nil
}

// Size returns the offscreen target size.
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Width, r.cfg.Height
}

// Format returns the color format of the pipelines.
func (r *Renderer) Format() gputypes.TextureFormat {
	return r.cfg.Format
}

// Resize changes the offscreen target size. The target is recreated on the
// next Render.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Width, r.cfg.Height = max(width, 1), max(height, 1)
}

// Render draws cmds into the offscreen target in order and reads the result
// back. An empty command list yields an image filled with the clear color.
func (r *Renderer) Render(cmds []quad.DrawCommand) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil, ErrDestroyed
	}

	w, h := uint32(r.cfg.Width), uint32(r.cfg.Height) //nolint:gosec // size is clamped to >= 1
	if err := r.target.ensureTexture(r.device, w, h, r.cfg.Format); err != nil {
		return nil, err
	}

	res, err := r.buildResources(cmds)
	if err != nil {
		return nil, err
	}
	defer res.destroy(r.device)

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if err := r.encodeSubmitReadback(w, h, res, img.Pix); err != nil {
		return nil, err
	}
	slogger().Debug("gpu: frame rendered", "draws", len(cmds), "width", w, "height", h)
	return img, nil
}

// RenderToSurface draws cmds into a caller-provided texture view, for example
// the current swapchain image of a window. The view must have the renderer's
// format. The caller retains ownership of the view.
func (r *Renderer) RenderToSurface(view hal.TextureView, cmds []quad.DrawCommand) error {
	if view == nil {
		return fmt.Errorf("gpu: nil surface view")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return ErrDestroyed
	}

	res, err := r.buildResources(cmds)
	if err != nil {
		return err
	}
	defer res.destroy(r.device)

	if err := r.encodeSubmitSurface(view, res); err != nil {
		return err
	}
	slogger().Debug("gpu: surface frame rendered", "draws", len(cmds))
	return nil
}

// NewTexture uploads img as an RGBA8Unorm texture with a sampler using the
// given filter. The texture must be destroyed before the renderer.
func (r *Renderer) NewTexture(img image.Image, filter quad.Filter) (*Texture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil, ErrDestroyed
	}
	r.textureN++
	return uploadTexture(r.device, r.queue, quad.NewImageTexture(img).Image(), filter,
		fmt.Sprintf("quad_texture_%d", r.textureN))
}

// ReleaseTexture drops the GPU copy of an image texture uploaded by an
// earlier frame. The next frame that binds img uploads it again. Call it
// when img is replaced, for example by a newer atlas snapshot.
func (r *Renderer) ReleaseTexture(img *quad.ImageTexture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || img == nil {
		return
	}
	if r.textures.evict(img) {
		slogger().Debug("gpu: image texture released")
	}
}

// Destroy releases every GPU resource held by the renderer, and the device
// when the renderer opened it. Safe to call multiple times.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.destroyed = true

	r.textures.destroy(r.device)
	r.target.destroyTexture(r.device)
	for i := len(r.pipelines) - 1; i >= 0; i-- {
		if r.pipelines[i] != nil {
			r.pipelines[i].destroyPipeline()
			r.pipelines[i] = nil
		}
	}
	if r.owned {
		r.device.Destroy()
		if r.instance != nil {
			r.instance.Destroy()
			r.instance = nil
		}
	}
	slogger().Debug("gpu: renderer destroyed", "owned_device", r.owned)
}

// ensurePipeline creates the pipeline of v if it does not exist yet.
func (r *Renderer) ensurePipeline(v quad.Variant) error {
	if r.pipelines[v] == nil {
		r.pipelines[v] = newVariantPipeline(r.device, v, r.cfg.Format, r.cfg.SPIRV)
	}
	if err := r.pipelines[v].ensurePipeline(); err != nil {
		return fmt.Errorf("%s pipeline: %w", v, err)
	}
	return nil
}

// beginPass starts the command encoder and the render pass on view. On
// success the caller owns the encoder and must end or discard it.
func (r *Renderer) beginPass(view hal.TextureView, label string) (hal.CommandEncoder, hal.RenderPassEncoder, error) {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_encoder",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label + "_frame"); err != nil {
		encoder.DiscardEncoding()
		return nil, nil, fmt.Errorf("begin encoding: %w", err)
	}

	c := r.cfg.ClearColor
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)},
		}},
	})
	return encoder, rp, nil
}

// encodeSubmitReadback records the frame into the offscreen target, copies
// the target into a staging buffer, submits, waits and unpacks the rows
// into dst.
func (r *Renderer) encodeSubmitReadback(w, h uint32, res *frameResources, dst []byte) error {
	encoder, rp, err := r.beginPass(r.target.view, "quad")
	if err != nil {
		return err
	}
	ended := false
	defer func() {
		if !ended {
			encoder.DiscardEncoding()
		}
	}()
	res.recordDraws(rp)
	rp.End()

	// The render attachment must be transitioned before the copy. This is a
	// no-op on Metal, GLES, software and noop backends.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.target.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	pitch := alignedBytesPerRow(w)
	stagingBufSize := uint64(pitch) * uint64(h)
	stagingBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "quad_staging",
		Size:  stagingBufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer r.device.DestroyBuffer(stagingBuf)

	encoder.CopyTextureToBuffer(r.target.tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: r.target.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.target.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	ended = true
	if err := r.submitAndWait(encoder); err != nil {
		return err
	}

	readback := make([]byte, stagingBufSize)
	if err := r.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackRows(dst, readback, w, h, isBGRA(r.target.format))
	return nil
}

// encodeSubmitSurface records the frame into view and submits it. The wait
// ensures the pass completes before the host presents the surface.
func (r *Renderer) encodeSubmitSurface(view hal.TextureView, res *frameResources) error {
	encoder, rp, err := r.beginPass(view, "quad_surface")
	if err != nil {
		return err
	}
	res.recordDraws(rp)
	rp.End()
	return r.submitAndWait(encoder)
}

// submitAndWait ends the encoding and blocks until the GPU has executed the
// command buffer. The encoder is discarded when it cannot be ended.
func (r *Renderer) submitAndWait(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer r.device.DestroyFence(fence)

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := r.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return fmt.Errorf("%w after %v", ErrTimeout, fenceTimeout)
	}
	return nil
}
