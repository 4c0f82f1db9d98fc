//go:build !nogpu

// Package gpu renders quad frames on a GPU through gogpu/wgpu.
//
// A renderer is created on a standalone Vulkan device (New), on a device
// shared by a host application (NewFromProvider), or on an existing HAL
// device and queue (NewWithDevice):
//
//	r, err := gpu.New(gpu.WithSize(800, 600))
//	if err != nil {
//		return err
//	}
//	defer r.Destroy()
//
//	f := quad.NewFrame(0)
//	// SetGlobals, Draw ...
//	cmds, _ := f.End()
//	img, err := r.Render(cmds)
package gpu

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
	gpuimpl "github.com/gogpu/quad/internal/gpu"
)

// Renderer submits quad draw commands to a GPU device.
type Renderer = gpuimpl.Renderer

// Texture is an RGBA texture uploaded with Renderer.NewTexture.
type Texture = gpuimpl.Texture

// Errors returned by the GPU renderer.
var (
	ErrNoAdapter = gpuimpl.ErrNoAdapter
	ErrDestroyed = gpuimpl.ErrDestroyed
)

var _ quad.Renderer = (*Renderer)(nil)

// Option configures a Renderer.
type Option func(*gpuimpl.Config)

// WithSize sets the offscreen target size. The default is 1x1; use
// Renderer.Resize to change it later.
func WithSize(width, height int) Option {
	return func(c *gpuimpl.Config) {
		c.Width, c.Height = width, height
	}
}

// WithClearColor sets the color the target is cleared to before each frame.
// The default is opaque black.
func WithClearColor(col quad.RGBA) Option {
	return func(c *gpuimpl.Config) {
		c.ClearColor = col
	}
}

// WithTargetFormat sets the color format of the target and pipelines.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(c *gpuimpl.Config) {
		c.Format = f
	}
}

// WithSPIRV compiles shaders to SPIR-V with naga instead of passing WGSL to
// the backend.
func WithSPIRV() Option {
	return func(c *gpuimpl.Config) {
		c.SPIRV = true
	}
}

func config(base gpuimpl.Config, opts []Option) gpuimpl.Config {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

func defaultConfig() gpuimpl.Config {
	return gpuimpl.Config{ClearColor: quad.Black}
}

// New opens a standalone Vulkan device and creates a renderer that owns it.
func New(opts ...Option) (*Renderer, error) {
	return gpuimpl.Open(config(defaultConfig(), opts))
}

// NewWithDevice creates a renderer on an existing HAL device and queue.
// The caller keeps ownership of both.
func NewWithDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Renderer, error) {
	return gpuimpl.NewRenderer(device, queue, config(defaultConfig(), opts))
}

// NewFromProvider creates a renderer on the device of a host application.
// The provider must also expose its HAL objects through HalDevice() any and
// HalQueue() any. Unless WithTargetFormat is given, the target format is
// the provider's surface format, so frames can be rendered straight into
// the host's swapchain with Renderer.RenderToSurface.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Renderer, error) {
	base := defaultConfig()
	base.Format = provider.SurfaceFormat()
	return gpuimpl.NewFromProvider(provider, config(base, opts))
}
