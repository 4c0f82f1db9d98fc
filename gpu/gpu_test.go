//go:build !nogpu

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/quad"
)

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

// mockQueue implements gpucontext.Queue for testing.
type mockQueue struct{}

// mockAdapter implements gpucontext.Adapter for testing.
type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider and exposes a noop HAL
// device.
type mockProvider struct {
	halDevice hal.Device
	halQueue  hal.Queue
	format    gputypes.TextureFormat
}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return m.format }
func (m *mockProvider) HalDevice() any                        { return m.halDevice }
func (m *mockProvider) HalQueue() any                         { return m.halQueue }

func newMockProvider(t *testing.T) *mockProvider {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return &mockProvider{
		halDevice: openDev.Device,
		halQueue:  openDev.Queue,
		format:    gputypes.TextureFormatBGRA8Unorm,
	}
}

func flatFrame(t *testing.T) []quad.DrawCommand {
	t.Helper()
	f := quad.NewFrame(0)
	red := quad.Red
	if err := f.SetGlobals(quad.FlatTriangle, quad.Globals{Color: &red, Projection: quad.Identity3()}); err != nil {
		t.Fatal(err)
	}
	if err := f.Draw(quad.FlatTriangle, quad.FixedStream(quad.FlatTriangle)); err != nil {
		t.Fatal(err)
	}
	cmds, err := f.End()
	if err != nil {
		t.Fatal(err)
	}
	return cmds
}

func TestNewFromProviderUsesSurfaceFormat(t *testing.T) {
	p := newMockProvider(t)

	r, err := NewFromProvider(p, WithSize(16, 8))
	if err != nil {
		t.Fatalf("NewFromProvider failed: %v", err)
	}
	defer r.Destroy()

	if r.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format() = %v, want surface format BGRA8Unorm", r.Format())
	}
	if w, h := r.Size(); w != 16 || h != 8 {
		t.Errorf("Size() = (%d, %d), want (16, 8)", w, h)
	}
	img, err := r.Render(flatFrame(t))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if img.Rect.Dx() != 16 || img.Rect.Dy() != 8 {
		t.Errorf("image bounds = %v, want 16x8", img.Rect)
	}
}

func TestNewFromProviderFormatOverride(t *testing.T) {
	p := newMockProvider(t)

	r, err := NewFromProvider(p, WithTargetFormat(gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Destroy()
	if r.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", r.Format())
	}
}

func TestNewFromProviderWithoutHAL(t *testing.T) {
	p := newMockProvider(t)
	p.halDevice = nil
	if _, err := NewFromProvider(p); err == nil {
		t.Fatal("expected error for provider without a HAL device")
	}
}

func TestNewWithDeviceOptions(t *testing.T) {
	p := newMockProvider(t)

	r, err := NewWithDevice(p.halDevice, p.halQueue,
		WithSize(4, 4), WithClearColor(quad.White), WithSPIRV())
	if err != nil {
		t.Fatalf("NewWithDevice failed: %v", err)
	}
	r.Destroy()
	if _, err := r.Render(nil); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Render after Destroy = %v, want ErrDestroyed", err)
	}
}
