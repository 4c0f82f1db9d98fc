//go:build !nogpu

package gpu

import (
	"testing"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/quad"
)

type testProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p testProvider) HalDevice() any { return p.device }
func (p testProvider) HalQueue() any  { return p.queue }

func TestNewFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r, err := NewFromProvider(testProvider{device: device, queue: queue}, Config{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("NewFromProvider failed: %v", err)
	}
	if r.owned {
		t.Error("shared device must not be owned by the renderer")
	}
	if _, err := r.Render(frameWith(t, quad.TextureBinding{}, quad.FlatTriangle)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	r.Destroy()

	// The host device is still usable after the renderer is gone.
	r2, err := NewFromProvider(testProvider{device: device, queue: queue}, Config{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Destroy()
	if _, err := r2.Render(nil); err != nil {
		t.Fatalf("Render on shared device after Destroy failed: %v", err)
	}
}

func TestNewFromProviderErrors(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name     string
		provider any
	}{
		{"not a provider", struct{}{}},
		{"nil device", testProvider{queue: queue}},
		{"nil queue", testProvider{device: device}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFromProvider(tt.provider, Config{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpenBackendOwnsDevice(t *testing.T) {
	r, err := openBackend(noop.API{}, Config{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("openBackend failed: %v", err)
	}
	if !r.owned || r.instance == nil {
		t.Error("renderer should own the device it opened")
	}
	if _, err := r.Render(nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	r.Destroy()
	if r.instance != nil {
		t.Error("instance not released")
	}
}
