//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan backend
)

// ErrNoAdapter is returned when no GPU adapter is available.
var ErrNoAdapter = errors.New("gpu: no adapter available")

// halProvider is implemented by host applications that share their device.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Open creates a renderer on a standalone Vulkan device. Discrete and
// integrated GPUs are preferred over other adapter types. The renderer owns
// the device and releases it in Destroy.
func Open(cfg Config) (*Renderer, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	return openBackend(backend, cfg)
}

// instanceFactory is the part of a HAL backend Open needs.
type instanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// openBackend creates a renderer on the preferred adapter of backend.
func openBackend(backend instanceFactory, cfg Config) (*Renderer, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	r, err := NewRenderer(openDev.Device, openDev.Queue, cfg)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	r.instance = instance
	r.owned = true
	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return r, nil
}

// selectAdapter prefers a discrete or integrated GPU, else the first
// adapter.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// NewFromProvider creates a renderer on a device shared by a host
// application. The provider must implement HalDevice() any and HalQueue()
// any returning hal.Device and hal.Queue. The host keeps ownership of the
// device.
func NewFromProvider(provider any, cfg Config) (*Renderer, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	r, err := NewRenderer(device, queue, cfg)
	if err != nil {
		return nil, err
	}
	slogger().Info("gpu: using shared device")
	return r, nil
}
