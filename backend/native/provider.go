//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// NewFromProvider wraps the device of a host application, such as a gogpu
// window, so the frame loop shares its GPU instead of opening another.
//
// The provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue. Its surface format becomes the
// default format of surfaces created on the returned device.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, ErrNoHALAccess
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}

	d, err := New(device, queue)
	if err != nil {
		return nil, err
	}
	d.surfaceFormat = provider.SurfaceFormat()
	slogger().Debug("native: using shared device", "surfaceFormat", d.surfaceFormat)
	return d, nil
}

// SurfaceFormat returns the host's preferred surface format, or
// TextureFormatUndefined when the device was not created from a provider.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.surfaceFormat }
