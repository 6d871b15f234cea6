//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framesync"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// idleTimeout bounds WaitIdle, matching the bound used for one-shot
// submissions elsewhere in gogpu.
const idleTimeout = 5 * time.Second

// fence is a framesync fence on top of a hal timeline fence.
//
// A hal fence is signaled once its counter reaches the submitted value.
// value is the last value submitted; armed is set by ResetFence and cleared
// by the submission that will eventually signal it.
type fence struct {
	raw   hal.Fence
	value uint64
	armed bool
}

// Device implements framesync.Device and framesync.CommandPool using
// gogpu/wgpu/hal directly.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// All handle tables are protected by a mutex.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue

	// surfaceFormat is the host's preferred format, if known.
	surfaceFormat gputypes.TextureFormat

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps framesync handles to hal resources
	semaphores map[framesync.Handle]struct{}
	fences     map[framesync.Handle]*fence
	buffers    map[framesync.CommandBuffer]*commandBuffer
}

// New wraps a hal device and queue. The device is borrowed: Destroy
// releases only what was created through it.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilHALDevice
	}
	d := &Device{
		device:     device,
		queue:      queue,
		semaphores: make(map[framesync.Handle]struct{}),
		fences:     make(map[framesync.Handle]*fence),
		buffers:    make(map[framesync.CommandBuffer]*commandBuffer),
	}

	// Start ID generation at 1 (0 is the null handle)
	d.nextID.Store(1)
	return d, nil
}

// newID generates a unique handle value.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// HalDevice returns the wrapped hal.Device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the wrapped hal.Queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// SetLogger implements the logger propagation used by framesync.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// === Semaphores ===

// CreateSemaphore returns a new GPU-side ordering token.
func (d *Device) CreateSemaphore() (framesync.Handle, error) {
	h := framesync.Handle(d.newID())
	d.mu.Lock()
	d.semaphores[h] = struct{}{}
	d.mu.Unlock()
	return h, nil
}

// DestroySemaphore releases a semaphore. Unknown handles are ignored.
func (d *Device) DestroySemaphore(h framesync.Handle) {
	d.mu.Lock()
	delete(d.semaphores, h)
	d.mu.Unlock()
}

// === Fences ===

// CreateFence creates a fence. A signaled fence has nothing submitted
// against it, so waiting on it returns at once.
func (d *Device) CreateFence(signaled bool) (framesync.Handle, error) {
	raw, err := d.device.CreateFence()
	if err != nil {
		return framesync.NullHandle, fmt.Errorf("create fence: %w", err)
	}
	h := framesync.Handle(d.newID())

	d.mu.Lock()
	d.fences[h] = &fence{raw: raw, armed: !signaled}
	d.mu.Unlock()
	return h, nil
}

// DestroyFence releases a fence.
func (d *Device) DestroyFence(h framesync.Handle) {
	d.mu.Lock()
	f, ok := d.fences[h]
	if ok {
		delete(d.fences, h)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyFence(f.raw)
	}
}

// WaitFence waits until the fence's last submission completes.
//
// A fence that was reset but not yet submitted can never signal, so the
// wait reports false immediately instead of sleeping for the timeout.
func (d *Device) WaitFence(h framesync.Handle, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	f, ok := d.fences[h]
	var raw hal.Fence
	var value uint64
	var armed bool
	if ok {
		raw, value, armed = f.raw, f.value, f.armed
	}
	d.mu.Unlock()

	switch {
	case !ok:
		return false, fmt.Errorf("%w: fence %d", ErrUnknownHandle, h)
	case armed:
		return false, nil
	case value == 0:
		return true, nil
	}

	done, err := d.device.Wait(raw, value, timeout)
	if err != nil {
		return false, fmt.Errorf("%w: wait fence %d: %w", framesync.ErrDeviceLost, h, err)
	}
	return done, nil
}

// ResetFence arms the fence for the next submission.
func (d *Device) ResetFence(h framesync.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("%w: fence %d", ErrUnknownHandle, h)
	}
	f.armed = true
	return nil
}

// === Submission ===

// Submit finishes encoding of the command buffers and submits them to the
// queue. The fence is signaled when the work completes.
//
// Wait and Signal semaphores are validated but carry no hal object: a
// single queue already orders the acquire, the work and the present.
func (d *Device) Submit(info framesync.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range []framesync.Signal{info.Wait, info.Signal} {
		if s.IsNull() {
			continue
		}
		if _, ok := d.semaphores[s.Handle]; !ok {
			return fmt.Errorf("%w: semaphore %d", ErrUnknownHandle, s.Handle)
		}
	}

	var f *fence
	if !info.Fence.IsNull() {
		var ok bool
		if f, ok = d.fences[info.Fence.Handle]; !ok {
			return fmt.Errorf("%w: fence %d", ErrUnknownHandle, info.Fence.Handle)
		}
	}

	raws := make([]hal.CommandBuffer, 0, len(info.CommandBuffers))
	for _, id := range info.CommandBuffers {
		cb, ok := d.buffers[id]
		if !ok {
			return fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, id)
		}
		raw, err := cb.finish(id)
		if err != nil {
			return err
		}
		raws = append(raws, raw)
	}

	var rawFence hal.Fence
	var value uint64
	if f != nil {
		rawFence = f.raw
		value = f.value + 1
	}
	if err := d.queue.Submit(raws, rawFence, value); err != nil {
		return fmt.Errorf("%w: queue submit: %w", framesync.ErrDeviceLost, err)
	}
	if f != nil {
		f.value = value
		f.armed = false
	}
	slogger().Debug("native: submitted", "commandBuffers", len(raws), "fence", info.Fence.Handle, "value", value)
	return nil
}

// WaitIdle blocks until every submission on the queue has completed.
func (d *Device) WaitIdle() error {
	// Create a fence and submit empty work to synchronize
	raw, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create idle fence: %w", err)
	}
	defer d.device.DestroyFence(raw)

	if err := d.queue.Submit(nil, raw, 1); err != nil {
		return fmt.Errorf("%w: submit idle fence: %w", framesync.ErrDeviceLost, err)
	}
	ok, err := d.device.Wait(raw, 1, idleTimeout)
	if err != nil {
		return fmt.Errorf("%w: wait idle: %w", framesync.ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: queue not idle after %v", framesync.ErrSynchronizationTimeout, idleTimeout)
	}
	return nil
}

// Live returns the number of semaphores, fences and command buffers not yet
// destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.semaphores) + len(d.fences) + len(d.buffers)
}

// Destroy releases every object still tracked. The device must be idle.
func (d *Device) Destroy() {
	d.mu.Lock()
	fences := d.fences
	buffers := d.buffers
	d.fences = make(map[framesync.Handle]*fence)
	d.buffers = make(map[framesync.CommandBuffer]*commandBuffer)
	d.semaphores = make(map[framesync.Handle]struct{})
	d.mu.Unlock()

	for _, f := range fences {
		d.device.DestroyFence(f.raw)
	}
	for _, cb := range buffers {
		cb.release(d.device)
	}
}

var (
	_ framesync.Device      = (*Device)(nil)
	_ framesync.CommandPool = (*Device)(nil)
)
