//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/framesync"
	"github.com/gogpu/wgpu/hal"
)

// commandBuffer tracks the hal objects behind one framesync command buffer.
//
// Every Reset opens a fresh hal encoder; Submit ends it and keeps the
// resulting hal.CommandBuffer alive until the next Reset or Free, by which
// time the controller has waited for the GPU to finish reading it.
type commandBuffer struct {
	label     string
	encoder   hal.CommandEncoder
	recording bool
	raw       hal.CommandBuffer
}

// finish ends encoding and returns the buffer ready for submission.
func (cb *commandBuffer) finish(id framesync.CommandBuffer) (hal.CommandBuffer, error) {
	if !cb.recording {
		return nil, fmt.Errorf("%w: %d", ErrNotRecording, id)
	}
	raw, err := cb.encoder.EndEncoding()
	cb.recording = false
	cb.encoder = nil
	if err != nil {
		return nil, fmt.Errorf("end encoding %s: %w", cb.label, err)
	}
	cb.raw = raw
	return raw, nil
}

// release drops every hal object. The GPU must be done with them.
func (cb *commandBuffer) release(device hal.Device) {
	if cb.recording {
		cb.encoder.DiscardEncoding()
		cb.recording = false
	}
	cb.encoder = nil
	if cb.raw != nil {
		device.FreeCommandBuffer(cb.raw)
		cb.raw = nil
	}
}

// Allocate returns count command buffers. Hal encoders are created lazily by
// Reset.
func (d *Device) Allocate(count int) ([]framesync.CommandBuffer, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: allocate %d command buffers", framesync.ErrUsage, count)
	}
	ids := make([]framesync.CommandBuffer, count)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range ids {
		id := framesync.CommandBuffer(d.newID())
		d.buffers[id] = &commandBuffer{label: fmt.Sprintf("framesync_cmd_%d", id)}
		ids[i] = id
	}
	return ids, nil
}

// Reset releases the buffer's previous contents and begins encoding.
func (d *Device) Reset(id framesync.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, id)
	}
	cb.release(d.device)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: cb.label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(cb.label); err != nil {
		return fmt.Errorf("begin encoding %s: %w", cb.label, err)
	}
	cb.encoder = encoder
	cb.recording = true
	return nil
}

// Free releases the command buffers. Unknown IDs are ignored.
func (d *Device) Free(ids []framesync.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if cb, ok := d.buffers[id]; ok {
			cb.release(d.device)
			delete(d.buffers, id)
		}
	}
}

// Encoder returns the hal encoder of a recording command buffer. Recorders
// use it to begin render and compute passes.
func (d *Device) Encoder(id framesync.CommandBuffer) (hal.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, id)
	}
	if !cb.recording {
		return nil, fmt.Errorf("%w: %d", ErrNotRecording, id)
	}
	return cb.encoder, nil
}
