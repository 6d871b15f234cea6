// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import "fmt"

// FrameSlot holds the primitives used by one frame in flight.
type FrameSlot struct {
	// ImageAvailable is signaled by the presentation engine when the
	// acquired image may be rendered to.
	ImageAvailable Signal

	// RenderFinished is signaled by the queue when the frame's commands
	// complete; presentation waits on it.
	RenderFinished Signal

	// InFlight is signaled when the frame's submission retires. It is the
	// only point where the CPU waits on the GPU.
	InFlight Signal
}

// isNull reports whether every primitive in the slot is null.
func (s FrameSlot) isNull() bool {
	return s.ImageAvailable.IsNull() && s.RenderFinished.IsNull() && s.InFlight.IsNull()
}

// SyncObjectPool owns the synchronization primitives for F frames in flight.
//
// Every InFlight fence is created signaled so the first F frames do not wait
// on submissions that never happened. The pool is replaced wholesale rather
// than resized, and must only be disposed once the device is idle.
//
// SyncObjectPool is NOT safe for concurrent use; it belongs to the
// controller goroutine.
type SyncObjectPool struct {
	device Device
	slots  []FrameSlot

	// submitted marks slots whose fence currently guards queued GPU work.
	submitted []bool
}

// NewSyncObjectPool allocates framesInFlight slots on device.
//
// If any primitive fails to be created, everything created so far is
// destroyed before the error is returned.
func NewSyncObjectPool(device Device, framesInFlight int) (*SyncObjectPool, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: nil device", ErrUsage)
	}
	if framesInFlight < 1 {
		return nil, fmt.Errorf("%w: frames in flight must be at least 1, got %d", ErrUsage, framesInFlight)
	}

	p := &SyncObjectPool{
		device:    device,
		slots:     make([]FrameSlot, framesInFlight),
		submitted: make([]bool, framesInFlight),
	}

	for i := range p.slots {
		if err := p.createSlot(i); err != nil {
			p.destroyAll()
			return nil, err
		}
	}

	Logger().Debug("framesync: sync objects created", "framesInFlight", framesInFlight)
	return p, nil
}

func (p *SyncObjectPool) createSlot(i int) error {
	s := &p.slots[i]
	var err error

	if s.ImageAvailable, err = newSemaphore(p.device); err != nil {
		return fmt.Errorf("%w: image-available semaphore for slot %d: %w", ErrResourceCreation, i, err)
	}
	if s.RenderFinished, err = newSemaphore(p.device); err != nil {
		return fmt.Errorf("%w: render-finished semaphore for slot %d: %w", ErrResourceCreation, i, err)
	}
	if s.InFlight, err = newFence(p.device, true); err != nil {
		return fmt.Errorf("%w: in-flight fence for slot %d: %w", ErrResourceCreation, i, err)
	}
	return nil
}

// Len returns the number of frames in flight.
func (p *SyncObjectPool) Len() int { return len(p.slots) }

// Slot returns the primitives for frame index i.
func (p *SyncObjectPool) Slot(i int) (FrameSlot, error) {
	if i < 0 || i >= len(p.slots) {
		return FrameSlot{}, fmt.Errorf("%w: frame index %d out of range [0, %d)", ErrUsage, i, len(p.slots))
	}
	return p.slots[i], nil
}

// markSubmitted records that slot i's fence now guards queued work.
func (p *SyncObjectPool) markSubmitted(i int) { p.submitted[i] = true }

// markRetired records that slot i's fence was observed signaled.
func (p *SyncObjectPool) markRetired(i int) { p.submitted[i] = false }

// Dispose destroys every primitive and resets the handles to null.
//
// Dispose is idempotent: null entries are skipped and a second call does
// nothing. If a submitted fence is still unsignaled the GPU may be reading
// the slot's resources, so Dispose returns ErrUsage and destroys nothing.
// Callers must wait for device idle first.
func (p *SyncObjectPool) Dispose() error {
	for i, s := range p.slots {
		if !p.submitted[i] || s.InFlight.IsNull() {
			continue
		}
		done, err := p.device.WaitFence(s.InFlight.Handle, 0)
		if err != nil {
			return fmt.Errorf("dispose: query fence for slot %d: %w", i, err)
		}
		if !done {
			return fmt.Errorf("%w: dispose while slot %d has GPU work outstanding", ErrUsage, i)
		}
		p.submitted[i] = false
	}
	p.destroyAll()
	return nil
}

func (p *SyncObjectPool) destroyAll() {
	for i := range p.slots {
		s := &p.slots[i]
		if s.isNull() {
			continue
		}
		destroySignal(p.device, &s.InFlight)
		destroySignal(p.device, &s.RenderFinished)
		destroySignal(p.device, &s.ImageAvailable)
	}
}
