// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import "fmt"

// FrameSynchronizer is the read-only view of the open frame given to
// rendering subsystems. A batched draw submitter, for instance, uses it to
// learn which command buffer to record into and which frame-indexed uniform
// buffer to bind, without access to the device or the sync objects.
//
// Components that only need these three facts should depend on
// FrameSynchronizer, not on Controller.
type FrameSynchronizer interface {
	// CurrentCommandBuffer returns the command buffer being recorded, or
	// NullCommandBuffer when no frame is open.
	CurrentCommandBuffer() CommandBuffer

	// CurrentFrameIndex returns the frame-in-flight index in [0, F).
	CurrentFrameIndex() int

	// Swapchain returns the swapchain the frame will be presented to.
	Swapchain() Swapchain
}

// FrameContext is the FrameSynchronizer published for a single frame. It is
// created when recording begins and closed before submission; a closed
// context reports NullCommandBuffer. It must not be retained or shared with
// goroutines the controller does not join.
type FrameContext struct {
	commandBuffer CommandBuffer
	frameIndex    int
	imageIndex    uint32
	swapchain     Swapchain
	open          bool
}

func newFrameContext(cb CommandBuffer, frameIndex int, image uint32, sc Swapchain) *FrameContext {
	return &FrameContext{
		commandBuffer: cb,
		frameIndex:    frameIndex,
		imageIndex:    image,
		swapchain:     sc,
		open:          true,
	}
}

// CurrentCommandBuffer implements FrameSynchronizer.
func (f *FrameContext) CurrentCommandBuffer() CommandBuffer {
	if f == nil || !f.open {
		return NullCommandBuffer
	}
	return f.commandBuffer
}

// CurrentFrameIndex implements FrameSynchronizer.
func (f *FrameContext) CurrentFrameIndex() int {
	if f == nil {
		return 0
	}
	return f.frameIndex
}

// Swapchain implements FrameSynchronizer.
func (f *FrameContext) Swapchain() Swapchain {
	if f == nil {
		return nil
	}
	return f.swapchain
}

// ImageIndex returns the acquired swapchain image index.
func (f *FrameContext) ImageIndex() uint32 {
	if f == nil {
		return 0
	}
	return f.imageIndex
}

// IsOpen reports whether the frame is still recording.
func (f *FrameContext) IsOpen() bool { return f != nil && f.open }

func (f *FrameContext) close() { f.open = false }

// Recording returns the command buffer and frame index of an open frame.
// It returns ErrUsage when fs is nil or its frame is no longer open.
func Recording(fs FrameSynchronizer) (CommandBuffer, int, error) {
	if fs == nil {
		return NullCommandBuffer, 0, fmt.Errorf("%w: nil frame synchronizer", ErrUsage)
	}
	cb := fs.CurrentCommandBuffer()
	if cb == NullCommandBuffer {
		return NullCommandBuffer, 0, fmt.Errorf("%w: frame context read outside an open frame", ErrUsage)
	}
	return cb, fs.CurrentFrameIndex(), nil
}

// PerFrame holds one value per frame in flight, such as a uniform buffer
// the CPU rewrites every frame. The value for frame N is safe to write once
// that frame's fence has been waited on, which the controller guarantees
// before recording begins.
type PerFrame[T any] struct {
	items []T
}

// NewPerFrame creates a ring of framesInFlight values built by newItem.
func NewPerFrame[T any](framesInFlight int, newItem func(frameIndex int) T) *PerFrame[T] {
	p := &PerFrame[T]{items: make([]T, framesInFlight)}
	if newItem != nil {
		for i := range p.items {
			p.items[i] = newItem(i)
		}
	}
	return p
}

// Len returns the number of values.
func (p *PerFrame[T]) Len() int { return len(p.items) }

// At returns a pointer to the value for frame index i.
func (p *PerFrame[T]) At(i int) *T { return &p.items[i] }

// Current returns the value for the frame described by fs. It returns
// ErrUsage outside an open frame or if the ring is smaller than the frame
// index, which happens when the frame count changed without rebuilding it.
func (p *PerFrame[T]) Current(fs FrameSynchronizer) (*T, error) {
	_, idx, err := Recording(fs)
	if err != nil {
		return nil, err
	}
	if idx >= len(p.items) {
		return nil, fmt.Errorf("%w: frame index %d exceeds per-frame ring of %d", ErrUsage, idx, len(p.items))
	}
	return &p.items[idx], nil
}

// Each calls fn for every value in frame index order.
func (p *PerFrame[T]) Each(fn func(frameIndex int, item *T)) {
	for i := range p.items {
		fn(i, &p.items[i])
	}
}
