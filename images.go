// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import (
	"fmt"
	"time"
)

// ImageResources tracks what is associated with one swapchain image.
type ImageResources struct {
	// CommandBuffer is recorded whenever the image is acquired.
	CommandBuffer CommandBuffer

	// SubBuffers are recorded alongside CommandBuffer when several
	// recorders run in parallel, one per extra recorder. They are allocated
	// on first use and submitted after CommandBuffer in recorder order.
	SubBuffers []CommandBuffer

	// LastUse is the in-flight fence of the slot that last submitted work
	// rendering to this image, or null if the image was never used.
	LastUse Signal
}

// PerImageResources holds one entry per swapchain image. The image count is
// decided by the presentation engine and may differ from the number of
// frames in flight.
type PerImageResources struct {
	images []ImageResources
}

// newPerImageResources allocates one command buffer per image from pool.
func newPerImageResources(pool CommandPool, imageCount int) (*PerImageResources, error) {
	if imageCount < 1 {
		return nil, fmt.Errorf("%w: swapchain reports %d images", ErrResourceCreation, imageCount)
	}
	cbs, err := pool.Allocate(imageCount)
	if err != nil {
		return nil, fmt.Errorf("%w: allocate %d command buffers: %w", ErrResourceCreation, imageCount, err)
	}
	if len(cbs) != imageCount {
		pool.Free(cbs)
		return nil, fmt.Errorf("%w: command pool returned %d buffers, want %d", ErrResourceCreation, len(cbs), imageCount)
	}
	r := &PerImageResources{images: make([]ImageResources, imageCount)}
	for i, cb := range cbs {
		r.images[i].CommandBuffer = cb
	}
	return r, nil
}

// Len returns the number of images tracked.
func (r *PerImageResources) Len() int { return len(r.images) }

// Image returns the resources of image i.
func (r *PerImageResources) Image(i uint32) (ImageResources, error) {
	if int(i) >= len(r.images) {
		return ImageResources{}, fmt.Errorf("%w: image index %d out of range [0, %d)", ErrUsage, i, len(r.images))
	}
	return r.images[i], nil
}

// waitLastUse blocks until the previous user of image i has retired.
// If the previous user was the slot whose fence is current, the caller has
// already waited on it and nothing is done.
func (r *PerImageResources) waitLastUse(device Device, i uint32, current Signal, timeout time.Duration) error {
	last := r.images[i].LastUse
	if last.IsNull() || last.Handle == current.Handle {
		return nil
	}
	ok, err := device.WaitFence(last.Handle, timeout)
	if err != nil {
		return fmt.Errorf("wait image %d last use: %w", i, err)
	}
	if !ok {
		return fmt.Errorf("%w: image %d still in use after %v", ErrSynchronizationTimeout, i, timeout)
	}
	return nil
}

// markUsed associates image i with the fence guarding its latest submission.
func (r *PerImageResources) markUsed(i uint32, fence Signal) { r.images[i].LastUse = fence }

// commandBuffers returns the n buffers recorded for image i: the image's
// command buffer followed by n-1 sub-buffers, allocating the ones missing.
func (r *PerImageResources) commandBuffers(pool CommandPool, i uint32, n int) ([]CommandBuffer, error) {
	img := &r.images[i]
	if missing := n - 1 - len(img.SubBuffers); missing > 0 {
		cbs, err := pool.Allocate(missing)
		if err != nil {
			return nil, fmt.Errorf("%w: allocate %d sub-buffers for image %d: %w", ErrResourceCreation, missing, i, err)
		}
		if len(cbs) != missing {
			pool.Free(cbs)
			return nil, fmt.Errorf("%w: command pool returned %d sub-buffers, want %d", ErrResourceCreation, len(cbs), missing)
		}
		img.SubBuffers = append(img.SubBuffers, cbs...)
	}
	cbs := make([]CommandBuffer, 0, n)
	cbs = append(cbs, img.CommandBuffer)
	return append(cbs, img.SubBuffers[:max(n-1, 0)]...), nil
}

// release frees every command buffer and sub-buffer and clears the entries.
func (r *PerImageResources) release(pool CommandPool) {
	if r == nil || len(r.images) == 0 {
		return
	}
	cbs := make([]CommandBuffer, 0, len(r.images))
	for _, img := range r.images {
		if img.CommandBuffer != NullCommandBuffer {
			cbs = append(cbs, img.CommandBuffer)
		}
		cbs = append(cbs, img.SubBuffers...)
	}
	pool.Free(cbs)
	r.images = nil
}
