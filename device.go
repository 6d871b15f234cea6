// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
)

// Device is the subset of a GPU device the frame loop depends on.
//
// Key principle: framesync RECEIVES a device from the host, it does NOT
// create one. Device, queue and surface creation stay with the host
// application; see backend/native for an implementation over gogpu/wgpu.
type Device interface {
	// CreateSemaphore creates a GPU-to-GPU ordering signal.
	CreateSemaphore() (Handle, error)

	// DestroySemaphore releases a semaphore. The handle must not be in use
	// by pending GPU work.
	DestroySemaphore(h Handle)

	// CreateFence creates a CPU-waitable fence. When signaled is true the
	// fence starts in the signaled state.
	CreateFence(signaled bool) (Handle, error)

	// DestroyFence releases a fence.
	DestroyFence(h Handle)

	// WaitFence blocks until the fence is signaled or the timeout expires.
	// It returns false without error on timeout. A zero timeout polls.
	WaitFence(fence Handle, timeout time.Duration) (bool, error)

	// ResetFence returns a fence to the unsignaled state.
	ResetFence(fence Handle) error

	// Submit queues command buffers for execution.
	Submit(info SubmitInfo) error

	// WaitIdle blocks until every queue on the device has drained.
	WaitIdle() error
}

// SubmitInfo describes one queue submission of a frame.
type SubmitInfo struct {
	// CommandBuffers are executed in order.
	CommandBuffers []CommandBuffer

	// Wait is a semaphore the GPU waits on before executing.
	Wait Signal

	// Signal is a semaphore signaled when execution completes.
	Signal Signal

	// Fence is signaled for the CPU when execution completes.
	Fence Signal
}

// CommandBuffer is an opaque handle to a recorded sequence of GPU commands.
type CommandBuffer uint64

// NullCommandBuffer is returned when no command buffer is available,
// for example outside an open frame.
const NullCommandBuffer CommandBuffer = 0

// CommandPool allocates and recycles command buffers.
type CommandPool interface {
	// Allocate returns count new command buffers ready for recording.
	Allocate(count int) ([]CommandBuffer, error)

	// Reset discards previous contents of cb and begins a new recording.
	// The caller guarantees the GPU has finished with cb.
	Reset(cb CommandBuffer) error

	// Free releases command buffers. Null entries are ignored.
	Free(cbs []CommandBuffer)
}

// SurfaceStatus is the non-fatal outcome of an acquire or present call.
type SurfaceStatus int

const (
	// SurfaceOK means the operation succeeded and the swapchain matches the
	// surface.
	SurfaceOK SurfaceStatus = iota

	// SurfaceSuboptimal means the operation succeeded but the swapchain
	// should be recreated soon.
	SurfaceSuboptimal

	// SurfaceOutOfDate means the swapchain can no longer be used with the
	// surface. Any acquired image is invalid.
	SurfaceOutOfDate
)

// String returns the status name.
func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOK:
		return "ok"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out-of-date"
	default:
		return fmt.Sprintf("SurfaceStatus(%d)", int(s))
	}
}

// Err converts the status to its sentinel error, or nil for SurfaceOK.
func (s SurfaceStatus) Err() error {
	switch s {
	case SurfaceSuboptimal:
		return ErrSwapchainSuboptimal
	case SurfaceOutOfDate:
		return ErrSwapchainOutOfDate
	default:
		return nil
	}
}

// Swapchain is the rotating set of presentable images managed by the
// presentation engine. Acquire and present are treated as opaque synchronous
// calls. Fatal conditions are returned as errors.
type Swapchain interface {
	// AcquireNextImage returns the index of the next presentable image and
	// arranges for signal to be signaled once the image may be written.
	AcquireNextImage(timeout time.Duration, signal Signal) (uint32, SurfaceStatus, error)

	// Present queues image for display after wait is signaled.
	Present(image uint32, wait Signal) (SurfaceStatus, error)

	// ImageCount returns the number of presentable images.
	ImageCount() int

	// Extent returns the image size.
	Extent() gputypes.Extent3D

	// Format returns the image format.
	Format() gputypes.TextureFormat

	// Destroy releases the swapchain. The device must be idle.
	Destroy()
}

// SwapchainProvider builds swapchains for the current surface state. It is
// injected into the controller so that hosts decide how surfaces are sized
// and configured.
type SwapchainProvider interface {
	// CreateSwapchain returns a swapchain matching the current surface.
	// old is the swapchain being replaced, or nil on first creation. The
	// provider must not destroy old.
	CreateSwapchain(old Swapchain) (Swapchain, error)
}

// SwapchainProviderFunc adapts a function to SwapchainProvider.
type SwapchainProviderFunc func(old Swapchain) (Swapchain, error)

// CreateSwapchain calls f(old).
func (f SwapchainProviderFunc) CreateSwapchain(old Swapchain) (Swapchain, error) {
	return f(old)
}
