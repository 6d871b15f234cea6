// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import "fmt"

// Handle is an opaque reference to a device object such as a semaphore or
// fence. Each Device implementation maintains its own mapping between handles
// and backend resources.
type Handle uint64

// NullHandle is the zero value, representing an absent or destroyed object.
const NullHandle Handle = 0

// SignalKind distinguishes GPU-only ordering signals from CPU-observable
// completion fences.
type SignalKind uint8

const (
	// SignalGPU is a binary semaphore. It orders GPU work against other GPU
	// work and is never waited on from the CPU.
	SignalGPU SignalKind = iota + 1

	// SignalFence is a fence the CPU can wait on and reset.
	SignalFence
)

// String returns a short name for the kind.
func (k SignalKind) String() string {
	switch k {
	case SignalGPU:
		return "semaphore"
	case SignalFence:
		return "fence"
	default:
		return fmt.Sprintf("SignalKind(%d)", k)
	}
}

// Signal is an owned synchronization primitive: a handle plus its kind.
// A Signal is either null or refers to a live device object.
type Signal struct {
	Handle Handle
	Kind   SignalKind
}

// IsNull reports whether the signal holds no device object.
func (s Signal) IsNull() bool { return s.Handle == NullHandle }

// String implements fmt.Stringer.
func (s Signal) String() string {
	if s.IsNull() {
		return s.Kind.String() + "(null)"
	}
	return fmt.Sprintf("%s(%d)", s.Kind, s.Handle)
}

// newSemaphore creates a GPU signal on the device.
func newSemaphore(device Device) (Signal, error) {
	h, err := device.CreateSemaphore()
	if err != nil {
		return Signal{Kind: SignalGPU}, err
	}
	return Signal{Handle: h, Kind: SignalGPU}, nil
}

// newFence creates a CPU-observable fence, optionally already signaled.
func newFence(device Device, signaled bool) (Signal, error) {
	h, err := device.CreateFence(signaled)
	if err != nil {
		return Signal{Kind: SignalFence}, err
	}
	return Signal{Handle: h, Kind: SignalFence}, nil
}

// destroySignal releases the device object behind s and resets it to null.
// Null signals are skipped, so calling it twice is a no-op.
func destroySignal(device Device, s *Signal) {
	if s.IsNull() {
		return
	}
	switch s.Kind {
	case SignalFence:
		device.DestroyFence(s.Handle)
	default:
		device.DestroySemaphore(s.Handle)
	}
	s.Handle = NullHandle
}
