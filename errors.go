// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import (
	"errors"
	"fmt"
)

// Errors reported by the frame loop. Collaborators should wrap
// ErrDeviceLost when the device becomes unusable so the condition survives
// the controller's phase wrapping.
var (
	// ErrResourceCreation is returned when a synchronization primitive,
	// command buffer or swapchain could not be created. Fatal.
	ErrResourceCreation = errors.New("framesync: resource creation failed")

	// ErrSwapchainOutOfDate reports that the surface changed and the acquired
	// image cannot be used. Recoverable; handled by recreation.
	ErrSwapchainOutOfDate = errors.New("framesync: swapchain out of date")

	// ErrSwapchainSuboptimal reports that the surface still works but no
	// longer matches the swapchain exactly. Recoverable.
	ErrSwapchainSuboptimal = errors.New("framesync: swapchain suboptimal")

	// ErrDeviceLost reports an unrecoverable device failure.
	ErrDeviceLost = errors.New("framesync: device lost")

	// ErrSynchronizationTimeout is returned when a bounded fence wait expires.
	// The GPU is presumed hung; the wait is not retried.
	ErrSynchronizationTimeout = errors.New("framesync: synchronization timeout")

	// ErrUsage reports a contract violation by the caller, such as reading a
	// frame context outside an open frame.
	ErrUsage = errors.New("framesync: usage error")

	// ErrClosed is returned by a controller after Close.
	ErrClosed = fmt.Errorf("%w: controller closed", ErrUsage)
)

// PhaseError is a fatal frame-loop error annotated with the phase that
// failed and the attempt number.
type PhaseError struct {
	Phase   State
	Attempt uint64
	Err     error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("framesync: frame %d: %s: %v", e.Attempt, e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error { return e.Err }

// IsFatal reports whether err ends the frame loop. Only the two swapchain
// conditions are recoverable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrSwapchainOutOfDate) && !errors.Is(err, ErrSwapchainSuboptimal)
}
