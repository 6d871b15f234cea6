package native

import "errors"

// Package errors for the hal backend.
var (
	// ErrNilHALDevice is returned when a device or queue is missing.
	ErrNilHALDevice = errors.New("native: hal device or queue is nil")

	// ErrNoHALAccess is returned when a device provider does not expose
	// HalDevice and HalQueue.
	ErrNoHALAccess = errors.New("native: provider does not expose HAL types")

	// ErrUnknownHandle is returned for a handle this device never created or
	// already destroyed.
	ErrUnknownHandle = errors.New("native: unknown handle")

	// ErrNotRecording is returned when a command buffer is submitted or
	// encoded into without a Reset.
	ErrNotRecording = errors.New("native: command buffer is not recording")

	// ErrInvalidDimensions is returned when a surface width or height is zero.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")

	// ErrSwapchainDestroyed is returned when using a destroyed swapchain.
	ErrSwapchainDestroyed = errors.New("native: swapchain has been destroyed")
)
