// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import (
	"fmt"
	"log/slog"
	"time"
)

// Defaults used when no option overrides them.
const (
	// DefaultFramesInFlight overlaps CPU recording of one frame with GPU
	// execution of the previous one.
	DefaultFramesInFlight = 2

	// DefaultFenceTimeout bounds the wait on a slot fence. Exceeding it is
	// treated as a hung GPU.
	DefaultFenceTimeout = 5 * time.Second

	// DefaultAcquireTimeout bounds the presentation engine's acquire call.
	DefaultAcquireTimeout = time.Second
)

// Option configures a Controller during creation.
//
// Example:
//
//	ctrl, err := framesync.NewController(device, commands, surface,
//	    framesync.WithFramesInFlight(3),
//	    framesync.WithLogger(slog.Default()),
//	)
type Option func(*options)

// TraceEvent describes one state transition of the frame loop.
type TraceEvent struct {
	Attempt    uint64
	FrameIndex int
	From       State
	To         State
}

// String formats the event as "attempt=N frame=I from -> to".
func (e TraceEvent) String() string {
	return fmt.Sprintf("attempt=%d frame=%d %s -> %s", e.Attempt, e.FrameIndex, e.From, e.To)
}

// options holds optional configuration for Controller creation.
type options struct {
	framesInFlight int
	fenceTimeout   time.Duration
	acquireTimeout time.Duration
	logger         *slog.Logger
	recordWorkers  int
	trace          func(TraceEvent)
}

// defaultOptions returns the default controller options.
func defaultOptions() options {
	return options{
		framesInFlight: DefaultFramesInFlight,
		fenceTimeout:   DefaultFenceTimeout,
		acquireTimeout: DefaultAcquireTimeout,
		logger:         nil, // resolved to Logger() at creation
	}
}

// WithFramesInFlight sets how many frames may be queued on the GPU at once.
// Values below 1 are rejected by NewController.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = n
	}
}

// WithFenceTimeout bounds the wait on a slot's in-flight fence.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithAcquireTimeout bounds the presentation engine's acquire call.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.acquireTimeout = d
		}
	}
}

// WithLogger sets the logger used by the controller. By default the
// package logger configured with SetLogger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRecordWorkers enables parallel recording. When a frame has more than
// one recorder they run on n worker goroutines and are joined before
// submission. Each recorder gets its own command buffer: the first records
// into the image's buffer and the others into per-image sub-buffers,
// submitted in recorder order. Zero or one keeps recording on the calling
// goroutine.
func WithRecordWorkers(n int) Option {
	return func(o *options) {
		o.recordWorkers = n
	}
}

// WithTraceHook registers fn to observe every state transition. fn runs on
// the controller goroutine and must not call back into the controller.
func WithTraceHook(fn func(TraceEvent)) Option {
	return func(o *options) {
		o.trace = fn
	}
}
