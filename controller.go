// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/framesync/internal/parallel"
)

// Recorder records a frame's commands into the command buffer exposed by
// the frame synchronizer. The controller never inspects what is recorded.
type Recorder interface {
	Record(frame FrameSynchronizer) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(frame FrameSynchronizer) error

// Record calls f(frame).
func (f RecorderFunc) Record(frame FrameSynchronizer) error { return f(frame) }

// FrameResult describes one frame attempt.
type FrameResult struct {
	// Attempt is the zero-based attempt counter.
	Attempt uint64

	// FrameIndex is the frame-in-flight slot used by the attempt.
	FrameIndex int

	// ImageIndex is the acquired swapchain image. Meaningless when the
	// acquire reported out-of-date.
	ImageIndex uint32

	// Acquire and Present are the surface statuses reported by the
	// presentation engine. Present is SurfaceOK when present was skipped.
	Acquire SurfaceStatus
	Present SurfaceStatus

	// Presented reports whether the frame reached the presentation engine.
	Presented bool

	// Recreated reports whether the swapchain was rebuilt at the end of the
	// attempt.
	Recreated bool
}

// Stats are cumulative frame loop counters.
type Stats struct {
	Attempts    uint64
	Presented   uint64
	Skipped     uint64
	Recreations uint64
}

// Controller drives the acquire, record, submit and present cycle.
//
// It owns the sync object pool, the swapchain and the per-image command
// buffers. Up to F frames are queued on the GPU at once; before a slot is
// reused the controller waits on that slot's fence, so any frame-indexed
// resource the CPU writes is no longer read by the GPU.
//
// Controller is NOT safe for concurrent use. RenderFrame, Run and Close must
// be called from one goroutine. NotifyResized, SetFramesInFlight and Stats
// may be called from any goroutine.
type Controller struct {
	device    Device
	commands  CommandPool
	opts      options
	log       *slog.Logger
	recreator recreator
	workers   *parallel.WorkerPool

	targets    renderTargets
	frameIndex int
	attempt    uint64
	current    uint64
	slot       int
	state      State
	frame      *FrameContext
	fatal      error
	closed     bool
	released   bool

	resized    atomic.Bool
	wantFrames atomic.Int64

	attempts    atomic.Uint64
	presented   atomic.Uint64
	skipped     atomic.Uint64
	recreations atomic.Uint64
}

// NewController creates the swapchain, per-image command buffers and sync
// objects and returns a controller ready for its first frame.
//
// The device, command pool and provider are borrowed: the controller never
// destroys them, only what it creates through them.
func NewController(device Device, commands CommandPool, provider SwapchainProvider, opts ...Option) (*Controller, error) {
	if device == nil || commands == nil || provider == nil {
		return nil, fmt.Errorf("%w: device, command pool and swapchain provider are required", ErrUsage)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.framesInFlight < 1 {
		return nil, fmt.Errorf("%w: frames in flight must be at least 1, got %d", ErrUsage, o.framesInFlight)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	propagateLogger(log, device, commands, provider)

	c := &Controller{
		device:   device,
		commands: commands,
		opts:     o,
		log:      log,
		recreator: recreator{
			device:   device,
			commands: commands,
			provider: provider,
			log:      log,
		},
	}
	c.wantFrames.Store(int64(o.framesInFlight))

	if err := c.recreator.build(&c.targets, o.framesInFlight); err != nil {
		return nil, err
	}
	if o.recordWorkers > 1 {
		c.workers = parallel.NewWorkerPool(o.recordWorkers)
	}

	ext := c.targets.swapchain.Extent()
	log.Info("framesync: controller created",
		"framesInFlight", o.framesInFlight,
		"images", c.targets.images.Len(),
		"width", ext.Width, "height", ext.Height,
		"format", c.targets.swapchain.Format())
	return c, nil
}

// Frame returns the synchronizer for the open frame. Outside recording the
// returned value reports NullCommandBuffer.
func (c *Controller) Frame() FrameSynchronizer { return c.frame }

// FrameIndex returns the slot the next attempt will use.
func (c *Controller) FrameIndex() int { return c.frameIndex }

// FramesInFlight returns the current number of slots.
func (c *Controller) FramesInFlight() int { return c.targets.pool.Len() }

// State returns the current protocol state.
func (c *Controller) State() State { return c.state }

// Swapchain returns the current swapchain.
func (c *Controller) Swapchain() Swapchain { return c.targets.swapchain }

// Images returns the per-image resources of the current swapchain.
func (c *Controller) Images() *PerImageResources { return c.targets.images }

// Err returns the fatal error that stopped the loop, if any.
func (c *Controller) Err() error { return c.fatal }

// Stats returns a snapshot of the frame counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Attempts:    c.attempts.Load(),
		Presented:   c.presented.Load(),
		Skipped:     c.skipped.Load(),
		Recreations: c.recreations.Load(),
	}
}

// NotifyResized tells the controller the host window changed size. The
// swapchain is recreated after the next present, which covers platforms
// that never report out-of-date.
func (c *Controller) NotifyResized() { c.resized.Store(true) }

// SetFramesInFlight changes the frame count policy. The sync object pool is
// rebuilt at the next recreation, which this call requests.
func (c *Controller) SetFramesInFlight(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: frames in flight must be at least 1, got %d", ErrUsage, n)
	}
	c.wantFrames.Store(int64(n))
	c.resized.Store(true)
	return nil
}

// Recreate rebuilds the swapchain immediately. It must be called between
// frames.
func (c *Controller) Recreate() error {
	if err := c.usable(); err != nil {
		return err
	}
	c.current = c.attempt
	c.slot = c.frameIndex
	c.transition(StateRecreating)
	err := c.recreate()
	c.transition(StateIdle)
	if err != nil {
		return c.fail(StateRecreating, c.current, err)
	}
	return nil
}

// Run renders frames until ctx is cancelled or a fatal error occurs.
// Cancellation is not an error.
func (c *Controller) Run(ctx context.Context, recorders ...Recorder) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := c.RenderFrame(ctx, recorders...); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// RenderFrame runs one attempt of the frame protocol.
//
// Recoverable surface conditions are handled internally and reported in the
// result. Apart from a cancelled ctx, the returned error is fatal and the
// controller refuses further frames.
func (c *Controller) RenderFrame(ctx context.Context, recorders ...Recorder) (FrameResult, error) {
	if err := c.usable(); err != nil {
		return FrameResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return FrameResult{}, err
	}

	attempt := c.attempt
	c.attempt++
	c.current = attempt
	c.slot = c.frameIndex
	c.attempts.Add(1)

	res := FrameResult{Attempt: attempt, FrameIndex: c.frameIndex}
	recreate, err := c.runFrame(&res, recorders)
	if err != nil {
		c.transition(StateIdle)
		return res, err
	}

	// Rotation follows attempts, not successful submissions.
	c.frameIndex = (c.frameIndex + 1) % c.targets.pool.Len()

	if c.resized.Swap(false) {
		recreate = true
	}
	if recreate {
		c.transition(StateRecreating)
		if err := c.recreate(); err != nil {
			c.transition(StateIdle)
			return res, c.fail(StateRecreating, attempt, err)
		}
		res.Recreated = true
	}
	c.transition(StateIdle)
	return res, nil
}

// runFrame performs steps 1 to 5 and reports whether recreation is due.
func (c *Controller) runFrame(res *FrameResult, recorders []Recorder) (bool, error) {
	idx := c.frameIndex
	slot, err := c.targets.pool.Slot(idx)
	if err != nil {
		return false, c.fail(StateIdle, res.Attempt, err)
	}
	sc := c.targets.swapchain

	c.transition(StateAcquiring)
	if err := c.waitSlot(idx, slot); err != nil {
		return false, c.fail(StateAcquiring, res.Attempt, err)
	}

	image, status, err := sc.AcquireNextImage(c.opts.acquireTimeout, slot.ImageAvailable)
	if err != nil {
		return false, c.fail(StateAcquiring, res.Attempt, fmt.Errorf("acquire next image: %w", err))
	}
	res.Acquire = status
	pendingRecreate := false
	switch status {
	case SurfaceOutOfDate:
		// The image handle is unusable; abandon record, submit and present.
		c.skipped.Add(1)
		c.log.Warn("framesync: swapchain out of date on acquire", "attempt", res.Attempt, "frameIndex", idx)
		return true, nil
	case SurfaceSuboptimal:
		// Render this frame anyway and recreate after present.
		c.log.Warn("framesync: swapchain suboptimal on acquire", "attempt", res.Attempt, "frameIndex", idx)
		pendingRecreate = true
	}
	res.ImageIndex = image

	images := c.targets.images
	if _, err := images.Image(image); err != nil {
		return false, c.fail(StateAcquiring, res.Attempt, err)
	}
	if err := images.waitLastUse(c.device, image, slot.InFlight, c.opts.fenceTimeout); err != nil {
		return false, c.fail(StateAcquiring, res.Attempt, err)
	}
	cbs, err := images.commandBuffers(c.commands, image, c.bufferCount(len(recorders)))
	if err != nil {
		return false, c.fail(StateRecording, res.Attempt, err)
	}
	for _, cb := range cbs {
		if err := c.commands.Reset(cb); err != nil {
			return false, c.fail(StateRecording, res.Attempt, fmt.Errorf("reset command buffer %d for image %d: %w", cb, image, err))
		}
	}

	c.transition(StateRecording)
	frames := make([]*FrameContext, len(cbs))
	for i, cb := range cbs {
		frames[i] = newFrameContext(cb, idx, image, sc)
	}
	c.frame = frames[0]
	err = c.record(frames, recorders)
	for _, f := range frames {
		f.close()
	}
	c.frame = nil
	if err != nil {
		return false, c.fail(StateRecording, res.Attempt, fmt.Errorf("record: %w", err))
	}

	// The fence is reset only once submission is certain, so an abandoned
	// frame never leaves its slot without a signal.
	if err := c.device.ResetFence(slot.InFlight.Handle); err != nil {
		return false, c.fail(StateSubmitted, res.Attempt, fmt.Errorf("reset in-flight fence for slot %d: %w", idx, err))
	}
	err = c.device.Submit(SubmitInfo{
		CommandBuffers: cbs,
		Wait:           slot.ImageAvailable,
		Signal:         slot.RenderFinished,
		Fence:          slot.InFlight,
	})
	if err != nil {
		return false, c.fail(StateSubmitted, res.Attempt, fmt.Errorf("submit: %w", err))
	}
	c.targets.pool.markSubmitted(idx)
	images.markUsed(image, slot.InFlight)
	c.transition(StateSubmitted)

	c.transition(StatePresenting)
	status, err = sc.Present(image, slot.RenderFinished)
	if err != nil {
		return false, c.fail(StatePresenting, res.Attempt, fmt.Errorf("present image %d: %w", image, err))
	}
	res.Present = status
	res.Presented = true
	c.presented.Add(1)
	if status != SurfaceOK {
		c.log.Warn("framesync: swapchain needs recreation after present",
			"attempt", res.Attempt, "status", status)
		pendingRecreate = true
	}
	return pendingRecreate, nil
}

// waitSlot performs the bounded wait on the slot's in-flight fence.
func (c *Controller) waitSlot(idx int, slot FrameSlot) error {
	ok, err := c.device.WaitFence(slot.InFlight.Handle, c.opts.fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait in-flight fence for slot %d: %w", idx, err)
	}
	if !ok {
		return fmt.Errorf("%w: slot %d fence not signaled after %v", ErrSynchronizationTimeout, idx, c.opts.fenceTimeout)
	}
	c.targets.pool.markRetired(idx)
	return nil
}

// bufferCount returns how many command buffers a frame with the given
// number of recorders records into. Serial recorders share the image's
// command buffer; parallel ones each get their own.
func (c *Controller) bufferCount(recorders int) int {
	if c.workers == nil || recorders < 2 {
		return 1
	}
	return recorders
}

// record runs the recorders. With a single frame context they run in order
// on the calling goroutine. Otherwise recorder i records into frames[i] on
// the worker pool and all of them finish before this returns.
func (c *Controller) record(frames []*FrameContext, recorders []Recorder) error {
	if len(frames) == 1 {
		for _, r := range recorders {
			if err := r.Record(frames[0]); err != nil {
				return err
			}
		}
		return nil
	}

	jobs := make([]func() error, len(recorders))
	for i, r := range recorders {
		frame := frames[i]
		jobs[i] = func() error { return r.Record(frame) }
	}
	return c.workers.Run(jobs)
}

// recreate rebuilds the render targets and restarts the slot rotation.
// Old fences mean nothing against a new image set.
func (c *Controller) recreate() error {
	frames := int(c.wantFrames.Load())
	if err := c.recreator.recreate(&c.targets, frames); err != nil {
		return err
	}
	c.frameIndex = 0
	c.recreations.Add(1)
	return nil
}

// Close waits for the device to go idle and destroys everything the
// controller created. It is safe to call more than once.
//
// If the idle wait fails nothing is destroyed, since queued work may still
// reference the command buffers and swapchain images. The controller stays
// closed to new frames and a later Close retries the release.
func (c *Controller) Close() error {
	if c.released {
		return nil
	}
	c.closed = true
	if err := c.device.WaitIdle(); err != nil {
		c.log.Error("framesync: close deferred, device not idle", "err", err)
		return fmt.Errorf("wait device idle: %w", err)
	}
	c.released = true
	if c.workers != nil {
		c.workers.Close()
	}

	err := c.recreator.teardown(&c.targets)
	c.log.Info("framesync: controller closed", "attempts", c.attempts.Load())
	return err
}

func (c *Controller) usable() error {
	if c.closed {
		return ErrClosed
	}
	return c.fatal
}

// fail records a fatal error. Later frames return the same error.
func (c *Controller) fail(phase State, attempt uint64, err error) error {
	perr := &PhaseError{Phase: phase, Attempt: attempt, Err: err}
	c.fatal = perr
	c.log.Error("framesync: frame loop stopped", "phase", phase.String(), "attempt", attempt, "err", err)
	return perr
}

func (c *Controller) transition(to State) {
	from := c.state
	if from == to {
		return
	}
	if !validTransition(from, to) {
		c.log.Error("framesync: invalid state transition", "from", from.String(), "to", to.String())
	}
	c.state = to
	c.log.Debug("framesync: state", "from", from.String(), "to", to.String(), "frameIndex", c.slot)
	if c.opts.trace != nil {
		c.opts.trace(TraceEvent{Attempt: c.current, FrameIndex: c.slot, From: from, To: to})
	}
}
