// Package framesync provides frame synchronization and command buffer
// lifecycle management for GPU render loops.
//
// # Overview
//
// framesync keeps up to F frames in flight on the GPU while the CPU records
// the next one. Each frame slot owns an image-available semaphore, a
// render-finished semaphore and an in-flight fence. Command buffers belong
// to swapchain images instead: each image has one, plus a sub-buffer per
// extra recorder when recording runs in parallel. The Controller drives one
// frame attempt at a time through a small state machine and recreates the
// swapchain when the surface changes.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/framesync"
//		"github.com/gogpu/framesync/backend/native"
//	)
//
//	device, _ := native.New(halDevice, halQueue)
//	surface, _ := native.NewOffscreenSurface(device, 800, 600)
//
//	ctrl, _ := framesync.NewController(device, device, surface,
//		framesync.WithFramesInFlight(2),
//	)
//	defer ctrl.Close()
//
//	ctrl.RenderFrame(ctx, framesync.RecorderFunc(func(fs framesync.FrameSynchronizer) error {
//		enc, err := device.Encoder(fs.CurrentCommandBuffer())
//		if err != nil {
//			return err
//		}
//		// record into enc
//		return nil
//	}))
//
// # Frame Attempt
//
// A frame attempt waits on the slot's in-flight fence, acquires a swapchain
// image, waits for any earlier frame still using that image, resets and
// records the image's command buffers, resets the fence, submits and
// presents. The frame index advances after every attempt, including
// attempts skipped because the swapchain was out of date.
//
// # Swapchain Recreation
//
// An out-of-date acquire skips the frame and recreates immediately. A
// suboptimal acquire or present, an out-of-date present, or an explicit
// NotifyResized recreates after the present. Recreation waits for the
// device to go idle, then rebuilds the swapchain, per-image tracking and,
// when the frame count changed, the synchronization pool.
//
// # Errors
//
// Device loss, submission failures and recorder failures are fatal: the
// Controller records the error and returns it from every later call.
// Use IsFatal and PhaseError to inspect where a frame failed.
//
// # Logging
//
// The package is silent by default. Use SetLogger or WithLogger to attach
// an slog.Logger; the logger is forwarded to collaborators that accept one.
package framesync
