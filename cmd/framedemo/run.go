package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/framesync"
	"github.com/gogpu/framesync/backend/native"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// openNoopDevice opens the headless hal device the demo renders on.
func openNoopDevice() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open adapter: %w", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

// run drives cfg.Frames frame attempts and writes the trace, if enabled,
// and a summary to out.
func run(ctx context.Context, cfg Config, out io.Writer, log *slog.Logger) (framesync.Stats, error) {
	halDevice, queue, cleanup, err := openNoopDevice()
	if err != nil {
		return framesync.Stats{}, err
	}
	defer cleanup()

	device, err := native.New(halDevice, queue)
	if err != nil {
		return framesync.Stats{}, err
	}
	defer device.Destroy()

	surface, err := native.NewOffscreenSurface(device, cfg.Width, cfg.Height, native.WithImageCount(cfg.Images))
	if err != nil {
		return framesync.Stats{}, err
	}

	opts := []framesync.Option{
		framesync.WithFramesInFlight(cfg.FramesInFlight),
		framesync.WithFenceTimeout(cfg.FenceTimeout),
		framesync.WithRecordWorkers(cfg.RecordWorkers),
		framesync.WithLogger(log),
	}
	if cfg.Trace {
		opts = append(opts, framesync.WithTraceHook(func(ev framesync.TraceEvent) {
			fmt.Fprintln(out, ev)
		}))
	}
	ctrl, err := framesync.NewController(device, device, surface, opts...)
	if err != nil {
		return framesync.Stats{}, err
	}

	// One uniform slot per frame in flight, rewritten every frame.
	uniforms := framesync.NewPerFrame(cfg.FramesInFlight, func(int) uint64 { return 0 })
	recorders := make([]framesync.Recorder, cfg.Recorders)
	for i := range recorders {
		recorders[i] = framesync.RecorderFunc(func(fs framesync.FrameSynchronizer) error {
			if _, err := device.Encoder(fs.CurrentCommandBuffer()); err != nil {
				return err
			}
			if i == 0 {
				u, err := uniforms.Current(fs)
				if err != nil {
					return err
				}
				*u++
			}
			return nil
		})
	}

	var runErr error
	small := false
	for frame := 1; frame <= cfg.Frames; frame++ {
		if ctx.Err() != nil {
			break
		}
		if _, runErr = ctrl.RenderFrame(ctx, recorders...); runErr != nil {
			break
		}
		if cfg.ResizeEvery > 0 && frame%cfg.ResizeEvery == 0 {
			// Alternate between the configured size and half of it.
			small = !small
			width, height := cfg.Width, cfg.Height
			if small {
				width, height = max(width/2, 1), max(height/2, 1)
			}
			if err := surface.Resize(width, height); err != nil {
				runErr = err
				break
			}
		}
		if cfg.SuboptimalEvery > 0 && frame%cfg.SuboptimalEvery == 0 {
			surface.MarkSuboptimal()
		}
	}

	stats := ctrl.Stats()
	closeErr := ctrl.Close()
	if runErr == nil {
		runErr = closeErr
	}
	fmt.Fprintf(out, "attempts=%d presented=%d skipped=%d recreations=%d\n",
		stats.Attempts, stats.Presented, stats.Skipped, stats.Recreations)
	return stats, runErr
}
