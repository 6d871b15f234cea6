// Package native runs the framesync frame loop on a gogpu/wgpu hal device.
//
// [Device] implements both framesync.Device and framesync.CommandPool. Hal
// fences are timeline fences, so each framesync fence is a hal fence plus
// the last value submitted against it. Semaphores are ordering tokens: a
// single hal queue already executes submissions in order.
//
// [OffscreenSurface] is a headless presentation engine. It implements
// framesync.SwapchainProvider with a ring of render-attachment textures and
// reports out-of-date and suboptimal conditions after [OffscreenSurface.Resize]
// and [OffscreenSurface.MarkSuboptimal], which makes the recreation paths
// testable without a window system.
//
// Usage:
//
//	dev, err := native.New(halDevice, halQueue)
//	surface, err := native.NewOffscreenSurface(dev, 800, 600)
//	ctrl, err := framesync.NewController(dev, dev, surface)
//	defer ctrl.Close()
//
//	_, err = ctrl.RenderFrame(ctx, framesync.RecorderFunc(func(fs framesync.FrameSynchronizer) error {
//	    enc, err := dev.Encoder(fs.CurrentCommandBuffer())
//	    // record render passes into enc
//	    return err
//	}))
package native
