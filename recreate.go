// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import (
	"errors"
	"fmt"
	"log/slog"
)

// renderTargets is the swapchain-dependent object graph owned by the
// controller. It is replaced as a unit by the recreator.
type renderTargets struct {
	swapchain Swapchain
	images    *PerImageResources
	pool      *SyncObjectPool
}

// recreator tears down and rebuilds swapchain-dependent resources after the
// surface becomes invalid.
type recreator struct {
	device   Device
	commands CommandPool
	provider SwapchainProvider
	log      *slog.Logger
}

// build creates the initial object graph. On failure nothing is left
// allocated.
func (r *recreator) build(t *renderTargets, framesInFlight int) error {
	return r.replace(t, framesInFlight)
}

// recreate waits for the device to go idle and replaces the swapchain, the
// per-image command buffers and, if the frame count changed, the sync
// object pool. Objects referenced by GPU work are only destroyed after the
// idle wait. On failure the old graph is left untouched.
func (r *recreator) recreate(t *renderTargets, framesInFlight int) error {
	// Destroying shared resources while any queue still reads them would
	// race, so a single slot fence is not enough here.
	if err := r.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait device idle: %w", err)
	}
	if err := r.replace(t, framesInFlight); err != nil {
		return err
	}
	ext := t.swapchain.Extent()
	r.log.Info("framesync: swapchain recreated",
		"width", ext.Width, "height", ext.Height,
		"images", t.images.Len(), "framesInFlight", t.pool.Len())
	return nil
}

func (r *recreator) replace(t *renderTargets, framesInFlight int) error {
	old := t.swapchain

	sc, err := r.provider.CreateSwapchain(old)
	if err != nil {
		return fmt.Errorf("%w: create swapchain: %w", ErrResourceCreation, err)
	}
	if sc == nil {
		return fmt.Errorf("%w: swapchain provider returned nil", ErrResourceCreation)
	}

	images, err := newPerImageResources(r.commands, sc.ImageCount())
	if err != nil {
		sc.Destroy()
		return err
	}

	var pool *SyncObjectPool
	if t.pool == nil || t.pool.Len() != framesInFlight {
		pool, err = NewSyncObjectPool(r.device, framesInFlight)
		if err != nil {
			images.release(r.commands)
			sc.Destroy()
			return err
		}
		if t.pool != nil {
			if err := t.pool.Dispose(); err != nil {
				_ = pool.Dispose()
				images.release(r.commands)
				sc.Destroy()
				return fmt.Errorf("replace sync objects: %w", err)
			}
			r.log.Debug("framesync: sync objects rebuilt", "from", t.pool.Len(), "to", framesInFlight)
		}
	}

	// Commit. Old objects go only after the replacement graph exists.
	if t.images != nil {
		t.images.release(r.commands)
	}
	if old != nil {
		old.Destroy()
	}
	t.swapchain = sc
	t.images = images
	if pool != nil {
		t.pool = pool
	}
	return nil
}

// teardown releases the whole graph. The device must be idle.
func (r *recreator) teardown(t *renderTargets) error {
	var errs []error
	if t.images != nil {
		t.images.release(r.commands)
		t.images = nil
	}
	if t.swapchain != nil {
		t.swapchain.Destroy()
		t.swapchain = nil
	}
	if t.pool != nil {
		if err := t.pool.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
