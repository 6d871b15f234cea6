// Package parallel runs command recording on a fixed set of goroutines.
//
// Recorders write into disjoint sub-buffers of the same frame. The
// controller hands them to a WorkerPool and blocks until every one has
// returned, so submission never observes a half-recorded frame.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines that execute recording jobs.
//
// Jobs are distributed round-robin over per-worker queues. The pool never
// runs work in the background past a call: Run and ExecuteAll return only
// after every job they were given has finished.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds one job queue per worker.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		// A frame rarely has more recorders than a few per worker.
		p.queues[i] = make(chan func(), 4)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(p.queues[i])
	}
	return p
}

func (p *WorkerPool) worker(queue chan func()) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			// Drain so no caller of ExecuteAll waits forever.
			for {
				select {
				case job := <-queue:
					job()
				default:
					return
				}
			}
		case job := <-queue:
			job()
		}
	}
}

// ExecuteAll runs every function and waits for all of them to complete.
// Nil entries are skipped. If the pool is closed the work runs on the
// calling goroutine instead.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	if !p.running.Load() {
		for _, fn := range work {
			if fn != nil {
				fn()
			}
		}
		return
	}

	var wg sync.WaitGroup
	for i, fn := range work {
		if fn == nil {
			continue
		}
		wg.Add(1)
		job := func() {
			defer wg.Done()
			fn()
		}
		select {
		case p.queues[i%p.workers] <- job:
		case <-p.done:
			job()
		}
	}
	wg.Wait()
}

// Run executes jobs concurrently, waits for all of them and returns their
// errors joined. A panicking job is reported as an error so one faulty
// recorder cannot take the frame loop down with it.
func (p *WorkerPool) Run(jobs []func() error) error {
	errs := make([]error, len(jobs))
	work := make([]func(), len(jobs))
	for i, job := range jobs {
		if job == nil {
			continue
		}
		work[i] = func() {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("parallel: job %d panicked: %v", i, r)
				}
			}()
			errs[i] = job()
		}
	}
	p.ExecuteAll(work)
	return errors.Join(errs...)
}

// Close stops the workers after queued jobs finish.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
