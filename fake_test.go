package framesync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
)

// =============================================================================
// Test doubles for the frame loop collaborators
// =============================================================================

// callLog records collaborator calls in order. Shared by every fake of one
// test so the relative order of acquire, submit, present and recreation is
// observable.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// count returns how many calls equal name.
func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.snapshot() {
		if c == name {
			n++
		}
	}
	return n
}

// indexOf returns the position of the first call equal to name at or after
// from, or -1.
func (l *callLog) indexOf(name string, from int) int {
	calls := l.snapshot()
	for i := from; i < len(calls); i++ {
		if calls[i] == name {
			return i
		}
	}
	return -1
}

var errInjected = errors.New("injected failure")

type fakeFence struct {
	signaled bool
}

// fakeDevice is a test double for Device. Submitted work completes
// immediately unless holdSubmits is set.
type fakeDevice struct {
	log *callLog

	next       Handle
	semaphores map[Handle]bool
	fences     map[Handle]*fakeFence

	// failSemaphoreAt and failFenceAt make the n-th (1-based) creation fail.
	failSemaphoreAt int
	failFenceAt     int
	semaphoreCalls  int
	fenceCalls      int

	holdSubmits  bool
	failSubmit   error
	failWaitIdle error
	waitIdle     int
	submits      []SubmitInfo
	waitTimeouts []time.Duration
}

func newFakeDevice(log *callLog) *fakeDevice {
	return &fakeDevice{
		log:        log,
		semaphores: make(map[Handle]bool),
		fences:     make(map[Handle]*fakeFence),
	}
}

func (d *fakeDevice) handle() Handle {
	d.next++
	return d.next
}

func (d *fakeDevice) CreateSemaphore() (Handle, error) {
	d.semaphoreCalls++
	if d.semaphoreCalls == d.failSemaphoreAt {
		return NullHandle, errInjected
	}
	h := d.handle()
	d.semaphores[h] = true
	return h, nil
}

func (d *fakeDevice) DestroySemaphore(h Handle) {
	if !d.semaphores[h] {
		panic(fmt.Sprintf("destroy of unknown semaphore %d", h))
	}
	delete(d.semaphores, h)
}

func (d *fakeDevice) CreateFence(signaled bool) (Handle, error) {
	d.fenceCalls++
	if d.fenceCalls == d.failFenceAt {
		return NullHandle, errInjected
	}
	h := d.handle()
	d.fences[h] = &fakeFence{signaled: signaled}
	return h, nil
}

func (d *fakeDevice) DestroyFence(h Handle) {
	if _, ok := d.fences[h]; !ok {
		panic(fmt.Sprintf("destroy of unknown fence %d", h))
	}
	delete(d.fences, h)
}

func (d *fakeDevice) WaitFence(h Handle, timeout time.Duration) (bool, error) {
	f, ok := d.fences[h]
	if !ok {
		return false, fmt.Errorf("wait on unknown fence %d", h)
	}
	d.waitTimeouts = append(d.waitTimeouts, timeout)
	return f.signaled, nil
}

func (d *fakeDevice) ResetFence(h Handle) error {
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("reset of unknown fence %d", h)
	}
	f.signaled = false
	return nil
}

func (d *fakeDevice) Submit(info SubmitInfo) error {
	d.log.add("submit")
	if d.failSubmit != nil {
		return d.failSubmit
	}
	d.submits = append(d.submits, info)
	if !d.holdSubmits {
		d.fences[info.Fence.Handle].signaled = true
	}
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.log.add("wait-idle")
	d.waitIdle++
	if d.failWaitIdle != nil {
		return d.failWaitIdle
	}
	// Draining the queues retires every submission.
	for _, s := range d.submits {
		if f, ok := d.fences[s.Fence.Handle]; ok {
			f.signaled = true
		}
	}
	return nil
}

// live returns the number of semaphores and fences not yet destroyed.
func (d *fakeDevice) live() int { return len(d.semaphores) + len(d.fences) }

// fakeCommandPool is a test double for CommandPool.
type fakeCommandPool struct {
	next      CommandBuffer
	live      map[CommandBuffer]bool
	resets    []CommandBuffer
	failAlloc bool
	failReset bool
}

func newFakeCommandPool() *fakeCommandPool {
	return &fakeCommandPool{live: make(map[CommandBuffer]bool)}
}

func (p *fakeCommandPool) Allocate(count int) ([]CommandBuffer, error) {
	if p.failAlloc {
		return nil, errInjected
	}
	cbs := make([]CommandBuffer, count)
	for i := range cbs {
		p.next++
		cbs[i] = p.next
		p.live[p.next] = true
	}
	return cbs, nil
}

func (p *fakeCommandPool) Reset(cb CommandBuffer) error {
	if p.failReset {
		return errInjected
	}
	if !p.live[cb] {
		return fmt.Errorf("reset of unknown command buffer %d", cb)
	}
	p.resets = append(p.resets, cb)
	return nil
}

func (p *fakeCommandPool) Free(cbs []CommandBuffer) {
	for _, cb := range cbs {
		delete(p.live, cb)
	}
}

// fakeProvider is a test double for SwapchainProvider. Acquire and present
// outcomes are scripted by call number (0-based, across swapchains).
type fakeProvider struct {
	log        *callLog
	imageCount int
	extent     gputypes.Extent3D

	acquireScript map[int]SurfaceStatus
	presentScript map[int]SurfaceStatus
	acquireErr    map[int]error
	acquires      int
	presents      int

	created   int
	destroyed int
	failAt    int // 1-based creation that fails
}

func newFakeProvider(log *callLog, images int) *fakeProvider {
	return &fakeProvider{
		log:           log,
		imageCount:    images,
		extent:        gputypes.Extent3D{Width: 640, Height: 480, DepthOrArrayLayers: 1},
		acquireScript: make(map[int]SurfaceStatus),
		presentScript: make(map[int]SurfaceStatus),
		acquireErr:    make(map[int]error),
	}
}

func (p *fakeProvider) CreateSwapchain(old Swapchain) (Swapchain, error) {
	p.log.add("create-swapchain")
	if p.failAt == p.created+1 {
		p.failAt = 0
		return nil, errInjected
	}
	p.created++
	return &fakeSwapchain{provider: p, id: p.created, images: p.imageCount, extent: p.extent}, nil
}

// recreations returns swapchain creations after the initial one.
func (p *fakeProvider) recreations() int { return p.created - 1 }

type fakeSwapchain struct {
	provider  *fakeProvider
	id        int
	images    int
	next      uint32
	extent    gputypes.Extent3D
	destroyed bool
}

func (s *fakeSwapchain) AcquireNextImage(_ time.Duration, _ Signal) (uint32, SurfaceStatus, error) {
	p := s.provider
	n := p.acquires
	p.acquires++
	p.log.add("acquire")
	if err := p.acquireErr[n]; err != nil {
		return 0, SurfaceOK, err
	}
	st := p.acquireScript[n]
	if st == SurfaceOutOfDate {
		return 0, st, nil
	}
	img := s.next
	s.next = (s.next + 1) % uint32(s.images)
	return img, st, nil
}

func (s *fakeSwapchain) Present(_ uint32, _ Signal) (SurfaceStatus, error) {
	p := s.provider
	n := p.presents
	p.presents++
	p.log.add("present")
	return p.presentScript[n], nil
}

func (s *fakeSwapchain) ImageCount() int                { return s.images }
func (s *fakeSwapchain) Extent() gputypes.Extent3D      { return s.extent }
func (s *fakeSwapchain) Format() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

func (s *fakeSwapchain) Destroy() {
	if s.destroyed {
		panic("swapchain destroyed twice")
	}
	s.destroyed = true
	s.provider.destroyed++
}

// harness bundles the fakes for one controller.
type harness struct {
	log      *callLog
	device   *fakeDevice
	commands *fakeCommandPool
	provider *fakeProvider
}

func newHarness(images int) *harness {
	log := &callLog{}
	return &harness{
		log:      log,
		device:   newFakeDevice(log),
		commands: newFakeCommandPool(),
		provider: newFakeProvider(log, images),
	}
}

func (h *harness) controller(opts ...Option) (*Controller, error) {
	return NewController(h.device, h.commands, h.provider, opts...)
}
