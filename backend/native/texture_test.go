//go:build !nogpu

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/framesync"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// countingDevice wraps a hal.Device to count texture traffic and inject a
// texture creation failure.
type countingDevice struct {
	hal.Device
	failTextureAt int // 1-based
	textures      int
	views         int
	destroyedTex  int
	destroyedView int
}

func (d *countingDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if d.failTextureAt > 0 && d.textures+1 == d.failTextureAt {
		return nil, errors.New("injected texture failure")
	}
	d.textures++
	return d.Device.CreateTexture(desc)
}

func (d *countingDevice) CreateTextureView(tex hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	d.views++
	return d.Device.CreateTextureView(tex, desc)
}

func (d *countingDevice) DestroyTexture(tex hal.Texture) {
	d.destroyedTex++
	d.Device.DestroyTexture(tex)
}

func (d *countingDevice) DestroyTextureView(view hal.TextureView) {
	d.destroyedView++
	d.Device.DestroyTextureView(view)
}

func newCountingDevice(t *testing.T) (*Device, *countingDevice) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	counting := &countingDevice{Device: device}
	d, err := New(counting, queue)
	if err != nil {
		t.Fatal(err)
	}
	return d, counting
}

func TestNewOffscreenSurface_Validation(t *testing.T) {
	d := newTestDevice(t)
	if _, err := NewOffscreenSurface(nil, 10, 10); !errors.Is(err, ErrNilHALDevice) {
		t.Errorf("nil device err = %v", err)
	}
	if _, err := NewOffscreenSurface(d, 0, 10); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("zero width err = %v", err)
	}
	s, err := NewOffscreenSurface(d, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Resize(10, 0); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Resize(10, 0) err = %v", err)
	}
}

func TestOffscreenSurface_CreateSwapchain(t *testing.T) {
	d, counting := newCountingDevice(t)
	s, err := NewOffscreenSurface(d, 320, 200, WithImageCount(2), WithFormat(gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatal(err)
	}

	sc, err := s.CreateSwapchain(nil)
	if err != nil {
		t.Fatalf("CreateSwapchain: %v", err)
	}
	if sc.ImageCount() != 2 {
		t.Errorf("ImageCount() = %d, want 2", sc.ImageCount())
	}
	if ext := sc.Extent(); ext.Width != 320 || ext.Height != 200 || ext.DepthOrArrayLayers != 1 {
		t.Errorf("Extent() = %+v", ext)
	}
	if sc.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v", sc.Format())
	}
	native := sc.(*Swapchain)
	for i := range uint32(2) {
		if native.View(i) == nil || native.Texture(i) == nil {
			t.Errorf("image %d has no texture or view", i)
		}
	}
	if native.View(2) != nil || native.Texture(2) != nil {
		t.Error("out-of-range image returned a resource")
	}
	if counting.textures != 2 || counting.views != 2 {
		t.Errorf("created %d textures / %d views, want 2 / 2", counting.textures, counting.views)
	}

	sc.Destroy()
	sc.Destroy()
	if counting.destroyedTex != 2 || counting.destroyedView != 2 {
		t.Errorf("destroyed %d textures / %d views, want 2 / 2", counting.destroyedTex, counting.destroyedView)
	}
	if _, _, err := sc.AcquireNextImage(0, framesync.Signal{}); !errors.Is(err, ErrSwapchainDestroyed) {
		t.Errorf("Acquire after Destroy err = %v", err)
	}
	if _, err := sc.Present(0, framesync.Signal{}); !errors.Is(err, ErrSwapchainDestroyed) {
		t.Errorf("Present after Destroy err = %v", err)
	}
}

func TestOffscreenSurface_CreateFailureReleasesImages(t *testing.T) {
	d, counting := newCountingDevice(t)
	counting.failTextureAt = 3
	s, err := NewOffscreenSurface(d, 64, 64)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.CreateSwapchain(nil); err == nil {
		t.Fatal("expected CreateSwapchain to fail")
	}
	if counting.destroyedTex != counting.textures || counting.destroyedView != counting.views {
		t.Errorf("leak: textures %d/%d views %d/%d",
			counting.destroyedTex, counting.textures, counting.destroyedView, counting.views)
	}
	if s.Created() != 0 {
		t.Errorf("Created() = %d, want 0", s.Created())
	}
}

func TestSwapchain_AcquireRoundRobin(t *testing.T) {
	d := newTestDevice(t)
	s, err := NewOffscreenSurface(d, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := s.CreateSwapchain(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Destroy()

	for i := range 7 {
		img, status, err := sc.AcquireNextImage(0, framesync.Signal{})
		if err != nil || status != framesync.SurfaceOK {
			t.Fatalf("acquire %d: %v %v", i, status, err)
		}
		if want := uint32(i % DefaultImageCount); img != want {
			t.Errorf("acquire %d = image %d, want %d", i, img, want)
		}
		if status, err := sc.Present(img, framesync.Signal{}); err != nil || status != framesync.SurfaceOK {
			t.Fatalf("present %d: %v %v", i, status, err)
		}
	}
	if sc.(*Swapchain).Presented() != 7 {
		t.Errorf("Presented() = %d", sc.(*Swapchain).Presented())
	}
	if _, err := sc.Present(99, framesync.Signal{}); !errors.Is(err, framesync.ErrUsage) {
		t.Errorf("Present(99) err = %v, want ErrUsage", err)
	}
}

func TestSwapchain_ResizeMakesOutOfDate(t *testing.T) {
	d := newTestDevice(t)
	s, err := NewOffscreenSurface(d, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	old, err := s.CreateSwapchain(nil)
	if err != nil {
		t.Fatal(err)
	}

	// Same size is not a change.
	if err := s.Resize(64, 64); err != nil {
		t.Fatal(err)
	}
	if _, status, _ := old.AcquireNextImage(0, framesync.Signal{}); status != framesync.SurfaceOK {
		t.Errorf("status after no-op resize = %v", status)
	}

	if err := s.Resize(128, 96); err != nil {
		t.Fatal(err)
	}
	if _, status, err := old.AcquireNextImage(0, framesync.Signal{}); err != nil || status != framesync.SurfaceOutOfDate {
		t.Errorf("acquire after resize = %v, %v, want out-of-date", status, err)
	}
	if status, _ := old.Present(0, framesync.Signal{}); status != framesync.SurfaceOutOfDate {
		t.Errorf("present after resize = %v, want out-of-date", status)
	}

	sc, err := s.CreateSwapchain(old)
	if err != nil {
		t.Fatal(err)
	}
	old.Destroy()
	defer sc.Destroy()
	if ext := sc.Extent(); ext.Width != 128 || ext.Height != 96 {
		t.Errorf("new extent = %+v", ext)
	}
	if _, status, _ := sc.AcquireNextImage(0, framesync.Signal{}); status != framesync.SurfaceOK {
		t.Errorf("new swapchain status = %v", status)
	}
	if w, h := s.Size(); w != 128 || h != 96 {
		t.Errorf("Size() = %dx%d", w, h)
	}
}

func TestSwapchain_MarkSuboptimal(t *testing.T) {
	d := newTestDevice(t)
	s, err := NewOffscreenSurface(d, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := s.CreateSwapchain(nil)
	if err != nil {
		t.Fatal(err)
	}

	s.MarkSuboptimal()
	img, status, err := sc.AcquireNextImage(0, framesync.Signal{})
	if err != nil || status != framesync.SurfaceSuboptimal {
		t.Errorf("acquire = %v, %v, want suboptimal", status, err)
	}
	if status, _ := sc.Present(img, framesync.Signal{}); status != framesync.SurfaceSuboptimal {
		t.Errorf("present = %v, want suboptimal", status)
	}

	next, err := s.CreateSwapchain(sc)
	if err != nil {
		t.Fatal(err)
	}
	sc.Destroy()
	defer next.Destroy()
	if _, status, _ := next.AcquireNextImage(0, framesync.Signal{}); status != framesync.SurfaceOK {
		t.Errorf("replacement status = %v, want ok", status)
	}
}
