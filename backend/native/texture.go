//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framesync"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultImageCount is the number of swapchain images an OffscreenSurface
// creates unless configured otherwise.
const DefaultImageCount = 3

// SurfaceOption configures an OffscreenSurface.
type SurfaceOption func(*OffscreenSurface)

// WithImageCount sets the number of images per swapchain. Values below 1
// are ignored.
func WithImageCount(n int) SurfaceOption {
	return func(s *OffscreenSurface) {
		if n > 0 {
			s.imageCount = n
		}
	}
}

// WithFormat sets the swapchain texture format.
func WithFormat(f gputypes.TextureFormat) SurfaceOption {
	return func(s *OffscreenSurface) {
		if f != gputypes.TextureFormatUndefined {
			s.format = f
		}
	}
}

// OffscreenSurface is a headless presentation target. It creates swapchains
// whose images are hal render-attachment textures.
//
// Resize invalidates every swapchain created before it; MarkSuboptimal
// makes the current swapchain report suboptimal until it is replaced. Both
// are safe to call from any goroutine, which lets a host thread model
// window events.
type OffscreenSurface struct {
	device *Device

	mu         sync.Mutex
	width      uint32
	height     uint32
	format     gputypes.TextureFormat
	imageCount int
	generation uint64
	suboptimal bool
	created    int
}

// NewOffscreenSurface creates a surface of the given size on device.
func NewOffscreenSurface(device *Device, width, height uint32, opts ...SurfaceOption) (*OffscreenSurface, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	s := &OffscreenSurface{
		device:     device,
		width:      width,
		height:     height,
		format:     gputypes.TextureFormatBGRA8Unorm,
		imageCount: DefaultImageCount,
	}
	if f := device.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		s.format = f
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Resize changes the surface size. Existing swapchains report out-of-date
// from then on.
func (s *OffscreenSurface) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.width && height == s.height {
		return nil
	}
	s.width, s.height = width, height
	s.generation++
	slogger().Debug("native: surface resized", "width", width, "height", height)
	return nil
}

// MarkSuboptimal makes the current swapchain report suboptimal on acquire
// and present until the next one is created.
func (s *OffscreenSurface) MarkSuboptimal() {
	s.mu.Lock()
	s.suboptimal = true
	s.mu.Unlock()
}

// Size returns the current surface size.
func (s *OffscreenSurface) Size() (width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Created returns the number of swapchains created so far.
func (s *OffscreenSurface) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// status reports how a swapchain of generation gen relates to the surface.
func (s *OffscreenSurface) status(gen uint64) framesync.SurfaceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case gen != s.generation:
		return framesync.SurfaceOutOfDate
	case s.suboptimal:
		return framesync.SurfaceSuboptimal
	default:
		return framesync.SurfaceOK
	}
}

// CreateSwapchain implements framesync.SwapchainProvider. The old swapchain
// is left to the caller to destroy.
func (s *OffscreenSurface) CreateSwapchain(old framesync.Swapchain) (framesync.Swapchain, error) {
	s.mu.Lock()
	width, height := s.width, s.height
	format, count, gen := s.format, s.imageCount, s.generation
	s.suboptimal = false
	s.mu.Unlock()

	sc := &Swapchain{
		surface:    s,
		device:     s.device.device,
		generation: gen,
		width:      width,
		height:     height,
		format:     format,
	}
	label := fmt.Sprintf("swapchain_%d", gen)
	for i := range count {
		img, err := createImage(sc.device, width, height, format, fmt.Sprintf("%s_image_%d", label, i))
		if err != nil {
			sc.Destroy()
			return nil, fmt.Errorf("create swapchain image %d: %w", i, err)
		}
		sc.images = append(sc.images, img)
	}

	s.mu.Lock()
	s.created++
	s.mu.Unlock()
	slogger().Debug("native: swapchain created",
		"width", width, "height", height, "images", count, "replaces", old != nil)
	return sc, nil
}

// swapchainImage is one render target of a swapchain.
type swapchainImage struct {
	tex  hal.Texture
	view hal.TextureView
}

func createImage(device hal.Device, w, h uint32, format gputypes.TextureFormat, label string) (swapchainImage, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return swapchainImage{}, fmt.Errorf("create texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return swapchainImage{}, fmt.Errorf("create texture view: %w", err)
	}
	return swapchainImage{tex: tex, view: view}, nil
}

// Swapchain is a ring of offscreen render targets created by an
// OffscreenSurface. It implements framesync.Swapchain.
type Swapchain struct {
	surface    *OffscreenSurface
	device     hal.Device
	generation uint64
	width      uint32
	height     uint32
	format     gputypes.TextureFormat
	images     []swapchainImage
	next       uint32
	presented  uint64
	destroyed  bool
}

// AcquireNextImage returns the next image in round-robin order. The image is
// immediately available, so signal is not used.
func (sc *Swapchain) AcquireNextImage(_ time.Duration, _ framesync.Signal) (uint32, framesync.SurfaceStatus, error) {
	if sc.destroyed {
		return 0, framesync.SurfaceOK, ErrSwapchainDestroyed
	}
	status := sc.surface.status(sc.generation)
	if status == framesync.SurfaceOutOfDate {
		return 0, status, nil
	}
	image := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return image, status, nil
}

// Present queues image for presentation. Queue order guarantees the
// rendering submitted before it has completed first.
func (sc *Swapchain) Present(image uint32, _ framesync.Signal) (framesync.SurfaceStatus, error) {
	if sc.destroyed {
		return framesync.SurfaceOK, ErrSwapchainDestroyed
	}
	if int(image) >= len(sc.images) {
		return framesync.SurfaceOK, fmt.Errorf("%w: present image %d of %d", framesync.ErrUsage, image, len(sc.images))
	}
	sc.presented++
	return sc.surface.status(sc.generation), nil
}

// ImageCount returns the number of images.
func (sc *Swapchain) ImageCount() int { return len(sc.images) }

// Extent returns the image size.
func (sc *Swapchain) Extent() gputypes.Extent3D {
	return gputypes.Extent3D{Width: sc.width, Height: sc.height, DepthOrArrayLayers: 1}
}

// Format returns the image format.
func (sc *Swapchain) Format() gputypes.TextureFormat { return sc.format }

// Presented returns how many presents succeeded.
func (sc *Swapchain) Presented() uint64 { return sc.presented }

// View returns the render target view of image i, or nil if out of range.
func (sc *Swapchain) View(i uint32) hal.TextureView {
	if int(i) >= len(sc.images) {
		return nil
	}
	return sc.images[i].view
}

// Texture returns the texture of image i, or nil if out of range.
func (sc *Swapchain) Texture(i uint32) hal.Texture {
	if int(i) >= len(sc.images) {
		return nil
	}
	return sc.images[i].tex
}

// Destroy releases the textures. Calling it twice is a no-op.
func (sc *Swapchain) Destroy() {
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	for _, img := range sc.images {
		if img.view != nil {
			sc.device.DestroyTextureView(img.view)
		}
		if img.tex != nil {
			sc.device.DestroyTexture(img.tex)
		}
	}
	sc.images = nil
}

var (
	_ framesync.SwapchainProvider = (*OffscreenSurface)(nil)
	_ framesync.Swapchain         = (*Swapchain)(nil)
)
