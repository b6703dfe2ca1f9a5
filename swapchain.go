package termatlas

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SwapChain abstracts the renderer's presentation target. The host owns
// swap-chain creation and resize; the renderer only asks for the current
// back buffer and presents.
//
// Present must return an error wrapping ErrDeviceLost when the device was
// lost; the renderer propagates it upward untouched.
type SwapChain interface {
	// UpdateSettings reconciles the swap chain with the payload's target
	// size. beforeResize and afterResize bracket a buffer resize so the
	// renderer can drop views into the old buffers.
	UpdateSettings(p *RenderPayload, beforeResize, afterResize func()) error

	// Buffer returns the current back buffer.
	Buffer() (hal.Texture, hal.TextureView, error)

	// Present shows the rendered frame.
	Present(p *RenderPayload) error

	// WaitUntilCanRender blocks until the swap chain can accept another
	// frame. It may return immediately.
	WaitUntilCanRender()
}

// OffscreenSwapChain is a SwapChain backed by a plain render-target texture.
// It never presents anywhere; it exists for headless rendering and tests.
// The texture is created with CopySrc usage so frames can be read back.
type OffscreenSwapChain struct {
	device hal.Device

	tex  hal.Texture
	view hal.TextureView
	size image.Point
}

// NewOffscreenSwapChain creates an offscreen swap chain on device. The
// backing texture is created lazily from the first payload's target size.
func NewOffscreenSwapChain(device hal.Device) *OffscreenSwapChain {
	return &OffscreenSwapChain{device: device}
}

// UpdateSettings implements SwapChain.
func (s *OffscreenSwapChain) UpdateSettings(p *RenderPayload, beforeResize, afterResize func()) error {
	if s.tex != nil && s.size == p.TargetSize {
		return nil
	}
	if beforeResize != nil {
		beforeResize()
	}
	s.destroy()

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "offscreen_backbuffer",
		Size:          hal.Extent3D{Width: uint32(p.TargetSize.X), Height: uint32(p.TargetSize.Y), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create offscreen backbuffer: %w", err)
	}
	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "offscreen_backbuffer_view"})
	if err != nil {
		s.device.DestroyTexture(tex)
		return fmt.Errorf("termatlas: create offscreen backbuffer view: %w", err)
	}

	s.tex = tex
	s.view = view
	s.size = p.TargetSize
	if afterResize != nil {
		afterResize()
	}
	return nil
}

// Buffer implements SwapChain.
func (s *OffscreenSwapChain) Buffer() (hal.Texture, hal.TextureView, error) {
	if s.tex == nil {
		return nil, nil, fmt.Errorf("termatlas: offscreen swap chain has no buffer yet")
	}
	return s.tex, s.view, nil
}

// Present implements SwapChain. Offscreen frames are complete once the
// queue work retires, so this is a no-op.
func (s *OffscreenSwapChain) Present(*RenderPayload) error { return nil }

// WaitUntilCanRender implements SwapChain.
func (s *OffscreenSwapChain) WaitUntilCanRender() {}

// Close releases the backing texture.
func (s *OffscreenSwapChain) Close() {
	s.destroy()
}

func (s *OffscreenSwapChain) destroy() {
	if s.view != nil {
		s.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		s.device.DestroyTexture(s.tex)
		s.tex = nil
	}
	s.size = image.Point{}
}
