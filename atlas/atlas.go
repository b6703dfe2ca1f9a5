package atlas

import (
	"image"
	"image/draw"
	"math/bits"
)

// Area bounds for the atlas texture.
const (
	// minArea keeps the texture from becoming unreasonably small; a
	// 128×128 RGBA texture is also the minimum placement alignment on
	// common hardware.
	minArea = 128 * 128

	// asciiGlyphCount sizes the font-derived minimum so one atlas
	// generation covers all printable ASCII.
	asciiGlyphCount = 95

	// DefaultMaxTextureDim is assumed when the device does not report a
	// limit.
	DefaultMaxTextureDim = 16384
)

// Atlas is the renderer's glyph texture: a single power-of-two RGBA image,
// rasterized into on the CPU and uploaded to the device when dirty. The
// packer and the image reset together; each reset starts a new generation
// and invalidates every glyph cache entry created under the old one.
//
// Atlas is not safe for concurrent use.
type Atlas struct {
	img    *image.RGBA
	packer Packer

	generation uint64
	maxDim     int

	// dirty is set by glyph drawing and cleared by the uploader.
	dirty bool

	// resized is set when a reset changed the texture dimensions, telling
	// the resource manager to recreate the GPU texture.
	resized bool
}

// New creates an empty atlas. maxTextureDim is the device's maximum 2D
// texture dimension; pass 0 for the default. The atlas has no backing image
// until the first Reset.
func New(maxTextureDim int) *Atlas {
	if maxTextureDim <= 0 {
		maxTextureDim = DefaultMaxTextureDim
	}
	return &Atlas{maxDim: maxTextureDim}
}

// Image returns the CPU-side atlas image, or nil before the first Reset.
func (a *Atlas) Image() *image.RGBA { return a.img }

// Packer returns the atlas's rect packer.
func (a *Atlas) Packer() *Packer { return &a.packer }

// Generation returns the current atlas generation. It increments on every
// Reset.
func (a *Atlas) Generation() uint64 { return a.generation }

// Size returns the texture dimensions, zero before the first Reset.
func (a *Atlas) Size() image.Point {
	if a.img == nil {
		return image.Point{}
	}
	return a.img.Bounds().Size()
}

// MarkDirty records that atlas texels changed and need uploading.
func (a *Atlas) MarkDirty() { a.dirty = true }

// TakeDirty returns whether texels changed since the last call and clears
// the flag.
func (a *Atlas) TakeDirty() bool {
	d := a.dirty
	a.dirty = false
	return d
}

// TakeResized returns whether the last Reset changed the texture dimensions
// and clears the flag.
func (a *Atlas) TakeResized() bool {
	r := a.resized
	a.resized = false
	return r
}

// Reset chooses a new atlas size for the given viewport and cell geometry,
// reallocates the image if the chosen power-of-two shape differs from the
// current one, clears all texels, restarts the packer and begins a new
// generation.
//
// The caller owns cache invalidation: every glyph entry minted under the
// previous generation references texels that no longer exist.
func (a *Atlas) Reset(viewport, cellSize image.Point) {
	u, v := a.chooseSize(viewport, cellSize)

	if a.img == nil || a.img.Bounds().Dx() != u || a.img.Bounds().Dy() != v {
		a.img = image.NewRGBA(image.Rect(0, 0, u, v))
		a.resized = true
	} else {
		draw.Draw(a.img, a.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	}

	a.packer.Reset(u, v)
	a.generation++
	a.dirty = true
}

// chooseSize computes the power-of-two texture shape for the next
// generation.
//
// The target area is the larger of the ASCII working set, twice the current
// area, and the absolute minimum. It is clamped above by 1.25× the viewport,
// so the atlas never grows much past what one frame can show, and by the
// device limit.
func (a *Atlas) chooseSize(viewport, cellSize image.Point) (u, v int) {
	maxArea := a.maxDim * a.maxDim
	cellArea := cellSize.X * cellSize.Y
	targetArea := viewport.X * viewport.Y

	minByFont := cellArea * asciiGlyphCount
	minByGrowth := a.packer.Width() * a.packer.Height() * 2
	lo := max(minArea, max(minByFont, minByGrowth))

	maxByViewport := targetArea + targetArea/4
	area := min(maxArea, min(maxByViewport, lo))

	// Pick the smallest power-of-two texture with at least that area whose
	// sides differ by at most one doubling, wider rather than taller.
	index := bits.Len(uint(area-1)) - 1
	u = 1 << ((index + 2) / 2)
	v = 1 << ((index + 1) / 2)
	u = min(u, a.maxDim)
	v = min(v, a.maxDim)
	return u, v
}
