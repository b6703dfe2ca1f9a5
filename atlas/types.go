// Package atlas implements the glyph atlas of the terminal renderer: a
// skyline rect packer over a single CPU-side texture, a two-level glyph
// cache keyed by font face and line rendition, and the rasterizer that fills
// cache misses by drawing glyphs into packed atlas slots.
package atlas

import "image"

// LineRendition is the DEC line rendition of a row. Anything other than
// SingleWidth doubles the glyph horizontally; the DoubleHeight variants
// additionally double it vertically and store the glyph as a top/bottom
// half pair.
type LineRendition uint8

const (
	// SingleWidth is the ordinary 1:1 rendition.
	SingleWidth LineRendition = iota

	// DoubleWidth doubles glyphs horizontally (DECDWL).
	DoubleWidth

	// DoubleHeightTop is the upper half of a double-height line (DECDHL).
	DoubleHeightTop

	// DoubleHeightBottom is the lower half of a double-height line.
	DoubleHeightBottom
)

// String returns the rendition name.
func (r LineRendition) String() string {
	switch r {
	case SingleWidth:
		return "SingleWidth"
	case DoubleWidth:
		return "DoubleWidth"
	case DoubleHeightTop:
		return "DoubleHeightTop"
	case DoubleHeightBottom:
		return "DoubleHeightBottom"
	default:
		return "Unknown"
	}
}

// IsDoubleHeight reports whether the rendition is either DECDHL half.
func (r LineRendition) IsDoubleHeight() bool {
	return r >= DoubleHeightTop
}

// opposite returns the other half of a double-height pair.
func (r LineRendition) opposite() LineRendition {
	if r == DoubleHeightTop {
		return DoubleHeightBottom
	}
	return DoubleHeightTop
}

// Rect is a packer rectangle. W and H are inputs to Pack; X and Y are filled
// in on success.
type Rect struct {
	X, Y, W, H int
}

// PointF is a position in atlas pixels.
type PointF struct {
	X, Y float32
}

// RectF is an axis-aligned box in atlas pixels. Glyph bounds are measured
// relative to the baseline origin, so all four edges can be negative.
type RectF struct {
	Left, Top, Right, Bottom float32
}

// Empty reports whether the box encloses no area. Whitespace glyphs measure
// empty.
func (r RectF) Empty() bool {
	return r.Left >= r.Right || r.Top >= r.Bottom
}

// Transform is the 2D affine transform applied by the glyph engine while a
// rendition scale is active: p' = (M11·p.x + DX, M22·p.y + DY). Identity is
// {1, 1, 0, 0}.
type Transform struct {
	M11, M22 float32
	DX, DY   float32
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{M11: 1, M22: 1}
}

// FontFace is an opaque handle to a rasterizable font face. Handles must be
// comparable; two handles denote the same face iff they compare equal. A nil
// FontFace selects the DRCS soft-font path.
type FontFace interface {
	// PPEM returns the face's font size in pixels per em.
	PPEM() float64
}

// GlyphRun is a single-glyph run handed to the engine. Advance is the shaped
// advance of the glyph in pixels (already doubled for wide renditions).
type GlyphRun struct {
	Face       FontFace
	GlyphIndex uint16
	Advance    float32
}

// Engine rasterizes glyph runs into a target image. It is the renderer's
// stand-in for a vector text system: implementations measure glyph outlines
// at a baseline origin and draw them, premultiplied, into the bound target.
//
// Begin/End bracket all drawing; the renderer guarantees End is called
// before the atlas texture is uploaded or reset, and the pair is never
// nested.
type Engine interface {
	// Begin binds the engine to a drawing target.
	Begin(target *image.RGBA)

	// End completes all pending drawing. No draws may follow until the
	// next Begin.
	End() error

	// SetTransform replaces the current transform. It stays in effect
	// until replaced; measurement honors it too.
	SetTransform(t Transform)

	// MeasureGlyphRun returns the run's world bounding box with the glyph
	// origin placed at (0, 0), under the current transform.
	MeasureGlyphRun(run GlyphRun) (RectF, error)

	// DrawGlyphRun draws the run with its baseline origin at origin and
	// reports whether the glyph was a color bitmap glyph.
	DrawGlyphRun(origin PointF, run GlyphRun) (colorGlyph bool, err error)
}

// AntialiasingMode mirrors the payload's text antialiasing selection.
type AntialiasingMode uint8

const (
	// Grayscale renders text with a single-channel alpha mask.
	Grayscale AntialiasingMode = iota

	// ClearType renders text with per-channel subpixel weights.
	ClearType

	// Aliased renders text without antialiasing.
	Aliased
)

// String returns the mode name.
func (m AntialiasingMode) String() string {
	switch m {
	case Grayscale:
		return "Grayscale"
	case ClearType:
		return "ClearType"
	case Aliased:
		return "Aliased"
	default:
		return "Unknown"
	}
}

// FontMetrics is the slice of the rendering payload's font settings the
// rasterizer needs. All values are in pixels.
type FontMetrics struct {
	CellSize     image.Point
	Baseline     int
	Descender    int
	FontSize     float32
	DPI          float32
	Antialiasing AntialiasingMode

	// LigatureOverhangTriggerLeft/Right are the glyph box edges beyond
	// which a cell-wide glyph is treated as a ligature.
	LigatureOverhangTriggerLeft  int
	LigatureOverhangTriggerRight int

	// SoftFontPattern holds one row of 1-bpp pixels per uint16,
	// SoftFontCellSize.Y rows per glyph, for glyphs 0xEF20 onward.
	SoftFontPattern  []uint16
	SoftFontCellSize image.Point
}
