package termatlas

import (
	"image"

	"github.com/gogpu/termatlas/atlas"
)

// Aliases for the atlas package's payload-facing types, so producers only
// need this package.
type (
	// AntialiasingMode selects the text antialiasing mode.
	AntialiasingMode = atlas.AntialiasingMode

	// LineRendition is a row's DEC line rendition.
	LineRendition = atlas.LineRendition

	// FontFace is an opaque, comparable font face handle.
	FontFace = atlas.FontFace
)

// Antialiasing modes.
const (
	Grayscale = atlas.Grayscale
	ClearType = atlas.ClearType
	Aliased   = atlas.Aliased
)

// Line renditions.
const (
	SingleWidth        = atlas.SingleWidth
	DoubleWidth        = atlas.DoubleWidth
	DoubleHeightTop    = atlas.DoubleHeightTop
	DoubleHeightBottom = atlas.DoubleHeightBottom
)

// GridLines is a bit set of line decorations applied to a cell range.
type GridLines uint16

const (
	// GridLinesLeft draws a vertical line on the left edge of every cell
	// in the range.
	GridLinesLeft GridLines = 1 << iota

	// GridLinesTop draws a horizontal line along the top of the range.
	GridLinesTop

	// GridLinesRight draws a vertical line on the right edge of every
	// cell in the range.
	GridLinesRight

	// GridLinesBottom draws a horizontal line along the bottom of the
	// range.
	GridLinesBottom

	// GridLinesUnderline draws a single underline.
	GridLinesUnderline

	// GridLinesHyperlinkUnderline draws the underline used for
	// hyperlinks; it renders like GridLinesUnderline but is tracked
	// separately upstream.
	GridLinesHyperlinkUnderline

	// GridLinesDoubleUnderline draws two thin underlines.
	GridLinesDoubleUnderline

	// GridLinesDottedUnderline draws a dotted underline.
	GridLinesDottedUnderline

	// GridLinesDashedUnderline draws a dashed underline.
	GridLinesDashedUnderline

	// GridLinesStrikethrough draws a strikethrough line.
	GridLinesStrikethrough
)

// Any reports whether any line kind is set.
func (g GridLines) Any() bool { return g != 0 }

// Has reports whether all bits of k are set.
func (g GridLines) Has(k GridLines) bool { return g&k == k }

// GridLineRange applies a set of line decorations to the cells [From, To)
// of a row.
type GridLineRange struct {
	From, To int
	Lines    GridLines
	Color    uint32
}

// GlyphOffset is the shaped offset of one glyph relative to its baseline
// advance position.
type GlyphOffset struct {
	Advance  float32
	Ascender float32
}

// FontMapping assigns one font face to the glyph span [GlyphsFrom,
// GlyphsTo) of a row. A nil Face selects the DRCS soft font.
type FontMapping struct {
	Face       atlas.FontFace
	GlyphsFrom int
	GlyphsTo   int
}

// ShapedRow is one row of the grid after shaping. The glyph slices are
// parallel: index x describes the x-th shaped glyph of the row, not the
// x-th cell.
//
// DirtyTop and DirtyBottom are written back by the renderer with the pixel
// span the row's text touched this frame.
type ShapedRow struct {
	Rendition atlas.LineRendition

	GlyphIndices  []uint16
	GlyphAdvances []float32
	GlyphOffsets  []GlyphOffset
	Colors        []uint32
	Mappings      []FontMapping

	GridLineRanges []GridLineRange

	SelectionFrom int
	SelectionTo   int

	DirtyTop    int
	DirtyBottom int
}

// FontSettings carries the font-derived geometry of the payload. All values
// are in pixels unless noted.
type FontSettings struct {
	CellSize image.Point
	Baseline int

	// Descender is the distance from the baseline to the bottom of the
	// descender box.
	Descender int

	FontSize float32
	DPI      float32

	AntialiasingMode atlas.AntialiasingMode

	UnderlinePos       int
	UnderlineWidth     int
	DoubleUnderlinePos [2]int
	StrikethroughPos   int
	StrikethroughWidth int
	ThinLineWidth      int

	LigatureOverhangTriggerLeft  int
	LigatureOverhangTriggerRight int

	// SoftFontPattern holds the DRCS glyph bitmaps, one uint16 of
	// MSB-first pixels per row, SoftFontCellSize.Y rows per glyph,
	// starting at glyph index 0xEF20.
	SoftFontPattern  []uint16
	SoftFontCellSize image.Point
}

// Metrics converts the settings into the rasterizer's view of them.
func (f *FontSettings) Metrics() atlas.FontMetrics {
	return atlas.FontMetrics{
		CellSize:                     f.CellSize,
		Baseline:                     f.Baseline,
		Descender:                    f.Descender,
		FontSize:                     f.FontSize,
		DPI:                          f.DPI,
		Antialiasing:                 f.AntialiasingMode,
		LigatureOverhangTriggerLeft:  f.LigatureOverhangTriggerLeft,
		LigatureOverhangTriggerRight: f.LigatureOverhangTriggerRight,
		SoftFontPattern:              f.SoftFontPattern,
		SoftFontCellSize:             f.SoftFontCellSize,
	}
}

// CursorType selects the cursor's shape.
type CursorType uint8

const (
	// CursorLegacy is a bottom slice of the cell, sized by
	// HeightPercentage.
	CursorLegacy CursorType = iota

	// CursorVerticalBar is a thin bar on the cell's left edge.
	CursorVerticalBar

	// CursorUnderscore is a thin line at the underline position.
	CursorUnderscore

	// CursorEmptyBox is the cell outline.
	CursorEmptyBox

	// CursorFullBox fills the cell.
	CursorFullBox

	// CursorDoubleUnderscore is two thin lines at the double-underline
	// positions.
	CursorDoubleUnderscore
)

// CursorSettings describes the cursor. A Color of 0xffffffff selects the
// auto color: the cursor inverts the cells underneath it.
type CursorSettings struct {
	Color            uint32
	Type             CursorType
	HeightPercentage int
}

// MiscSettings carries the remaining appearance settings.
type MiscSettings struct {
	BackgroundColor uint32
	SelectionColor  uint32

	// CustomShaderPath names a WGSL post-process shader on disk; empty
	// disables it.
	CustomShaderPath string

	// UseRetroTerminalEffect enables the built-in scanline/glow
	// post-process when no custom shader is set.
	UseRetroTerminalEffect bool
}

// RowRange is a half-open row span.
type RowRange struct {
	From, To int
}

// Contains reports whether y lies in the range.
func (r RowRange) Contains(y int) bool { return y >= r.From && y < r.To }

// RenderPayload is the renderer's per-frame input. The payload is shared by
// reference with the upstream producer; the renderer only mutates the
// fields documented as outputs (row dirty spans and DirtyRectInPx).
type RenderPayload struct {
	// Generation counters. When one disagrees with the renderer's copy,
	// the corresponding resources are rebuilt during settings sync.
	Generation     uint32
	FontGeneration uint32
	MiscGeneration uint32

	TargetSize image.Point
	CellCount  image.Point

	Font   *FontSettings
	Cursor CursorSettings
	Misc   MiscSettings

	Rows []*ShapedRow

	// ColorBitmap holds per-cell colors: CellCount.Y rows of background
	// colors followed by CellCount.Y rows of foreground colors, each row
	// ColorBitmapRowStride entries wide.
	ColorBitmap          []uint32
	ColorBitmapRowStride int

	// ColorBitmapGenerations gate the background and foreground halves of
	// the bitmap upload.
	ColorBitmapGenerations [2]uint32

	// CursorRect is the cursor's cell rectangle; empty when hidden.
	CursorRect image.Rectangle

	// InvalidatedRows are the rows whose text changed this frame.
	InvalidatedRows RowRange

	// DirtyRectInPx is extended by the renderer with the pixel area this
	// frame touched.
	DirtyRectInPx image.Rectangle

	// WarningCallback receives non-fatal diagnostics such as custom
	// shader compile errors. May be nil.
	WarningCallback func(error)
}

// backgroundColorAt returns the packed background color of cell (x, y).
func (p *RenderPayload) backgroundColorAt(x, y int) uint32 {
	return p.ColorBitmap[y*p.ColorBitmapRowStride+x]
}
