// Package glyphdev provides the renderer's default vector text engine: a
// CPU rasterizer that measures and draws glyph outlines into the glyph atlas
// using golang.org/x/image/font/sfnt and golang.org/x/image/vector, with
// optional color (bitmap) glyph support through go-text/typesetting faces.
package glyphdev

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Engine and face errors.
var (
	// ErrUnsupportedFace is returned when the engine receives a font face
	// handle it did not create.
	ErrUnsupportedFace = errors.New("glyphdev: font face is not a *glyphdev.Face")

	// ErrNotDrawing is returned when a draw is attempted outside the
	// Begin/End bracket.
	ErrNotDrawing = errors.New("glyphdev: draw outside Begin/End")
)

// ColorGlyphSource supplies decoded color bitmap glyphs (emoji and the
// like). Faces without one render every glyph as an outline.
type ColorGlyphSource interface {
	// ColorGlyph returns the decoded bitmap for a glyph at the given size,
	// or false if the glyph has no color bitmap.
	ColorGlyph(glyphIndex uint16, ppem float64) (image.Image, bool)
}

// Face is a font face handle understood by Engine. It pairs a parsed
// OpenType font with a pixel size and optionally a color glyph source.
//
// Face is not safe for concurrent use; the renderer owns all faces of a
// frame.
type Face struct {
	font    *sfnt.Font
	ppem    float64
	hinting font.Hinting
	color   ColorGlyphSource

	buf sfnt.Buffer
}

// NewFace wraps a parsed font at the given pixel-per-em size.
func NewFace(f *sfnt.Font, ppem float64) *Face {
	return &Face{font: f, ppem: ppem, hinting: font.HintingNone}
}

// ParseFace parses OpenType font data and wraps it at the given size.
func ParseFace(data []byte, ppem float64) (*Face, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("glyphdev: parse font: %w", err)
	}
	return NewFace(f, ppem), nil
}

// PPEM returns the face's size in pixels per em.
func (f *Face) PPEM() float64 { return f.ppem }

// Font returns the underlying parsed font.
func (f *Face) Font() *sfnt.Font { return f.font }

// SetHinting selects the hinting applied to bounds and outlines.
func (f *Face) SetHinting(h font.Hinting) { f.hinting = h }

// SetColorSource attaches a color glyph source to the face. Glyphs the
// source claims are drawn as bitmaps and shaded with the passthrough path.
func (f *Face) SetColorSource(src ColorGlyphSource) { f.color = src }

// fixedPPEM returns the face size as 26.6 fixed point.
func (f *Face) fixedPPEM() fixed.Int26_6 {
	return fixed.Int26_6(f.ppem * 64)
}

// glyphBounds returns the glyph's bounding box relative to a baseline
// origin at (0, 0), y axis down.
func (f *Face) glyphBounds(glyphIndex uint16) (fixed.Rectangle26_6, error) {
	bounds, _, err := f.font.GlyphBounds(&f.buf, sfnt.GlyphIndex(glyphIndex), f.fixedPPEM(), f.hinting)
	if err != nil {
		return fixed.Rectangle26_6{}, fmt.Errorf("glyphdev: glyph %d bounds: %w", glyphIndex, err)
	}
	return bounds, nil
}

// loadGlyph returns the glyph's outline segments at the face size.
func (f *Face) loadGlyph(glyphIndex uint16) (sfnt.Segments, error) {
	segs, err := f.font.LoadGlyph(&f.buf, sfnt.GlyphIndex(glyphIndex), f.fixedPPEM(), nil)
	if err != nil {
		return nil, fmt.Errorf("glyphdev: glyph %d outline: %w", glyphIndex, err)
	}
	return segs, nil
}
