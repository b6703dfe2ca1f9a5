package atlas

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/gogpu/termatlas/quad"
)

// softFontFirstGlyph is the glyph index of the first DRCS soft-font glyph.
const softFontFirstGlyph = 0xEF20

// Rasterizer fills glyph cache misses by drawing glyphs into packed atlas
// slots. Outline glyphs go through the vector Engine; DRCS soft-font glyphs
// are pixel-expanded and scaled in by hand.
//
// Rasterizer is not safe for concurrent use.
type Rasterizer struct {
	atlas  *Atlas
	cache  *GlyphCache
	engine Engine

	// drawing tracks the engine's Begin/End bracket. It is entered lazily
	// before the first draw into the atlas and must be exited before any
	// upload or reset; the bracket is never nested.
	drawing bool

	// softFontStaging is the reusable expansion bitmap for soft-font
	// glyphs. Dropped on font change.
	softFontStaging *image.RGBA
}

// NewRasterizer creates a rasterizer drawing into a through engine, with
// cache entries registered in c.
func NewRasterizer(a *Atlas, c *GlyphCache, engine Engine) *Rasterizer {
	return &Rasterizer{atlas: a, cache: c, engine: engine}
}

// BeginDrawing enters the engine's drawing bracket if it isn't entered yet.
func (r *Rasterizer) BeginDrawing() {
	if !r.drawing {
		r.engine.Begin(r.atlas.Image())
		r.drawing = true
	}
}

// EndDrawing exits the drawing bracket if it is entered. It must be called
// before the atlas is uploaded or reset.
func (r *Rasterizer) EndDrawing() error {
	if !r.drawing {
		return nil
	}
	r.drawing = false
	return r.engine.End()
}

// Drawing reports whether the drawing bracket is currently entered.
func (r *Rasterizer) Drawing() bool { return r.drawing }

// FontChanged drops font-derived scratch state. Called by the resource
// manager on a font generation bump.
func (r *Rasterizer) FontChanged() {
	r.softFontStaging = nil
}

// ResetAtlas resizes and clears the atlas and invalidates all glyph
// entries. The drawing bracket must be exited first.
func (r *Rasterizer) ResetAtlas(viewport image.Point, m *FontMetrics) {
	r.atlas.Reset(viewport, m.CellSize)
	r.cache.ResetGlyphs()
}

// DrawGlyph rasterizes the glyph behind entry into the atlas and fills in
// the entry's placement data. It returns ErrAtlasFull when the packer has no
// room; the caller must reset the atlas and retry the run.
func (r *Rasterizer) DrawGlyph(faceEntry *FontFaceEntry, entry *GlyphEntry, advance float32, m *FontMetrics) error {
	if faceEntry.Face == nil {
		return r.drawSoftFontGlyph(faceEntry, entry, m)
	}
	if r.engine == nil {
		return ErrNoEngine
	}

	run := GlyphRun{
		Face:       faceEntry.Face,
		GlyphIndex: entry.GlyphIndex,
		Advance:    advance,
	}

	rendition := faceEntry.Rendition
	transformed := rendition != SingleWidth
	if transformed {
		t := Transform{M11: 2, M22: 1}
		if rendition.IsDoubleHeight() {
			t.M22 = 2
		}
		r.engine.SetTransform(t)
		defer r.engine.SetTransform(Identity())
		run.Advance *= 2
	}

	// The world bounds of the glyph relative to its baseline origin at
	// (0, 0), already scaled by the rendition transform.
	box, err := r.engine.MeasureGlyphRun(run)
	if err != nil {
		return fmt.Errorf("atlas: measure glyph %d: %w", entry.GlyphIndex, err)
	}
	if box.Empty() {
		// Whitespace: cache the miss so emission skips it.
		entry.Shading = quad.ShadingDefault
		return nil
	}

	bl := roundf(box.Left)
	bt := roundf(box.Top)
	br := roundf(box.Right)
	bb := roundf(box.Bottom)

	rect := Rect{W: br - bl, H: bb - bt}
	if !r.atlas.Packer().Pack(&rect) {
		return ErrAtlasFull
	}

	origin := PointF{X: float32(rect.X - bl), Y: float32(rect.Y - bt)}
	if transformed {
		// Patch the translation so the glyph origin stays fixed under the
		// scale: p' = M·p + (1-M)·origin.
		t := Transform{M11: 2, M22: 1}
		if rendition.IsDoubleHeight() {
			t.M22 = 2
		}
		t.DX = (1 - t.M11) * origin.X
		t.DY = (1 - t.M22) * origin.Y
		r.engine.SetTransform(t)
	}

	r.BeginDrawing()
	colorGlyph, err := r.engine.DrawGlyphRun(origin, run)
	if err != nil {
		return fmt.Errorf("atlas: draw glyph %d: %w", entry.GlyphIndex, err)
	}
	r.atlas.MarkDirty()

	shading := r.textShading(m)
	if colorGlyph {
		shading = quad.ShadingPassthrough
	}

	// Ligatures get strict cell-wise foreground color while ordinary text
	// may overhang its cell. The width condition excludes diacritics, the
	// edge conditions exclude wide glyphs that only overlap a little.
	if rect.W >= m.CellSize.X && (bl <= m.LigatureOverhangTriggerLeft || br >= m.LigatureOverhangTriggerRight) {
		shading |= quad.LigatureMarker
	}

	entry.Shading = shading
	entry.Offset = quad.Point{X: int16(bl), Y: int16(bt)}
	entry.Size = quad.Extent{W: uint16(rect.W), H: uint16(rect.H)}
	entry.Texcoord = quad.Texcoord{U: uint16(rect.X), V: uint16(rect.Y)}

	if rendition.IsDoubleHeight() {
		r.splitDoubleHeight(faceEntry, entry, m)
	}
	return nil
}

// drawSoftFontGlyph expands a 1-bpp DRCS pattern into a staging bitmap and
// scales it into a cell-sized (rendition-scaled) atlas slot.
func (r *Rasterizer) drawSoftFontGlyph(faceEntry *FontFaceEntry, entry *GlyphEntry, m *FontMetrics) error {
	rect := Rect{W: m.CellSize.X, H: m.CellSize.Y}
	rendition := faceEntry.Rendition
	if rendition != SingleWidth {
		rect.W <<= 1
		if rendition.IsDoubleHeight() {
			rect.H <<= 1
		}
	}
	if !r.atlas.Packer().Pack(&rect) {
		return ErrAtlasFull
	}

	if err := r.expandSoftFontPattern(entry.GlyphIndex, m); err != nil {
		return err
	}

	// The engine paints through the same image; close its bracket before
	// blitting directly.
	if err := r.EndDrawing(); err != nil {
		return err
	}

	scaler := draw.Interpolator(draw.CatmullRom)
	if m.Antialiasing == Aliased {
		scaler = draw.NearestNeighbor
	}
	dst := image.Rect(rect.X, rect.Y, rect.X+rect.W, rect.Y+rect.H)
	scaler.Scale(r.atlas.Image(), dst, r.softFontStaging, r.softFontStaging.Bounds(), draw.Src, nil)
	r.atlas.MarkDirty()

	entry.Shading = quad.ShadingTextGrayscale
	entry.Offset = quad.Point{X: 0, Y: int16(-m.Baseline)}
	entry.Size = quad.Extent{W: uint16(rect.W), H: uint16(rect.H)}
	entry.Texcoord = quad.Texcoord{U: uint16(rect.X), V: uint16(rect.Y)}

	if rendition.IsDoubleHeight() {
		entry.Offset.Y -= int16(m.CellSize.Y)
		r.splitDoubleHeight(faceEntry, entry, m)
	}
	return nil
}

// expandSoftFontPattern decodes the glyph's 1-bpp rows into the staging
// bitmap: set bits become opaque white, clear bits transparent black.
func (r *Rasterizer) expandSoftFontPattern(glyphIndex uint16, m *FontMetrics) error {
	w, h := m.SoftFontCellSize.X, m.SoftFontCellSize.Y
	if w <= 0 || h <= 0 || glyphIndex < softFontFirstGlyph {
		return ErrNoSoftFont
	}
	row := int(glyphIndex-softFontFirstGlyph) * h
	if row+h > len(m.SoftFontPattern) {
		return ErrNoSoftFont
	}

	if r.softFontStaging == nil || r.softFontStaging.Bounds().Dx() != w || r.softFontStaging.Bounds().Dy() != h {
		r.softFontStaging = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		bitsRow := m.SoftFontPattern[row+y]
		off := r.softFontStaging.PixOffset(0, y)
		pix := r.softFontStaging.Pix[off : off+w*4]
		for x := 0; x < w; x++ {
			var v byte
			if bitsRow&0x8000 != 0 {
				v = 0xff
			}
			pix[x*4+0] = v
			pix[x*4+1] = v
			pix[x*4+2] = v
			pix[x*4+3] = v
			bitsRow <<= 1
		}
	}
	return nil
}

// splitDoubleHeight clips a DECDHL glyph rasterized at double height to the
// half named by the face entry's rendition and mints a sibling entry for
// the other half under the opposite rendition key. Both halves together
// reconstruct the full glyph across the two adjacent rows.
func (r *Rasterizer) splitDoubleHeight(faceEntry *FontFaceEntry, entry *GlyphEntry, m *FontMetrics) {
	// Twice the line height, twice the descender gap. For both halves.
	entry.Offset.Y -= int16(m.Descender)

	isTop := faceEntry.Rendition == DoubleHeightTop

	sibling := r.cache.Insert(FaceKey{Face: faceEntry.Face, Rendition: faceEntry.Rendition.opposite()})
	entry2, _ := sibling.Insert(entry.GlyphIndex)
	*entry2 = *entry

	top, bottom := entry, entry2
	if !isTop {
		top, bottom = entry2, entry
	}

	topSize := clamp(-int(entry.Offset.Y)-m.Baseline, 0, int(entry.Size.H))
	top.Offset.Y += int16(m.CellSize.Y)
	top.Size.H = uint16(topSize)
	bottom.Offset.Y += int16(topSize)
	bottom.Size.H = uint16(max(0, int(bottom.Size.H)-topSize))
	bottom.Texcoord.V += uint16(topSize)

	// Diacritics and the like might exist on only one half of the
	// double-height row; the other half degrades to whitespace.
	if top.Size.H == 0 {
		top.Shading = quad.ShadingDefault
	}
	if bottom.Size.H == 0 {
		bottom.Shading = quad.ShadingDefault
	}
}

// textShading maps the antialiasing mode to the shading type used for
// non-color glyphs.
func (r *Rasterizer) textShading(m *FontMetrics) quad.ShadingType {
	if m.Antialiasing == ClearType {
		return quad.ShadingTextClearType
	}
	return quad.ShadingTextGrayscale
}

func roundf(v float32) int {
	return int(math.Round(float64(v)))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
