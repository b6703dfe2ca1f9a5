package glyphdev

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/termatlas/atlas"
)

// Engine is a CPU implementation of the renderer's vector text contract.
// Outlines are filled with a scanline rasterizer into the bound target;
// color glyphs are decoded and scaled in. All output is premultiplied:
// outline glyphs land as white-with-alpha so the cell shader can multiply
// in the foreground color.
//
// Engine is not safe for concurrent use.
type Engine struct {
	target  *image.RGBA
	tr      atlas.Transform
	drawing bool

	ras vector.Rasterizer
}

// NewEngine returns an engine with an identity transform and no target.
func NewEngine() *Engine {
	return &Engine{tr: atlas.Identity()}
}

// Begin implements atlas.Engine.
func (e *Engine) Begin(target *image.RGBA) {
	e.target = target
	e.drawing = true
}

// End implements atlas.Engine.
func (e *Engine) End() error {
	e.drawing = false
	return nil
}

// SetTransform implements atlas.Engine.
func (e *Engine) SetTransform(t atlas.Transform) {
	e.tr = t
}

// MeasureGlyphRun implements atlas.Engine. The returned box is the glyph's
// bounding box with the origin at (0, 0), scaled by the current transform.
func (e *Engine) MeasureGlyphRun(run atlas.GlyphRun) (atlas.RectF, error) {
	face, ok := run.Face.(*Face)
	if !ok {
		return atlas.RectF{}, ErrUnsupportedFace
	}

	if face.color != nil {
		if img, ok := face.color.ColorGlyph(run.GlyphIndex, face.ppem); ok {
			return e.colorGlyphBox(face, img), nil
		}
	}

	bounds, err := face.glyphBounds(run.GlyphIndex)
	if err != nil {
		return atlas.RectF{}, err
	}
	if bounds.Min.X >= bounds.Max.X || bounds.Min.Y >= bounds.Max.Y {
		return atlas.RectF{}, nil
	}
	return atlas.RectF{
		Left:   e.tr.M11 * f26ToF32(bounds.Min.X),
		Top:    e.tr.M22 * f26ToF32(bounds.Min.Y),
		Right:  e.tr.M11 * f26ToF32(bounds.Max.X),
		Bottom: e.tr.M22 * f26ToF32(bounds.Max.Y),
	}, nil
}

// DrawGlyphRun implements atlas.Engine. The glyph's baseline origin is
// placed at origin in target pixels; all coordinates pass through the
// current transform.
func (e *Engine) DrawGlyphRun(origin atlas.PointF, run atlas.GlyphRun) (bool, error) {
	if !e.drawing || e.target == nil {
		return false, ErrNotDrawing
	}
	face, ok := run.Face.(*Face)
	if !ok {
		return false, ErrUnsupportedFace
	}

	if face.color != nil {
		if img, ok := face.color.ColorGlyph(run.GlyphIndex, face.ppem); ok {
			e.drawColorGlyph(face, img, origin)
			return true, nil
		}
	}

	segs, err := face.loadGlyph(run.GlyphIndex)
	if err != nil {
		return false, err
	}
	if len(segs) == 0 {
		return false, nil
	}
	e.fillOutline(segs, origin)
	return false, nil
}

// point maps a glyph-space point p (relative to the baseline origin) to
// absolute target pixels under the current transform.
func (e *Engine) point(origin atlas.PointF, x, y fixed.Int26_6) (float32, float32) {
	ax := origin.X + f26ToF32(x)
	ay := origin.Y + f26ToF32(y)
	return e.tr.M11*ax + e.tr.DX, e.tr.M22*ay + e.tr.DY
}

// fillOutline scanline-fills the glyph outline as a white premultiplied
// mask over the target.
func (e *Engine) fillOutline(segs sfnt.Segments, origin atlas.PointF) {
	// Pixel bounds of the transformed outline, to size the local mask.
	minX, minY := float32(math.Inf(1)), float32(math.Inf(1))
	maxX, maxY := float32(math.Inf(-1)), float32(math.Inf(-1))
	visit := func(x, y fixed.Int26_6) {
		px, py := e.point(origin, x, y)
		minX = min(minX, px)
		minY = min(minY, py)
		maxX = max(maxX, px)
		maxY = max(maxY, py)
	}
	for _, seg := range segs {
		for i := range segArgs(seg) {
			visit(seg.Args[i].X, seg.Args[i].Y)
		}
	}

	left := int(math.Floor(float64(minX)))
	top := int(math.Floor(float64(minY)))
	w := int(math.Ceil(float64(maxX))) - left
	h := int(math.Ceil(float64(maxY))) - top
	if w <= 0 || h <= 0 {
		return
	}

	e.ras.Reset(w, h)
	e.ras.DrawOp = draw.Over
	for _, seg := range segs {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			x, y := e.point(origin, seg.Args[0].X, seg.Args[0].Y)
			e.ras.MoveTo(x-float32(left), y-float32(top))
		case sfnt.SegmentOpLineTo:
			x, y := e.point(origin, seg.Args[0].X, seg.Args[0].Y)
			e.ras.LineTo(x-float32(left), y-float32(top))
		case sfnt.SegmentOpQuadTo:
			cx, cy := e.point(origin, seg.Args[0].X, seg.Args[0].Y)
			x, y := e.point(origin, seg.Args[1].X, seg.Args[1].Y)
			e.ras.QuadTo(cx-float32(left), cy-float32(top), x-float32(left), y-float32(top))
		case sfnt.SegmentOpCubeTo:
			c0x, c0y := e.point(origin, seg.Args[0].X, seg.Args[0].Y)
			c1x, c1y := e.point(origin, seg.Args[1].X, seg.Args[1].Y)
			x, y := e.point(origin, seg.Args[2].X, seg.Args[2].Y)
			e.ras.CubeTo(c0x-float32(left), c0y-float32(top), c1x-float32(left), c1y-float32(top), x-float32(left), y-float32(top))
		}
	}
	e.ras.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	e.ras.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	dst := image.Rect(left, top, left+w, top+h)
	draw.DrawMask(e.target, dst, image.White, image.Point{}, mask, image.Point{}, draw.Over)
}

// colorGlyphBox returns the target-space box a color glyph occupies: the
// bitmap is fitted to the em box, sitting on the baseline with the typical
// small descender overlap handled by the face's metrics-free heuristic of
// one em above the origin.
func (e *Engine) colorGlyphBox(face *Face, img image.Image) atlas.RectF {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return atlas.RectF{}
	}
	scale := float32(face.ppem) / float32(b.Dy())
	w := float32(b.Dx()) * scale
	h := float32(face.ppem)
	return atlas.RectF{
		Left:   0,
		Top:    e.tr.M22 * -h,
		Right:  e.tr.M11 * w,
		Bottom: 0,
	}
}

// drawColorGlyph scales the decoded bitmap into the glyph's target box.
// The box is already transform-scaled, so only the origin goes through the
// transform.
func (e *Engine) drawColorGlyph(face *Face, img image.Image, origin atlas.PointF) {
	box := e.colorGlyphBox(face, img)
	l := e.tr.M11*origin.X + e.tr.DX + box.Left
	t := e.tr.M22*origin.Y + e.tr.DY + box.Top
	dst := image.Rect(
		int(math.Round(float64(l))),
		int(math.Round(float64(t))),
		int(math.Round(float64(l+box.Right-box.Left))),
		int(math.Round(float64(t+box.Bottom-box.Top))),
	)
	xdraw.CatmullRom.Scale(e.target, dst, img, img.Bounds(), draw.Over, nil)
}

// segArgs returns how many argument points a segment op carries.
func segArgs(seg sfnt.Segment) int {
	switch seg.Op {
	case sfnt.SegmentOpQuadTo:
		return 2
	case sfnt.SegmentOpCubeTo:
		return 3
	default:
		return 1
	}
}

// f26ToF32 converts 26.6 fixed point to float32 pixels.
func f26ToF32(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
