package glyphdev

import (
	"image"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/gogpu/termatlas/atlas"
)

// testFace parses Go Regular at 16 ppem.
func testFace(t *testing.T) *Face {
	t.Helper()
	face, err := ParseFace(goregular.TTF, 16)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	return face
}

// glyphIndex resolves a rune in the test face.
func glyphIndex(t *testing.T, face *Face, r rune) uint16 {
	t.Helper()
	var buf sfnt.Buffer
	gid, err := face.Font().GlyphIndex(&buf, r)
	if err != nil || gid == 0 {
		t.Fatalf("GlyphIndex(%q) = %d, %v", r, gid, err)
	}
	return uint16(gid)
}

func TestEngineMeasureVisibleGlyph(t *testing.T) {
	engine := NewEngine()
	face := testFace(t)
	run := atlas.GlyphRun{Face: face, GlyphIndex: glyphIndex(t, face, 'A')}

	box, err := engine.MeasureGlyphRun(run)
	if err != nil {
		t.Fatalf("MeasureGlyphRun: %v", err)
	}
	if box.Empty() {
		t.Fatal("'A' measured empty")
	}
	// The glyph sits on the baseline: its top is above (negative), its
	// bottom at or barely below zero.
	if box.Top >= 0 {
		t.Errorf("box.Top = %v, want < 0", box.Top)
	}
	if box.Bottom < -1 {
		t.Errorf("box.Bottom = %v, want ~0", box.Bottom)
	}
	if w := box.Right - box.Left; w <= 0 || w > 32 {
		t.Errorf("width %v out of range for 16ppem", w)
	}
}

func TestEngineMeasureWhitespace(t *testing.T) {
	engine := NewEngine()
	face := testFace(t)
	run := atlas.GlyphRun{Face: face, GlyphIndex: glyphIndex(t, face, ' ')}

	box, err := engine.MeasureGlyphRun(run)
	if err != nil {
		t.Fatalf("MeasureGlyphRun: %v", err)
	}
	if !box.Empty() {
		t.Errorf("space measured %+v, want empty", box)
	}
}

func TestEngineMeasureHonorsTransform(t *testing.T) {
	engine := NewEngine()
	face := testFace(t)
	run := atlas.GlyphRun{Face: face, GlyphIndex: glyphIndex(t, face, 'A')}

	plain, err := engine.MeasureGlyphRun(run)
	if err != nil {
		t.Fatal(err)
	}
	engine.SetTransform(atlas.Transform{M11: 2, M22: 1})
	wide, err := engine.MeasureGlyphRun(run)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := wide.Right-wide.Left, 2*(plain.Right-plain.Left); got != want {
		t.Errorf("doubled width = %v, want %v", got, want)
	}
	if got, want := wide.Bottom-wide.Top, plain.Bottom-plain.Top; got != want {
		t.Errorf("height changed under horizontal scale: %v != %v", got, want)
	}
}

func TestEngineDrawGlyphRun(t *testing.T) {
	engine := NewEngine()
	face := testFace(t)
	run := atlas.GlyphRun{Face: face, GlyphIndex: glyphIndex(t, face, 'A')}

	target := image.NewRGBA(image.Rect(0, 0, 64, 64))
	engine.Begin(target)
	colorGlyph, err := engine.DrawGlyphRun(atlas.PointF{X: 20, Y: 40}, run)
	if err != nil {
		t.Fatalf("DrawGlyphRun: %v", err)
	}
	if err := engine.End(); err != nil {
		t.Fatal(err)
	}
	if colorGlyph {
		t.Error("'A' is not a color glyph")
	}

	// The mask must land above the baseline, premultiplied white.
	covered := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 64; x++ {
			px := target.RGBAAt(x, y)
			if px.A > 0 {
				covered++
				if px.R != px.A || px.G != px.A || px.B != px.A {
					t.Fatalf("pixel (%d,%d) = %+v is not premultiplied white", x, y, px)
				}
			}
		}
	}
	if covered == 0 {
		t.Fatal("glyph left no coverage above the baseline")
	}

	// Nothing lands well below the baseline for 'A'.
	for y := 44; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if target.RGBAAt(x, y).A != 0 {
				t.Fatalf("unexpected coverage at (%d,%d)", x, y)
			}
		}
	}
}

func TestEngineDrawOutsideBracket(t *testing.T) {
	engine := NewEngine()
	face := testFace(t)
	run := atlas.GlyphRun{Face: face, GlyphIndex: glyphIndex(t, face, 'A')}

	if _, err := engine.DrawGlyphRun(atlas.PointF{X: 10, Y: 10}, run); err != ErrNotDrawing {
		t.Errorf("err = %v, want ErrNotDrawing", err)
	}
}

func TestEngineRejectsForeignFace(t *testing.T) {
	engine := NewEngine()
	run := atlas.GlyphRun{Face: foreignFace{}, GlyphIndex: 1}
	if _, err := engine.MeasureGlyphRun(run); err != ErrUnsupportedFace {
		t.Errorf("err = %v, want ErrUnsupportedFace", err)
	}
}

type foreignFace struct{}

func (foreignFace) PPEM() float64 { return 12 }
