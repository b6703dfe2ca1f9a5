package termatlas

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/termatlas/atlas"
	"github.com/gogpu/termatlas/quad"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// testFontSettings is an 8x16 cell font, baseline 12.
func testFontSettings() *FontSettings {
	return &FontSettings{
		CellSize:                     image.Pt(8, 16),
		Baseline:                     12,
		Descender:                    4,
		FontSize:                     14,
		DPI:                          96,
		AntialiasingMode:             Grayscale,
		UnderlinePos:                 13,
		UnderlineWidth:               1,
		DoubleUnderlinePos:           [2]int{12, 15},
		StrikethroughPos:             8,
		StrikethroughWidth:           1,
		ThinLineWidth:                1,
		LigatureOverhangTriggerLeft:  -2,
		LigatureOverhangTriggerRight: 10,
	}
}

// testPayload builds a payload with the given cell grid and one empty row
// per grid row. The color bitmap is filled with an opaque black background
// and white foreground.
func testPayload(cells image.Point) *RenderPayload {
	rows := make([]*ShapedRow, cells.Y)
	for i := range rows {
		rows[i] = &ShapedRow{
			DirtyTop:    1 << 30,
			DirtyBottom: -(1 << 30),
		}
	}

	bitmap := make([]uint32, cells.X*cells.Y*2)
	for i := 0; i < cells.X*cells.Y; i++ {
		bitmap[i] = 0xff000000
	}
	for i := cells.X * cells.Y; i < len(bitmap); i++ {
		bitmap[i] = 0xffffffff
	}

	return &RenderPayload{
		Generation:             1,
		FontGeneration:         1,
		MiscGeneration:         1,
		TargetSize:             image.Pt(cells.X*8, cells.Y*16),
		CellCount:              cells,
		Font:                   testFontSettings(),
		Cursor:                 CursorSettings{Type: CursorFullBox, HeightPercentage: 25},
		Misc:                   MiscSettings{BackgroundColor: 0xff000000, SelectionColor: 0x7fffffff},
		Rows:                   rows,
		ColorBitmap:            bitmap,
		ColorBitmapRowStride:   cells.X,
		ColorBitmapGenerations: [2]uint32{1, 1},
	}
}

// boxEngine is an atlas.Engine whose glyphs all measure to one fixed box.
// It lets renderer tests control atlas pressure precisely.
type boxEngine struct {
	box   atlas.RectF
	tr    atlas.Transform
	draws int
}

func newBoxEngine(box atlas.RectF) *boxEngine {
	return &boxEngine{box: box, tr: atlas.Identity()}
}

func (e *boxEngine) Begin(*image.RGBA)               {}
func (e *boxEngine) End() error                      { return nil }
func (e *boxEngine) SetTransform(t atlas.Transform)  { e.tr = t }
func (e *boxEngine) MeasureGlyphRun(run atlas.GlyphRun) (atlas.RectF, error) {
	return atlas.RectF{
		Left:   e.tr.M11 * e.box.Left,
		Top:    e.tr.M22 * e.box.Top,
		Right:  e.tr.M11 * e.box.Right,
		Bottom: e.tr.M22 * e.box.Bottom,
	}, nil
}
func (e *boxEngine) DrawGlyphRun(atlas.PointF, atlas.GlyphRun) (bool, error) {
	e.draws++
	return false, nil
}

// stubFace is a comparable FontFace for emission tests.
type stubFace struct {
	id uint64
}

func (f *stubFace) PPEM() float64 { return 16 }

// streamRenderer builds a renderer with just enough state for the
// device-free emission paths (decorations, selection).
func streamRenderer() *Renderer {
	return &Renderer{stream: quad.NewStream()}
}

// uniformRow returns a shaped row with n glyphs of one face, all with the
// given glyph indices, advance 8 and white foreground.
func uniformRow(face FontFace, glyphs []uint16) *ShapedRow {
	n := len(glyphs)
	row := &ShapedRow{
		GlyphIndices:  glyphs,
		GlyphAdvances: make([]float32, n),
		GlyphOffsets:  make([]GlyphOffset, n),
		Colors:        make([]uint32, n),
		Mappings:      []FontMapping{{Face: face, GlyphsFrom: 0, GlyphsTo: n}},
		DirtyTop:      1 << 30,
		DirtyBottom:   -(1 << 30),
	}
	for i := range row.GlyphAdvances {
		row.GlyphAdvances[i] = 8
		row.Colors[i] = 0xffffffff
	}
	return row
}
