package termatlas

import (
	"errors"
	"image"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/gogpu/termatlas/atlas"
	"github.com/gogpu/termatlas/glyphdev"
)

// newTestRenderer builds a renderer on the noop backend with the given
// engine and atlas clamp.
func newTestRenderer(t *testing.T, engine atlas.Engine, maxDim int) (*Renderer, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	r, err := New(device, queue, NewOffscreenSwapChain(device), Config{
		Engine:        engine,
		MaxTextureDim: maxDim,
	})
	if err != nil {
		cleanup()
		t.Fatalf("New: %v", err)
	}
	return r, func() {
		r.Close()
		cleanup()
	}
}

func TestNewValidation(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := New(nil, nil, nil, Config{}); !errors.Is(err, ErrNilDevice) {
		t.Errorf("nil device err = %v, want ErrNilDevice", err)
	}
	if _, err := New(device, queue, nil, Config{}); !errors.Is(err, ErrNilSwapChain) {
		t.Errorf("nil swap chain err = %v, want ErrNilSwapChain", err)
	}
}

func TestRenderSingleGlyph(t *testing.T) {
	// S1: a 2x1 grid with one 'A' produces a background quad and exactly
	// one text quad placed inside the first row.
	f, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	var buf sfnt.Buffer
	gid, err := f.GlyphIndex(&buf, 'A')
	if err != nil || gid == 0 {
		t.Fatalf("GlyphIndex: %d, %v", gid, err)
	}
	face := glyphdev.NewFace(f, 14)

	r, done := newTestRenderer(t, glyphdev.NewEngine(), 0)
	defer done()

	p := testPayload(image.Pt(2, 1))
	// Keep the overhang triggers clear of the glyph box so the quad stays
	// unmarked.
	p.Font.LigatureOverhangTriggerLeft = -8
	p.Font.LigatureOverhangTriggerRight = 20
	p.Rows[0] = uniformRow(face, []uint16{uint16(gid)})

	if err := r.Render(p); err != nil {
		t.Fatalf("Render: %v", err)
	}

	entry := r.GlyphCache().Lookup(atlas.FaceKey{Face: face, Rendition: SingleWidth}).Lookup(uint16(gid))
	if entry == nil {
		t.Fatal("glyph entry missing after render")
	}
	if !entry.Shading.IsText() {
		t.Errorf("glyph shading = %v, want a text shading", entry.Shading)
	}

	// The glyph's quad top lands inside the first row: position.y =
	// baseline + offset.y, and the row's dirty span recorded it.
	top := 12 + int(entry.Offset.Y)
	if top < 0 || top >= 16 {
		t.Errorf("glyph top %d outside the row", top)
	}
	if p.Rows[0].DirtyTop != top {
		t.Errorf("row dirtyTop = %d, want %d", p.Rows[0].DirtyTop, top)
	}
	if p.Rows[0].DirtyBottom != top+int(entry.Size.H) {
		t.Errorf("row dirtyBottom = %d, want %d", p.Rows[0].DirtyBottom, top+int(entry.Size.H))
	}

	// No ligature-marked quads: the next frame may skip the foreground
	// bitmap half.
	if !r.skipForegroundBitmapUpload {
		t.Error("skipForegroundBitmapUpload should be set")
	}
}

func TestRenderEmptyGrid(t *testing.T) {
	// S2: an empty row renders only the background and leaves the dirty
	// rect untouched.
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{}), 0)
	defer done()

	p := testPayload(image.Pt(4, 2))
	dirtyBefore := p.DirtyRectInPx

	if err := r.Render(p); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if p.DirtyRectInPx != dirtyBefore {
		t.Errorf("dirty rect changed to %v on an empty frame", p.DirtyRectInPx)
	}
	if r.GlyphCache().GlyphCount() != 0 {
		t.Errorf("empty frame cached %d glyphs", r.GlyphCache().GlyphCount())
	}
}

func TestRenderAtlasOverflowRetry(t *testing.T) {
	// S3: many distinct glyphs against a clamped atlas force at least one
	// mid-frame reset, and the frame still completes.
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{Left: 0, Top: -8, Right: 8, Bottom: 0}), 128)
	defer done()

	face := &stubFace{id: 1}
	p := testPayload(image.Pt(8, 6))
	next := uint16(1)
	for y := range p.Rows {
		glyphs := make([]uint16, 40)
		for i := range glyphs {
			glyphs[i] = next
			next++
		}
		p.Rows[y] = uniformRow(face, glyphs)
	}

	if err := r.Render(p); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r.Atlas().Generation() < 2 {
		t.Errorf("atlas generation = %d, want at least one mid-frame reset", r.Atlas().Generation())
	}

	// Every entry of the surviving generation satisfies atlas
	// containment.
	size := r.Atlas().Size()
	faceEntry := r.GlyphCache().Lookup(atlas.FaceKey{Face: face, Rendition: SingleWidth})
	if faceEntry == nil {
		t.Fatal("face entry missing")
	}
	if faceEntry.Len() == 0 {
		t.Fatal("no glyph entries survived the frame")
	}
	for g := uint16(1); g < next; g++ {
		e := faceEntry.Lookup(g)
		if e == nil {
			continue // invalidated by a later reset, flushed before it
		}
		if int(e.Texcoord.U)+int(e.Size.W) > size.X || int(e.Texcoord.V)+int(e.Size.H) > size.Y {
			t.Fatalf("entry %d (%+v) escapes the %v atlas", g, e, size)
		}
	}
}

func TestRenderAtlasDeadlock(t *testing.T) {
	// A run whose glyphs cannot share even a freshly reset atlas must
	// fail the frame instead of looping.
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{Left: 0, Top: -100, Right: 100, Bottom: 0}), 128)
	defer done()

	p := testPayload(image.Pt(8, 1))
	p.Rows[0] = uniformRow(&stubFace{id: 1}, []uint16{1, 2})

	if err := r.Render(p); !errors.Is(err, atlas.ErrAtlasDeadlock) {
		t.Fatalf("Render err = %v, want ErrAtlasDeadlock", err)
	}
}

func TestRenderSettingsGenerations(t *testing.T) {
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{Left: 0, Top: -10, Right: 6, Bottom: 0}), 0)
	defer done()

	p := testPayload(image.Pt(4, 2))
	p.Rows[0] = uniformRow(&stubFace{id: 1}, []uint16{1})
	if err := r.Render(p); err != nil {
		t.Fatal(err)
	}
	gen := r.Atlas().Generation()
	if r.GlyphCache().GlyphCount() != 1 {
		t.Fatalf("GlyphCount = %d, want 1", r.GlyphCache().GlyphCount())
	}

	// Same generation: nothing rebuilt, cache intact.
	if err := r.Render(p); err != nil {
		t.Fatal(err)
	}
	if r.Atlas().Generation() != gen {
		t.Error("atlas reset without a settings change")
	}

	// A font generation bump resets the atlas and invalidates glyphs.
	p.Generation++
	p.FontGeneration++
	if err := r.Render(p); err != nil {
		t.Fatal(err)
	}
	if r.Atlas().Generation() == gen {
		t.Error("font change must reset the atlas")
	}
}

func TestRenderRetroPostProcess(t *testing.T) {
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{}), 0)
	defer done()

	p := testPayload(image.Pt(4, 2))
	p.Misc.UseRetroTerminalEffect = true

	if err := r.Render(p); err != nil {
		t.Fatalf("Render with retro effect: %v", err)
	}
	if !r.post.Active() {
		t.Error("retro post-process should be active")
	}
	if r.RequiresContinuousRedraw() {
		t.Error("the built-in retro shader does not require continuous redraw")
	}
}

func TestRenderCustomShaderFailureIsNonFatal(t *testing.T) {
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{}), 0)
	defer done()

	var warned error
	p := testPayload(image.Pt(4, 2))
	p.Misc.CustomShaderPath = "/nonexistent/shader.wgsl"
	p.WarningCallback = func(err error) { warned = err }

	if err := r.Render(p); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !errors.Is(warned, ErrShaderCompile) {
		t.Errorf("warning = %v, want ErrShaderCompile", warned)
	}
	if r.post.Active() {
		t.Error("failed custom shader must disable the pass")
	}
}

func TestRenderAfterClose(t *testing.T) {
	r, done := newTestRenderer(t, newBoxEngine(atlas.RectF{}), 0)
	defer done()

	r.Close()
	if err := r.Render(testPayload(image.Pt(2, 1))); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("Render after Close = %v, want ErrRendererClosed", err)
	}
}
