package atlas

import (
	"image"
	"testing"
)

func TestAtlasResetChoosesPowerOfTwo(t *testing.T) {
	a := New(0)
	a.Reset(image.Pt(985, 1946), image.Pt(8, 16))

	size := a.Size()
	if size.X&(size.X-1) != 0 || size.Y&(size.Y-1) != 0 {
		t.Fatalf("atlas size %v is not power-of-two", size)
	}
	// The sides differ by at most one doubling, wider rather than taller.
	if size.X < size.Y {
		t.Errorf("atlas %v should prefer width over height", size)
	}
	if size.X > size.Y*2 {
		t.Errorf("atlas %v sides differ by more than one doubling", size)
	}

	// 1.25x the viewport area bounds the texture from above.
	target := 985 * 1946
	if size.X*size.Y > max(target+target/4, minArea)*2 {
		t.Errorf("atlas area %d far exceeds the 1.25x viewport bound", size.X*size.Y)
	}
}

func TestAtlasResetMinimumSize(t *testing.T) {
	a := New(0)
	// A modest viewport starts at the 128x128 minimum area; growth beyond
	// it is demand-driven.
	a.Reset(image.Pt(400, 300), image.Pt(2, 4))
	size := a.Size()
	if size.X*size.Y != minArea {
		t.Errorf("atlas area = %d, want the %d minimum", size.X*size.Y, minArea)
	}
}

func TestAtlasResetClampsToDeviceLimit(t *testing.T) {
	a := New(128)
	a.Reset(image.Pt(4096, 4096), image.Pt(8, 16))
	size := a.Size()
	if size.X > 128 || size.Y > 128 {
		t.Errorf("atlas %v exceeds the device limit of 128", size)
	}
}

func TestAtlasGenerationAndLatches(t *testing.T) {
	a := New(0)
	if a.Generation() != 0 {
		t.Fatalf("fresh atlas generation = %d, want 0", a.Generation())
	}

	// A viewport small enough that the 1.25x bound pins the shape, so the
	// second reset cannot grow it.
	a.Reset(image.Pt(100, 100), image.Pt(2, 4))
	if a.Generation() != 1 {
		t.Errorf("generation after first Reset = %d, want 1", a.Generation())
	}
	if !a.TakeResized() {
		t.Error("first Reset must flag a resize")
	}
	if a.TakeResized() {
		t.Error("TakeResized should clear the latch")
	}
	if !a.TakeDirty() {
		t.Error("Reset must flag the texels dirty")
	}

	a.Reset(image.Pt(100, 100), image.Pt(2, 4))
	if a.Generation() != 2 {
		t.Errorf("generation after second Reset = %d, want 2", a.Generation())
	}
	if a.TakeResized() {
		t.Error("same-shape Reset must not flag a resize")
	}
}

func TestAtlasResetClearsPixels(t *testing.T) {
	a := New(0)
	a.Reset(image.Pt(100, 100), image.Pt(2, 4))

	img := a.Image()
	img.Pix[0] = 0xff
	a.Reset(image.Pt(100, 100), image.Pt(2, 4))
	if a.Image().Pix[0] != 0 {
		t.Error("Reset must zero-fill the atlas")
	}
}

func TestAtlasGrowthDoublesArea(t *testing.T) {
	a := New(0)
	a.Reset(image.Pt(4096, 4096), image.Pt(8, 16))
	first := a.Size()

	// Packing nothing but resetting again keeps the growth bound at 2x
	// the current area, clamped by the viewport bound.
	a.Reset(image.Pt(4096, 4096), image.Pt(8, 16))
	second := a.Size()
	if second.X*second.Y != 2*first.X*first.Y {
		t.Errorf("atlas area did not double across resets: %v -> %v", first, second)
	}
}
