package atlas

import (
	"math/rand"
	"testing"
)

func TestPackerSingleRect(t *testing.T) {
	p := NewPacker(64, 64)
	r := Rect{W: 10, H: 12}
	if !p.Pack(&r) {
		t.Fatal("Pack failed on empty packer")
	}
	if r.X != 0 || r.Y != 0 {
		t.Errorf("first rect at (%d,%d), want (0,0)", r.X, r.Y)
	}
	if p.Count() != 1 {
		t.Errorf("Count() = %d, want 1", p.Count())
	}
}

func TestPackerRejectsOversized(t *testing.T) {
	p := NewPacker(64, 64)
	tests := []Rect{
		{W: 65, H: 1},
		{W: 1, H: 65},
		{W: 0, H: 10},
		{W: 10, H: 0},
	}
	for _, r := range tests {
		if p.Pack(&r) {
			t.Errorf("Pack(%dx%d) should fail", r.W, r.H)
		}
	}
}

func TestPackerBottomLeft(t *testing.T) {
	p := NewPacker(64, 64)
	a := Rect{W: 32, H: 10}
	b := Rect{W: 32, H: 10}
	c := Rect{W: 16, H: 10}
	for _, r := range []*Rect{&a, &b, &c} {
		if !p.Pack(r) {
			t.Fatal("Pack failed")
		}
	}
	// a and b share the bottom row, c starts the second shelf at the left.
	if a.Y != 0 || b.Y != 0 {
		t.Errorf("first row rects at y=%d,%d, want 0,0", a.Y, b.Y)
	}
	if b.X != 32 {
		t.Errorf("second rect at x=%d, want 32", b.X)
	}
	if c.X != 0 || c.Y != 10 {
		t.Errorf("third rect at (%d,%d), want (0,10)", c.X, c.Y)
	}
}

func TestPackerNoOverlap(t *testing.T) {
	const size = 256
	p := NewPacker(size, size)
	rng := rand.New(rand.NewSource(1))

	var packed []Rect
	for i := 0; i < 1000; i++ {
		r := Rect{W: 1 + rng.Intn(24), H: 1 + rng.Intn(24)}
		if !p.Pack(&r) {
			break
		}
		packed = append(packed, r)
	}
	if len(packed) < 50 {
		t.Fatalf("only %d rects packed, packer looks broken", len(packed))
	}

	for i, a := range packed {
		if a.X < 0 || a.Y < 0 || a.X+a.W > size || a.Y+a.H > size {
			t.Fatalf("rect %d (%+v) outside atlas bounds", i, a)
		}
		for j, b := range packed[:i] {
			if a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H {
				t.Fatalf("rect %d (%+v) overlaps rect %d (%+v)", i, a, j, b)
			}
		}
	}
}

func TestPackerFillsUntilFull(t *testing.T) {
	p := NewPacker(64, 64)
	count := 0
	for {
		r := Rect{W: 16, H: 16}
		if !p.Pack(&r) {
			break
		}
		count++
	}
	// A 64x64 area holds exactly 16 16x16 tiles.
	if count != 16 {
		t.Errorf("packed %d tiles, want 16", count)
	}
}

func TestPackerReset(t *testing.T) {
	p := NewPacker(64, 64)
	r := Rect{W: 64, H: 64}
	if !p.Pack(&r) {
		t.Fatal("Pack failed")
	}
	if p.Pack(&Rect{W: 1, H: 1}) {
		t.Fatal("packer should be full")
	}

	p.Reset(128, 32)
	if p.Width() != 128 || p.Height() != 32 {
		t.Errorf("size after Reset = %dx%d, want 128x32", p.Width(), p.Height())
	}
	if p.Count() != 0 {
		t.Errorf("Count() after Reset = %d, want 0", p.Count())
	}
	r = Rect{W: 1, H: 1}
	if !p.Pack(&r) || r.X != 0 || r.Y != 0 {
		t.Errorf("Pack after Reset = %+v, want success at (0,0)", r)
	}
}
