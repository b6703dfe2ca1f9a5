package quad

import (
	"testing"
	"unsafe"
)

func TestInstanceSize(t *testing.T) {
	if got := unsafe.Sizeof(Instance{}); got != InstanceSize {
		t.Fatalf("Sizeof(Instance) = %d, want %d", got, InstanceSize)
	}
}

func TestInstanceFieldOffsets(t *testing.T) {
	// The vertex fetch bitcasts the instance apart field by field, so the
	// packed layout is part of the GPU contract.
	var q Instance
	base := uintptr(unsafe.Pointer(&q))
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Shading", uintptr(unsafe.Pointer(&q.Shading)) - base, 0},
		{"Scale", uintptr(unsafe.Pointer(&q.Scale)) - base, 2},
		{"Position", uintptr(unsafe.Pointer(&q.Position)) - base, 4},
		{"Size", uintptr(unsafe.Pointer(&q.Size)) - base, 8},
		{"Texcoord", uintptr(unsafe.Pointer(&q.Texcoord)) - base, 12},
		{"Color", uintptr(unsafe.Pointer(&q.Color)) - base, 16},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("offset of %s = %d, want %d", o.name, o.got, o.want)
		}
	}
}

func TestShadingTypeLigatureMarker(t *testing.T) {
	s := ShadingTextClearType | LigatureMarker
	if !s.HasLigatureMarker() {
		t.Error("HasLigatureMarker should be true after OR-ing the flag")
	}
	if s.Base() != ShadingTextClearType {
		t.Errorf("Base() = %v, want TextClearType", s.Base())
	}
	if ShadingTextGrayscale.HasLigatureMarker() {
		t.Error("plain shading type should not carry the marker")
	}
}

func TestShadingTypeIsText(t *testing.T) {
	tests := []struct {
		s    ShadingType
		want bool
	}{
		{ShadingDefault, false},
		{ShadingBackground, false},
		{ShadingSolidFill, false},
		{ShadingTextGrayscale, true},
		{ShadingTextClearType, true},
		{ShadingPassthrough, true},
		{ShadingTextGrayscale | LigatureMarker, true},
	}
	for _, tt := range tests {
		if got := tt.s.IsText(); got != tt.want {
			t.Errorf("%v.IsText() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestStreamAppendGrow(t *testing.T) {
	s := NewStream()
	const n = minCapacity*2 + 17
	for i := 0; i < n; i++ {
		q := s.Append()
		q.Shading = ShadingSolidFill
		q.Color = uint32(i)
	}
	if s.Len() != n {
		t.Fatalf("Len() = %d, want %d", s.Len(), n)
	}
	// Growth must move-copy the live prefix intact.
	for i, q := range s.Instances() {
		if q.Color != uint32(i) {
			t.Fatalf("instance %d color = %#x, want %#x", i, q.Color, i)
		}
	}
}

func TestStreamAlignment(t *testing.T) {
	s := NewStream()
	s.Append()
	addr := uintptr(unsafe.Pointer(&s.instances[0]))
	if addr%instanceAlign != 0 {
		t.Errorf("backing array at %#x is not %d-byte aligned", addr, instanceAlign)
	}
}

func TestStreamPushReturnsHandle(t *testing.T) {
	s := NewStream()
	p := s.Push(Instance{Shading: ShadingSolidFill, Size: Extent{W: 10, H: 8}})
	p.Size.H += 8 // selection coalescing patches the stored element
	if got := s.Last().Size.H; got != 16 {
		t.Errorf("patched height = %d, want 16", got)
	}
}

func TestStreamBytes(t *testing.T) {
	s := NewStream()
	s.Push(Instance{Color: 0x11223344})
	b := s.Bytes()
	if len(b) != InstanceSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(b), InstanceSize)
	}
	// Color sits at byte offset 16, little-endian.
	if b[16] != 0x44 || b[17] != 0x33 || b[18] != 0x22 || b[19] != 0x11 {
		t.Errorf("color bytes = % x, want 44 33 22 11", b[16:20])
	}
}

func TestStreamSpans(t *testing.T) {
	s := NewStream()
	s.Push(Instance{}) // 0
	s.Push(Instance{}) // 1
	s.MarkStateChange(BlendInvert)
	s.Push(Instance{}) // 2
	s.MarkStateChange(BlendStandard)
	s.Push(Instance{}) // 3
	s.Push(Instance{}) // 4

	want := []Span{
		{Start: 0, Count: 2, Blend: BlendStandard},
		{Start: 2, Count: 1, Blend: BlendInvert},
		{Start: 3, Count: 2, Blend: BlendStandard},
	}
	got := s.Spans()
	if len(got) != len(want) {
		t.Fatalf("Spans() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStreamSpansEmptySpanElided(t *testing.T) {
	s := NewStream()
	s.Push(Instance{})
	s.MarkStateChange(BlendInvert)
	s.MarkStateChange(BlendStandard) // immediately reverted, no quads between
	s.Push(Instance{})

	got := s.Spans()
	// N markers yield at most N+1 draw calls; empty spans are dropped.
	if len(got) != 2 {
		t.Fatalf("Spans() produced %d spans, want 2: %v", len(got), got)
	}
	for _, sp := range got {
		if sp.Blend != BlendStandard {
			t.Errorf("span %v should draw with the standard blend", sp)
		}
		if sp.Count == 0 {
			t.Errorf("span %v has zero count", sp)
		}
	}
}

func TestStreamSpansLeadingMarker(t *testing.T) {
	s := NewStream()
	s.MarkStateChange(BlendInvert)
	s.Push(Instance{})

	got := s.Spans()
	if len(got) != 1 || got[0].Blend != BlendInvert {
		t.Fatalf("Spans() = %v, want one invert span", got)
	}
}

func TestStreamDrainKeepsCapacity(t *testing.T) {
	s := NewStream()
	for i := 0; i < 1000; i++ {
		s.Append()
	}
	capBefore := len(s.instances)
	s.Drain()
	if s.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", s.Len())
	}
	if len(s.Spans()) != 0 {
		t.Errorf("Spans() after Drain should be empty")
	}
	s.Append()
	if len(s.instances) != capBefore {
		t.Errorf("capacity changed across Drain: %d -> %d", capBefore, len(s.instances))
	}
}

func TestStreamReset(t *testing.T) {
	s := NewStream()
	for i := 0; i < 1000; i++ {
		s.Append()
	}
	s.Reset()
	if s.Len() != 0 || s.instances != nil {
		t.Error("Reset should drop the backing array")
	}
	s.Append()
	if len(s.instances) != minCapacity {
		t.Errorf("first allocation after Reset = %d instances, want %d", len(s.instances), minCapacity)
	}
}
