package quad

import (
	"unsafe"

	"honnef.co/go/safeish"
)

// Blend identifies one of the renderer's prebuilt blend configurations.
type Blend uint8

const (
	// BlendNone marks a state change that leaves the blend state alone.
	// Spans still splits the stream at such a marker but keeps the current
	// blend, so no span carries BlendNone.
	BlendNone Blend = iota

	// BlendStandard is the premultiplied single-source source-over blend
	// used for text and fills; it applies no per-channel weights.
	BlendStandard

	// BlendInvert is the subtractive blend used for the auto-color cursor
	// overlay.
	BlendInvert
)

// String returns the blend state name.
func (b Blend) String() string {
	switch b {
	case BlendNone:
		return "None"
	case BlendStandard:
		return "Standard"
	case BlendInvert:
		return "Invert"
	default:
		return "Unknown"
	}
}

// StateChange records that the blend state must switch before the instance at
// Offset is drawn.
type StateChange struct {
	Offset int
	Blend  Blend
}

// Span is one contiguous run of instances drawn with a single
// DrawIndexed(6, Count, 0, 0, Start) call. Blend is the state active while
// the span draws.
type Span struct {
	Start, Count int
	Blend        Blend
}

// minCapacity is the first allocation size of the instance array. The
// emission path runs millions of appends per second, so the growth policy
// favors few, large reallocations.
const minCapacity = 256

// instanceAlign is the guaranteed alignment of the instance backing array.
// memcpy-style copies of the stream are significantly faster on 32-byte
// aligned memory.
const instanceAlign = 32

// Stream is a growable buffer of quad instances with an ordered list of
// blend-state change markers. It is the single sink for all per-frame
// geometry.
//
// Stream is not safe for concurrent use; one frame owns it start to finish.
type Stream struct {
	instances []Instance
	count     int
	changes   []StateChange
}

// NewStream returns an empty stream. The backing array is allocated lazily on
// the first append.
func NewStream() *Stream {
	return &Stream{}
}

// Append grows the stream by one instance and returns a pointer to it. The
// returned pointer stays valid until the next Append.
func (s *Stream) Append() *Instance {
	if s.count >= len(s.instances) {
		s.grow()
	}
	q := &s.instances[s.count]
	s.count++
	return q
}

// Push appends a copy of q and returns a handle to the stored element so the
// caller can patch it later (selection coalescing relies on this).
func (s *Stream) Push(q Instance) *Instance {
	p := s.Append()
	*p = q
	return p
}

// Last returns the most recently appended instance. It panics on an empty
// stream; callers only use it right after an emission.
func (s *Stream) Last() *Instance {
	return &s.instances[s.count-1]
}

// Len returns the number of live instances.
func (s *Stream) Len() int { return s.count }

// Instances returns the live instances. The slice aliases the stream's
// backing array.
func (s *Stream) Instances() []Instance {
	return s.instances[:s.count]
}

// Bytes reinterprets the live instances as raw bytes for upload into the
// instance buffer.
func (s *Stream) Bytes() []byte {
	return safeish.SliceCast[[]byte](s.instances[:s.count])
}

// MarkStateChange records that the blend state must switch to b before the
// next appended instance is drawn.
func (s *Stream) MarkStateChange(b Blend) {
	s.changes = append(s.changes, StateChange{Offset: s.count, Blend: b})
}

// Spans resolves the marker list into draw spans, treating the end of the
// stream as a final sentinel marker; the marker list itself is not modified. Zero-length spans are omitted, so the returned slice maps 1:1
// onto draw calls. The stream starts each frame in BlendStandard.
func (s *Stream) Spans() []Span {
	spans := make([]Span, 0, len(s.changes)+1)
	cur := BlendStandard
	prev := 0
	for _, sc := range s.changes {
		if count := sc.Offset - prev; count > 0 {
			spans = append(spans, Span{Start: prev, Count: count, Blend: cur})
			prev = sc.Offset
		}
		if sc.Blend != BlendNone {
			cur = sc.Blend
		}
	}
	if count := s.count - prev; count > 0 {
		spans = append(spans, Span{Start: prev, Count: count, Blend: cur})
	}
	return spans
}

// Drain resets the instance count and the marker list, keeping capacity.
// Called after the spans of a frame have been flushed to the device.
func (s *Stream) Drain() {
	s.count = 0
	s.changes = s.changes[:0]
}

// Reset drops the backing array entirely so the next frame reallocates at
// minimum capacity. Used when a settings change invalidates the previous
// size regime.
func (s *Stream) Reset() {
	s.instances = nil
	s.count = 0
	s.changes = nil
}

// grow doubles the backing array, moving the live instances into a fresh
// 32-byte-aligned allocation.
func (s *Stream) grow() {
	newCap := max(minCapacity, len(s.instances)*2)
	grown := newAlignedInstances(newCap)
	copy(grown, s.instances[:s.count])
	s.instances = grown
}

// newAlignedInstances allocates n instances on an instanceAlign boundary.
// Go's allocator only guarantees pointer alignment, so the array is carved
// out of an over-sized byte slice.
func newAlignedInstances(n int) []Instance {
	raw := make([]byte, n*InstanceSize+instanceAlign-1)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % instanceAlign); rem != 0 {
		off = instanceAlign - rem
	}
	return safeish.SliceCast[[]Instance](raw[off : off+n*InstanceSize])
}
