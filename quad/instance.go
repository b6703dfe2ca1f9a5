// Package quad provides the instance stream that feeds the cell renderer's
// single instanced draw path. Every visible element of a frame (background,
// text, gridlines, cursor, selection) is one fixed-size Instance; the GPU
// expands each instance into a quad of 6 indexed vertices.
package quad

// ShadingType selects the pixel path used to shade an instance. The value is
// carried verbatim into the instance buffer and switched on in the fragment
// shader.
type ShadingType uint16

const (
	// ShadingDefault marks an instance (or cache entry) as empty. Such
	// entries are never emitted into the stream.
	ShadingDefault ShadingType = iota

	// ShadingBackground samples the upper half of the color bitmap to fill
	// the whole viewport with per-cell background colors.
	ShadingBackground

	// ShadingSolidFill fills the quad with the instance color.
	ShadingSolidFill

	// ShadingTextGrayscale samples the glyph atlas as a single-channel
	// alpha mask.
	ShadingTextGrayscale

	// ShadingTextClearType marks ClearType text. The fragment shader shades
	// it with the same single-channel coverage as grayscale text; per-channel
	// subpixel weights are not applied.
	ShadingTextClearType

	// ShadingPassthrough copies atlas texels unmodified (color glyphs).
	ShadingPassthrough
)

// LigatureMarker is OR-ed into a text shading type when the glyph overhangs
// its cell run, telling the fragment shader to clamp foreground color lookups
// to cell boundaries. It is a flag, not a variant.
const LigatureMarker ShadingType = 0x100

// Base returns the shading type with the ligature marker stripped.
func (s ShadingType) Base() ShadingType { return s &^ LigatureMarker }

// HasLigatureMarker reports whether the ligature flag is set.
func (s ShadingType) HasLigatureMarker() bool { return s&LigatureMarker != 0 }

// IsText reports whether the shading type samples the glyph atlas.
func (s ShadingType) IsText() bool {
	switch s.Base() {
	case ShadingTextGrayscale, ShadingTextClearType, ShadingPassthrough:
		return true
	}
	return false
}

// String returns the name of the base shading type.
func (s ShadingType) String() string {
	var name string
	switch s.Base() {
	case ShadingDefault:
		name = "Default"
	case ShadingBackground:
		name = "Background"
	case ShadingSolidFill:
		name = "SolidFill"
	case ShadingTextGrayscale:
		name = "TextGrayscale"
	case ShadingTextClearType:
		name = "TextClearType"
	case ShadingPassthrough:
		name = "Passthrough"
	default:
		name = "Unknown"
	}
	if s.HasLigatureMarker() {
		name += "+LigatureMarker"
	}
	return name
}

// Point is a position in target pixels, top-left origin. Glyph offsets can be
// negative (overhang to the left / above the baseline), hence signed.
type Point struct {
	X, Y int16
}

// Extent is a size in pixels.
type Extent struct {
	W, H uint16
}

// Texcoord is a texel position in the glyph atlas.
type Texcoord struct {
	U, V uint16
}

// RenditionScale carries the DECDWL/DECDHL axis doubling (0 or 1 per axis)
// for shaders that need to know the cell magnification.
type RenditionScale struct {
	X, Y uint8
}

// Instance is one packed quad instance. The field order matches the vertex
// fetch layout: the GPU reads each instance as two vec4<f32> attributes and
// bitcasts the packed integers back apart, so both the order and the 32-byte
// stride are load-bearing. Colors are premultiplied RGBA, little-endian
// (0xAABBGGRR).
type Instance struct {
	Shading  ShadingType
	Scale    RenditionScale
	Position Point
	Size     Extent
	Texcoord Texcoord
	Color    uint32

	// Pads the instance to a 32-byte stride. The vertex shader fetches two
	// 16-byte attributes per instance, and 32-byte-aligned copies are
	// measurably faster on the CPU side.
	_ [12]byte
}

// InstanceSize is the byte stride of one Instance in the instance buffer.
const InstanceSize = 32
