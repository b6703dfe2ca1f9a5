package termatlas

// Payload colors are premultiplied RGBA packed little-endian: 0xAABBGGRR.
// The helpers below keep the bit-twiddling in one place.

// colorR/G/B/A extract the channel bytes of a packed color.
func colorR(c uint32) uint8 { return uint8(c) }
func colorG(c uint32) uint8 { return uint8(c >> 8) }
func colorB(c uint32) uint8 { return uint8(c >> 16) }
func colorA(c uint32) uint8 { return uint8(c >> 24) }

// colorToFloats expands a packed premultiplied color to normalized floats
// for upload into a uniform buffer.
func colorToFloats(c uint32) [4]float32 {
	const s = 1.0 / 255.0
	return [4]float32{
		float32(colorR(c)) * s,
		float32(colorG(c)) * s,
		float32(colorB(c)) * s,
		float32(colorA(c)) * s,
	}
}

// opaque forces full alpha onto a packed color.
func opaque(c uint32) uint32 { return c | 0xff000000 }

// cursorAutoColor is the sentinel cursor color meaning "invert whatever is
// underneath".
const cursorAutoColor = 0xffffffff

// cursorInvertXOR is the channel perturbation applied to the background
// under an auto-color cursor, so the underlay remains visible on both very
// dark and very light backgrounds.
const cursorInvertXOR = 0x3f3f3f
