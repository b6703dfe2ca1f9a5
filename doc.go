// Package termatlas is a hardware-accelerated terminal text renderer. Given
// a per-frame rendering payload — a grid of shaped rows with glyph indices,
// advances, offsets and per-cell colors — it produces one frame on the
// device's back buffer by rasterizing glyphs on demand into a shared texture
// atlas, compiling a compact stream of textured and colored quad instances
// (background fill, text, gridlines, cursor, selection), and submitting
// those instances in as few draw calls as possible, optionally followed by a
// user post-processing pass.
//
// The renderer does not shape text and does not interpret escape sequences;
// shaping happens upstream and arrives in the payload. The GPU device is
// received from the host (a gogpu application or any other owner of a
// wgpu/hal device) rather than created here.
//
// # Architecture
//
//	Renderer ── per frame ──> background / cursor underlay / text /
//	                          gridlines / cursor overlay / selection
//	                │                       │
//	                │                       └─> atlas.Rasterizer on glyph
//	                │                           cache misses (atlas full →
//	                │                           reset and retry once)
//	                └─> flush: upload color bitmap + instance stream,
//	                    one DrawIndexed per blend span, post-process,
//	                    present
//
// Subpackages: quad holds the packed instance stream, atlas the rect
// packer, glyph cache and rasterizer, and glyphdev the default CPU vector
// text engine.
package termatlas
