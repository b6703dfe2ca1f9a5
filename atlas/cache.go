package atlas

import (
	"sync/atomic"

	"github.com/gogpu/termatlas/quad"
)

// GlyphEntry is the cached result of rasterizing one glyph into the atlas.
// Offset positions the quad relative to the glyph's baseline origin; Size
// and Texcoord locate the texels inside the atlas texture.
//
// An entry with Shading == quad.ShadingDefault is whitespace (or an empty
// DECDHL half) and produces no quad.
type GlyphEntry struct {
	GlyphIndex uint16
	Shading    quad.ShadingType
	Offset     quad.Point
	Size       quad.Extent
	Texcoord   quad.Texcoord
}

// FaceKey identifies an outer cache slot: one font face under one line
// rendition. DECDHL glyphs are stored under both DoubleHeight keys as
// top/bottom half pairs.
type FaceKey struct {
	Face      FontFace
	Rendition LineRendition
}

// FontFaceEntry owns all glyph entries of one face/rendition combination.
// The entry outlives atlas resets; only its glyph map is emptied.
type FontFaceEntry struct {
	Face      FontFace
	Rendition LineRendition

	glyphs map[uint16]*GlyphEntry
}

// Insert returns the entry for glyphIndex, creating it if absent. The second
// result reports whether the entry was created by this call, in which case
// the caller must rasterize it.
func (e *FontFaceEntry) Insert(glyphIndex uint16) (*GlyphEntry, bool) {
	if g, ok := e.glyphs[glyphIndex]; ok {
		return g, false
	}
	g := &GlyphEntry{GlyphIndex: glyphIndex}
	e.glyphs[glyphIndex] = g
	return g, true
}

// Lookup returns the entry for glyphIndex, or nil.
func (e *FontFaceEntry) Lookup(glyphIndex uint16) *GlyphEntry {
	return e.glyphs[glyphIndex]
}

// Len returns the number of live glyph entries.
func (e *FontFaceEntry) Len() int { return len(e.glyphs) }

// GlyphCacheStats counts cache traffic. The counters are atomic so an
// observer can read them while the renderer runs.
type GlyphCacheStats struct {
	Hits       atomic.Uint64
	Misses     atomic.Uint64
	Insertions atomic.Uint64
	Resets     atomic.Uint64
}

// GlyphCache is the two-level glyph lookup: font face + rendition on the
// outside, glyph index on the inside. Entry lifetimes are tied to the atlas
// generation; ResetGlyphs invalidates every inner entry at once while the
// outer face entries survive.
//
// GlyphCache is not safe for concurrent use.
type GlyphCache struct {
	faces map[FaceKey]*FontFaceEntry
	stats GlyphCacheStats
}

// NewGlyphCache returns an empty cache.
func NewGlyphCache() *GlyphCache {
	return &GlyphCache{faces: make(map[FaceKey]*FontFaceEntry)}
}

// Insert returns the face entry for key, creating it if absent.
func (c *GlyphCache) Insert(key FaceKey) *FontFaceEntry {
	if e, ok := c.faces[key]; ok {
		return e
	}
	e := &FontFaceEntry{
		Face:      key.Face,
		Rendition: key.Rendition,
		glyphs:    make(map[uint16]*GlyphEntry),
	}
	c.faces[key] = e
	return e
}

// Lookup returns the face entry for key, or nil.
func (c *GlyphCache) Lookup(key FaceKey) *FontFaceEntry {
	return c.faces[key]
}

// InsertGlyph resolves key and glyphIndex in one step, tracking stats.
func (c *GlyphCache) InsertGlyph(key FaceKey, glyphIndex uint16) (*GlyphEntry, bool) {
	g, inserted := c.Insert(key).Insert(glyphIndex)
	if inserted {
		c.stats.Misses.Add(1)
		c.stats.Insertions.Add(1)
	} else {
		c.stats.Hits.Add(1)
	}
	return g, inserted
}

// ResetGlyphs empties every inner glyph map while keeping the outer face
// entries alive. Called together with an atlas reset: the texels every entry
// referenced are gone.
func (c *GlyphCache) ResetGlyphs() {
	for _, e := range c.faces {
		clear(e.glyphs)
	}
	c.stats.Resets.Add(1)
}

// Empty reports whether no glyph entry is live in any face.
func (c *GlyphCache) Empty() bool {
	for _, e := range c.faces {
		if len(e.glyphs) > 0 {
			return false
		}
	}
	return true
}

// GlyphCount returns the number of live glyph entries across all faces.
func (c *GlyphCache) GlyphCount() int {
	n := 0
	for _, e := range c.faces {
		n += len(e.glyphs)
	}
	return n
}

// FaceCount returns the number of outer face entries.
func (c *GlyphCache) FaceCount() int { return len(c.faces) }

// Stats returns the cache counters.
func (c *GlyphCache) Stats() (hits, misses, insertions, resets uint64) {
	return c.stats.Hits.Load(),
		c.stats.Misses.Load(),
		c.stats.Insertions.Load(),
		c.stats.Resets.Load()
}
