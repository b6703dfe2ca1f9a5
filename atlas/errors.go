package atlas

import "errors"

// Atlas errors.
var (
	// ErrAtlasFull is returned by the rasterizer when the packer has no
	// room for a glyph. The caller resets the atlas and retries once.
	ErrAtlasFull = errors.New("atlas: texture atlas is full")

	// ErrAtlasDeadlock is returned when a reset-and-retry would reset an
	// atlas whose cache is already empty; the glyph can never fit.
	ErrAtlasDeadlock = errors.New("atlas: glyph retry deadlock, atlas already empty")

	// ErrNoEngine is returned when an outline glyph is requested but no
	// vector engine is configured.
	ErrNoEngine = errors.New("atlas: no glyph engine configured")

	// ErrNoSoftFont is returned for a soft-font glyph index without
	// pattern data in the font settings.
	ErrNoSoftFont = errors.New("atlas: glyph index has no soft font pattern")
)
