package glyphdev

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	tsfont "github.com/go-text/typesetting/font"
)

// BitmapSource reads color bitmap glyphs (CBDT/sbix strikes) out of a
// go-text/typesetting face. Attach it to a Face with SetColorSource to get
// emoji rendered through the passthrough shading path.
//
// Decoded glyphs are cached per glyph index for the lifetime of the source;
// the cache is not cleared on atlas resets, so a glyph re-rasterized after a
// reset reuses its earlier decode.
type BitmapSource struct {
	face    *tsfont.Face
	decoded map[uint16]image.Image
}

// NewBitmapSource wraps a typesetting face.
func NewBitmapSource(face *tsfont.Face) *BitmapSource {
	return &BitmapSource{
		face:    face,
		decoded: make(map[uint16]image.Image),
	}
}

// ColorGlyph implements ColorGlyphSource.
func (s *BitmapSource) ColorGlyph(glyphIndex uint16, ppem float64) (image.Image, bool) {
	if img, ok := s.decoded[glyphIndex]; ok {
		return img, img != nil
	}

	img := s.decode(glyphIndex)
	s.decoded[glyphIndex] = img
	return img, img != nil
}

// decode extracts and decodes the glyph's bitmap strike, or returns nil for
// outline glyphs and monochrome strikes.
func (s *BitmapSource) decode(glyphIndex uint16) image.Image {
	data := s.face.GlyphData(tsfont.GID(glyphIndex))
	bm, ok := data.(tsfont.GlyphBitmap)
	if !ok {
		return nil
	}

	switch bm.Format {
	case tsfont.PNG:
		img, err := png.Decode(bytes.NewReader(bm.Data))
		if err != nil {
			return nil
		}
		return img
	case tsfont.JPG:
		img, err := jpeg.Decode(bytes.NewReader(bm.Data))
		if err != nil {
			return nil
		}
		return img
	default:
		// BlackAndWhite strikes are not color data; let the outline path
		// handle the glyph.
		return nil
	}
}
