package termatlas

import (
	"errors"
	"math"

	"github.com/gogpu/termatlas/atlas"
	"github.com/gogpu/termatlas/quad"
)

// drawText emits one quad per visible glyph, rasterizing cache misses into
// the atlas as it goes. When the atlas runs full mid-run, the emitted quads
// are flushed against the old atlas texels, the atlas is reset, and the run
// restarts; a run gets at most two attempts before the frame fails as a
// deadlock.
func (r *Renderer) drawText(p *RenderPayload) error {
	if r.fontChangedResetAtlas {
		if err := r.rast.EndDrawing(); err != nil {
			return err
		}
		r.rast.ResetAtlas(p.TargetSize, &r.metrics)
		r.fontChangedResetAtlas = false
	}

	var shadingAccum quad.ShadingType
	r.skipForegroundBitmapUpload = false

	dirtyTop := math.MaxInt
	dirtyBottom := math.MinInt

	for y, row := range p.Rows {
		baselineX := float32(0)
		baselineY := y*p.Font.CellSize.Y + p.Font.Baseline

		// A non-standard rendition makes glyphs twice as wide, so the
		// baseline advance doubles. Glyph offsets arrive already scaled.
		scaleShift := 0
		if row.Rendition != atlas.SingleWidth {
			scaleShift = 1
		}
		scale := quad.RenditionScale{X: uint8(scaleShift)}
		if row.Rendition.IsDoubleHeight() {
			scale.Y = 1
		}

		for _, m := range row.Mappings {
			key := atlas.FaceKey{Face: m.Face, Rendition: row.Rendition}
			runBaselineX := baselineX

			for attempt := 0; ; attempt++ {
				faceEntry := r.cache.Insert(key)
				restart := false
				baselineX = runBaselineX

				for x := m.GlyphsFrom; x < m.GlyphsTo; x++ {
					entry, inserted := faceEntry.Insert(row.GlyphIndices[x])
					if inserted {
						err := r.rast.DrawGlyph(faceEntry, entry, row.GlyphAdvances[x], &r.metrics)
						if errors.Is(err, atlas.ErrAtlasFull) {
							// A second failure, or a failure against a
							// freshly reset atlas, cannot be solved by
							// another reset.
							if attempt > 0 || r.atlas.Packer().Count() == 0 {
								return atlas.ErrAtlasDeadlock
							}
							if err := r.prepareGlyphRetry(p); err != nil {
								return err
							}
							restart = true
							break
						}
						if err != nil {
							return err
						}
					}

					if entry.Shading != quad.ShadingDefault {
						l := int(math.Round(float64(baselineX + row.GlyphOffsets[x].Advance)))
						t := int(math.Round(float64(float32(baselineY) - row.GlyphOffsets[x].Ascender)))
						l <<= scaleShift
						l += int(entry.Offset.X)
						t += int(entry.Offset.Y)

						row.DirtyTop = min(row.DirtyTop, t)
						row.DirtyBottom = max(row.DirtyBottom, t+int(entry.Size.H))

						r.stream.Push(quad.Instance{
							Shading:  entry.Shading,
							Scale:    scale,
							Position: quad.Point{X: int16(l), Y: int16(t)},
							Size:     entry.Size,
							Texcoord: entry.Texcoord,
							Color:    row.Colors[x],
						})
						shadingAccum |= entry.Shading
					}

					baselineX += row.GlyphAdvances[x]
				}

				if !restart {
					break
				}
			}
		}

		if p.InvalidatedRows.Contains(y) {
			dirtyTop = min(dirtyTop, row.DirtyTop)
			dirtyBottom = max(dirtyBottom, row.DirtyBottom)
		}
	}

	if dirtyTop < dirtyBottom {
		p.DirtyRectInPx.Min.Y = min(p.DirtyRectInPx.Min.Y, dirtyTop)
		p.DirtyRectInPx.Max.Y = max(p.DirtyRectInPx.Max.Y, dirtyBottom)
	}

	if err := r.rast.EndDrawing(); err != nil {
		return err
	}

	// When no quad carried the ligature marker the pixel shader never
	// reads the foreground half of the color bitmap, so the next upload
	// may skip it.
	r.skipForegroundBitmapUpload = !shadingAccum.HasLigatureMarker()
	return nil
}

// prepareGlyphRetry is the atlas-overflow recovery path: end drawing, flush
// the quads emitted so far (they reference the old atlas texels), then
// reset the atlas and the glyph cache.
func (r *Renderer) prepareGlyphRetry(p *RenderPayload) error {
	if err := r.rast.EndDrawing(); err != nil {
		return err
	}
	if err := r.flush(p); err != nil {
		return err
	}
	r.rast.ResetAtlas(p.TargetSize, &r.metrics)
	Logger().Debug("termatlas: glyph atlas reset mid-frame",
		"generation", r.atlas.Generation())
	return nil
}
