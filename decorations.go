package termatlas

import (
	"github.com/gogpu/termatlas/quad"
)

// drawBackground emits the full-viewport background quad. The pixel shader
// fills it from the upper half of the color bitmap.
func (r *Renderer) drawBackground(p *RenderPayload) {
	r.stream.Push(quad.Instance{
		Shading: quad.ShadingBackground,
		Size: quad.Extent{
			W: uint16(p.TargetSize.X),
			H: uint16(p.TargetSize.Y),
		},
	})
}

// drawGridlines emits the per-row line decorations.
func (r *Renderer) drawGridlines(p *RenderPayload) {
	for y, row := range p.Rows {
		if len(row.GridLineRanges) > 0 {
			r.drawGridlineRow(p, row, y)
		}
	}
}

func (r *Renderer) drawGridlineRow(p *RenderPayload, row *ShapedRow, y int) {
	font := p.Font
	top := font.CellSize.Y * y

	for _, gr := range row.GridLineRanges {
		left := gr.From * font.CellSize.X
		width := (gr.To - gr.From) * font.CellSize.X

		horizontal := func(offsetY, height int) {
			r.stream.Push(quad.Instance{
				Shading:  quad.ShadingSolidFill,
				Position: quad.Point{X: int16(left), Y: int16(top + offsetY)},
				Size:     quad.Extent{W: uint16(width), H: uint16(height)},
				Color:    gr.Color,
			})
		}
		vertical := func(x int) {
			r.stream.Push(quad.Instance{
				Shading:  quad.ShadingSolidFill,
				Position: quad.Point{X: int16(x), Y: int16(top)},
				Size:     quad.Extent{W: uint16(font.ThinLineWidth), H: uint16(font.CellSize.Y)},
				Color:    gr.Color,
			})
		}
		// segmented emits a horizontal line as on/off runs of the given
		// period, for dotted and dashed underlines.
		segmented := func(offsetY, height, period int) {
			for x := left; x < left+width; x += 2 * period {
				w := min(period, left+width-x)
				r.stream.Push(quad.Instance{
					Shading:  quad.ShadingSolidFill,
					Position: quad.Point{X: int16(x), Y: int16(top + offsetY)},
					Size:     quad.Extent{W: uint16(w), H: uint16(height)},
					Color:    gr.Color,
				})
			}
		}

		if gr.Lines.Has(GridLinesLeft) {
			for i := gr.From; i < gr.To; i++ {
				vertical(i * font.CellSize.X)
			}
		}
		if gr.Lines.Has(GridLinesTop) {
			horizontal(0, font.ThinLineWidth)
		}
		if gr.Lines.Has(GridLinesRight) {
			for i := gr.To; i > gr.From; i-- {
				vertical(i*font.CellSize.X - font.ThinLineWidth)
			}
		}
		if gr.Lines.Has(GridLinesBottom) {
			horizontal(font.CellSize.Y-font.ThinLineWidth, font.ThinLineWidth)
		}
		if gr.Lines.Has(GridLinesUnderline) {
			horizontal(font.UnderlinePos, font.UnderlineWidth)
		}
		if gr.Lines.Has(GridLinesHyperlinkUnderline) {
			horizontal(font.UnderlinePos, font.UnderlineWidth)
		}
		if gr.Lines.Has(GridLinesDoubleUnderline) {
			horizontal(font.DoubleUnderlinePos[0], font.ThinLineWidth)
			horizontal(font.DoubleUnderlinePos[1], font.ThinLineWidth)
		}
		if gr.Lines.Has(GridLinesDottedUnderline) {
			segmented(font.UnderlinePos, font.UnderlineWidth, font.ThinLineWidth)
		}
		if gr.Lines.Has(GridLinesDashedUnderline) {
			segmented(font.UnderlinePos, font.UnderlineWidth, font.UnderlineWidth*3)
		}
		if gr.Lines.Has(GridLinesStrikethrough) {
			horizontal(font.StrikethroughPos, font.StrikethroughWidth)
		}
	}
}

// cursorRect is one rectangle of the cursor shape, carried from the
// underlay pass to the overlay pass.
type cursorRect struct {
	Position quad.Point
	Size     quad.Extent
	Color    uint32
}

// drawCursorPart1 scans the cursor row's background colors, coalesces
// horizontal runs of identical color, expands each run into the configured
// cursor shape, and — for the auto (inverting) cursor — emits the shape
// underneath the text with a perturbed background color. The rectangles are
// remembered for part 2.
func (r *Renderer) drawCursorPart1(p *RenderPayload) {
	r.cursorRects = r.cursorRects[:0]

	if p.CursorRect.Empty() {
		return
	}

	font := p.Font
	cursorColor := p.Cursor.Color
	row := p.CursorRect.Min.Y

	for x1 := p.CursorRect.Min.X; x1 < p.CursorRect.Max.X; {
		x0 := x1
		bg := opaque(p.backgroundColorAt(x1, row))
		for x1 < p.CursorRect.Max.X && opaque(p.backgroundColorAt(x1, row)) == bg {
			x1++
		}

		color := cursorColor
		if cursorColor == cursorAutoColor {
			color = bg ^ cursorInvertXOR
		}
		c0 := cursorRect{
			Position: quad.Point{
				X: int16(font.CellSize.X * x0),
				Y: int16(font.CellSize.Y * row),
			},
			Size: quad.Extent{
				W: uint16(font.CellSize.X * (x1 - x0)),
				H: uint16(font.CellSize.Y),
			},
			Color: color,
		}

		switch p.Cursor.Type {
		case CursorLegacy:
			height := (int(c0.Size.H)*p.Cursor.HeightPercentage + 50) / 100
			c0.Position.Y += int16(int(c0.Size.H) - height)
			c0.Size.H = uint16(height)
			r.cursorRects = append(r.cursorRects, c0)

		case CursorVerticalBar:
			c0.Size.W = uint16(font.ThinLineWidth)
			r.cursorRects = append(r.cursorRects, c0)

		case CursorUnderscore:
			c0.Position.Y += int16(font.UnderlinePos)
			c0.Size.H = uint16(font.UnderlineWidth)
			r.cursorRects = append(r.cursorRects, c0)

		case CursorEmptyBox:
			c1 := c0
			thin := font.ThinLineWidth
			if x0 == p.CursorRect.Min.X {
				c := c0
				// Shorten the vertical edge so it doesn't overlap the
				// top/bottom lines.
				c.Position.Y += int16(thin)
				c.Size.H -= uint16(2 * thin)
				c.Size.W = uint16(thin)
				r.cursorRects = append(r.cursorRects, c)
			}
			if x1 == p.CursorRect.Max.X {
				c := c0
				c.Position.Y += int16(thin)
				c.Size.H -= uint16(2 * thin)
				c.Position.X += int16(int(c.Size.W) - thin)
				c.Size.W = uint16(thin)
				r.cursorRects = append(r.cursorRects, c)
			}
			c0.Size.H = uint16(thin)
			c1.Position.Y += int16(int(c1.Size.H) - thin)
			c1.Size.H = uint16(thin)
			r.cursorRects = append(r.cursorRects, c0, c1)

		case CursorFullBox:
			r.cursorRects = append(r.cursorRects, c0)

		case CursorDoubleUnderscore:
			c1 := c0
			c0.Position.Y += int16(font.DoubleUnderlinePos[0])
			c0.Size.H = uint16(font.ThinLineWidth)
			c1.Position.Y += int16(font.DoubleUnderlinePos[1])
			c1.Size.H = uint16(font.ThinLineWidth)
			r.cursorRects = append(r.cursorRects, c0, c1)
		}
	}

	// The auto cursor draws its perturbed-background shape under the text;
	// part 2 re-emits the same rectangles in white through the invert
	// blend. A fixed-color cursor draws nothing here.
	if cursorColor == cursorAutoColor {
		for i := range r.cursorRects {
			c := &r.cursorRects[i]
			r.stream.Push(quad.Instance{
				Shading:  quad.ShadingSolidFill,
				Position: c.Position,
				Size:     c.Size,
				Color:    c.Color,
			})
			c.Color = cursorAutoColor
		}
	}
}

// drawCursorPart2 emits the cursor rectangles over the text. The auto
// cursor brackets them with a switch to the invert blend state, producing
// the invert-over-text effect without reading the text's rendered color.
func (r *Renderer) drawCursorPart2(p *RenderPayload) {
	if len(r.cursorRects) == 0 {
		return
	}

	invert := p.Cursor.Color == cursorAutoColor
	if invert {
		r.stream.MarkStateChange(quad.BlendInvert)
	}

	for _, c := range r.cursorRects {
		r.stream.Push(quad.Instance{
			Shading:  quad.ShadingSolidFill,
			Position: c.Position,
			Size:     c.Size,
			Color:    c.Color,
		})
	}

	if invert {
		r.stream.MarkStateChange(quad.BlendStandard)
	}
}

// drawSelection emits one quad per run of rows sharing the same selection
// span; a row whose span matches the previous row's extends the previous
// quad downward instead of adding a new one.
func (r *Renderer) drawSelection(p *RenderPayload) {
	font := p.Font
	lastFrom, lastTo := 0, 0

	for y, row := range p.Rows {
		if row.SelectionTo <= row.SelectionFrom {
			// A gap breaks the run; the next selected row starts a new
			// quad even if its span matches.
			lastFrom, lastTo = 0, 0
			continue
		}
		if row.SelectionFrom == lastFrom && row.SelectionTo == lastTo {
			r.stream.Last().Size.H += uint16(font.CellSize.Y)
			continue
		}
		r.stream.Push(quad.Instance{
			Shading: quad.ShadingSolidFill,
			Position: quad.Point{
				X: int16(font.CellSize.X * row.SelectionFrom),
				Y: int16(font.CellSize.Y * y),
			},
			Size: quad.Extent{
				W: uint16(font.CellSize.X * (row.SelectionTo - row.SelectionFrom)),
				H: uint16(font.CellSize.Y),
			},
			Color: p.Misc.SelectionColor,
		})
		lastFrom = row.SelectionFrom
		lastTo = row.SelectionTo
	}
}
