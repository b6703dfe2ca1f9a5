package atlas

// Packer packs rectangles into a fixed area using the skyline bottom-left
// heuristic: the upper contour of used space is kept as a list of horizontal
// segments, and each rectangle is placed at the lowest (then leftmost)
// position where it fits.
//
// Packer is not safe for concurrent use.
type Packer struct {
	width  int
	height int

	// nodes is the skyline, left to right. Each node starts a segment at
	// (x, y) that runs until the next node's x. The slice is preallocated
	// to the atlas width, the worst case of one node per pixel column.
	nodes []skylineNode

	packed int
}

// skylineNode is one segment of the skyline contour.
type skylineNode struct {
	x, y, w int
}

// NewPacker creates a packer over a w×h area.
func NewPacker(w, h int) *Packer {
	p := &Packer{}
	p.Reset(w, h)
	return p
}

// Reset discards all placements and resizes the packing area.
func (p *Packer) Reset(w, h int) {
	p.width = w
	p.height = h
	if cap(p.nodes) < w {
		p.nodes = make([]skylineNode, 0, w)
	}
	p.nodes = p.nodes[:0]
	p.nodes = append(p.nodes, skylineNode{x: 0, y: 0, w: w})
	p.packed = 0
}

// Width returns the packing area width.
func (p *Packer) Width() int { return p.width }

// Height returns the packing area height.
func (p *Packer) Height() int { return p.height }

// Count returns the number of rectangles packed since the last Reset.
func (p *Packer) Count() int { return p.packed }

// Pack finds a position for r.W×r.H and stores it in r.X, r.Y. It returns
// false when no position exists; the caller is expected to reset the atlas
// and retry.
func (p *Packer) Pack(r *Rect) bool {
	if r.W <= 0 || r.H <= 0 || r.W > p.width || r.H > p.height {
		return false
	}

	bestY := p.height + 1
	bestX := 0
	bestIdx := -1
	for i := range p.nodes {
		x := p.nodes[i].x
		if x+r.W > p.width {
			break
		}
		y, ok := p.fitY(i, r.W)
		if !ok || y+r.H > p.height {
			continue
		}
		if y < bestY || (y == bestY && x < bestX) {
			bestY = y
			bestX = x
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return false
	}

	r.X = bestX
	r.Y = bestY
	p.place(bestIdx, bestX, bestY+r.H, r.W)
	p.packed++
	return true
}

// fitY returns the lowest y at which a rectangle of width w can sit when its
// left edge starts at node i.
func (p *Packer) fitY(i, w int) (int, bool) {
	x := p.nodes[i].x
	y := 0
	remaining := w
	for remaining > 0 {
		if i >= len(p.nodes) {
			return 0, false
		}
		n := p.nodes[i]
		if n.y > y {
			y = n.y
		}
		remaining -= n.w - (x - n.x)
		x = n.x + n.w
		i++
	}
	return y, true
}

// place raises the skyline to top over [x, x+w) and merges equal-height
// neighbors.
func (p *Packer) place(i, x, top, w int) {
	// Insert the new segment before node i.
	p.nodes = append(p.nodes, skylineNode{})
	copy(p.nodes[i+1:], p.nodes[i:])
	p.nodes[i] = skylineNode{x: x, y: top, w: w}

	// Clip or remove the nodes the new segment shadows.
	j := i + 1
	for j < len(p.nodes) {
		n := &p.nodes[j]
		if n.x >= x+w {
			break
		}
		if overlap := x + w - n.x; overlap < n.w {
			n.x += overlap
			n.w -= overlap
			break
		}
		copy(p.nodes[j:], p.nodes[j+1:])
		p.nodes = p.nodes[:len(p.nodes)-1]
	}

	// Merge runs of equal height.
	for k := 0; k < len(p.nodes)-1; {
		if p.nodes[k].y == p.nodes[k+1].y {
			p.nodes[k].w += p.nodes[k+1].w
			copy(p.nodes[k+1:], p.nodes[k+2:])
			p.nodes = p.nodes[:len(p.nodes)-1]
		} else {
			k++
		}
	}
}
