package sim

// PositionMode selects the positional scalars appended to every input vector.
type PositionMode int

const (
	// PositionNone appends nothing.
	PositionNone PositionMode = iota
	// PositionCurrent appends the cell's live anchor, rescaled to roughly
	// [-1,1] by the image half-dimension.
	PositionCurrent
	// PositionInitial appends the cell's fixed grid position, rescaled the
	// same way via the grid-to-image scale factor.
	PositionInitial
)

// ParsePositionMode maps a config string to a mode. Unrecognized values fall
// back to PositionNone silently; that fallback is load-bearing, not an error.
func ParsePositionMode(s string) PositionMode {
	switch s {
	case "current":
		return PositionCurrent
	case "initial":
		return PositionInitial
	default:
		return PositionNone
	}
}

func (m PositionMode) String() string {
	switch m {
	case PositionCurrent:
		return "current"
	case PositionInitial:
		return "initial"
	default:
		return "none"
	}
}

// Width returns the number of positional scalars the mode appends.
func (m PositionMode) Width() int {
	if m == PositionNone {
		return 0
	}
	return 2
}

// InputWidth is the flattened input vector length for a given state channel
// count and position mode: a 3x3x1 image patch plus a 3x3xC state patch,
// flattened channel-fastest, plus the positional scalars.
func InputWidth(channels int, mode PositionMode) int {
	return 9*(1+channels) + mode.Width()
}

// AssembleInputs builds one input vector per cell into dst, row-major cell
// order with stride width. For cell (x, y) it reads the 3x3 image window at
// the cell's anchor and the 3x3 state window at the cell's own padded
// coordinates, interleaving the image value and the state channels for each
// of the 9 window positions. dst is caller-provided and written in place.
func AssembleInputs(dst []float64, width int, img Image, st *State, anc *Anchors, mode PositionMode) {
	ch := st.Channels
	halfR, halfC := img.H/2, img.W/2
	for x := 0; x < anc.Rows; x++ {
		for y := 0; y < anc.Cols; y++ {
			row := dst[(x*anc.Cols+y)*width : (x*anc.Cols+y+1)*width]
			rp, cp := anc.At(x, y)
			k := 0
			for pi := 0; pi < 3; pi++ {
				for pj := 0; pj < 3; pj++ {
					row[k] = img.Pix[(rp+pi)*img.W+cp+pj]
					k++
					copy(row[k:k+ch], st.At(x+pi, y+pj))
					k += ch
				}
			}
			switch mode {
			case PositionCurrent:
				row[width-2] = float64(rp-halfR) / float64(halfR)
				row[width-1] = float64(cp-halfC) / float64(halfC)
			case PositionInitial:
				row[width-2] = (float64(x)*float64(img.H)/float64(anc.Rows) - float64(halfR)) / float64(halfR)
				row[width-1] = (float64(y)*float64(img.W)/float64(anc.Cols) - float64(halfC)) / float64(halfC)
			}
		}
	}
}
