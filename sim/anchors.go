package sim

// Anchors holds one (row, col) perception anchor per cell, flattened in
// row-major cell order. An anchor is the top-left corner of the cell's 3x3
// observation window and must stay inside the active area so that anchor+3
// never leaves the image.
type Anchors struct {
	Rows, Cols int
	RC         []int // len Rows*Cols*2, (row, col) pairs
}

// AnchorInitializer produces the initial anchors for a run. Implementations
// must return anchors within [0, activeR-1] x [0, activeC-1].
type AnchorInitializer func(activeR, activeC, rows, cols int) *Anchors

// NewAnchors returns a zeroed anchor grid.
func NewAnchors(rows, cols int) *Anchors {
	return &Anchors{Rows: rows, Cols: cols, RC: make([]int, rows*cols*2)}
}

// At returns the anchor of cell (x, y).
func (a *Anchors) At(x, y int) (r, c int) {
	i := (x*a.Cols + y) * 2
	return a.RC[i], a.RC[i+1]
}

// Set writes the anchor of cell (x, y).
func (a *Anchors) Set(x, y, r, c int) {
	i := (x*a.Cols + y) * 2
	a.RC[i] = r
	a.RC[i+1] = c
}

// Clone returns a deep copy.
func (a *Anchors) Clone() *Anchors {
	out := &Anchors{Rows: a.Rows, Cols: a.Cols, RC: make([]int, len(a.RC))}
	copy(out.RC, a.RC)
	return out
}

// UniformAnchors spreads anchors proportionally over the active area, so a
// grid the size of the active area gets the identity layout. It is the
// default initializer; runs can substitute any AnchorInitializer.
func UniformAnchors(activeR, activeC, rows, cols int) *Anchors {
	a := NewAnchors(rows, cols)
	for x := 0; x < rows; x++ {
		r := x * activeR / rows
		for y := 0; y < cols; y++ {
			a.Set(x, y, r, y*activeC/cols)
		}
	}
	return a
}
