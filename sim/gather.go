package sim

// ExpandAnchors pre-enumerates the 9 window offsets of every anchor into an
// absolute index map of shape (3*Rows) x (3*Cols): entry (3x+i, 3y+j) holds
// the (row, col) addressed by offset (i, j) within cell (x, y)'s window. The
// map is the gather-based alternative to walking each window with a double
// loop.
func ExpandAnchors(a *Anchors) []int {
	cols3 := a.Cols * 3
	out := make([]int, a.Rows*3*cols3*2)
	for x := 0; x < a.Rows; x++ {
		for y := 0; y < a.Cols; y++ {
			rp, cp := a.At(x, y)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					k := ((3*x+i)*cols3 + 3*y + j) * 2
					out[k] = rp + i
					out[k+1] = cp + j
				}
			}
		}
	}
	return out
}

// GatherWindows gathers the source elements addressed by an expanded index
// map, in map order, one element (all channels) per entry. src is row-major
// with srcCols columns and channels values per element. Over a cell's 3x3
// block the result equals the direct window extraction exactly.
func GatherWindows(src []float64, srcCols, channels int, indexMap []int) []float64 {
	n := len(indexMap) / 2
	out := make([]float64, n*channels)
	for i := 0; i < n; i++ {
		j := (indexMap[2*i]*srcCols + indexMap[2*i+1]) * channels
		copy(out[i*channels:(i+1)*channels], src[j:j+channels])
	}
	return out
}
