package sim

import (
	"math"
	"math/rand"
)

// State is the persistent per-cell channel array, padded by a one-cell border
// ring so every cell's 3x3 state neighborhood is addressable without edge
// cases. Rows and Cols include the padding.
type State struct {
	Rows, Cols, Channels int
	Data                 []float64 // row-major, channel-fastest
}

// NewState returns a zeroed state for a gridRows x gridCols cell grid, with
// the padding ring added.
func NewState(gridRows, gridCols, channels int) *State {
	r, c := gridRows+2, gridCols+2
	return &State{Rows: r, Cols: c, Channels: channels, Data: make([]float64, r*c*channels)}
}

// At returns the channel slice of padded cell (r, c).
func (s *State) At(r, c int) []float64 {
	i := (r*s.Cols + c) * s.Channels
	return s.Data[i : i+s.Channels]
}

// Zero clears the whole array.
func (s *State) Zero() {
	for i := range s.Data {
		s.Data[i] = 0
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{Rows: s.Rows, Cols: s.Cols, Channels: s.Channels, Data: make([]float64, len(s.Data))}
	copy(out.Data, s.Data)
	return out
}

// Accumulate adds the first Channels values of every cell's output row into
// the state interior, in place. outputs is row-major cell order with stride
// outWidth. Accumulation is strictly additive; nothing decays.
func Accumulate(s *State, outputs []float64, outWidth int) {
	gridRows, gridCols := s.Rows-2, s.Cols-2
	for x := 0; x < gridRows; x++ {
		for y := 0; y < gridCols; y++ {
			row := outputs[(x*gridCols+y)*outWidth:]
			st := s.At(x+1, y+1)
			for c := range st {
				st[c] += row[c]
			}
		}
	}
}

// ClassSlice copies the trailing classChannels of every interior cell into a
// flat row-major slice.
func (s *State) ClassSlice(classChannels int) []float64 {
	gridRows, gridCols := s.Rows-2, s.Cols-2
	out := make([]float64, gridRows*gridCols*classChannels)
	k := 0
	for x := 0; x < gridRows; x++ {
		for y := 0; y < gridCols; y++ {
			st := s.At(x+1, y+1)
			copy(out[k:k+classChannels], st[s.Channels-classChannels:])
			k += classChannels
		}
	}
	return out
}

// Silencer zeroes the state of every cell inside a disk each iteration,
// modelling localized failure for robustness runs. A radius <= 0 silences
// nothing at all.
type Silencer struct {
	cells []int // padded (row, col) pairs inside the disk
}

// NewSilencer picks one random disk center on the grid and precomputes the
// member cells: strict Euclidean distance < radius from the center.
func NewSilencer(gridRows, gridCols int, radius float64, rng *rand.Rand) *Silencer {
	sil := &Silencer{}
	if radius <= 0 {
		return sil
	}
	cx := rng.Intn(gridRows)
	cy := rng.Intn(gridCols)
	for i := 0; i < gridRows; i++ {
		for j := 0; j < gridCols; j++ {
			if math.Hypot(float64(i-cx), float64(j-cy)) < radius {
				sil.cells = append(sil.cells, i+1, j+1)
			}
		}
	}
	return sil
}

// Apply zeroes every member cell's full state row. Runs immediately after
// accumulation.
func (sil *Silencer) Apply(s *State) {
	for i := 0; i < len(sil.cells); i += 2 {
		st := s.At(sil.cells[i], sil.cells[i+1])
		for c := range st {
			st[c] = 0
		}
	}
}
