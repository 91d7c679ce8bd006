// Package neural implements the shared update function: a small dense
// network applied in one bulk call to the input vectors of every cell.
package neural

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrNotImplemented is returned by training hooks. The engine only ever runs
// inference; a training call is a hard stop, not a no-op.
var ErrNotImplemented = errors.New("neural: training step is not implemented")

// Network is a two-layer dense network with linear activations on both
// layers. It is pure across calls: weights are constant for a whole run and
// Apply keeps no state.
type Network struct {
	in, hidden, out int
	w1              *mat.Dense // in x hidden
	b1              []float64
	w2              *mat.Dense // hidden x out
	b2              []float64
}

// NewNetwork returns a zero-weight network with the given layer sizes.
func NewNetwork(in, hidden, out int) *Network {
	return &Network{
		in:     in,
		hidden: hidden,
		out:    out,
		w1:     mat.NewDense(in, hidden, nil),
		b1:     make([]float64, hidden),
		w2:     mat.NewDense(hidden, out, nil),
		b2:     make([]float64, out),
	}
}

// InputDim is the expected input vector width.
func (n *Network) InputDim() int { return n.in }

// OutputDim is the produced output vector width.
func (n *Network) OutputDim() int { return n.out }

// HiddenDim is the hidden layer width.
func (n *Network) HiddenDim() int { return n.hidden }

// Apply runs the network over a whole batch of input vectors, one per row,
// in a single pass and returns one output row per input row.
func (n *Network) Apply(batch *mat.Dense) (*mat.Dense, error) {
	rows, cols := batch.Dims()
	if cols != n.in {
		return nil, fmt.Errorf("neural: input width %d, network expects %d", cols, n.in)
	}
	h := mat.NewDense(rows, n.hidden, nil)
	h.Mul(batch, n.w1)
	addBiasRows(h, n.b1)
	out := mat.NewDense(rows, n.out, nil)
	out.Mul(h, n.w2)
	addBiasRows(out, n.b2)
	return out, nil
}

func addBiasRows(m *mat.Dense, bias []float64) {
	raw := m.RawMatrix()
	for r := 0; r < raw.Rows; r++ {
		row := raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols]
		for c, b := range bias {
			row[c] += b
		}
	}
}

// Randomize assigns Xavier-scaled Gaussian weights and zero biases.
func (n *Network) Randomize(rng *rand.Rand) {
	scale1 := math.Sqrt(2.0 / float64(n.in))
	for i := 0; i < n.in; i++ {
		for j := 0; j < n.hidden; j++ {
			n.w1.Set(i, j, rng.NormFloat64()*scale1)
		}
	}
	scale2 := math.Sqrt(2.0 / float64(n.hidden))
	for i := 0; i < n.hidden; i++ {
		for j := 0; j < n.out; j++ {
			n.w2.Set(i, j, rng.NormFloat64()*scale2)
		}
	}
	for i := range n.b1 {
		n.b1[i] = 0
	}
	for i := range n.b2 {
		n.b2[i] = 0
	}
}

// TrainStep is deliberately unimplemented.
func (n *Network) TrainStep(inputs, targets *mat.Dense) error {
	return ErrNotImplemented
}
