package neural

import (
	"encoding/json"
	"fmt"
	"os"
)

// NumWeights is the flat vector length SetFlat expects:
// W1 (in*hidden) + b1 (hidden) + W2 (hidden*out) + b2 (out).
func (n *Network) NumWeights() int {
	return n.in*n.hidden + n.hidden + n.hidden*n.out + n.out
}

// SetFlat installs a flat weight vector in the fixed order W1 row-major, b1,
// W2 row-major, b2. Weights are installed before a run, never mid-run.
func (n *Network) SetFlat(flat []float64) error {
	if len(flat) != n.NumWeights() {
		return fmt.Errorf("neural: %d weights for a %d-%d-%d network, want %d",
			len(flat), n.in, n.hidden, n.out, n.NumWeights())
	}
	k := 0
	for i := 0; i < n.in; i++ {
		for j := 0; j < n.hidden; j++ {
			n.w1.Set(i, j, flat[k])
			k++
		}
	}
	copy(n.b1, flat[k:k+n.hidden])
	k += n.hidden
	for i := 0; i < n.hidden; i++ {
		for j := 0; j < n.out; j++ {
			n.w2.Set(i, j, flat[k])
			k++
		}
	}
	copy(n.b2, flat[k:])
	return nil
}

// Flat returns the current weights as a flat vector in SetFlat's order.
func (n *Network) Flat() []float64 {
	flat := make([]float64, 0, n.NumWeights())
	for i := 0; i < n.in; i++ {
		for j := 0; j < n.hidden; j++ {
			flat = append(flat, n.w1.At(i, j))
		}
	}
	flat = append(flat, n.b1...)
	for i := 0; i < n.hidden; i++ {
		for j := 0; j < n.out; j++ {
			flat = append(flat, n.w2.At(i, j))
		}
	}
	return append(flat, n.b2...)
}

// WeightFile is the stored form of a flat weight vector: the layer shapes it
// was flattened from plus the data itself.
type WeightFile struct {
	Shapes  [][]int   `json:"shapes"`
	Weights []float64 `json:"weights"`
}

func (n *Network) shapes() [][]int {
	return [][]int{{n.in, n.hidden}, {n.hidden}, {n.hidden, n.out}, {n.out}}
}

// SaveWeights writes the network's weights with shape metadata as JSON.
func SaveWeights(path string, n *Network) error {
	wf := WeightFile{Shapes: n.shapes(), Weights: n.Flat()}
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("neural: marshaling weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("neural: writing weights: %w", err)
	}
	return nil
}

// LoadWeights reads a weight file and installs it, validating the shape
// metadata against the network's dimensions first.
func LoadWeights(path string, n *Network) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("neural: reading weights: %w", err)
	}
	var wf WeightFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("neural: parsing weights: %w", err)
	}
	if len(wf.Shapes) > 0 && !shapesEqual(wf.Shapes, n.shapes()) {
		return fmt.Errorf("neural: weight shapes %v do not fit a %d-%d-%d network", wf.Shapes, n.in, n.hidden, n.out)
	}
	return n.SetFlat(wf.Weights)
}

func shapesEqual(a, b [][]int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
