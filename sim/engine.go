package sim

import (
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

// actChannels is the number of trailing action channels in every output row.
const actChannels = 2

// UpdateFunc is the shared update function applied to every cell: a pure bulk
// mapping from input vectors (one row per cell, across the whole batch) to
// output vectors of fixed width. The engine calls it exactly once per
// iteration; weights must stay constant for a whole run.
type UpdateFunc interface {
	InputDim() int
	OutputDim() int
	Apply(batch *mat.Dense) (*mat.Dense, error)
}

// Params configures an engine.
type Params struct {
	GridRows, GridCols int
	ImageH, ImageW     int
	HiddenChannels     int
	ClassChannels      int
	Iterations         int
	Moving             bool
	Position           PositionMode
	Seed               int64             // 0 = time-based
	AnchorInit         AnchorInitializer // nil = UniformAnchors
}

// StateChannels is the number of persistent channels per cell.
func (p Params) StateChannels() int { return p.HiddenChannels + p.ClassChannels }

// ActiveRows is the active-area height: the image interior reachable by a
// 3x3 window.
func (p Params) ActiveRows() int { return p.ImageH - 2 }

// ActiveCols is the active-area width.
func (p Params) ActiveCols() int { return p.ImageW - 2 }

// Engine runs the fixed-iteration simulation loop for single samples and for
// batches.
type Engine struct {
	p          Params
	net        UpdateFunc
	width      int // input vector width
	outW       int
	anchorInit AnchorInitializer
	rng        *rand.Rand
}

// NewEngine validates the configuration against the update function and
// returns a ready engine. Shape mismatches fail here, before any loop starts.
func NewEngine(p Params, net UpdateFunc) (*Engine, error) {
	if p.GridRows <= 0 || p.GridCols <= 0 {
		return nil, fmt.Errorf("sim: invalid grid %dx%d", p.GridRows, p.GridCols)
	}
	if p.GridRows != p.GridCols {
		return nil, fmt.Errorf("sim: non-square grid %dx%d", p.GridRows, p.GridCols)
	}
	if p.ActiveRows() < 1 || p.ActiveCols() < 1 {
		return nil, fmt.Errorf("sim: image %dx%d has no 3x3-reachable interior", p.ImageH, p.ImageW)
	}
	if p.Moving && p.ActiveRows() != p.ActiveCols() {
		return nil, fmt.Errorf("sim: non-square active area %dx%d with movement enabled", p.ActiveRows(), p.ActiveCols())
	}
	if p.Iterations <= 0 {
		return nil, fmt.Errorf("sim: iterations must be positive, got %d", p.Iterations)
	}
	if p.ClassChannels < 1 {
		return nil, fmt.Errorf("sim: at least one class channel required")
	}
	width := InputWidth(p.StateChannels(), p.Position)
	if net.InputDim() != width {
		return nil, fmt.Errorf("sim: assembled input width %d does not match update function input %d", width, net.InputDim())
	}
	if want := p.StateChannels() + actChannels; net.OutputDim() != want {
		return nil, fmt.Errorf("sim: update function output %d, want %d (hidden+class+%d actions)", net.OutputDim(), want, actChannels)
	}
	init := p.AnchorInit
	if init == nil {
		init = UniformAnchors
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		p:          p,
		net:        net,
		width:      width,
		outW:       net.OutputDim(),
		anchorInit: init,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Params returns the engine's configuration.
func (e *Engine) Params() Params { return e.p }

func (e *Engine) checkImage(img Image) error {
	if img.H != e.p.ImageH || img.W != e.p.ImageW {
		return fmt.Errorf("sim: image %dx%d, engine configured for %dx%d", img.H, img.W, e.p.ImageH, e.p.ImageW)
	}
	if len(img.Pix) != img.H*img.W {
		return fmt.Errorf("sim: image pixel buffer has %d values, want %d", len(img.Pix), img.H*img.W)
	}
	return nil
}

// extractActions copies the trailing action channels of every output row into
// dst (2 values per cell).
func extractActions(dst, outputs []float64, outW int) {
	cells := len(dst) / 2
	for i := 0; i < cells; i++ {
		dst[2*i] = outputs[i*outW+outW-2]
		dst[2*i+1] = outputs[i*outW+outW-1]
	}
}

// denseData returns the contiguous backing of m, copying only if the matrix
// is strided.
func denseData(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data
	}
	out := make([]float64, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		copy(out[r*raw.Cols:(r+1)*raw.Cols], raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols])
	}
	return out
}
