package sim

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// RunOptions control a single-sample run.
type RunOptions struct {
	AblationRadius float64 // >0 silences a random disk of cells every iteration
	Record         bool    // capture per-iteration snapshots
}

// Result of a single-sample run.
type Result struct {
	ClassState  []float64  // GridRows*GridCols*ClassChannels, row-major
	LastOutputs []float64  // GridRows*GridCols rows of OutputDim values
	Recording   *Recording // nil unless requested
}

// BatchResult of a batched run, one entry per batch element.
type BatchResult struct {
	ClassState  [][]float64
	LastOutputs [][]float64
}

// RunSingle classifies one image: state zeroed, anchors freshly initialized,
// then exactly Iterations repetitions of assemble, one bulk update call,
// accumulate, and (when moving) discretize-move-clip. There is no early exit.
func (e *Engine) RunSingle(img Image, opt RunOptions) (*Result, error) {
	if err := e.checkImage(img); err != nil {
		return nil, err
	}
	p := e.p
	st := NewState(p.GridRows, p.GridCols, p.StateChannels())
	anc := e.anchorInit(p.ActiveRows(), p.ActiveCols(), p.GridRows, p.GridCols)
	sil := NewSilencer(p.GridRows, p.GridCols, opt.AblationRadius, e.rng)

	cells := p.GridRows * p.GridCols
	buf := make([]float64, cells*e.width)
	act := make([]float64, cells*actChannels)
	var rec *Recording
	if opt.Record {
		rec = newRecording(img, p)
	}

	var lastOut []float64
	for it := 0; it < p.Iterations; it++ {
		AssembleInputs(buf, e.width, img, st, anc, p.Position)
		out, err := e.net.Apply(mat.NewDense(cells, e.width, buf))
		if err != nil {
			return nil, fmt.Errorf("sim: update function: %w", err)
		}
		lastOut = denseData(out)
		Accumulate(st, lastOut, e.outW)
		sil.Apply(st)
		if p.Moving {
			extractActions(act, lastOut, e.outW)
			if err := MoveAnchors(anc, act, p.ActiveRows(), p.ActiveCols()); err != nil {
				return nil, err
			}
		}
		if rec != nil {
			rec.capture(st, anc, lastOut, e.outW)
		}
	}

	return &Result{
		ClassState:  st.ClassSlice(p.ClassChannels),
		LastOutputs: lastOut,
		Recording:   rec,
	}, nil
}

// batchParallelThreshold is the minimum batch size worth fanning out to
// goroutines; below it the dispatch overhead dominates.
const batchParallelThreshold = 4

// RunBatched classifies a batch of images in lockstep. Every element owns its
// own anchors and state, which evolve independently; the only shared step is
// the single bulk update call per iteration over all cells across the batch.
// With a batch of one this is numerically equivalent to RunSingle.
func (e *Engine) RunBatched(imgs []Image) (*BatchResult, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("sim: empty batch")
	}
	for i, img := range imgs {
		if err := e.checkImage(img); err != nil {
			return nil, fmt.Errorf("sim: batch element %d: %w", i, err)
		}
	}

	p := e.p
	b := len(imgs)
	cells := p.GridRows * p.GridCols
	states := make([]*State, b)
	anchors := make([]*Anchors, b)
	acts := make([][]float64, b)
	for i := range imgs {
		states[i] = NewState(p.GridRows, p.GridCols, p.StateChannels())
		anchors[i] = e.anchorInit(p.ActiveRows(), p.ActiveCols(), p.GridRows, p.GridCols)
		acts[i] = make([]float64, cells*actChannels)
	}

	buf := make([]float64, b*cells*e.width)
	errs := make([]error, b)
	var lastRaw []float64

	for it := 0; it < p.Iterations; it++ {
		forEachElement(b, func(i int) {
			AssembleInputs(buf[i*cells*e.width:(i+1)*cells*e.width], e.width, imgs[i], states[i], anchors[i], p.Position)
		})
		out, err := e.net.Apply(mat.NewDense(b*cells, e.width, buf))
		if err != nil {
			return nil, fmt.Errorf("sim: update function: %w", err)
		}
		lastRaw = denseData(out)
		forEachElement(b, func(i int) {
			rows := lastRaw[i*cells*e.outW : (i+1)*cells*e.outW]
			Accumulate(states[i], rows, e.outW)
			if p.Moving {
				extractActions(acts[i], rows, e.outW)
				errs[i] = MoveAnchors(anchors[i], acts[i], p.ActiveRows(), p.ActiveCols())
			}
		})
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	res := &BatchResult{
		ClassState:  make([][]float64, b),
		LastOutputs: make([][]float64, b),
	}
	for i := range imgs {
		res.ClassState[i] = states[i].ClassSlice(p.ClassChannels)
		outs := make([]float64, cells*e.outW)
		copy(outs, lastRaw[i*cells*e.outW:(i+1)*cells*e.outW])
		res.LastOutputs[i] = outs
	}
	return res, nil
}

// forEachElement runs fn for every batch element, fanning out to a chunked
// worker pool for large batches. Elements are independent, so ordering
// between them does not matter.
func forEachElement(n int, fn func(i int)) {
	if n < batchParallelThreshold {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
