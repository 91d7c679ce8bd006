package sim

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/neocortex/neural"
)

// stubUpdate returns the same output row for every cell, which makes
// accumulation arithmetic predictable.
type stubUpdate struct {
	in  int
	row []float64
}

func (s *stubUpdate) InputDim() int  { return s.in }
func (s *stubUpdate) OutputDim() int { return len(s.row) }

func (s *stubUpdate) Apply(batch *mat.Dense) (*mat.Dense, error) {
	r, _ := batch.Dims()
	out := mat.NewDense(r, len(s.row), nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, s.row)
	}
	return out, nil
}

func testParams(iterations int, moving bool, pos PositionMode) Params {
	return Params{
		GridRows:       4,
		GridCols:       4,
		ImageH:         10,
		ImageW:         10,
		HiddenChannels: 2,
		ClassChannels:  3,
		Iterations:     iterations,
		Moving:         moving,
		Position:       pos,
		Seed:           42,
	}
}

func randomImage(h, w int, seed int64) Image {
	rng := rand.New(rand.NewSource(seed))
	img := NewImage(h, w)
	for i := range img.Pix {
		img.Pix[i] = rng.Float64()
	}
	return img
}

func randomNetwork(p Params, seed int64) *neural.Network {
	net := neural.NewNetwork(InputWidth(p.StateChannels(), p.Position), 8, p.StateChannels()+2)
	net.Randomize(rand.New(rand.NewSource(seed)))
	return net
}

func TestNewEngineFailsFast(t *testing.T) {
	p := testParams(10, true, PositionNone)
	net := randomNetwork(p, 1)

	bad := p
	bad.GridCols = 5
	if _, err := NewEngine(bad, net); err == nil {
		t.Error("expected error for non-square grid")
	}

	bad = p
	bad.ImageW = 12
	if _, err := NewEngine(bad, randomNetwork(p, 1)); err == nil {
		t.Error("expected error for non-square active area with movement enabled")
	}

	bad = p
	bad.Iterations = 0
	if _, err := NewEngine(bad, net); err == nil {
		t.Error("expected error for zero iterations")
	}

	// Wrong input width is a configuration error, caught before any loop
	narrow := neural.NewNetwork(InputWidth(p.StateChannels(), p.Position)-1, 8, p.StateChannels()+2)
	if _, err := NewEngine(p, narrow); err == nil {
		t.Error("expected error for input width mismatch")
	}

	wide := neural.NewNetwork(InputWidth(p.StateChannels(), p.Position), 8, p.StateChannels()+1)
	if _, err := NewEngine(p, wide); err == nil {
		t.Error("expected error for output width mismatch")
	}
}

func TestRunSingleAllZero(t *testing.T) {
	// Zero image, zero weights: every output and the whole class state stay
	// zero, and the anchors never leave their initial layout.
	p := Params{
		GridRows:       5,
		GridCols:       5,
		ImageH:         10,
		ImageW:         10,
		HiddenChannels: 1,
		ClassChannels:  2,
		Iterations:     1,
		Moving:         false,
		Position:       PositionNone,
		Seed:           1,
	}
	net := neural.NewNetwork(InputWidth(p.StateChannels(), p.Position), 10, p.StateChannels()+2)

	eng, err := NewEngine(p, net)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.RunSingle(NewImage(10, 10), RunOptions{Record: true})
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}

	for i, v := range res.LastOutputs {
		if v != 0 {
			t.Fatalf("output[%d] = %v, want 0", i, v)
		}
	}
	for i, v := range res.ClassState {
		if v != 0 {
			t.Fatalf("class state[%d] = %v, want 0", i, v)
		}
	}

	init := UniformAnchors(p.ActiveRows(), p.ActiveCols(), p.GridRows, p.GridCols)
	frame := res.Recording.Frames[0]
	for i := range init.RC {
		if frame.Anchors[i] != init.RC[i] {
			t.Fatalf("anchor coordinate %d moved: %d, want %d", i, frame.Anchors[i], init.RC[i])
		}
	}
}

func TestBatchedMatchesSingle(t *testing.T) {
	for _, k := range []int{1, 5, 20} {
		p := testParams(k, true, PositionCurrent)
		net := randomNetwork(p, 7)
		img := randomImage(10, 10, 13)

		engA, err := NewEngine(p, net)
		if err != nil {
			t.Fatalf("K=%d: NewEngine: %v", k, err)
		}
		single, err := engA.RunSingle(img, RunOptions{})
		if err != nil {
			t.Fatalf("K=%d: RunSingle: %v", k, err)
		}

		engB, err := NewEngine(p, net)
		if err != nil {
			t.Fatalf("K=%d: NewEngine: %v", k, err)
		}
		batched, err := engB.RunBatched([]Image{img})
		if err != nil {
			t.Fatalf("K=%d: RunBatched: %v", k, err)
		}

		for i := range single.ClassState {
			if d := math.Abs(single.ClassState[i] - batched.ClassState[0][i]); d > 1e-9 {
				t.Fatalf("K=%d: class state[%d] differs by %v", k, i, d)
			}
		}
		for i := range single.LastOutputs {
			if d := math.Abs(single.LastOutputs[i] - batched.LastOutputs[0][i]); d > 1e-9 {
				t.Fatalf("K=%d: output[%d] differs by %v", k, i, d)
			}
		}
	}
}

func TestBatchElementsIndependent(t *testing.T) {
	p := testParams(5, true, PositionInitial)
	net := randomNetwork(p, 3)

	imgs := []Image{
		randomImage(10, 10, 21),
		randomImage(10, 10, 22),
		randomImage(10, 10, 23),
		randomImage(10, 10, 24),
		randomImage(10, 10, 25),
	}

	eng, err := NewEngine(p, net)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	batched, err := eng.RunBatched(imgs)
	if err != nil {
		t.Fatalf("RunBatched: %v", err)
	}

	for b, img := range imgs {
		ref, err := eng.RunSingle(img, RunOptions{})
		if err != nil {
			t.Fatalf("element %d: RunSingle: %v", b, err)
		}
		for i := range ref.ClassState {
			if d := math.Abs(ref.ClassState[i] - batched.ClassState[b][i]); d > 1e-9 {
				t.Fatalf("element %d: class state[%d] differs by %v", b, i, d)
			}
		}
	}
}

func TestStateAdditivity(t *testing.T) {
	// With a constant update function, no movement and no ablation, the state
	// after K iterations is exactly K times one iteration's output.
	p := testParams(7, false, PositionNone)
	row := []float64{0.5, -0.25, 1.0, 2.0, -1.5, 0.1, -0.1} // 5 state + 2 action
	stub := &stubUpdate{in: InputWidth(p.StateChannels(), p.Position), row: row}

	eng, err := NewEngine(p, stub)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.RunSingle(NewImage(10, 10), RunOptions{AblationRadius: 0})
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}

	classes := p.ClassChannels
	for i, v := range res.ClassState {
		want := 7 * row[p.HiddenChannels+i%classes]
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("class state[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestAblationZeroRadiusNeverSilences(t *testing.T) {
	p := testParams(30, false, PositionNone)
	row := []float64{1, 1, 1, 1, 1, 0, 0}
	stub := &stubUpdate{in: InputWidth(p.StateChannels(), p.Position), row: row}

	eng, err := NewEngine(p, stub)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.RunSingle(NewImage(10, 10), RunOptions{AblationRadius: 0})
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}
	for i, v := range res.ClassState {
		if v != 30 {
			t.Fatalf("class state[%d] = %v, want 30 (no cell may be silenced)", i, v)
		}
	}
}

func TestAblationSilencesDisk(t *testing.T) {
	p := testParams(4, false, PositionNone)
	row := []float64{1, 1, 1, 1, 1, 0, 0}
	stub := &stubUpdate{in: InputWidth(p.StateChannels(), p.Position), row: row}

	eng, err := NewEngine(p, stub)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.RunSingle(NewImage(10, 10), RunOptions{AblationRadius: 1})
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}

	// Radius 1 silences exactly the center cell, every iteration
	zeroed := 0
	for i := 0; i < len(res.ClassState); i += p.ClassChannels {
		if res.ClassState[i] == 0 {
			zeroed++
		} else if res.ClassState[i] != 4 {
			t.Fatalf("class state[%d] = %v, want 0 or 4", i, res.ClassState[i])
		}
	}
	if zeroed != 1 {
		t.Errorf("%d cells silenced with radius 1, want 1", zeroed)
	}
}

func TestRecordingFrames(t *testing.T) {
	p := testParams(6, true, PositionNone)
	net := randomNetwork(p, 19)

	eng, err := NewEngine(p, net)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.RunSingle(randomImage(10, 10, 2), RunOptions{Record: true})
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}

	rec := res.Recording
	if rec == nil {
		t.Fatal("recording requested but nil")
	}
	if len(rec.Frames) != p.Iterations {
		t.Fatalf("recorded %d frames, want %d", len(rec.Frames), p.Iterations)
	}
	cells := p.GridRows * p.GridCols
	stateLen := (p.GridRows + 2) * (p.GridCols + 2) * p.StateChannels()
	for i, f := range rec.Frames {
		if len(f.State) != stateLen {
			t.Fatalf("frame %d: state len %d, want %d", i, len(f.State), stateLen)
		}
		if len(f.Anchors) != cells*2 {
			t.Fatalf("frame %d: anchors len %d, want %d", i, len(f.Anchors), cells*2)
		}
		if len(f.Actions) != cells*2 {
			t.Fatalf("frame %d: actions len %d, want %d", i, len(f.Actions), cells*2)
		}
	}

	// Frames are deep copies; consecutive state snapshots must be distinct
	// slices even when values repeat.
	if &rec.Frames[0].State[0] == &rec.Frames[1].State[0] {
		t.Error("frames alias the same state buffer")
	}
}
