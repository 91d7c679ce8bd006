package sim

import "fmt"

// moveEpsilon is the action dead-zone half width. Values within
// (-moveEpsilon, +moveEpsilon) leave the anchor in place; both thresholds are
// strict.
const moveEpsilon = 0.0007

// Discretize maps a continuous action value to a step in {-1, 0, +1}.
func Discretize(v float64) int {
	if v < -moveEpsilon {
		return -1
	}
	if v > moveEpsilon {
		return 1
	}
	return 0
}

// MoveAnchors applies one 2-channel action per cell to the anchors in place:
// each axis is discretized, added, then clamped into [0, activeR-1]. The same
// clip bound is used on both axes, so a non-square active area is an error
// rather than a silent mis-clip. actions is row-major cell order, 2 values
// per cell.
func MoveAnchors(a *Anchors, actions []float64, activeR, activeC int) error {
	if activeR != activeC {
		return fmt.Errorf("sim: non-square active area %dx%d: movement requires square dimensions", activeR, activeC)
	}
	if want := a.Rows * a.Cols * 2; len(actions) < want {
		return fmt.Errorf("sim: %d action values for %d cells", len(actions), a.Rows*a.Cols)
	}
	hi := activeR - 1
	for i := 0; i < a.Rows*a.Cols; i++ {
		a.RC[2*i] = clampInt(a.RC[2*i]+Discretize(actions[2*i]), 0, hi)
		a.RC[2*i+1] = clampInt(a.RC[2*i+1]+Discretize(actions[2*i+1]), 0, hi)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
