package sim

import (
	"encoding/json"
	"fmt"
	"os"
)

// Frame is one recorded iteration: the state after accumulation, the anchors
// after movement, and the raw action slice that produced the move.
type Frame struct {
	State   []float64 `json:"state"`
	Anchors []int     `json:"anchors"`
	Actions []float64 `json:"actions"`
}

// Recording is the materialized snapshot sequence of one recorded run. Every
// frame is a deep copy, fully decoupled from the engine's own buffers, so a
// viewer process can consume it without sharing mutable state with the
// simulation.
type Recording struct {
	ImageH         int       `json:"image_h"`
	ImageW         int       `json:"image_w"`
	GridRows       int       `json:"grid_rows"`
	GridCols       int       `json:"grid_cols"`
	HiddenChannels int       `json:"hidden_channels"`
	ClassChannels  int       `json:"class_channels"`
	Image          []float64 `json:"image"`
	Frames         []Frame   `json:"frames"`
}

func newRecording(img Image, p Params) *Recording {
	pix := make([]float64, len(img.Pix))
	copy(pix, img.Pix)
	return &Recording{
		ImageH:         img.H,
		ImageW:         img.W,
		GridRows:       p.GridRows,
		GridCols:       p.GridCols,
		HiddenChannels: p.HiddenChannels,
		ClassChannels:  p.ClassChannels,
		Image:          pix,
		Frames:         make([]Frame, 0, p.Iterations),
	}
}

func (r *Recording) capture(st *State, anc *Anchors, outputs []float64, outW int) {
	f := Frame{
		State:   append([]float64(nil), st.Data...),
		Anchors: append([]int(nil), anc.RC...),
		Actions: make([]float64, anc.Rows*anc.Cols*actChannels),
	}
	extractActions(f.Actions, outputs, outW)
	r.Frames = append(r.Frames, f)
}

// StateChannels is the per-cell channel count of the recorded state.
func (r *Recording) StateChannels() int { return r.HiddenChannels + r.ClassChannels }

// SaveRecording writes a recording as JSON.
func SaveRecording(path string, rec *Recording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sim: marshaling recording: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("sim: writing recording: %w", err)
	}
	return nil
}

// LoadRecording reads a recording written by SaveRecording.
func LoadRecording(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: reading recording: %w", err)
	}
	rec := &Recording{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("sim: parsing recording: %w", err)
	}
	return rec, nil
}
