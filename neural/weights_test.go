package neural

import (
	"math/rand"
	"path/filepath"
	"testing"
)

func TestWeightFileRoundTrip(t *testing.T) {
	net := NewNetwork(6, 5, 4)
	net.Randomize(rand.New(rand.NewSource(2)))

	path := filepath.Join(t.TempDir(), "weights.json")
	if err := SaveWeights(path, net); err != nil {
		t.Fatalf("SaveWeights: %v", err)
	}

	clone := NewNetwork(6, 5, 4)
	if err := LoadWeights(path, clone); err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}

	want := net.Flat()
	for i, v := range clone.Flat() {
		if v != want[i] {
			t.Fatalf("weight %d = %v after round trip, want %v", i, v, want[i])
		}
	}
}

func TestLoadWeightsShapeMismatch(t *testing.T) {
	net := NewNetwork(6, 5, 4)
	net.Randomize(rand.New(rand.NewSource(4)))

	path := filepath.Join(t.TempDir(), "weights.json")
	if err := SaveWeights(path, net); err != nil {
		t.Fatalf("SaveWeights: %v", err)
	}

	other := NewNetwork(6, 4, 4)
	if err := LoadWeights(path, other); err == nil {
		t.Error("expected error installing weights into a differently shaped network")
	}
}

func TestLoadWeightsMissingFile(t *testing.T) {
	net := NewNetwork(2, 2, 2)
	if err := LoadWeights(filepath.Join(t.TempDir(), "absent.json"), net); err == nil {
		t.Error("expected error for missing weight file")
	}
}
