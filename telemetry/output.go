// Package telemetry writes structured run output: per-sample CSV records and
// a snapshot of the effective configuration.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/neocortex/config"
)

// RunRecord is one classified sample.
type RunRecord struct {
	Sample     int     `csv:"sample"`
	Digit      int     `csv:"digit"`
	Predicted  int     `csv:"predicted"`
	Score      float64 `csv:"score"`
	Correct    bool    `csv:"correct"`
	Iterations int     `csv:"iterations"`
	ElapsedMS  float64 `csv:"elapsed_ms"`
}

// OutputManager handles structured run output with CSV logging.
// A nil manager is valid and discards everything.
type OutputManager struct {
	dir           string
	runsFile      *os.File
	headerWritten bool
}

// NewOutputManager creates an output manager and initializes the output
// directory. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	runsPath := filepath.Join(dir, "runs.csv")
	f, err := os.Create(runsPath)
	if err != nil {
		return nil, fmt.Errorf("creating runs.csv: %w", err)
	}

	return &OutputManager{dir: dir, runsFile: f}, nil
}

// Dir returns the output directory, or "" when output is disabled.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRun appends one sample record to runs.csv.
func (om *OutputManager) WriteRun(rec RunRecord) error {
	if om == nil {
		return nil
	}

	records := []RunRecord{rec}
	if !om.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.runsFile); err != nil {
			return fmt.Errorf("writing run record: %w", err)
		}
		om.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.runsFile); err != nil {
		return fmt.Errorf("writing run record: %w", err)
	}
	return nil
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil || om.runsFile == nil {
		return nil
	}
	return om.runsFile.Close()
}
