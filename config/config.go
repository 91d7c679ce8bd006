// Package config provides configuration loading and access for the engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/neocortex/sim"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Image      ImageConfig      `yaml:"image"`
	Grid       GridConfig       `yaml:"grid"`
	Simulation SimulationConfig `yaml:"simulation"`
	Neural     NeuralConfig     `yaml:"neural"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Viewer     ViewerConfig     `yaml:"viewer"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ImageConfig holds the expected input image dimensions.
type ImageConfig struct {
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
}

// GridConfig holds the neo-cell grid dimensions.
// Size 0 means one cell per active-area position.
type GridConfig struct {
	Size int `yaml:"size"`
}

// SimulationConfig holds the per-run loop parameters.
type SimulationConfig struct {
	Iterations     int     `yaml:"iterations"`
	Movement       bool    `yaml:"movement"`
	Position       string  `yaml:"position"` // none | current | initial
	AblationRadius float64 `yaml:"ablation_radius"`
}

// NeuralConfig holds update function parameters.
type NeuralConfig struct {
	HiddenChannels int `yaml:"hidden_channels"`
	ClassChannels  int `yaml:"class_channels"` // 0 = one per dataset digit
	HiddenNeurons  int `yaml:"hidden_neurons"`
}

// DatasetConfig holds image source parameters.
type DatasetConfig struct {
	Dir             string `yaml:"dir"`
	Digits          []int  `yaml:"digits"`
	SamplesPerDigit int    `yaml:"samples_per_digit"`
}

// TelemetryConfig holds run output parameters.
type TelemetryConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// ViewerConfig holds playback parameters for recorded runs.
type ViewerConfig struct {
	Scale int `yaml:"scale"` // screen pixels per image pixel
	FPS   int `yaml:"fps"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	GridRows, GridCols     int
	ActiveRows, ActiveCols int
	ClassChannels          int
	StateChannels          int
	InputDim               int
	OutputDim              int
	Position               sim.PositionMode
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Image.Height < 3 || c.Image.Width < 3 {
		return fmt.Errorf("config: image %dx%d has no 3x3-reachable interior", c.Image.Height, c.Image.Width)
	}
	if c.Simulation.Iterations < 1 {
		return fmt.Errorf("config: iterations must be positive, got %d", c.Simulation.Iterations)
	}
	if c.Neural.HiddenNeurons < 1 {
		return fmt.Errorf("config: hidden_neurons must be positive, got %d", c.Neural.HiddenNeurons)
	}
	if c.Neural.ClassChannels == 0 && len(c.Dataset.Digits) == 0 {
		return fmt.Errorf("config: class_channels is 0 but no dataset digits configured")
	}
	return nil
}

// computeDerived calculates values derived from the loaded config.
func (c *Config) computeDerived() {
	d := &c.Derived
	d.ActiveRows = c.Image.Height - 2
	d.ActiveCols = c.Image.Width - 2

	size := c.Grid.Size
	if size == 0 {
		size = d.ActiveRows
	}
	d.GridRows = size
	d.GridCols = size

	d.ClassChannels = c.Neural.ClassChannels
	if d.ClassChannels == 0 {
		d.ClassChannels = len(c.Dataset.Digits)
	}
	d.StateChannels = c.Neural.HiddenChannels + d.ClassChannels

	d.Position = sim.ParsePositionMode(c.Simulation.Position)
	d.InputDim = sim.InputWidth(d.StateChannels, d.Position)
	d.OutputDim = d.StateChannels + 2
}

// SimParams builds the engine parameters from the loaded config.
func (c *Config) SimParams(seed int64) sim.Params {
	return sim.Params{
		GridRows:       c.Derived.GridRows,
		GridCols:       c.Derived.GridCols,
		ImageH:         c.Image.Height,
		ImageW:         c.Image.Width,
		HiddenChannels: c.Neural.HiddenChannels,
		ClassChannels:  c.Derived.ClassChannels,
		Iterations:     c.Simulation.Iterations,
		Moving:         c.Simulation.Movement,
		Position:       c.Derived.Position,
		Seed:           seed,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
