package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pthm-cable/neocortex/config"
	"github.com/pthm-cable/neocortex/dataset"
	"github.com/pthm-cable/neocortex/neural"
	"github.com/pthm-cable/neocortex/sim"
	"github.com/pthm-cable/neocortex/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	weightsPath := flag.String("weights", "", "Weight file to install (empty = random weights)")
	saveWeights := flag.String("save-weights", "", "Write the effective weights to this path before running")
	imagesPath := flag.String("images", "", "IDX image file (empty = <dataset.dir>/train-images-idx3-ubyte.gz)")
	labelsPath := flag.String("labels", "", "IDX label file (empty = <dataset.dir>/train-labels-idx1-ubyte.gz)")
	samplesPerDigit := flag.Int("samples", 0, "Samples per digit (0 = use config)")
	batch := flag.Bool("batch", false, "Classify all samples in one batched run")
	record := flag.Bool("record", false, "Record per-iteration snapshots of the first run")
	view := flag.Bool("view", false, "Play back the recording in the viewer after the run")
	viewerBin := flag.String("viewer-bin", "viewer", "Viewer binary used by -view")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	// Build the update function and install weights. A shape mismatch here is
	// fatal before any simulation starts.
	net := neural.NewNetwork(cfg.Derived.InputDim, cfg.Neural.HiddenNeurons, cfg.Derived.OutputDim)
	if *weightsPath != "" {
		if err := neural.LoadWeights(*weightsPath, net); err != nil {
			slog.Error("failed to install weights", "path", *weightsPath, "error", err)
			os.Exit(1)
		}
		slog.Info("weights installed", "path", *weightsPath, "count", net.NumWeights())
	} else {
		net.Randomize(rng)
		slog.Warn("no weight file given, using random weights", "count", net.NumWeights())
	}
	if *saveWeights != "" {
		if err := neural.SaveWeights(*saveWeights, net); err != nil {
			slog.Error("failed to save weights", "path", *saveWeights, "error", err)
			os.Exit(1)
		}
	}

	eng, err := sim.NewEngine(cfg.SimParams(rngSeed), net)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	perDigit := cfg.Dataset.SamplesPerDigit
	if *samplesPerDigit > 0 {
		perDigit = *samplesPerDigit
	}
	samples, err := loadSamples(cfg, *imagesPath, *labelsPath, perDigit, rng)
	if err != nil {
		slog.Error("failed to load samples", "error", err)
		os.Exit(1)
	}

	outDir := *outputDir
	if outDir == "" {
		outDir = cfg.Telemetry.OutputDir
	}
	om, err := telemetry.NewOutputManager(outDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("failed to snapshot config", "error", err)
	}

	slog.Info("starting classification",
		"samples", len(samples),
		"grid", cfg.Derived.GridRows,
		"iterations", cfg.Simulation.Iterations,
		"movement", cfg.Simulation.Movement,
		"position", cfg.Derived.Position.String(),
		"batched", *batch,
		"seed", rngSeed,
	)

	var recPath string
	if *batch {
		err = runBatched(eng, samples, cfg, om)
	} else {
		recPath, err = runSingles(eng, samples, cfg, om, *record, outDir)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	if *view && recPath != "" {
		// The viewer owns all rendering resources in its own process; the only
		// interaction here is waiting for it to exit.
		slog.Info("launching viewer", "bin", *viewerBin, "recording", recPath)
		cmd := exec.Command(*viewerBin, recPath)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			slog.Error("viewer failed", "error", err)
		}
	}
}

// loadSamples reads the IDX files and draws the configured digit subset.
func loadSamples(cfg *config.Config, imagesPath, labelsPath string, perDigit int, rng *rand.Rand) ([]dataset.Sample, error) {
	if imagesPath == "" {
		imagesPath = filepath.Join(cfg.Dataset.Dir, "train-images-idx3-ubyte.gz")
	}
	if labelsPath == "" {
		labelsPath = filepath.Join(cfg.Dataset.Dir, "train-labels-idx1-ubyte.gz")
	}
	imgs, err := dataset.LoadImages(imagesPath)
	if err != nil {
		return nil, err
	}
	labels, err := dataset.LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	return dataset.Subset(imgs, labels, cfg.Dataset.Digits, perDigit, rng)
}

// runSingles classifies each sample on its own, optionally recording the
// first run. Returns the recording path when one was written.
func runSingles(eng *sim.Engine, samples []dataset.Sample, cfg *config.Config, om *telemetry.OutputManager, record bool, outDir string) (string, error) {
	var recPath string
	for i, s := range samples {
		opt := sim.RunOptions{
			AblationRadius: cfg.Simulation.AblationRadius,
			Record:         record && i == 0,
		}
		start := time.Now()
		res, err := eng.RunSingle(s.Image, opt)
		if err != nil {
			return "", err
		}
		elapsed := time.Since(start)

		pred, score := argmaxClass(res.ClassState, cfg.Derived.ClassChannels)
		logSample(i, s, pred, score, cfg, elapsed)
		if err := writeRun(om, i, s, pred, score, cfg, elapsed); err != nil {
			return "", err
		}

		if res.Recording != nil {
			dir := outDir
			if dir == "" {
				dir = "."
			}
			recPath = filepath.Join(dir, "recording.json")
			if err := sim.SaveRecording(recPath, res.Recording); err != nil {
				return "", err
			}
			slog.Info("recording saved", "path", recPath, "frames", len(res.Recording.Frames))
		}
	}
	return recPath, nil
}

// runBatched classifies all samples in one batched run.
func runBatched(eng *sim.Engine, samples []dataset.Sample, cfg *config.Config, om *telemetry.OutputManager) error {
	imgs := make([]sim.Image, len(samples))
	for i, s := range samples {
		imgs[i] = s.Image
	}
	start := time.Now()
	res, err := eng.RunBatched(imgs)
	if err != nil {
		return err
	}
	perSample := time.Since(start) / time.Duration(len(samples))

	for i, s := range samples {
		pred, score := argmaxClass(res.ClassState[i], cfg.Derived.ClassChannels)
		logSample(i, s, pred, score, cfg, perSample)
		if err := writeRun(om, i, s, pred, score, cfg, perSample); err != nil {
			return err
		}
	}
	return nil
}

func logSample(i int, s dataset.Sample, pred int, score float64, cfg *config.Config, elapsed time.Duration) {
	slog.Info("sample classified",
		"sample", i,
		"digit", s.Digit,
		"predicted", predictedDigit(cfg, pred),
		"score", fmt.Sprintf("%.4f", score),
		"correct", predictedDigit(cfg, pred) == s.Digit,
		"elapsed", elapsed.String(),
	)
}

func writeRun(om *telemetry.OutputManager, i int, s dataset.Sample, pred int, score float64, cfg *config.Config, elapsed time.Duration) error {
	return om.WriteRun(telemetry.RunRecord{
		Sample:     i,
		Digit:      s.Digit,
		Predicted:  predictedDigit(cfg, pred),
		Score:      score,
		Correct:    predictedDigit(cfg, pred) == s.Digit,
		Iterations: cfg.Simulation.Iterations,
		ElapsedMS:  float64(elapsed.Microseconds()) / 1000.0,
	})
}

// predictedDigit maps a class-channel index back to its digit value.
func predictedDigit(cfg *config.Config, class int) int {
	if class >= 0 && class < len(cfg.Dataset.Digits) {
		return cfg.Dataset.Digits[class]
	}
	return class
}

// argmaxClass averages every class channel over all cells and returns the
// winning channel with its mean activation.
func argmaxClass(classState []float64, classes int) (int, float64) {
	sums := make([]float64, classes)
	cells := len(classState) / classes
	for i := 0; i < cells; i++ {
		for c := 0; c < classes; c++ {
			sums[c] += classState[i*classes+c]
		}
	}
	best := 0
	for c := 1; c < classes; c++ {
		if sums[c] > sums[best] {
			best = c
		}
	}
	return best, sums[best] / float64(cells)
}
