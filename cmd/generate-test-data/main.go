package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/goklt/internal/testutil"
)

// SequenceFixture records the ground truth motion of a generated sequence.
type SequenceFixture struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Noise       float64      `json:"noise"`
	Frames      []FrameTruth `json:"frames"`
}

// FrameTruth is the offset of one frame relative to the first.
type FrameTruth struct {
	File string  `json:"file"`
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
}

// sequenceSpec describes one sequence to render.
type sequenceSpec struct {
	name, description string
	width, height     int
	frames            int
	vx, vy            float64
	noise             float64
}

var defaultSequences = []sequenceSpec{
	{"static", "Unchanging texture, every track should survive", 160, 120, 5, 0, 0, 0},
	{"translate_slow", "Sub-pixel translation", 160, 120, 10, 0.4, 0.25, 0},
	{"translate_fast", "Translation needing the coarse pyramid levels", 320, 240, 10, 4, -3, 0},
	{"noisy", "Slow translation with uniform sensor noise", 160, 120, 10, 1, 0.5, 6},
}

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/sequences", "Output directory")
		name    = flag.String("name", "", "Generate a single custom sequence with this name")
		frames  = flag.Int("frames", 10, "Frames of the custom sequence")
		width   = flag.Int("width", 160, "Width of the custom sequence")
		height  = flag.Int("height", 120, "Height of the custom sequence")
		vx      = flag.Float64("vx", 1, "Horizontal motion of the custom sequence in px/frame")
		vy      = flag.Float64("vy", 0.5, "Vertical motion of the custom sequence in px/frame")
		noise   = flag.Float64("noise", 0, "Uniform noise amplitude of the custom sequence")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic frame sequences with known motion for klt testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # Generate the default sequences\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -name pan -vx 2 -vy 0 -frames 30 # Generate one custom sequence\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	specs := defaultSequences
	if *name != "" {
		specs = []sequenceSpec{{*name, "Custom sequence", *width, *height, *frames, *vx, *vy, *noise}}
	}

	slog.Info("Starting test data generation...", "sequences", len(specs), "out", *outDir)

	for i, spec := range specs {
		if *verbose {
			slog.Info("Generating sequence", "name", spec.name, "frames", spec.frames,
				"width", spec.width, "height", spec.height, "vx", spec.vx, "vy", spec.vy)
		}
		if err := generateSequence(*outDir, spec, uint64(i)+1); err != nil {
			slog.Error("Failed to generate sequence", "name", spec.name, "error", err)
			os.Exit(1)
		}
		slog.Info("✓ Generated sequence", "name", spec.name)
	}

	slog.Info("Test data generation completed successfully!")
}

// generateSequence renders spec into outDir/name and writes truth.json next to the frames.
func generateSequence(outDir string, spec sequenceSpec, seed uint64) error {
	if spec.frames < 1 {
		return fmt.Errorf("invalid frame count: %d", spec.frames)
	}
	dir := filepath.Join(outDir, spec.name)
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create sequence directory: %w", err)
	}

	fixture := SequenceFixture{
		Name:        spec.name,
		Description: spec.description,
		Width:       spec.width,
		Height:      spec.height,
		Noise:       spec.noise,
	}
	for i := range spec.frames {
		dx, dy := spec.vx*float64(i), spec.vy*float64(i)
		img := testutil.Shifted(spec.width, spec.height, dx, dy)
		if spec.noise > 0 {
			testutil.AddUniformNoise(img, spec.noise, seed*1000+uint64(i))
		}

		file := fmt.Sprintf("frame_%03d.png", i)
		err := img.Save(filepath.Join(dir, file))
		img.Release()
		if err != nil {
			return fmt.Errorf("failed to save frame %d: %w", i, err)
		}
		fixture.Frames = append(fixture.Frames, FrameTruth{File: file, DX: dx, DY: dy})
	}

	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "truth.json"), data, 0o600)
}
