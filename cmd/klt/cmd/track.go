package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/goklt/internal/common"
	"github.com/MeKo-Tech/goklt/internal/config"
	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/MeKo-Tech/goklt/internal/metrics"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
	"github.com/MeKo-Tech/goklt/internal/report"
	"github.com/MeKo-Tech/goklt/internal/sequence"
	"github.com/MeKo-Tech/goklt/internal/track"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newTrackCommand(a *app) *cobra.Command {
	var include, exclude []string

	trackCmd := &cobra.Command{
		Use:   "track FRAME|DIR...",
		Short: "Track features through a sequence of frames",
		Long: `Track point features through a sequence of frames and report the
active, spawned and dropped tracks after every frame.

Frames are processed in argument order. A directory contributes its images
sorted by file name. All frames should have the same size.

Supported formats: JPEG, PNG, BMP, TIFF

Examples:
  klt track frames/
  klt track frames/ --format json --output tracks.json
  klt track frames/ --include 'cam0_*' --max-features 300 --levels 4
  klt track frames/ --metrics-file klt.prom`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("no input frames provided")
			}
			frames, err := sequence.Discover(args, include, exclude)
			if err != nil {
				return err
			}
			if len(frames) == 0 {
				return errors.New("no frames found")
			}
			return runTrack(a, cmd, frames)
		},
	}

	addTrackFlags(trackCmd)
	trackCmd.Flags().StringSliceVar(&include, "include", nil, "only use frames whose file name matches one of these patterns")
	trackCmd.Flags().StringSliceVar(&exclude, "exclude", nil, "skip frames whose file name matches one of these patterns")

	bindFlags(a.v, trackCmd.Flags(), []flagBinding{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.precision", "precision"},
		{"output.metrics_file", "metrics-file"},
		{"manager.max_features", "max-features"},
		{"manager.prune_radius", "prune-radius"},
		{"manager.workers", "workers"},
		{"manager.tolerance_fb", "tolerance-fb"},
		{"tracker.template_radius", "radius"},
		{"tracker.max_iterations", "max-iterations"},
		{"tracker.max_error", "max-error"},
		{"pyramid.levels", "levels"},
		{"pyramid.scale_factor", "scale-factor"},
		{"detector.backend", "detector"},
		{"detector.shi_tomasi.min_score", "min-score"},
		{"input.blur", "blur"},
	})
	return trackCmd
}

func addTrackFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()

	cmd.Flags().StringP("format", "f", d.Output.Format, "output format (text, json, csv, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Int("precision", d.Output.Precision, "decimals of positions in text and csv output")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics in text format to this file")

	cmd.Flags().Int("max-features", d.Manager.MaxFeatures, "number of tracks to maintain")
	cmd.Flags().Int("prune-radius", d.Manager.PruneRadius, "minimum distance between tracks in pixels (0 disables pruning)")
	cmd.Flags().IntP("workers", "w", d.Manager.Workers, "number of goroutines tracking features")
	cmd.Flags().Float64("tolerance-fb", d.Manager.ToleranceFB, "drop tracks that miss their last position by more than this many pixels when tracked back (negative disables)")

	cmd.Flags().Int("radius", d.Tracker.TemplateRadius, "template half width in pixels")
	cmd.Flags().Int("max-iterations", d.Tracker.MaxIterations, "Newton iterations per pyramid level")
	cmd.Flags().Float64("max-error", d.Tracker.MaxError, "largest accepted mean absolute intensity error")

	cmd.Flags().Int("levels", d.Pyramid.Levels, "number of pyramid levels")
	cmd.Flags().Int("scale-factor", d.Pyramid.ScaleFactor, "downsampling factor between pyramid levels")

	cmd.Flags().String("detector", d.Detector.Backend, "corner detector (auto, shi_tomasi, good_features)")
	cmd.Flags().Float64("min-score", d.Detector.ShiTomasi.MinScore, "minimum shi_tomasi corner score for new features")
	cmd.Flags().Float64("blur", d.Input.Blur, "gaussian blur sigma applied to every frame (0 disables)")
}

func runTrack(a *app, cmd *cobra.Command, frames []string) error {
	cfg := a.cfg
	if cfg == nil {
		return errors.New("configuration not loaded")
	}

	detector, err := cfg.ToDetector()
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}

	reg := prometheus.NewRegistry()
	manager, err := track.NewManager(cfg.ToTrackConfig(), detector,
		track.WithLogger(a.logger),
		track.WithMetrics(metrics.NewRecorder(reg)))
	if err != nil {
		return fmt.Errorf("failed to create track manager: %w", err)
	}
	defer manager.Close()

	a.logger.Info("tracking sequence",
		"frames", len(frames),
		"max_features", cfg.Manager.MaxFeatures,
		"levels", cfg.Pyramid.Levels,
		"detector", cfg.Detector.Resolved(),
		"tolerance_fb", cfg.Manager.ToleranceFB,
		"workers", cfg.Manager.Workers)

	builder := cfg.ToPyramidBuilder()
	opts := cfg.ToLoadOptions()
	seq := &report.Sequence{}
	total := common.NewNamedTimer("sequence")
	for i, path := range frames {
		frame, err := trackFrame(manager, builder, opts, i, path)
		if err != nil {
			return err
		}
		seq.Add(frame)
	}
	a.logger.Info("sequence tracked",
		"frames", seq.Summary.Frames,
		"spawned", seq.Summary.TotalSpawned,
		"dropped", seq.Summary.TotalDropped,
		"active", seq.Summary.FinalActive,
		total.Attr())

	if err := writeReport(cmd.OutOrStdout(), seq, cfg.Output); err != nil {
		return err
	}

	if cfg.Output.MetricsFile != "" {
		if err := metrics.WriteTextfile(reg, cfg.Output.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
		a.logger.Debug("metrics written", "file", cfg.Output.MetricsFile)
	}
	return nil
}

func trackFrame(manager *track.Manager, builder pyramid.Builder, opts gray.LoadOptions, index int, path string) (report.Frame, error) {
	img, err := gray.LoadWithOptions(path, opts)
	if err != nil {
		return report.Frame{}, err
	}
	defer img.Release()

	timer := common.NewTimer()
	pyr, err := builder.Build(img)
	if err != nil {
		return report.Frame{}, fmt.Errorf("failed to build pyramid for %s: %w", path, err)
	}
	defer pyr.Release()

	if err := manager.Process(pyr); err != nil {
		return report.Frame{}, fmt.Errorf("failed to track frame %s: %w", path, err)
	}

	return report.Capture(manager, index, path, img.Width, img.Height, timer.Stop()), nil
}

func writeReport(stdout io.Writer, seq *report.Sequence, out config.OutputConfig) error {
	if out.File == "" {
		return report.Write(stdout, seq, out.Format, out.Precision)
	}

	if dir := filepath.Dir(out.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(out.File)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := report.Write(f, seq, out.Format, out.Precision); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
