package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/MeKo-Tech/goklt/internal/benchmark"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
	"github.com/MeKo-Tech/goklt/internal/track"
)

func main() {
	def := benchmark.DefaultSequence()
	var (
		width      = flag.Int("width", def.Width, "Frame width")
		height     = flag.Int("height", def.Height, "Frame height")
		frames     = flag.Int("frames", def.Frames, "Frames per sequence")
		features   = flag.Int("features", 500, "Number of tracks to maintain")
		levels     = flag.Int("levels", pyramid.DefaultBuilder().Levels, "Pyramid levels")
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		maxWorkers = flag.Int("max-workers", runtime.NumCPU(), "Largest worker count to compare against one worker")
		outputFile = flag.String("output", "", "Output file for results (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	fmt.Println("klt Tracking Worker Benchmark")
	fmt.Println("=============================")

	seq := benchmark.Sequence{Width: *width, Height: *height, Frames: *frames, VX: def.VX, VY: def.VY}
	cfg := track.DefaultConfig()
	cfg.MaxFeatures = *features
	builder := pyramid.DefaultBuilder()
	builder.Levels = *levels

	bench, err := benchmark.NewWorkersBenchmark(seq, cfg, builder)
	if err != nil {
		log.Fatalf("Benchmark setup failed: %v", err)
	}
	defer bench.Close()

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)

	var results []benchmark.WorkersResult
	for workers := 2; workers <= *maxWorkers; workers *= 2 {
		if *verbose {
			fmt.Printf("Benchmarking %d workers\n", workers)
		}
		res := bench.Run(workers, *iterations)
		if res.Sequential.Error != nil || res.Parallel.Error != nil {
			log.Printf("Benchmark failed: %s", res)
			continue
		}
		results = append(results, res)
	}

	benchmark.PrintDetailedResults(os.Stdout, seq, results)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, seq, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func saveResultsToFile(filename string, seq benchmark.Sequence, results []benchmark.WorkersResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	benchmark.PrintDetailedResults(file, seq, results)

	_, _ = fmt.Fprintln(file)
	_, _ = fmt.Fprintln(file, "CSV Format:")
	_, _ = fmt.Fprintln(file, "Workers,Sequential_ms,Parallel_ms,Speedup,Final_Active")
	for _, r := range results {
		_, _ = fmt.Fprintf(file, "%d,%.2f,%.2f,%.2f,%d\n",
			r.Workers,
			float64(r.Sequential.Average().Nanoseconds())/1e6,
			float64(r.Parallel.Average().Nanoseconds())/1e6,
			r.SpeedupFactor,
			r.FinalActive,
		)
	}
	return nil
}
