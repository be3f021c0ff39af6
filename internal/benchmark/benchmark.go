// Package benchmark measures tracking throughput on synthetic sequences.
package benchmark

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/goklt/internal/common"
	"github.com/MeKo-Tech/goklt/internal/detect"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
	"github.com/MeKo-Tech/goklt/internal/testutil"
	"github.com/MeKo-Tech/goklt/internal/track"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the result of a benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB returns the growth of cumulative allocations during the run.
func (r Result) AllocatedKB() int64 {
	diff := r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes
	if diff > math.MaxInt64 {
		return math.MaxInt64 / 1024
	}
	return int64(diff) / 1024
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: +%d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

// Benchmark represents a benchmark function.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates a new benchmark suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in the suite.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the last run results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func runBenchmark(b Benchmark, iterations int) Result {
	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := common.NewTimer()
	var err error
	for range iterations {
		if err = b.Func(); err != nil {
			break
		}
	}
	duration := timer.Stop()

	return Result{
		Name:         b.Name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   iterations,
		Error:        err,
	}
}

// Sequence describes the synthetic translating sequence to track.
type Sequence struct {
	Width, Height int
	Frames        int
	// Motion in pixels per frame.
	VX, VY float64
}

// DefaultSequence returns a VGA sized sequence of 10 frames.
func DefaultSequence() Sequence {
	return Sequence{Width: 640, Height: 480, Frames: 10, VX: 1.5, VY: -0.75}
}

// WorkersResult compares tracking a sequence with one worker and with many.
type WorkersResult struct {
	Workers       int
	Sequential    Result
	Parallel      Result
	SpeedupFactor float64
	// FinalActive is the number of tracks alive after the last frame.
	FinalActive int
}

// String returns a formatted representation of the comparison.
func (r WorkersResult) String() string {
	if r.Sequential.Error != nil || r.Parallel.Error != nil {
		return fmt.Sprintf("%s | %s", r.Sequential, r.Parallel)
	}
	speedup := fmt.Sprintf("%.2fx faster", r.SpeedupFactor)
	if r.SpeedupFactor < 1 && r.SpeedupFactor > 0 {
		speedup = fmt.Sprintf("%.2fx slower", 1/r.SpeedupFactor)
	}
	return fmt.Sprintf("1 worker: %v/seq, %d workers: %v/seq (%s), %d active tracks",
		r.Sequential.Average(), r.Workers, r.Parallel.Average(), speedup, r.FinalActive)
}

// WorkersBenchmark tracks one sequence with increasing worker counts.
type WorkersBenchmark struct {
	seq    Sequence
	config track.Config
	levels pyramid.Builder

	frames []*pyramid.Pyramid
}

// NewWorkersBenchmark renders and builds every frame of seq up front so
// only tracking is timed.
func NewWorkersBenchmark(seq Sequence, cfg track.Config, levels pyramid.Builder) (*WorkersBenchmark, error) {
	if seq.Frames < 1 {
		return nil, fmt.Errorf("invalid frame count: %d (must be positive)", seq.Frames)
	}
	b := &WorkersBenchmark{seq: seq, config: cfg, levels: levels}
	for i := range seq.Frames {
		img := testutil.Shifted(seq.Width, seq.Height, seq.VX*float64(i), seq.VY*float64(i))
		p, err := levels.Build(img)
		if err != nil {
			img.Release()
			b.Close()
			return nil, fmt.Errorf("failed to build pyramid for frame %d: %w", i, err)
		}
		b.frames = append(b.frames, p)
	}
	return b, nil
}

// Close releases the prebuilt pyramids and the frames under them.
func (b *WorkersBenchmark) Close() {
	for _, p := range b.frames {
		base := p.Level(0).Image
		p.Release()
		base.Release()
	}
	b.frames = nil
}

// track runs a fresh manager over every frame and returns the final number
// of active tracks.
func (b *WorkersBenchmark) track(workers int) (int, error) {
	cfg := b.config
	cfg.Workers = workers
	m, err := track.NewManager(cfg, detect.DefaultShiTomasi())
	if err != nil {
		return 0, err
	}
	defer m.Close()
	for _, p := range b.frames {
		if err := m.Process(p); err != nil {
			return 0, err
		}
	}
	return m.NumActive(), nil
}

// Run compares one worker with the given number of workers.
func (b *WorkersBenchmark) Run(workers, iterations int) WorkersResult {
	res := WorkersResult{Workers: workers}

	suite := NewSuite()
	suite.Add("workers_1", func() error {
		_, err := b.track(1)
		return err
	})
	suite.Add(fmt.Sprintf("workers_%d", workers), func() error {
		n, err := b.track(workers)
		res.FinalActive = n
		return err
	})
	results := suite.RunAll(iterations)
	res.Sequential, res.Parallel = results[0], results[1]

	if res.Parallel.Duration > 0 {
		res.SpeedupFactor = float64(res.Sequential.Duration) / float64(res.Parallel.Duration)
	}
	return res
}

// PrintDetailedResults writes a report of the comparisons to w.
func PrintDetailedResults(w io.Writer, seq Sequence, results []WorkersResult) {
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 80))
	_, _ = fmt.Fprintln(w, "KLT Tracking Worker Benchmark Results")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 80))

	_, _ = fmt.Fprintf(w, "System Information:\n")
	_, _ = fmt.Fprintf(w, "  GOOS: %s\n", runtime.GOOS)
	_, _ = fmt.Fprintf(w, "  GOARCH: %s\n", runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "  NumCPU: %d\n", runtime.NumCPU())
	_, _ = fmt.Fprintf(w, "  Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "Sequence: %d frames of %dx%d moving %.2f, %.2f px/frame\n\n",
		seq.Frames, seq.Width, seq.Height, seq.VX, seq.VY)

	best := 0
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "• %s\n", r)
		if r.SpeedupFactor > results[best].SpeedupFactor {
			best = i
		}
	}
	if len(results) > 0 {
		_, _ = fmt.Fprintf(w, "\nBest: %d workers (%.2fx)\n", results[best].Workers, results[best].SpeedupFactor)
	}
}
