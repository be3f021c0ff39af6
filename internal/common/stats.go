package common

import (
	"fmt"
	"time"
)

// DurationStats aggregates a series of durations, such as per-frame
// processing times over a sequence.
type DurationStats struct {
	Count int           `json:"count" yaml:"count"`
	Total time.Duration `json:"total_ns" yaml:"total"`
	Min   time.Duration `json:"min_ns" yaml:"min"`
	Max   time.Duration `json:"max_ns" yaml:"max"`
}

// Add records one duration.
func (s *DurationStats) Add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Total += d
	s.Count++
}

// Mean returns the average duration, or 0 when nothing was recorded.
func (s DurationStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// PerSecond returns how many items per second the mean duration allows.
func (s DurationStats) PerSecond() float64 {
	m := s.Mean()
	if m <= 0 {
		return 0
	}
	return float64(time.Second) / float64(m)
}

func (s DurationStats) String() string {
	return fmt.Sprintf("n=%d mean=%v min=%v max=%v", s.Count, s.Mean(), s.Min, s.Max)
}
