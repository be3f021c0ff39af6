// Package track manages the set of tracked features across frames: it
// tracks, drops, prunes and spawns features with a fixed budget.
package track

import (
	"fmt"

	"github.com/MeKo-Tech/goklt/internal/klt"
)

// Config controls a Manager.
type Config struct {
	Tracker klt.Config `mapstructure:"tracker" yaml:"tracker" json:"tracker"`
	// MaxFeatures is the number of descriptor slots and the track budget.
	MaxFeatures int `mapstructure:"max_features" yaml:"max_features" json:"max_features"`
	// PruneRadius is the side of the conflict square. 0 disables pruning.
	PruneRadius int `mapstructure:"prune_radius" yaml:"prune_radius" json:"prune_radius"`
	// Workers is the number of goroutines tracking features of one frame.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
	// CandidateSlack is how many extra detector candidates are requested
	// to make up for candidates that cannot be described.
	CandidateSlack int `mapstructure:"candidate_slack" yaml:"candidate_slack" json:"candidate_slack"`
	// ToleranceFB is the largest distance in pixels between a track's last
	// position and where it lands when tracked back from the new frame.
	// A negative value disables the forward-backward check.
	ToleranceFB float64 `mapstructure:"tolerance_fb" yaml:"tolerance_fb" json:"tolerance_fb"`
}

// DefaultConfig returns manager defaults.
func DefaultConfig() Config {
	return Config{
		Tracker:        klt.DefaultConfig(),
		MaxFeatures:    200,
		PruneRadius:    3,
		Workers:        1,
		CandidateSlack: 10,
		ToleranceFB:    -1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	if c.MaxFeatures < 1 {
		return fmt.Errorf("invalid max features: %d (must be positive)", c.MaxFeatures)
	}
	if c.PruneRadius < 0 {
		return fmt.Errorf("invalid prune radius: %d (must be >= 0)", c.PruneRadius)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be positive)", c.Workers)
	}
	if c.CandidateSlack < 0 {
		return fmt.Errorf("invalid candidate slack: %d (must be >= 0)", c.CandidateSlack)
	}
	return nil
}

// CheckFB reports whether the forward-backward check is enabled.
func (c Config) CheckFB() bool { return c.ToleranceFB >= 0 }
