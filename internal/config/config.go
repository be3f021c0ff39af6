// Package config loads and validates the klt command configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/goklt/internal/detect"
	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/MeKo-Tech/goklt/internal/klt"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
	"github.com/MeKo-Tech/goklt/internal/track"
)

// Config represents the complete configuration of the klt command. It is
// loaded from configuration files, environment variables and flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Per-feature tracking
	Tracker klt.Config `mapstructure:"tracker" yaml:"tracker" json:"tracker"`

	// Image pyramid shape
	Pyramid pyramid.Builder `mapstructure:"pyramid" yaml:"pyramid" json:"pyramid"`

	// Corner detection for spawning
	Detector detect.Config `mapstructure:"detector" yaml:"detector" json:"detector"`

	// Track set management
	Manager ManagerConfig `mapstructure:"manager" yaml:"manager" json:"manager"`

	// Frame loading
	Input InputConfig `mapstructure:"input" yaml:"input" json:"input"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// HTTP server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// ManagerConfig contains the track budget, pruning and validation settings.
type ManagerConfig struct {
	MaxFeatures    int `mapstructure:"max_features" yaml:"max_features" json:"max_features"`
	PruneRadius    int `mapstructure:"prune_radius" yaml:"prune_radius" json:"prune_radius"`
	Workers        int `mapstructure:"workers" yaml:"workers" json:"workers"`
	CandidateSlack int `mapstructure:"candidate_slack" yaml:"candidate_slack" json:"candidate_slack"`
	// ToleranceFB is the forward-backward tolerance in pixels; negative disables it.
	ToleranceFB float64 `mapstructure:"tolerance_fb" yaml:"tolerance_fb" json:"tolerance_fb"`
}

// InputConfig contains frame preprocessing settings.
type InputConfig struct {
	// Blur is a gaussian sigma applied to every frame before tracking.
	Blur float64 `mapstructure:"blur" yaml:"blur" json:"blur"`
}

// OutputConfig contains report settings.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	File        string `mapstructure:"file" yaml:"file" json:"file"`
	Precision   int    `mapstructure:"precision" yaml:"precision" json:"precision"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Valid option values.
var (
	ValidLogLevels     = []string{"debug", "info", "warn", "error"}
	ValidOutputFormats = []string{"text", "json", "csv", "yaml"}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	tc := track.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Tracker:  klt.DefaultConfig(),
		Pyramid:  pyramid.DefaultBuilder(),
		Detector: detect.DefaultConfig(),
		Manager: ManagerConfig{
			MaxFeatures:    tc.MaxFeatures,
			PruneRadius:    tc.PruneRadius,
			Workers:        tc.Workers,
			CandidateSlack: tc.CandidateSlack,
			ToleranceFB:    tc.ToleranceFB,
		},
		Output: OutputConfig{
			Format:    "text",
			Precision: 3,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !contains(ValidLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(ValidLogLevels, ", "))
	}
	if c.Output.Format != "" && !contains(ValidOutputFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(ValidOutputFormats, ", "))
	}
	if c.Output.Precision < 0 || c.Output.Precision > 12 {
		return fmt.Errorf("invalid output precision: %d (must be between 0 and 12)", c.Output.Precision)
	}
	if c.Input.Blur < 0 {
		return fmt.Errorf("invalid input blur: %g (must be >= 0)", c.Input.Blur)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d MB (must be > 0)", c.Server.MaxUploadMB)
	}
	if err := c.Pyramid.Validate(); err != nil {
		return fmt.Errorf("invalid pyramid: %w", err)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("invalid detector: %w", err)
	}
	if err := c.ToTrackConfig().Validate(); err != nil {
		return fmt.Errorf("invalid tracker: %w", err)
	}
	return nil
}

// ToTrackConfig converts to the track manager configuration.
func (c *Config) ToTrackConfig() track.Config {
	return track.Config{
		Tracker:        c.Tracker,
		MaxFeatures:    c.Manager.MaxFeatures,
		PruneRadius:    c.Manager.PruneRadius,
		Workers:        c.Manager.Workers,
		CandidateSlack: c.Manager.CandidateSlack,
		ToleranceFB:    c.Manager.ToleranceFB,
	}
}

// ToPyramidBuilder returns the pyramid builder.
func (c *Config) ToPyramidBuilder() pyramid.Builder {
	return c.Pyramid
}

// ToDetector builds the configured corner detector.
func (c *Config) ToDetector() (detect.Detector, error) {
	return c.Detector.New()
}

// ToLoadOptions returns the frame loading options.
func (c *Config) ToLoadOptions() gray.LoadOptions {
	return gray.LoadOptions{Blur: c.Input.Blur}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
