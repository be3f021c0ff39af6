package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "klt"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "KLT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so flag
// bindings made by the root command apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the standard search paths, environment
// variables and defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars still apply.
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path. An empty
// path falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps KLT_TRACKER_MAX_ITERATIONS to tracker.max_iterations.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options. Every key
// must have a default for environment overrides to reach Unmarshal.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("tracker.max_iterations", defaults.Tracker.MaxIterations)
	l.v.SetDefault("tracker.min_position_delta", defaults.Tracker.MinPositionDelta)
	l.v.SetDefault("tracker.min_determinant", defaults.Tracker.MinDeterminant)
	l.v.SetDefault("tracker.max_error", defaults.Tracker.MaxError)
	l.v.SetDefault("tracker.forbidden_border", defaults.Tracker.ForbiddenBorder)
	l.v.SetDefault("tracker.template_radius", defaults.Tracker.TemplateRadius)

	l.v.SetDefault("pyramid.levels", defaults.Pyramid.Levels)
	l.v.SetDefault("pyramid.scale_factor", defaults.Pyramid.ScaleFactor)

	l.v.SetDefault("detector.backend", defaults.Detector.Backend)
	l.v.SetDefault("detector.shi_tomasi.radius", defaults.Detector.ShiTomasi.Radius)
	l.v.SetDefault("detector.shi_tomasi.min_score", defaults.Detector.ShiTomasi.MinScore)
	l.v.SetDefault("detector.shi_tomasi.nms_radius", defaults.Detector.ShiTomasi.NMSRadius)
	l.v.SetDefault("detector.shi_tomasi.exclude_radius", defaults.Detector.ShiTomasi.ExcludeRadius)
	l.v.SetDefault("detector.good_features.quality_level", defaults.Detector.GoodFeatures.QualityLevel)
	l.v.SetDefault("detector.good_features.min_distance", defaults.Detector.GoodFeatures.MinDistance)
	l.v.SetDefault("detector.good_features.exclude_radius", defaults.Detector.GoodFeatures.ExcludeRadius)

	l.v.SetDefault("manager.max_features", defaults.Manager.MaxFeatures)
	l.v.SetDefault("manager.prune_radius", defaults.Manager.PruneRadius)
	l.v.SetDefault("manager.workers", defaults.Manager.Workers)
	l.v.SetDefault("manager.candidate_slack", defaults.Manager.CandidateSlack)
	l.v.SetDefault("manager.tolerance_fb", defaults.Manager.ToleranceFB)

	l.v.SetDefault("input.blur", defaults.Input.Blur)

	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.precision", defaults.Output.Precision)
	l.v.SetDefault("output.metrics_file", defaults.Output.MetricsFile)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a configuration file holding every default.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "klt"))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", "klt"))
	}

	return append(paths, "/etc/klt")
}
