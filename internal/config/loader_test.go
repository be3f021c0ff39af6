package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFindsFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "klt.yaml"), []byte("manager:\n  max_features: 42\n"), 0o600))
	t.Chdir(dir)

	loader := NewLoaderWithViper(viper.New())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Manager.MaxFeatures)
	assert.Contains(t, loader.GetConfigFileUsed(), "klt.yaml")
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
verbose: true
tracker:
  max_iterations: 30
  template_radius: 5
  forbidden_border: 2
pyramid:
  levels: 4
detector:
  backend: shi_tomasi
  shi_tomasi:
    nms_radius: 6
manager:
  max_features: 80
  workers: 4
  tolerance_fb: 0.75
output:
  format: json
`)

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 30, cfg.Tracker.MaxIterations)
	assert.Equal(t, 5, cfg.Tracker.TemplateRadius)
	assert.Equal(t, 2, cfg.Tracker.ForbiddenBorder)
	assert.InDelta(t, 25.0, cfg.Tracker.MaxError, 0, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Pyramid.Levels)
	assert.Equal(t, 2, cfg.Pyramid.ScaleFactor)
	assert.Equal(t, "shi_tomasi", cfg.Detector.Backend)
	assert.InDelta(t, 0.75, cfg.Manager.ToleranceFB, 0)
	assert.True(t, cfg.ToTrackConfig().CheckFB())
	assert.Equal(t, 6, cfg.Detector.ShiTomasi.NMSRadius)
	assert.InDelta(t, 1.0, cfg.Detector.ShiTomasi.MinScore, 0, "unset detector keys keep defaults")
	assert.Equal(t, 80, cfg.Manager.MaxFeatures)
	assert.Equal(t, 4, cfg.Manager.Workers)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n  invalid indentation\n    more\n")
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithMissingFile(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "manager:\n  max_features: -3\n")
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("KLT_TRACKER_MAX_ERROR", "12.5")
	t.Setenv("KLT_MANAGER_PRUNE_RADIUS", "0")
	t.Setenv("KLT_LOG_LEVEL", "warn")
	path := writeConfig(t, "tracker:\n  max_error: 40\n")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, cfg.Tracker.MaxError, 0, "env beats file")
	assert.Equal(t, 0, cfg.Manager.PruneRadius)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestExplicitSetWins(t *testing.T) {
	path := writeConfig(t, "manager:\n  workers: 2\n")
	loader := NewLoaderWithViper(viper.New())
	loader.Set("manager.workers", 6)
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Manager.Workers)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "tracker")
	assert.Contains(t, raw, "manager")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/tmp/xdg", "klt"))
	assert.Equal(t, "/etc/klt", paths[len(paths)-1])
}
