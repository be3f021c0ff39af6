package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir   string
	FramesDir string
	Frames    []string

	// Motion of the generated sequence in pixels per frame
	MotionX, MotionY float64

	// Environment variables set for the scenario, restored on cleanup
	savedEnv map[string]*string
}

// NewTestContext creates a new test context.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "klt-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		TempDir:  tempDir,
		savedEnv: map[string]*string{},
	}, nil
}

// Cleanup removes all temporary files and restores the environment.
func (testCtx *TestContext) Cleanup() error {
	var errors []error

	for name, value := range testCtx.savedEnv {
		var err error
		if value == nil {
			err = os.Unsetenv(name)
		} else {
			err = os.Setenv(name, *value)
		}
		if err != nil {
			errors = append(errors, fmt.Errorf("failed to restore %s: %w", name, err))
		}
	}
	testCtx.savedEnv = map[string]*string{}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errors = append(errors, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("cleanup errors: %v", errors)
	}
	return nil
}

// SetEnvVar sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnvVar(name, value string) error {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &old
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	return os.Setenv(name, value)
}

// TempPath returns a path inside the scenario temp directory.
func (testCtx *TestContext) TempPath(name string) string {
	return filepath.Join(testCtx.TempDir, name)
}

// substituteCommandVariables replaces {frames_dir}, {frame:N} and
// {temp_dir} placeholders in command strings.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{frames_dir}", testCtx.FramesDir)
	command = strings.ReplaceAll(command, "{temp_dir}", testCtx.TempDir)
	for i, f := range testCtx.Frames {
		command = strings.ReplaceAll(command, fmt.Sprintf("{frame:%d}", i), f)
	}
	return command
}
