package cmd

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/goklt/internal/detect"
	"github.com/MeKo-Tech/goklt/internal/report"
	"github.com/MeKo-Tech/goklt/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrames(t *testing.T, dir string, n int) []string {
	t.Helper()
	return testutil.WriteSequence(t, dir, 96, 80, n, 1, 0.5)
}

func TestTrackNoArgs(t *testing.T) {
	_, _, err := executeCommand(t, "track")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input frames provided")
}

func TestTrackMissingFrame(t *testing.T) {
	_, _, err := executeCommand(t, "track", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestTrackEmptyDirectory(t *testing.T) {
	_, _, err := executeCommand(t, "track", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frames found")
}

func TestTrackInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1)

	_, _, err := executeCommand(t, "track", dir, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestTrackInvalidManagerSettings(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1)

	_, _, err := executeCommand(t, "track", dir, "--max-features", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max features")
}

func TestTrackDetectorBackend(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 2)

	_, _, err := executeCommand(t, "track", dir, "--detector", "sift")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid detector backend")

	out, _, err := executeCommand(t, "track", dir, "--detector", "shi_tomasi", "--format", "json", "--max-features", "20")
	require.NoError(t, err)
	var seq report.Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	assert.NotEmpty(t, seq.Frames[0].Spawned)

	_, _, err = executeCommand(t, "track", dir, "--detector", "good_features")
	if detect.GoodFeaturesLinked() {
		assert.NoError(t, err)
	} else {
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-tags=gocv")
	}
}

func TestTrackJSON(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 4)

	out, _, err := executeCommand(t, "track", dir, "--format", "json", "--max-features", "30")
	require.NoError(t, err)

	var seq report.Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	require.Len(t, seq.Frames, 4)
	assert.Equal(t, 4, seq.Summary.Frames)

	first := seq.Frames[0]
	assert.Equal(t, 96, first.Width)
	assert.Equal(t, 80, first.Height)
	assert.NotEmpty(t, first.Spawned)
	assert.Equal(t, first.Active, first.Spawned)
	assert.Empty(t, first.Dropped)

	for _, f := range seq.Frames {
		assert.LessOrEqual(t, len(f.Active), 30)
	}

	// Smooth translation keeps most tracks alive from the first frame.
	survivors := map[int64]bool{}
	for _, tr := range first.Active {
		survivors[tr.ID] = true
	}
	kept := 0
	for _, tr := range seq.Frames[3].Active {
		if survivors[tr.ID] {
			kept++
		}
	}
	assert.Positive(t, kept)
}

func TestTrackFollowsMotion(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)

	out, _, err := executeCommand(t, "track", dir, "--format", "json", "--max-features", "20")
	require.NoError(t, err)

	var seq report.Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	require.Len(t, seq.Frames, 3)

	start := map[int64][2]float64{}
	for _, tr := range seq.Frames[0].Active {
		start[tr.ID] = [2]float64{tr.X, tr.Y}
	}
	checked := 0
	for _, tr := range seq.Frames[2].Active {
		p, ok := start[tr.ID]
		if !ok {
			continue
		}
		assert.InDelta(t, p[0]+2, tr.X, 0.5, "track %d x", tr.ID)
		assert.InDelta(t, p[1]+1, tr.Y, 0.5, "track %d y", tr.ID)
		checked++
	}
	assert.Positive(t, checked)
}

func TestTrackCSVToFile(t *testing.T) {
	dir := t.TempDir()
	frames := writeFrames(t, dir, 2)
	outFile := filepath.Join(t.TempDir(), "nested", "tracks.csv")

	out, _, err := executeCommand(t, "track", frames[0], frames[1], "-f", "csv", "-o", outFile, "--precision", "1")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)
	assert.Equal(t, []string{"frame", "file", "id", "x", "y", "status"}, rows[0])
	assert.Equal(t, report.StatusSpawned, rows[1][5])
	assert.Regexp(t, `^\d+\.\d$`, rows[1][3])
}

func TestTrackTextWithWorkers(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)

	out, _, err := executeCommand(t, "track", dir, "--workers", "3", "--levels", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "# frame 0 ")
	assert.Contains(t, out, "# frame 2 ")
	assert.Contains(t, out, "# summary frames=3")
}

func TestTrackIncludeExclude(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)

	out, _, err := executeCommand(t, "track", dir, "--format", "json", "--exclude", "frame_001.png")
	require.NoError(t, err)

	var seq report.Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	require.Len(t, seq.Frames, 2)
	assert.Equal(t, "frame_002.png", filepath.Base(seq.Frames[1].File))
}

func TestTrackMetricsFile(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 2)
	metricsFile := filepath.Join(t.TempDir(), "klt.prom")

	_, _, err := executeCommand(t, "track", dir, "--metrics-file", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "klt_tracks_spawned_total")
	assert.Contains(t, text, `klt_track_faults_total{fault="SUCCESS"}`)
	assert.Contains(t, text, "klt_frame_duration_seconds_count 2")
}

func TestTrackConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1)
	cfgFile := filepath.Join(t.TempDir(), "klt.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("manager:\n  max_features: 5\noutput:\n  format: json\n"), 0o600))

	out, _, err := executeCommand(t, "track", dir, "--config", cfgFile)
	require.NoError(t, err)

	var seq report.Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	require.Len(t, seq.Frames, 1)
	assert.LessOrEqual(t, len(seq.Frames[0].Active), 5)
	assert.NotEmpty(t, seq.Frames[0].Active)
}

func TestTrackEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1)
	t.Setenv("KLT_MANAGER_MAX_FEATURES", "4")

	out, _, err := executeCommand(t, "track", dir, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "frames:")
	assert.Contains(t, out, "final_active: ")

	// The flag wins over the environment.
	out, _, err = executeCommand(t, "track", dir, "--format", "json", "--max-features", "8")
	require.NoError(t, err)
	var seq report.Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &seq))
	assert.Greater(t, len(seq.Frames[0].Active), 4)
}
