package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	b := Get()
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.NotEmpty(t, b.Version)
	assert.Equal(t, b.String(), String())
}

func TestFromBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "-tags", Value: "gocv"},
		},
	}

	b := fromBuildInfo(Build{Version: "dev", Commit: "unknown", Date: "unknown"}, info)
	assert.Equal(t, Build{Version: "v0.3.1", Commit: "abc123", Date: "2026-01-02T03:04:05Z", Tags: "gocv"}, b)

	// Linker flags win over the embedded stamp.
	b = fromBuildInfo(Build{Version: "1.0.0", Commit: "feed", Date: "today"}, info)
	assert.Equal(t, "1.0.0", b.Version)
	assert.Equal(t, "feed", b.Commit)
	assert.Equal(t, "today", b.Date)

	b = fromBuildInfo(Build{Version: "dev"}, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", b.Version)
}

func TestBuildString(t *testing.T) {
	b := Build{Version: "1.2.0", Commit: "abc", Date: "2026-10-01", GoVersion: "go1.24.0"}
	assert.Equal(t, "1.2.0 (commit: abc, built: 2026-10-01, go1.24.0)", b.String())

	b.Tags = "gocv"
	assert.Contains(t, b.String(), "tags: gocv")
}
