// Package version reports how the klt binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/MeKo-Tech/goklt/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	// Tags are the build tags that select optional backends, such as gocv.
	Tags string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Get returns the build information. Values missing from the linker flags
// are taken from the VCS stamp the go command embeds.
func Get() Build {
	b := Build{Version: Version, Commit: GitCommit, Date: BuildDate, GoVersion: runtime.Version()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	return fromBuildInfo(b, info)
}

func fromBuildInfo(b Build, info *debug.BuildInfo) Build {
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "unknown" {
				b.Date = s.Value
			}
		case "-tags":
			b.Tags = s.Value
		}
	}
	return b
}

// String formats the build for --version output.
func (b Build) String() string {
	s := fmt.Sprintf("%s (commit: %s, built: %s, %s)", b.Version, b.Commit, b.Date, b.GoVersion)
	if b.Tags != "" {
		s += " tags: " + b.Tags
	}
	return s
}

// String formats the running build.
func String() string {
	return Get().String()
}
