// Package sequence turns command line arguments into an ordered list of frames.
package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/goklt/internal/gray"
)

// Discover expands args into frame paths. Files are kept in argument order.
// A directory contributes its supported images sorted by name, which keeps
// numbered frame dumps in temporal order. Files matching an exclude pattern
// are skipped; when include patterns are given a file must match one.
func Discover(args []string, includePatterns, excludePatterns []string) ([]string, error) {
	var frames []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			frames = append(frames, files...)
			continue
		}
		if !gray.IsSupportedImage(arg) {
			return nil, fmt.Errorf("unsupported image format: %s", arg)
		}
		if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			frames = append(frames, arg)
		}
	}

	return frames, nil
}

func discoverInDirectory(dir string, includePatterns, excludePatterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if gray.IsSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
