package indexing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ConfigMarkers name the index's own config files. A directory holding one
// is a project root even when a nested directory has other markers.
var ConfigMarkers = []string{".rubyidx.kdl", ".rubyidx.toml"}

// ProjectMarkers identify a Ruby project root, in priority order
var ProjectMarkers = []string{"Gemfile", "gems.rb", ".git", "Rakefile"}

// DetectProjectRoot reports whether dir is a project root and the marker
// that made it one
func DetectProjectRoot(dir string) (bool, string) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false, ""
	}
	for _, marker := range slices.Concat(ConfigMarkers, ProjectMarkers) {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true, marker
		}
	}
	if gemspecs, _ := filepath.Glob(filepath.Join(dir, "*.gemspec")); len(gemspecs) > 0 {
		return true, filepath.Base(gemspecs[0])
	}
	return false, ""
}

// FindProjectRoot walks up from start. Config markers are searched all the
// way up first, so a parent's .rubyidx.kdl wins over a nested .git; then
// the nearest directory with any project marker is used.
func FindProjectRoot(start string) (string, string, error) {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		start = cwd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return "", "", err
	}

	for dir := start; ; dir = filepath.Dir(dir) {
		for _, marker := range ConfigMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, marker, nil
			}
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}

	for dir := start; ; dir = filepath.Dir(dir) {
		if ok, marker := DetectProjectRoot(dir); ok {
			return dir, marker, nil
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return "", "", errors.New("no project root detected from path: " + start)
}
