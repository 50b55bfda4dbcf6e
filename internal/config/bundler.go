package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// bundlerConfig is the subset of .bundle/config the indexer reads
type bundlerConfig struct {
	Path string `yaml:"BUNDLE_PATH"`
}

// BundlerGemPaths returns the gem directories of a project-local Bundler
// install, found through BUNDLE_PATH in <root>/.bundle/config. Projects
// without a .bundle/config, or without BUNDLE_PATH, have none.
func BundlerGemPaths(root string) ([]string, error) {
	content, err := os.ReadFile(filepath.Join(root, ".bundle", "config"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bundler config: %w", err)
	}

	var bc bundlerConfig
	if err := yaml.Unmarshal(content, &bc); err != nil {
		return nil, fmt.Errorf("failed to parse bundler config: %w", err)
	}
	if bc.Path == "" {
		return nil, nil
	}

	base := absoluteRoot(bc.Path, root)
	var out []string
	// Regular gems and gems installed from git sources
	for _, pattern := range []string{"ruby/*/gems", "ruby/*/bundler/gems"} {
		matches, err := doublestar.FilepathGlob(filepath.Join(base, filepath.FromSlash(pattern)))
		if err == nil {
			out = append(out, matches...)
		}
	}
	slices.Sort(out)
	return out, nil
}
