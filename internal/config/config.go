package config

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
)

// Size and timing defaults shared by the loaders
const (
	DefaultMaxFileSize        = 4 * 1024 * 1024
	DefaultWatchDebounceMs    = 300
	DefaultRebuildChunkSize   = 256
	DefaultIndexingTimeoutSec = 120
	DefaultMaxResults         = 100
	DefaultFuzzyThreshold     = 0.0
)

const (
	kdlFileName  = ".rubyidx.kdl"
	tomlFileName = ".rubyidx.toml"
)

type Config struct {
	Version     int         `toml:"version"`
	Project     Project     `toml:"project"`
	Index       Index       `toml:"index"`
	Performance Performance `toml:"performance"`
	Search      Search      `toml:"search"`

	// Include and Exclude are doublestar globs matched against paths
	// relative to the root being walked
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`

	// IncludedNames and ExcludedNames select dependency directories (gem
	// names), compared without their version suffix
	IncludedNames []string `toml:"included_names"`
	ExcludedNames []string `toml:"excluded_names"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Index struct {
	MaxFileSize      int64    `toml:"max_file_size"`
	FollowSymlinks   bool     `toml:"follow_symlinks"`
	RespectGitignore bool     `toml:"respect_gitignore"`
	WatchMode        bool     `toml:"watch_mode"`
	WatchDebounceMs  int      `toml:"watch_debounce_ms"`
	DependencyPaths  []string `toml:"dependency_paths"`
	RespectBundler   bool     `toml:"respect_bundler"` // read BUNDLE_PATH from .bundle/config
	Enhancements     []string `toml:"enhancements"`    // empty = built-in defaults
}

type Performance struct {
	ParallelFileWorkers int `toml:"parallel_file_workers"` // 0 = auto-detect
	RebuildChunkSize    int `toml:"rebuild_chunk_size"`    // parsed files buffered ahead of the apply cursor
	IndexingTimeoutSec  int `toml:"indexing_timeout_sec"`
}

type Search struct {
	MaxResults     int     `toml:"max_results"`
	EnableFuzzy    bool    `toml:"enable_fuzzy"`
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
}

// Default returns the configuration used when no config file exists
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root, Name: filepath.Base(root)},
		Index: Index{
			MaxFileSize:      DefaultMaxFileSize,
			RespectGitignore: true,
			WatchMode:        true,
			WatchDebounceMs:  DefaultWatchDebounceMs,
			RespectBundler:   true,
		},
		Performance: Performance{
			ParallelFileWorkers: 0,
			RebuildChunkSize:    DefaultRebuildChunkSize,
			IndexingTimeoutSec:  DefaultIndexingTimeoutSec,
		},
		Search: Search{
			MaxResults:     DefaultMaxResults,
			EnableFuzzy:    true,
			FuzzyThreshold: DefaultFuzzyThreshold,
		},
		Include: DefaultIncludes(),
		Exclude: DefaultExclusions(),
	}
}

// DefaultIncludes are the Ruby source files indexed when no include list
// is configured
func DefaultIncludes() []string {
	return []string{
		"**/*.rb",
		"**/*.rake",
		"**/*.gemspec",
		"**/*.ru",
		"**/Rakefile",
		"**/Gemfile",
	}
}

// DefaultExclusions skips directories that never hold workspace sources
func DefaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.bundle/**",
		"**/node_modules/**",
		"**/vendor/bundle/**",
		"tmp/**",
		"log/**",
		"coverage/**",
		"public/packs/**",
		"**/.yardoc/**",
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads configuration for the project at rootDir. An explicit
// path names a config file (.kdl or .toml) and bypasses discovery.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	if abs, err := filepath.Abs(searchDir); err == nil {
		searchDir = abs
	}

	var cfg *Config
	if path != "" {
		explicit, err := loadFile(path, searchDir)
		if err != nil {
			return nil, err
		}
		cfg = explicit
	} else {
		discovered, err := discover(searchDir)
		if err != nil {
			return nil, err
		}
		cfg = discovered
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
	if err := cfg.resolveDependencies(); err != nil {
		return nil, err
	}
	if cfg.Index.RespectGitignore {
		if patterns, err := LoadGitignore(cfg.Project.Root); err == nil {
			cfg.Exclude = mergePatterns(cfg.Exclude, patterns)
		}
	}
	return cfg, nil
}

// discover merges ~/.rubyidx.kdl with the project's .rubyidx.kdl. When the
// project has no KDL file a .rubyidx.toml is accepted instead.
func discover(searchDir string) (*Config, error) {
	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if projectConfig == nil {
		if projectConfig, err = LoadTOML(searchDir); err != nil {
			return nil, err
		}
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		baseConfig.Project.Name = ""
		return baseConfig, nil
	}
	return Default(searchDir), nil
}

func loadFile(path, searchDir string) (*Config, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = searchDir
	}
	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	var cfg *Config
	if filepath.Ext(name) == ".toml" {
		cfg, err = parseTOML(content, searchDir)
	} else {
		cfg, err = parseKDL(string(content), searchDir)
	}
	if err != nil {
		return nil, err
	}
	cfg.Project.Root = absoluteRoot(cfg.Project.Root, searchDir)
	return cfg, nil
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project
	merged.Exclude = mergePatterns(base.Exclude, project.Exclude)
	merged.ExcludedNames = mergePatterns(base.ExcludedNames, project.ExcludedNames)

	// Inclusions are replaced rather than merged
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	if len(project.Index.DependencyPaths) == 0 {
		merged.Index.DependencyPaths = base.Index.DependencyPaths
	}
	if len(project.Index.Enhancements) == 0 {
		merged.Index.Enhancements = base.Index.Enhancements
	}
	return &merged
}

// mergePatterns appends extra to patterns, keeping first occurrences
func mergePatterns(patterns, extra []string) []string {
	out := make([]string, 0, len(patterns)+len(extra))
	seen := make(map[string]bool, len(patterns)+len(extra))
	for _, p := range slices.Concat(patterns, extra) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// resolveDependencies anchors relative dependency paths at the project
// root and adds the Bundler install location when enabled
func (c *Config) resolveDependencies() error {
	paths := make([]string, 0, len(c.Index.DependencyPaths))
	for _, p := range c.Index.DependencyPaths {
		paths = append(paths, absoluteRoot(p, c.Project.Root))
	}
	if c.Index.RespectBundler {
		bundled, err := BundlerGemPaths(c.Project.Root)
		if err != nil {
			return err
		}
		paths = append(paths, bundled...)
	}
	c.Index.DependencyPaths = mergePatterns(nil, paths)
	return nil
}

// Workers returns the parse parallelism for full rebuilds
func (c *Config) Workers() int {
	if c.Performance.ParallelFileWorkers > 0 {
		return c.Performance.ParallelFileWorkers
	}
	return max(1, runtime.NumCPU()-1)
}

func absoluteRoot(root, base string) string {
	if root == "" {
		return base
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(base, root)
	}
	return filepath.Clean(root)
}
