package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return idxerrors.NewConfigError("project", cfg.Project.Root, err)
	}
	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return idxerrors.NewConfigError("index", "", err)
	}
	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return idxerrors.NewConfigError("performance", "", err)
	}
	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return idxerrors.NewConfigError("search", "", err)
	}
	for _, group := range []struct {
		field    string
		patterns []string
	}{{"include", cfg.Include}, {"exclude", cfg.Exclude}} {
		for _, p := range group.patterns {
			if !doublestar.ValidatePattern(p) {
				return idxerrors.NewConfigError(group.field, p, errors.New("malformed glob pattern"))
			}
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if index.MaxFileSize < 0 {
		return fmt.Errorf("MaxFileSize cannot be negative, got %d", index.MaxFileSize)
	}
	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", index.WatchDebounceMs)
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// 0 means auto-detect for all three
	if perf.ParallelFileWorkers < 0 {
		return fmt.Errorf("ParallelFileWorkers cannot be negative, got %d", perf.ParallelFileWorkers)
	}
	if perf.RebuildChunkSize < 0 {
		return fmt.Errorf("RebuildChunkSize cannot be negative, got %d", perf.RebuildChunkSize)
	}
	if perf.IndexingTimeoutSec < 0 {
		return fmt.Errorf("IndexingTimeoutSec cannot be negative, got %d", perf.IndexingTimeoutSec)
	}
	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.MaxResults < 0 {
		return fmt.Errorf("MaxResults cannot be negative, got %d", search.MaxResults)
	}
	if search.FuzzyThreshold < 0 || search.FuzzyThreshold > 1 {
		return fmt.Errorf("FuzzyThreshold must be between 0 and 1, got %v", search.FuzzyThreshold)
	}
	return nil
}

// setSmartDefaults fills auto-detected values
func (v *Validator) setSmartDefaults(cfg *Config) {
	// cores-1 leaves one core for the editor
	if cfg.Performance.ParallelFileWorkers == 0 {
		cfg.Performance.ParallelFileWorkers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Performance.RebuildChunkSize == 0 {
		cfg.Performance.RebuildChunkSize = DefaultRebuildChunkSize
	}
	if cfg.Performance.IndexingTimeoutSec == 0 {
		cfg.Performance.IndexingTimeoutSec = DefaultIndexingTimeoutSec
	}
	if cfg.Index.MaxFileSize == 0 {
		cfg.Index.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Index.WatchDebounceMs == 0 {
		cfg.Index.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultIncludes()
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
