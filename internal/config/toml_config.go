package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LoadTOML loads .rubyidx.toml from projectRoot. It returns nil, nil when
// the file does not exist.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, tomlFileName)
	content, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tomlFileName, err)
	}

	cfg, err := parseTOML(content, projectRoot)
	if err != nil {
		return nil, err
	}
	cfg.Project.Root = absoluteRoot(cfg.Project.Root, projectRoot)
	return cfg, nil
}

// parseTOML decodes over the defaults so absent keys keep their default
func parseTOML(content []byte, defaultRoot string) (*Config, error) {
	cfg := Default(defaultRoot)
	cfg.Project.Root = ""
	cfg.Project.Name = ""

	if err := toml.Unmarshal(content, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse TOML config at %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return cfg, nil
}
