package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// GitignorePattern is one parsed .gitignore line
type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool // trailing slash: matches directories only
	Anchored  bool // leading or inner slash: relative to the .gitignore directory
}

// ParseGitignoreLine parses a .gitignore line. Blank lines and comments
// report false.
func ParseGitignoreLine(line string) (GitignorePattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return GitignorePattern{}, false
	}

	var p GitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") {
		p.Anchored = true
	}
	p.Pattern = line
	return p, line != ""
}

// Globs converts the pattern into doublestar exclusion globs
func (p GitignorePattern) Globs() []string {
	prefix := "**/"
	if p.Anchored || strings.HasPrefix(p.Pattern, "**/") {
		prefix = ""
	}
	if p.Directory {
		return []string{prefix + p.Pattern + "/**"}
	}
	return []string{prefix + p.Pattern, prefix + p.Pattern + "/**"}
}

// LoadGitignore reads <root>/.gitignore and returns its patterns as
// doublestar exclusions. Negated patterns are dropped since exclusions
// cannot re-include. A missing file yields no patterns.
func LoadGitignore(root string) ([]string, error) {
	file, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var exclusions []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		p, ok := ParseGitignoreLine(scanner.Text())
		if !ok || p.Negate {
			continue
		}
		exclusions = append(exclusions, p.Globs()...)
	}
	return exclusions, scanner.Err()
}
