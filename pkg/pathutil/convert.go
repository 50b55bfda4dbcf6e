// Package pathutil converts between the absolute paths the index stores
// and the root-relative paths shown to users.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative returns absPath relative to rootDir. Paths that are already
// relative, lie outside rootDir or cannot be converted are returned
// unchanged.
//
//   - ToRelative("/src/app/lib/user.rb", "/src/app") → "lib/user.rb"
//   - ToRelative("/gems/rack/lib/rack.rb", "/src/app") → "/gems/rack/lib/rack.rb"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rel, err := filepath.Rel(filepath.Clean(rootDir), absPath)
	if err != nil {
		return absPath
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absPath
	}
	return rel
}
