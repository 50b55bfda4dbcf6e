package indexing

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/rubyidx/internal/config"
	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
)

// Scanner computes the set of files to index: the Ruby sources under the
// project root and under each dependency root, filtered by the configured
// globs and dependency names
type Scanner struct {
	cfg *config.Config
}

// NewScanner creates a scanner for cfg
func NewScanner(cfg *config.Config) *Scanner {
	return &Scanner{cfg: cfg}
}

// Roots returns the project root followed by the dependency roots
func (s *Scanner) Roots() []string {
	return append([]string{s.cfg.Project.Root}, s.cfg.Index.DependencyPaths...)
}

// Scan walks every root and returns the matching files, sorted and
// de-duplicated. Unreadable directories are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	files, _, err := s.ScanReport(ctx)
	return files, err
}

// ScanReport is Scan that also returns an unreadable diagnostic for every
// path the walk had to skip
func (s *Scanner) ScanReport(ctx context.Context) ([]string, []idxerrors.Diagnostic, error) {
	var out []string
	var skipped []idxerrors.Diagnostic
	for i, root := range s.Roots() {
		w := &walk{scanner: s, root: root, dependency: i > 0, visited: make(map[string]bool)}
		if err := w.dir(ctx, root); err != nil {
			return nil, nil, err
		}
		out = append(out, w.files...)
		skipped = append(skipped, w.skipped...)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	debug.LogIndexing("scan found %d files under %d roots (%d skipped)", len(out), len(s.Roots()), len(skipped))
	return out, skipped, nil
}

// ShouldIndex reports whether path, an absolute file path, belongs to the
// file set. Used by the watcher, which sees files one at a time.
func (s *Scanner) ShouldIndex(path string) bool {
	for i, root := range s.Roots() {
		rel, ok := relative(root, path)
		if !ok {
			continue
		}
		if i > 0 && !s.dependencyAllowed(strings.SplitN(rel, "/", 2)[0]) {
			return false
		}
		return s.matchFile(rel)
	}
	return false
}

// InRoots reports whether path lies under one of the roots
func (s *Scanner) InRoots(path string) bool {
	for _, root := range s.Roots() {
		if _, ok := relative(root, path); ok || path == root {
			return true
		}
	}
	return false
}

// matchFile applies the include and exclude globs to a slash-separated
// path relative to its root
func (s *Scanner) matchFile(rel string) bool {
	if s.excluded(rel) {
		return false
	}
	includes := s.cfg.Include
	if len(includes) == 0 {
		includes = config.DefaultIncludes()
	}
	for _, pattern := range includes {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// excludedDir prunes a directory when an exclusion covers everything in it
func (s *Scanner) excludedDir(rel string) bool {
	return s.excluded(rel) || s.excluded(rel+"/")
}

// dependencyAllowed filters the top-level directories of a dependency
// root (one per gem) by name
func (s *Scanner) dependencyAllowed(dirName string) bool {
	name := GemName(dirName)
	if len(s.cfg.IncludedNames) > 0 && !slices.Contains(s.cfg.IncludedNames, name) {
		return false
	}
	return !slices.Contains(s.cfg.ExcludedNames, name)
}

// GemName strips the version suffix of an installed gem directory:
// "rack-3.0.8" and "nokogiri-1.16.0-x86_64-linux" become "rack" and
// "nokogiri"
func GemName(dir string) string {
	for i := 0; i < len(dir)-1; i++ {
		if dir[i] == '-' && dir[i+1] >= '0' && dir[i+1] <= '9' {
			return dir[:i]
		}
	}
	return dir
}

type walk struct {
	scanner    *Scanner
	root       string
	dependency bool
	visited    map[string]bool
	files      []string
	skipped    []idxerrors.Diagnostic

	trackDirs bool
	dirList   []string
}

// dirs walks root and returns every directory that was entered,
// root first
func (w *walk) dirs(ctx context.Context, root string) ([]string, error) {
	w.trackDirs = true
	if err := w.dir(ctx, root); err != nil {
		return nil, err
	}
	return w.dirList, nil
}

// dir walks dir through its resolved path so that linked roots are
// entered too. Reported paths stay under dir.
func (w *walk) dir(ctx context.Context, dir string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			debug.LogIndexing("skipping missing root %s", dir)
		} else {
			w.skip(dir, err)
		}
		return nil
	}
	if w.visited[real] {
		return nil
	}
	w.visited[real] = true
	if w.trackDirs {
		w.dirList = append(w.dirList, dir)
	}

	return filepath.WalkDir(real, func(p string, d fs.DirEntry, err error) error {
		path := dir + p[len(real):]
		if err != nil {
			w.skip(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == real {
			return nil
		}

		rel, _ := relative(w.root, path)
		if d.Type()&fs.ModeSymlink != 0 {
			return w.symlink(ctx, path, rel)
		}
		if d.IsDir() {
			if w.visited[p] {
				return filepath.SkipDir
			}
			w.visited[p] = true
			if err := w.enterDir(rel); err != nil {
				return err
			}
			if w.trackDirs {
				w.dirList = append(w.dirList, path)
			}
			return nil
		}
		return w.file(path, rel, d)
	})
}

func (w *walk) skip(path string, err error) {
	log.Printf("Warning: skipping %s: %v", path, err)
	w.skipped = append(w.skipped, idxerrors.FromError(path, idxerrors.NewFileError("walk", path, err)))
}

func (w *walk) enterDir(rel string) error {
	if w.dependency && !strings.Contains(rel, "/") && !w.scanner.dependencyAllowed(rel) {
		return filepath.SkipDir
	}
	if w.scanner.excludedDir(rel) {
		return filepath.SkipDir
	}
	return nil
}

func (w *walk) file(path, rel string, d fs.DirEntry) error {
	if w.dependency && !strings.Contains(rel, "/") {
		return nil // loose files next to installed gems
	}
	if !w.scanner.matchFile(rel) {
		return nil
	}
	if limit := w.scanner.cfg.Index.MaxFileSize; limit > 0 {
		info, err := d.Info()
		if err != nil || info.Size() > limit {
			debug.LogIndexing("skipping %s: over size limit or unreadable", path)
			return nil
		}
	}
	w.files = append(w.files, path)
	return nil
}

// symlink follows links when configured. Directory links are walked with
// the cycle guard; their files keep paths under the link.
func (w *walk) symlink(ctx context.Context, path, rel string) error {
	if !w.scanner.cfg.Index.FollowSymlinks {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return w.file(path, rel, fs.FileInfoToDirEntry(info))
	}
	if w.enterDir(rel) != nil {
		return nil
	}
	return w.dir(ctx, path)
}

// relative returns path relative to root with forward slashes
func relative(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
