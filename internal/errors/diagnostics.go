package errors

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DiagnosticKind classifies a recoverable input problem
type DiagnosticKind string

const (
	DiagnosticUnreadable   DiagnosticKind = "unreadable"
	DiagnosticSyntax       DiagnosticKind = "syntax"
	DiagnosticDynamicPath  DiagnosticKind = "dynamic_namespace"
	DiagnosticFileTooLarge DiagnosticKind = "file_too_large"
	DiagnosticEnhancement  DiagnosticKind = "enhancement"
)

// Diagnostic is a problem that was recovered from by skipping a unit of
// work. Line and Column are 1-based; zero means the whole file.
type Diagnostic struct {
	Path    string
	Line    int
	Column  int
	Kind    DiagnosticKind
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s: %s", d.Path, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Path, d.Line, d.Column, d.Kind, d.Message)
}

// FromError converts an error recorded while indexing path into a diagnostic
func FromError(path string, err error) Diagnostic {
	d := Diagnostic{Path: path, Kind: DiagnosticUnreadable, Message: err.Error()}
	var pe *ParseError
	var fe *FileError
	switch {
	case As(err, &pe):
		d.Kind, d.Line, d.Column = DiagnosticSyntax, pe.Line, pe.Column
	case As(err, &fe) && fe.Type == ErrorTypeFileTooLarge:
		d.Kind = DiagnosticFileTooLarge
	}
	return d
}

// Diagnostics records diagnostics per file. Recording a file's diagnostics
// replaces whatever was recorded for it before, so a reindex clears stale
// problems. Safe for concurrent use.
type Diagnostics struct {
	mu     sync.RWMutex
	byFile map[string][]Diagnostic
}

// NewDiagnostics creates an empty recorder
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{byFile: make(map[string][]Diagnostic)}
}

// Set replaces the diagnostics of path. An empty list clears them.
func (d *Diagnostics) Set(path string, diags []Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(diags) == 0 {
		delete(d.byFile, path)
		return
	}
	d.byFile[path] = slices.Clone(diags)
}

// Add appends one diagnostic for path
func (d *Diagnostics) Add(diag Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byFile[diag.Path] = append(d.byFile[diag.Path], diag)
}

// Clear drops the diagnostics of path
func (d *Diagnostics) Clear(path string) {
	d.Set(path, nil)
}

// Reset drops every diagnostic
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byFile = make(map[string][]Diagnostic)
}

// For returns the diagnostics recorded for path
func (d *Diagnostics) For(path string) []Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.byFile[path])
}

// All returns every diagnostic ordered by path, then position
func (d *Diagnostics) All() []Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Diagnostic
	for _, diags := range d.byFile {
		out = append(out, diags...)
	}
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Column - b.Column
	})
	return out
}

// Len returns the total number of recorded diagnostics
func (d *Diagnostics) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, diags := range d.byFile {
		n += len(diags)
	}
	return n
}
