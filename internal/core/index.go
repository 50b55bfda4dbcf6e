// Package core holds the workspace symbol index: the entry store, its
// name and file indexes, the prefix tree used for symbol search and the
// ancestor resolver, all kept consistent under one lock.
package core

import (
	"errors"
	"iter"
	"os"
	"slices"
	"sync"

	"github.com/standardbeagle/rubyidx/internal/ancestry"
	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/prefixtree"
	"github.com/standardbeagle/rubyidx/internal/types"
)

var (
	// ErrNotBuilt is returned by queries made before anything was indexed.
	// It indicates a caller that skipped the initial build.
	ErrNotBuilt = errors.New("index has not been built")

	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("index is closed")
)

// ContentSource supplies file contents for documentation lookups
type ContentSource interface {
	Content(path string) ([]byte, error)
}

// ContentFunc adapts a function to ContentSource
type ContentFunc func(path string) ([]byte, error)

// Content calls f
func (f ContentFunc) Content(path string) ([]byte, error) { return f(path) }

var diskContent = ContentFunc(os.ReadFile)

// Option configures an Index
type Option func(*Index)

// WithContentSource sets where documentation comments are read from
func WithContentSource(src ContentSource) Option {
	return func(ix *Index) { ix.content = src }
}

// WithSearchOptions configures the prefix tree behind FuzzySearch
func WithSearchOptions(opts ...prefixtree.Option) Option {
	return func(ix *Index) { ix.searchOpts = append(ix.searchOpts, opts...) }
}

// WithExpectedSize pre-allocates room for n entries
func WithExpectedSize(n int) Option {
	return func(ix *Index) { ix.expected = n }
}

// Index is the workspace symbol index. One Index serves one workspace; it
// is safe for concurrent use. Mutations are expected from a single writer
// (see indexing.Writer) but are serialized here regardless.
type Index struct {
	mu        sync.RWMutex
	store     *EntryStore
	names     *prefixtree.Tree
	ancestors *ancestry.Resolver
	diags     *idxerrors.Diagnostics
	build     *BuildState

	content    ContentSource
	searchOpts []prefixtree.Option
	expected   int

	built      bool
	closed     bool
	generation uint64
}

// storeGraph exposes the store to the ancestor resolver. Lookups run
// while the Index lock is held by the caller.
type storeGraph struct {
	store *EntryStore
}

func (g storeGraph) Lookup(name string) []types.Entry {
	return g.store.ByName(name)
}

// New creates an empty index
func New(opts ...Option) *Index {
	ix := &Index{content: diskContent, expected: 1024}
	for _, opt := range opts {
		opt(ix)
	}
	ix.store = NewEntryStore(ix.expected)
	ix.names = prefixtree.New(ix.searchOpts...)
	ix.ancestors = ancestry.New(storeGraph{ix.store})
	ix.diags = idxerrors.NewDiagnostics()
	ix.build = NewBuildState()
	return ix
}

// Close releases the index. Every later call fails with ErrClosed.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.store.Clear()
	ix.names.Clear()
	ix.ancestors.Reset()
	ix.diags.Reset()
	return nil
}

// ReindexFile atomically replaces everything path contributed with entries
// and diags. Entries are stamped with path. Cached linearizations that
// depended on a namespace the file declared before or declares now are
// evicted before the lock is released.
func (ix *Index) ReindexFile(path string, entries []types.Entry, diags []idxerrors.Diagnostic) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}

	touched := make(map[string]struct{})
	removed := ix.deleteFileLocked(path, touched)

	added := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		d := e.Decl()
		d.FilePath = path
		if ix.store.Set(e) {
			added++
		}
		ix.names.Insert(d.QualifiedName)
		noteTouched(e, touched)
	}

	evicted := ix.invalidateLocked(touched)
	ix.diags.Set(path, diags)
	ix.built = true
	ix.generation++
	debug.LogIndexing("reindexed %s: -%d +%d entries, %d linearizations evicted", path, removed, added, evicted)
	return nil
}

// RemoveFile drops everything path contributed
func (ix *Index) RemoveFile(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}

	touched := make(map[string]struct{})
	removed := ix.deleteFileLocked(path, touched)
	evicted := ix.invalidateLocked(touched)
	ix.diags.Clear(path)
	ix.generation++
	debug.LogIndexing("removed %s: -%d entries, %d linearizations evicted", path, removed, evicted)
	return nil
}

func (ix *Index) deleteFileLocked(path string, touched map[string]struct{}) int {
	old := ix.store.ByFile(path)
	for _, e := range old {
		name := e.Decl().QualifiedName
		ix.store.Delete(types.KeyOf(e))
		if !ix.store.HasName(name) {
			ix.names.Delete(name)
		}
		noteTouched(e, touched)
	}
	return len(old)
}

func (ix *Index) invalidateLocked(touched map[string]struct{}) int {
	if len(touched) == 0 {
		return 0
	}
	names := make([]string, 0, len(touched))
	for n := range touched {
		names = append(names, n)
	}
	slices.Sort(names)
	return ix.ancestors.Invalidate(names...)
}

// noteTouched records names whose entries take part in ancestor or
// constant resolution. Members never do.
func noteTouched(e types.Entry, touched map[string]struct{}) {
	switch v := e.(type) {
	case types.NamespaceEntry, *types.Constant, *types.ConstantAlias:
		touched[e.Decl().QualifiedName] = struct{}{}
	case *types.UnresolvedAlias:
		if v.AliasOf == types.AliasConstant {
			touched[v.QualifiedName] = struct{}{}
		}
	}
}

// Clear drops every entry, diagnostic and cached linearization. It does
// not reset the built state: queries during a full rebuild see a partial
// index rather than failing.
func (ix *Index) Clear() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	ix.store.Clear()
	ix.names.Clear()
	ix.ancestors.Reset()
	ix.diags.Reset()
	ix.generation++
	return nil
}

// MarkBuilt flags the index as built even if no file contributed entries
// (an empty workspace)
func (ix *Index) MarkBuilt() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.built = true
}

// Built reports whether the index has been built at least once
func (ix *Index) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// readable checks the query preconditions. Callers hold the read lock.
func (ix *Index) readable() error {
	if ix.closed {
		return ErrClosed
	}
	if !ix.built {
		return ErrNotBuilt
	}
	return nil
}

// Entries returns every entry declared under a qualified name
func (ix *Index) Entries(qualifiedName string) ([]types.Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}
	return ix.store.ByName(qualifiedName), nil
}

// EntriesInFile returns the entries a file contributed
func (ix *Index) EntriesInFile(path string) ([]types.Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}
	return ix.store.ByFile(path), nil
}

// Files returns the sorted paths of every file with entries
func (ix *Index) Files() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil
	}
	return ix.store.Files()
}

// All iterates over a snapshot of every entry
func (ix *Index) All() iter.Seq[types.Entry] {
	ix.mu.RLock()
	snapshot := make([]types.Entry, 0, ix.store.Size())
	ix.store.Range(func(e types.Entry) bool {
		snapshot = append(snapshot, e)
		return true
	})
	ix.mu.RUnlock()
	return slices.Values(snapshot)
}

// Diagnostics returns the recoverable input errors recorded for every file
func (ix *Index) Diagnostics() []idxerrors.Diagnostic {
	return ix.diags.All()
}

// FileDiagnostics returns the diagnostics of one file
func (ix *Index) FileDiagnostics(path string) []idxerrors.Diagnostic {
	return ix.diags.For(path)
}

// RecordDiagnostic adds a diagnostic for a file that contributed no
// entries, such as one that could not be read
func (ix *Index) RecordDiagnostic(d idxerrors.Diagnostic) {
	ix.diags.Add(d)
}

// ResolveNamespace resolves a constant path to the namespace it names.
// It lets the extractor anchor "class A::B" against the existing index.
func (ix *Index) ResolveNamespace(name string, nesting []string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return "", false
	}
	return ix.ancestors.ResolveNamespace(name, nesting)
}
