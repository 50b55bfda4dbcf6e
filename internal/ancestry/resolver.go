// Package ancestry computes linearized ancestor chains for namespaces and
// resolves constant references against them.
//
// The resolver never owns entries. It reads them through a Graph, which the
// index store implements over its name-keyed map, and keeps only the
// memoized linearizations plus the reverse-dependency index used to evict
// them when entries change.
package ancestry

import (
	"slices"
	"sync"

	"github.com/standardbeagle/rubyidx/internal/debug"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// Graph is the read-only view of indexed entries the resolver works on
type Graph interface {
	// Lookup returns every entry declared with the exact qualified name
	Lookup(qualifiedName string) []types.Entry
}

// Resolver memoizes linearizations. It is safe for concurrent readers as
// long as Invalidate is not called concurrently with them; the index store
// calls Invalidate under its write lock.
type Resolver struct {
	graph Graph

	mu         sync.Mutex
	memo       map[string][]string
	dependents map[string]map[string]struct{} // dependency key -> namespaces
	dependsOn  map[string][]string            // namespace -> dependency keys
}

// New creates a resolver over graph
func New(graph Graph) *Resolver {
	return &Resolver{
		graph:      graph,
		memo:       make(map[string][]string),
		dependents: make(map[string]map[string]struct{}),
		dependsOn:  make(map[string][]string),
	}
}

// Ancestors returns the linearized ancestors of a namespace, the namespace
// itself first. It returns nil when the name does not denote a namespace
// known to the index.
func (r *Resolver) Ancestors(qualifiedName string) []string {
	if cached, ok := r.cached(qualifiedName); ok {
		return slices.Clone(cached)
	}
	st := newWalk()
	result := r.linearize(qualifiedName, st, false)
	return slices.Clone(result.ancestors)
}

func (r *Resolver) cached(name string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.memo[name]
	return a, ok
}

func (r *Resolver) store(name string, ancestors []string, deps map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memo[name]; ok {
		return
	}
	r.memo[name] = ancestors
	keys := make([]string, 0, len(deps))
	for key := range deps {
		set := r.dependents[key]
		if set == nil {
			set = make(map[string]struct{})
			r.dependents[key] = set
		}
		set[name] = struct{}{}
		keys = append(keys, key)
	}
	r.dependsOn[name] = keys
}

// Invalidate evicts the memoized linearizations affected by a change to the
// given names, following the reverse-dependency index transitively. Each
// name evicts its own linearization, its dependents, and the dependents of
// its last segment (which may now win a constant lookup that resolved
// elsewhere before). Returns the number of evicted linearizations.
func (r *Resolver) Invalidate(names ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	queue := make([]string, 0, len(names)*2)
	for _, n := range names {
		attached, _ := types.AttachedName(n)
		queue = append(queue, n, types.LastSegment(n), attached)
	}
	seen := make(map[string]struct{})
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if r.evictLocked(key) {
			evicted++
		}
		for dependent := range r.dependents[key] {
			if r.evictLocked(dependent) {
				evicted++
			}
			queue = append(queue, dependent)
		}
	}
	if evicted > 0 {
		debug.Log("ANCESTRY", "invalidated %d linearizations for %v", evicted, names)
	}
	return evicted
}

func (r *Resolver) evictLocked(name string) bool {
	if _, ok := r.memo[name]; !ok {
		return false
	}
	delete(r.memo, name)
	for _, key := range r.dependsOn[name] {
		if set := r.dependents[key]; set != nil {
			delete(set, name)
			if len(set) == 0 {
				delete(r.dependents, key)
			}
		}
	}
	delete(r.dependsOn, name)
	return true
}

// Reset drops every memoized linearization
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo = make(map[string][]string)
	r.dependents = make(map[string]map[string]struct{})
	r.dependsOn = make(map[string][]string)
}

// Cached returns the number of memoized linearizations
func (r *Resolver) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memo)
}

// IsCached reports whether the linearization of name is memoized
func (r *Resolver) IsCached(name string) bool {
	_, ok := r.cached(name)
	return ok
}
