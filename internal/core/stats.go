package core

import (
	"github.com/standardbeagle/rubyidx/internal/types"
)

// Stats summarizes the index contents
type Stats struct {
	Built           bool           `json:"built"`
	Files           int            `json:"files"`
	Entries         int            `json:"entries"`
	Names           int            `json:"names"`
	ByKind          map[string]int `json:"byKind"`
	CachedAncestors int            `json:"cachedAncestors"`
	Diagnostics     int            `json:"diagnostics"`
	Generation      uint64         `json:"generation"`
	Build           BuildStatus    `json:"build"`
}

// Stats returns a summary of the index. It works before the first build.
func (ix *Index) Stats() (Stats, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return Stats{}, ErrClosed
	}

	byKind := make(map[string]int)
	ix.store.Range(func(e types.Entry) bool {
		byKind[e.Kind().String()]++
		return true
	})
	return Stats{
		Built:           ix.built,
		Files:           len(ix.store.byFile),
		Entries:         ix.store.Size(),
		Names:           ix.names.Len(),
		ByKind:          byKind,
		CachedAncestors: ix.ancestors.Cached(),
		Diagnostics:     ix.diags.Len(),
		Generation:      ix.generation,
		Build:           ix.build.Snapshot(),
	}, nil
}

// BuildState returns the rebuild progress tracker shared with the
// indexing service
func (ix *Index) BuildState() *BuildState {
	return ix.build
}
