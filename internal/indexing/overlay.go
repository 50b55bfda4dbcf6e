package indexing

import (
	"os"
	"slices"
	"sync"
)

// Overlay holds the unsaved text of open documents. Reads fall back to
// disk for files that are not open, so it serves as the content source of
// both the indexing service and documentation lookups.
type Overlay struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewOverlay creates an empty overlay
func NewOverlay() *Overlay {
	return &Overlay{docs: make(map[string][]byte)}
}

// Set records the current text of an open document. The overlay keeps its
// own copy.
func (o *Overlay) Set(path string, content []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.docs[path] = slices.Clone(content)
}

// Delete forgets a closed document
func (o *Overlay) Delete(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.docs, path)
}

// Get returns the overlay text of an open document
func (o *Overlay) Get(path string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	content, ok := o.docs[path]
	return content, ok
}

// Open returns the paths of open documents, sorted
func (o *Overlay) Open() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	paths := make([]string, 0, len(o.docs))
	for p := range o.docs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Content returns the overlay text when the document is open and the file
// on disk otherwise. Callers must not modify the result.
func (o *Overlay) Content(path string) ([]byte, error) {
	if content, ok := o.Get(path); ok {
		return content, nil
	}
	return os.ReadFile(path)
}
