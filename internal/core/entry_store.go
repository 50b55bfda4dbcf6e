package core

import (
	"slices"

	"github.com/standardbeagle/rubyidx/internal/types"
)

// EntryStore keeps entries in a flat array with secondary indexes by
// qualified name and by file. A name maps to many entries because
// namespaces are reopened freely.
//
// Instead of: map[EntryKey]Entry
// We use:     []Entry (data) + map[EntryKey]int (index)
//
// NOTE: EntryStore assumes the caller holds appropriate locks. It is used
// inside Index, which serializes writers and admits readers through its
// RWMutex.
type EntryStore struct {
	data []types.Entry

	// EntryKey → array index
	index map[types.EntryKey]int

	// array index → EntryKey, for swap-and-delete
	reverseIndex []types.EntryKey

	// insertion ordered keys per qualified name and per file
	byName map[string][]types.EntryKey
	byFile map[string][]types.EntryKey
}

// NewEntryStore creates an EntryStore with pre-allocated capacity
func NewEntryStore(expectedSize int) *EntryStore {
	return &EntryStore{
		data:         make([]types.Entry, 0, expectedSize),
		index:        make(map[types.EntryKey]int, expectedSize),
		reverseIndex: make([]types.EntryKey, 0, expectedSize),
		byName:       make(map[string][]types.EntryKey),
		byFile:       make(map[string][]types.EntryKey),
	}
}

// Get retrieves an entry by key, nil if absent
func (s *EntryStore) Get(key types.EntryKey) types.Entry {
	idx, ok := s.index[key]
	if !ok {
		return nil
	}
	return s.data[idx]
}

// Set inserts an entry. Inserting an entry whose key is already present
// replaces it in place and returns false.
func (s *EntryStore) Set(e types.Entry) bool {
	key := types.KeyOf(e)
	if idx, ok := s.index[key]; ok {
		s.data[idx] = e
		return false
	}

	s.index[key] = len(s.data)
	s.data = append(s.data, e)
	s.reverseIndex = append(s.reverseIndex, key)
	s.byName[key.QualifiedName] = append(s.byName[key.QualifiedName], key)
	s.byFile[key.FilePath] = append(s.byFile[key.FilePath], key)
	return true
}

// Delete removes an entry by key. Returns false if it was not present.
func (s *EntryStore) Delete(key types.EntryKey) bool {
	idx, ok := s.index[key]
	if !ok {
		return false
	}

	// move the last element into the hole
	lastIdx := len(s.data) - 1
	lastKey := s.reverseIndex[lastIdx]
	s.data[idx] = s.data[lastIdx]
	s.reverseIndex[idx] = lastKey
	s.index[lastKey] = idx

	s.data[lastIdx] = nil
	s.data = s.data[:lastIdx]
	s.reverseIndex = s.reverseIndex[:lastIdx]
	delete(s.index, key)

	s.byName[key.QualifiedName] = removeKey(s.byName[key.QualifiedName], key)
	if len(s.byName[key.QualifiedName]) == 0 {
		delete(s.byName, key.QualifiedName)
	}
	s.byFile[key.FilePath] = removeKey(s.byFile[key.FilePath], key)
	if len(s.byFile[key.FilePath]) == 0 {
		delete(s.byFile, key.FilePath)
	}
	return true
}

func removeKey(keys []types.EntryKey, key types.EntryKey) []types.EntryKey {
	if i := slices.Index(keys, key); i >= 0 {
		return slices.Delete(keys, i, i+1)
	}
	return keys
}

// ByName returns the entries declared under a qualified name in insertion
// order
func (s *EntryStore) ByName(name string) []types.Entry {
	return s.collect(s.byName[name])
}

// ByFile returns the entries a file contributed in insertion order
func (s *EntryStore) ByFile(path string) []types.Entry {
	return s.collect(s.byFile[path])
}

func (s *EntryStore) collect(keys []types.EntryKey) []types.Entry {
	if len(keys) == 0 {
		return nil
	}
	out := make([]types.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.data[s.index[k]])
	}
	return out
}

// HasName reports whether any entry is declared under name
func (s *EntryStore) HasName(name string) bool {
	return len(s.byName[name]) > 0
}

// Files returns the indexed file paths, sorted
func (s *EntryStore) Files() []string {
	files := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Size returns the number of entries in the store
func (s *EntryStore) Size() int {
	return len(s.data)
}

// Range calls fn for every entry until fn returns false. Order is unstable
// across deletions.
func (s *EntryStore) Range(fn func(types.Entry) bool) {
	for _, e := range s.data {
		if !fn(e) {
			return
		}
	}
}

// Clear removes all entries but keeps allocated capacity
func (s *EntryStore) Clear() {
	clear(s.data)
	s.data = s.data[:0]
	s.reverseIndex = s.reverseIndex[:0]
	clear(s.index)
	clear(s.byName)
	clear(s.byFile)
}
