// Package prefixtree implements the case-insensitive name index used for
// workspace symbol search. Names are stored once in a trie keyed by their
// lowercased runes; lookups return lazily generated, alphabetically ordered
// sequences.
package prefixtree

import (
	"iter"
	"slices"
	"strings"
	"unicode"
)

type node struct {
	keys     []rune // sorted child keys
	children map[rune]*node
	names    []string // original-case names ending at this node, sorted
	count    int      // names stored in this subtree
}

func newNode() *node {
	return &node{}
}

func (n *node) child(r rune) *node {
	if n.children == nil {
		return nil
	}
	return n.children[r]
}

func (n *node) ensureChild(r rune) *node {
	if c := n.child(r); c != nil {
		return c
	}
	if n.children == nil {
		n.children = make(map[rune]*node)
	}
	c := newNode()
	n.children[r] = c
	i, _ := slices.BinarySearch(n.keys, r)
	n.keys = slices.Insert(n.keys, i, r)
	return c
}

func (n *node) removeChild(r rune) {
	delete(n.children, r)
	if i, found := slices.BinarySearch(n.keys, r); found {
		n.keys = slices.Delete(n.keys, i, i+1)
	}
}

// Tree is a case-insensitive trie of qualified names. It is not safe for
// concurrent mutation; callers serialize writes and hold a read lock while
// consuming a sequence.
type Tree struct {
	root    *node
	options options
}

// New creates an empty tree
func New(opts ...Option) *Tree {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Tree{root: newNode(), options: o}
}

func fold(s string) []rune {
	return []rune(strings.ToLower(s))
}

// Insert adds a name. Inserting a name already present is a no-op.
func (t *Tree) Insert(name string) {
	if name == "" || t.Contains(name) {
		return
	}
	path := []*node{t.root}
	n := t.root
	for _, r := range fold(name) {
		n = n.ensureChild(r)
		path = append(path, n)
	}
	i, _ := slices.BinarySearch(n.names, name)
	n.names = slices.Insert(n.names, i, name)
	for _, p := range path {
		p.count++
	}
}

// Delete removes a name. Deleting an absent name is a no-op.
func (t *Tree) Delete(name string) {
	if name == "" {
		return
	}
	key := fold(name)
	path := make([]*node, 0, len(key)+1)
	path = append(path, t.root)
	n := t.root
	for _, r := range key {
		if n = n.child(r); n == nil {
			return
		}
		path = append(path, n)
	}
	i, found := slices.BinarySearch(n.names, name)
	if !found {
		return
	}
	n.names = slices.Delete(n.names, i, i+1)
	for _, p := range path {
		p.count--
	}
	// prune empty branches bottom-up
	for d := len(path) - 1; d > 0; d-- {
		if path[d].count > 0 {
			break
		}
		path[d-1].removeChild(key[d-1])
	}
}

// Contains reports whether the exact name is stored
func (t *Tree) Contains(name string) bool {
	n := t.find(fold(name))
	if n == nil {
		return false
	}
	_, found := slices.BinarySearch(n.names, name)
	return found
}

// Len returns the number of stored names
func (t *Tree) Len() int {
	return t.root.count
}

// Clear drops every name
func (t *Tree) Clear() {
	t.root = newNode()
}

func (t *Tree) find(key []rune) *node {
	n := t.root
	for _, r := range key {
		if n = n.child(r); n == nil {
			return nil
		}
	}
	return n
}

// Prefix yields every name starting with prefix, compared case-insensitively,
// in case-folded alphabetical order. The sequence can be ranged over more
// than once.
func (t *Tree) Prefix(prefix string) iter.Seq[string] {
	key := fold(prefix)
	return func(yield func(string) bool) {
		n := t.find(key)
		if n == nil {
			return
		}
		walk(n, yield)
	}
}

// walk does a pre-order traversal in key order. Returns false when the
// consumer stopped early.
func walk(n *node, yield func(string) bool) bool {
	for _, name := range n.names {
		if !yield(name) {
			return false
		}
	}
	for _, r := range n.keys {
		if !walk(n.children[r], yield) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether at least one name starts with prefix
func (t *Tree) HasPrefix(prefix string) bool {
	n := t.find(fold(prefix))
	return n != nil && n.count > 0
}

// Search yields the prefix matches of query. When there are none it falls
// back to the fuzzy pass, and when that is empty too, to the stemmed word
// pass.
func (t *Tree) Search(query string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if t.HasPrefix(query) {
			for name := range t.Prefix(query) {
				if !yield(name) {
					return
				}
			}
			return
		}
		if !t.options.fuzzy {
			return
		}
		matches := t.Fuzzy(query)
		if len(matches) == 0 && t.options.stemming {
			matches = t.Stemmed(query)
		}
		for _, m := range matches {
			if !yield(m.Name) {
				return
			}
		}
	}
}

// isSubsequence reports whether every rune of q appears in s in order
func isSubsequence(q, s []rune) bool {
	if len(q) == 0 {
		return true
	}
	i := 0
	for _, r := range s {
		if r == q[i] {
			i++
			if i == len(q) {
				return true
			}
		}
	}
	return false
}

// normalize drops the separator noise a user rarely types ("::", "#")
func normalize(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range strings.ToLower(s) {
		if r == ':' || r == '#' || unicode.IsSpace(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
