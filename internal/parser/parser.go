// Package parser turns Ruby source into tree-sitter syntax trees. Parsers
// are pooled since a tree-sitter parser is not safe for concurrent use.
package parser

import (
	"errors"
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
)

// ErrNoTree is returned when tree-sitter produced no tree at all, which only
// happens when parsing was aborted
var ErrNoTree = errors.New("parser: no syntax tree produced")

var (
	rubyLanguage     *tree_sitter.Language
	rubyLanguageOnce sync.Once
)

// Language returns the shared Ruby grammar
func Language() *tree_sitter.Language {
	rubyLanguageOnce.Do(func() {
		rubyLanguage = tree_sitter.NewLanguage(tree_sitter_ruby.Language())
	})
	return rubyLanguage
}

var parserPool = sync.Pool{
	New: func() any {
		p := tree_sitter.NewParser()
		if err := p.SetLanguage(Language()); err != nil {
			debug.Log("PARSER", "failed to load Ruby grammar: %v", err)
			p.Close()
			return nil
		}
		return p
	},
}

// Tree is a parsed file. It must be closed to release the C-side memory.
type Tree struct {
	Path   string
	Source []byte
	tree   *tree_sitter.Tree
}

// Root returns the root node
func (t *Tree) Root() *tree_sitter.Node {
	return t.tree.RootNode()
}

// HasErrors reports whether any region of the file failed to parse
func (t *Tree) HasErrors() bool {
	return t.Root().HasError()
}

// Close releases the tree
func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Parse parses Ruby source. The grammar recovers from syntax errors, so the
// returned tree covers the whole file with ERROR nodes around the regions
// it could not make sense of.
func Parse(path string, source []byte) (*Tree, error) {
	p, _ := parserPool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("parse %s: Ruby grammar unavailable", path)
	}
	defer parserPool.Put(p)

	tree := p.Parse(source, nil)
	if tree == nil {
		p.Reset()
		return nil, idxerrors.NewParseError(path, 0, 0, "", ErrNoTree)
	}
	return &Tree{Path: path, Source: source, tree: tree}, nil
}
