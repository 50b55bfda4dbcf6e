// Package extractor derives index entries from a Ruby syntax tree.
//
// Extraction is a pure function of the tree, the file path and a read-only
// view of the existing index: it never mutates the index, so it can run
// ahead of the writer (in parallel during a full rebuild) and be tested on
// its own.
package extractor

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/parser"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// Resolver is the read-only view of the existing index used to place
// namespaces opened through a qualified path ("class A::B") and exposed to
// enhancements
type Resolver interface {
	ResolveNamespace(name string, nesting []string) (string, bool)
}

// Enhancement synthesizes entries for metaprogrammed declarations. It is
// called for every method call inside a namespace body that the extractor
// does not recognize itself, whatever its receiver; CallSite.Receiver is
// empty only for calls on implicit self. Returned entries are merged into
// the file's contribution as if they had been declared statically.
type Enhancement interface {
	OnDeclarationCall(index Resolver, owner string, call CallSite, filePath string) []types.Entry
}

// EnhancementFunc adapts a function to the Enhancement interface
type EnhancementFunc func(index Resolver, owner string, call CallSite, filePath string) []types.Entry

// OnDeclarationCall calls f
func (f EnhancementFunc) OnDeclarationCall(index Resolver, owner string, call CallSite, filePath string) []types.Entry {
	return f(index, owner, call, filePath)
}

// ArgumentKind classifies a literal call argument
type ArgumentKind uint8

const (
	ArgOther ArgumentKind = iota
	ArgSymbol
	ArgString
	ArgConstant
	ArgKeyword // "key: value" pair; Key holds the key
)

// Argument is one argument of a call site with its literal value when it
// has one
type Argument struct {
	Kind  ArgumentKind
	Key   string
	Value string
}

// CallSite describes a call made directly in a namespace body
type CallSite struct {
	Name       string
	Receiver   string // source text of the receiver, empty for implicit self
	Arguments  []Argument
	Range      types.Range
	Nesting    []string
	Visibility types.Visibility // visibility in effect at the call

	// Node and Source give access to the raw syntax for enhancements that
	// need more than the literal arguments
	Node   *tree_sitter.Node
	Source []byte
}

// Symbols returns the symbol and string argument values in order
func (c CallSite) Symbols() []string {
	var out []string
	for _, a := range c.Arguments {
		if a.Kind == ArgSymbol || a.Kind == ArgString {
			out = append(out, a.Value)
		}
	}
	return out
}

// Keyword returns the literal value of a keyword argument
func (c CallSite) Keyword(key string) (string, bool) {
	for _, a := range c.Arguments {
		if a.Kind == ArgKeyword && a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Result is what one file contributes to the index
type Result struct {
	Path        string
	Entries     []types.Entry
	Diagnostics []idxerrors.Diagnostic

	// ConsultedIndex is set when the result depends on the existing index,
	// through a qualified namespace path or an enhancement lookup. Such a
	// result is only valid against the index state it was extracted from.
	ConsultedIndex bool
}

// Extractor walks syntax trees. It is safe for concurrent use.
type Extractor struct {
	resolver     Resolver
	enhancements []Enhancement
}

// Option configures an Extractor
type Option func(*Extractor)

// WithResolver sets the view of the existing index used for qualified
// namespace paths
func WithResolver(r Resolver) Option {
	return func(x *Extractor) { x.resolver = r }
}

// WithEnhancements registers enhancements, called in registration order
func WithEnhancements(e ...Enhancement) Option {
	return func(x *Extractor) { x.enhancements = append(x.enhancements, e...) }
}

// New creates an extractor
func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract returns the entries a parsed file defines, in source order.
// Malformed regions are skipped and reported as diagnostics.
func (x *Extractor) Extract(tree *parser.Tree) Result {
	w := newWalker(x, tree.Path, tree.Source)
	w.visitChildren(tree.Root())
	if tree.HasErrors() && !w.reportedSyntax() {
		if node := firstError(tree.Root()); node != nil {
			w.diagnose(node, idxerrors.DiagnosticSyntax, "syntax error")
		}
	}
	debug.LogIndexing("extracted %d entries from %s (%d diagnostics)", len(w.entries), tree.Path, len(w.diags))
	return Result{Path: tree.Path, Entries: w.entries, Diagnostics: w.diags, ConsultedIndex: w.consulted}
}

// ExtractSource parses and extracts in one step
func (x *Extractor) ExtractSource(path string, source []byte) (Result, error) {
	tree, err := parser.Parse(path, source)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("extract: %w", err)
	}
	defer tree.Close()
	return x.Extract(tree), nil
}
