// Package lspconv converts index entries into the LSP shapes returned by
// feature handlers: locations, symbol information and completion items.
package lspconv

import (
	"bytes"
	"errors"
	"slices"
	"unicode/utf8"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/standardbeagle/rubyidx/internal/core"
	"github.com/standardbeagle/rubyidx/internal/debug"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// URI returns the document URI of a file path
func URI(path string) protocol.DocumentURI {
	return protocol.DocumentURI(uri.File(path))
}

// Path returns the file path of a document URI
func Path(u protocol.DocumentURI) string {
	return uri.URI(u).Filename()
}

// SymbolKind maps an entry kind to its LSP symbol kind
func SymbolKind(k types.Kind) protocol.SymbolKind {
	switch k {
	case types.KindClass, types.KindSingletonClass:
		return protocol.SymbolKindClass
	case types.KindModule:
		return protocol.SymbolKindModule
	case types.KindMethod, types.KindMethodAlias:
		return protocol.SymbolKindMethod
	case types.KindAccessor:
		return protocol.SymbolKindProperty
	case types.KindConstant, types.KindConstantAlias:
		return protocol.SymbolKindConstant
	case types.KindGlobalVariable:
		return protocol.SymbolKindVariable
	}
	return protocol.SymbolKindNull
}

// CompletionKind maps an entry kind to its LSP completion item kind
func CompletionKind(k types.Kind) protocol.CompletionItemKind {
	switch k {
	case types.KindClass, types.KindSingletonClass:
		return protocol.CompletionItemKindClass
	case types.KindModule:
		return protocol.CompletionItemKindModule
	case types.KindMethod, types.KindMethodAlias:
		return protocol.CompletionItemKindMethod
	case types.KindAccessor:
		return protocol.CompletionItemKindProperty
	case types.KindConstant, types.KindConstantAlias, types.KindUnresolvedAlias:
		return protocol.CompletionItemKindConstant
	case types.KindGlobalVariable:
		return protocol.CompletionItemKindVariable
	}
	return protocol.CompletionItemKindText
}

// Converter turns entries into LSP values. Entry columns are byte
// offsets while LSP counts UTF-16 code units, so lines holding non-ASCII
// text are read from the content source. A Converter caches file lines
// and is meant for a single request.
type Converter struct {
	src   core.ContentSource
	lines map[string][][]byte
}

// NewConverter creates a converter reading files through src. A nil src
// passes byte columns through unchanged.
func NewConverter(src core.ContentSource) *Converter {
	return &Converter{src: src, lines: make(map[string][][]byte)}
}

// Location returns where e is declared
func (c *Converter) Location(e types.Entry) protocol.Location {
	d := e.Decl()
	return protocol.Location{URI: URI(d.FilePath), Range: c.Range(d.FilePath, d.Range)}
}

// Range converts a declaration range of path
func (c *Converter) Range(path string, r types.Range) protocol.Range {
	return protocol.Range{
		Start: c.Position(path, r.Start),
		End:   c.Position(path, r.End),
	}
}

// Position converts a byte-column position of path
func (c *Converter) Position(path string, p types.Position) protocol.Position {
	col := p.Column
	if line := c.line(path, p.Line); line != nil {
		col = utf16Column(line, p.Column)
	}
	return protocol.Position{Line: uint32(max(p.Line, 0)), Character: uint32(max(col, 0))}
}

// Offset converts an LSP position of path into a byte-column position
func (c *Converter) Offset(path string, p protocol.Position) types.Position {
	col := int(p.Character)
	if line := c.line(path, int(p.Line)); line != nil {
		col = byteColumn(line, col)
	}
	return types.Position{Line: int(p.Line), Column: col}
}

func (c *Converter) line(path string, n int) []byte {
	if c.src == nil || n < 0 {
		return nil
	}
	lines, ok := c.lines[path]
	if !ok {
		content, err := c.src.Content(path)
		if err != nil {
			debug.LogLSP("no content for %s: %v", path, err)
		}
		lines = bytes.Split(content, []byte("\n"))
		c.lines[path] = lines
	}
	if n >= len(lines) {
		return nil
	}
	return lines[n]
}

// SymbolInformation describes e for workspace symbol results
func (c *Converter) SymbolInformation(e types.Entry) protocol.SymbolInformation {
	return protocol.SymbolInformation{
		Name:          displayName(e),
		Kind:          SymbolKind(e.Kind()),
		Location:      c.Location(e),
		ContainerName: container(e),
	}
}

// CompletionItem describes e as a completion candidate
func (c *Converter) CompletionItem(e types.Entry, doc string) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label:  e.Decl().Name,
		Kind:   CompletionKind(e.Kind()),
		Detail: detail(e),
	}
	if doc != "" {
		item.Documentation = protocol.MarkupContent{Kind: protocol.Markdown, Value: doc}
	}
	return item
}

// WorkspaceSymbols answers a workspace/symbol request: every entry under
// the names FuzzySearch yields for query, up to limit symbols (0 means no
// limit). An index that is not built yet answers with no symbols.
func WorkspaceSymbols(ix *core.Index, src core.ContentSource, query string, limit int) ([]protocol.SymbolInformation, error) {
	names, err := ix.FuzzySearch(query)
	if errors.Is(err, core.ErrNotBuilt) {
		return []protocol.SymbolInformation{}, nil
	}
	if err != nil {
		return nil, err
	}

	c := NewConverter(src)
	out := []protocol.SymbolInformation{}
	for name := range names {
		entries, err := ix.Entries(name)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Kind() == types.KindUnresolvedAlias {
				continue
			}
			out = append(out, c.SymbolInformation(e))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	debug.LogLSP("workspace symbols %q: %d results", query, len(out))
	return out, nil
}

func displayName(e types.Entry) string {
	d := e.Decl()
	if e.Kind().IsMember() {
		return d.Name
	}
	return d.QualifiedName
}

func container(e types.Entry) string {
	d := e.Decl()
	if owner, _, ok := types.SplitMemberName(d.QualifiedName); ok {
		return owner
	}
	return types.ParentName(d.QualifiedName)
}

func detail(e types.Entry) string {
	switch v := e.(type) {
	case *types.Method:
		return v.QualifiedName + types.FormatSignature(v.Parameters)
	case *types.MethodAlias:
		return v.QualifiedName + types.FormatSignature(v.Parameters)
	case *types.Class:
		if v.Superclass != "" {
			return v.QualifiedName + " < " + v.Superclass
		}
	}
	return e.Decl().QualifiedName
}

// utf16Column converts a byte offset within line to UTF-16 code units
func utf16Column(line []byte, byteCol int) int {
	byteCol = min(byteCol, len(line))
	units := 0
	for i := 0; i < byteCol; {
		r, size := utf8.DecodeRune(line[i:])
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		i += size
	}
	return units
}

// byteColumn converts a UTF-16 column within line to a byte offset
func byteColumn(line []byte, units int) int {
	i := 0
	for i < len(line) && units > 0 {
		r, size := utf8.DecodeRune(line[i:])
		if r >= 0x10000 {
			units -= 2
		} else {
			units--
		}
		i += size
	}
	return i
}

// Completions answers a completion request. With a receiver it offers the
// methods callable on it, otherwise the constants visible from nesting.
// Documentation is attached to every item.
func Completions(ix *core.Index, src core.ContentSource, receiver, prefix string, nesting []string, visibility types.Visibility) ([]protocol.CompletionItem, error) {
	var entries []types.Entry
	var err error
	if receiver != "" {
		entries, err = ix.MethodCandidates(receiver, prefix, visibility)
	} else {
		entries, err = ix.ConstantCandidates(prefix, nesting)
	}
	if errors.Is(err, core.ErrNotBuilt) {
		return []protocol.CompletionItem{}, nil
	}
	if err != nil {
		return nil, err
	}

	c := NewConverter(src)
	out := make([]protocol.CompletionItem, 0, len(entries))
	for _, e := range entries {
		doc, _ := ix.Documentation(e)
		out = append(out, c.CompletionItem(e, doc))
	}
	debug.LogLSP("completion %q on %q: %d items", prefix, receiver, len(out))
	return out, nil
}

// DocumentSymbols lists the declarations of one file in source order. When
// at is set only the declarations whose range encloses that position are
// returned, outermost first.
func DocumentSymbols(ix *core.Index, src core.ContentSource, path string, at *protocol.Position) ([]protocol.SymbolInformation, error) {
	entries, err := ix.EntriesInFile(path)
	if errors.Is(err, core.ErrNotBuilt) {
		return []protocol.SymbolInformation{}, nil
	}
	if err != nil {
		return nil, err
	}

	c := NewConverter(src)
	slices.SortStableFunc(entries, func(a, b types.Entry) int {
		ra, rb := a.Decl().Range, b.Decl().Range
		switch {
		case ra.Start.Less(rb.Start):
			return -1
		case rb.Start.Less(ra.Start):
			return 1
		case rb.End.Less(ra.End):
			return -1
		case ra.End.Less(rb.End):
			return 1
		}
		return 0
	})

	out := []protocol.SymbolInformation{}
	for _, e := range entries {
		if e.Kind() == types.KindUnresolvedAlias {
			continue
		}
		if at != nil && !e.Decl().Range.Contains(c.Offset(path, *at)) {
			continue
		}
		out = append(out, c.SymbolInformation(e))
	}
	return out, nil
}
