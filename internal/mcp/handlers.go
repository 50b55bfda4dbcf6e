package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.lsp.dev/protocol"

	"github.com/standardbeagle/rubyidx/internal/core"
	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/indexing"
	"github.com/standardbeagle/rubyidx/internal/lspconv"
	"github.com/standardbeagle/rubyidx/internal/types"
	"github.com/standardbeagle/rubyidx/internal/version"
)

// EntryView is the JSON shape of an entry in tool results. Line and
// Column are 1-based.
type EntryView struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	File          string `json:"file"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	Visibility    string `json:"visibility,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Superclass    string `json:"superclass,omitempty"`
	Signature     string `json:"signature,omitempty"`
	Target        string `json:"target,omitempty"`
	Doc           string `json:"doc,omitempty"`
}

// QueryResponse is returned by the resolution tools. Ready is false while
// the first build has not produced an index; results are then empty.
type QueryResponse struct {
	Ready     bool        `json:"ready"`
	Resolved  string      `json:"resolved,omitempty"`
	Ancestors []string    `json:"ancestors,omitempty"`
	Entries   []EntryView `json:"entries"`
}

// SymbolsResponse is returned by workspace_symbols
type SymbolsResponse struct {
	Ready   bool        `json:"ready"`
	Query   string      `json:"query"`
	Showing int         `json:"showing"`
	Symbols []EntryView `json:"symbols"`
}

// StatusResponse is returned by index_status
type StatusResponse struct {
	Version     string                   `json:"version"`
	BuildID     string                   `json:"build_id"`
	Workspace   indexing.WorkspaceStatus `json:"workspace"`
	Index       core.Stats               `json:"index"`
	Watch       *indexing.WatchStats     `json:"watch,omitempty"`
	Diagnostics []idxerrors.Diagnostic   `json:"diagnostics,omitempty"`
}

// maxStatusDiagnostics bounds the diagnostics listed by index_status
const maxStatusDiagnostics = 50

func (s *Server) handleAncestors(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p AncestorsParams
	if err := parseArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("ancestors", err, `Use: {"name": "Foo::Bar", "nesting": "Foo"}`)
	}
	if err := requireField("name", p.Name); err != nil {
		return createErrorResponse("ancestors", err, `Use: {"name": "Foo::Bar"}`)
	}
	debug.LogMCP("ancestors %s in %v", p.Name, p.Nesting)

	ix := s.ws.Index()
	name := p.Name
	if resolved, ok := ix.ResolveNamespace(p.Name, p.Nesting); ok {
		name = resolved
	}
	ancestors, err := ix.AncestorsOf(name)
	if errors.Is(err, core.ErrNotBuilt) {
		return createJSONResponse(QueryResponse{Entries: []EntryView{}})
	}
	if err != nil {
		return createErrorResponse("ancestors", err, "")
	}
	return createJSONResponse(QueryResponse{
		Ready:     true,
		Resolved:  name,
		Ancestors: ancestors,
		Entries:   []EntryView{},
	})
}

func (s *Server) handleResolveConstant(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ResolveConstantParams
	if err := parseArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("resolve_constant", err, `Use: {"name": "Baz", "nesting": ["Foo", "Bar"]}`)
	}
	if err := requireField("name", p.Name); err != nil {
		return createErrorResponse("resolve_constant", err, `Use: {"name": "Baz", "nesting": "Foo::Bar"}`)
	}
	debug.LogMCP("resolve_constant %s in %v", p.Name, p.Nesting)

	entries, err := s.ws.Index().ResolveConstant(p.Name, p.Nesting)
	return s.entriesResponse("resolve_constant", entries, err)
}

func (s *Server) handleResolveMethod(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ResolveMethodParams
	if err := parseArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("resolve_method", err, `Use: {"receiver": "Foo", "method": "bar"}`)
	}
	if err := errors.Join(requireField("receiver", p.Receiver), requireField("method", p.Method)); err != nil {
		return createErrorResponse("resolve_method", err, `Use: {"receiver": "Foo", "method": "bar"}`)
	}
	visibility, err := parseVisibility(p.Visibility)
	if err != nil {
		return createErrorResponse("resolve_method", err, "visibility is one of public, protected, private")
	}
	debug.LogMCP("resolve_method %s#%s (%s)", p.Receiver, p.Method, visibility)

	entries, err := s.ws.Index().ResolveMethod(p.Receiver, p.Method, visibility)
	return s.entriesResponse("resolve_method", entries, err)
}

func (s *Server) entriesResponse(operation string, entries []types.Entry, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, core.ErrNotBuilt) {
		return createJSONResponse(QueryResponse{Entries: []EntryView{}})
	}
	if err != nil {
		return createErrorResponse(operation, err, "")
	}
	resp := QueryResponse{Ready: true, Entries: s.views(entries, true)}
	if len(entries) > 0 {
		resp.Resolved = entries[0].Decl().QualifiedName
	}
	return createJSONResponse(resp)
}

func (s *Server) handleWorkspaceSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p WorkspaceSymbolsParams
	if err := parseArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("workspace_symbols", err, `Use: {"query": "User", "max": 20}`)
	}
	if err := requireField("query", p.Query); err != nil {
		return createErrorResponse("workspace_symbols", err, `Use: {"query": "User"}`)
	}
	limit := p.Max
	if limit <= 0 {
		limit = s.ws.Config().Search.MaxResults
	}
	debug.LogMCP("workspace_symbols %q (max %d)", p.Query, limit)

	ix := s.ws.Index()
	names, err := ix.FuzzySearch(p.Query)
	if errors.Is(err, core.ErrNotBuilt) {
		return createJSONResponse(SymbolsResponse{Query: p.Query, Symbols: []EntryView{}})
	}
	if err != nil {
		return createErrorResponse("workspace_symbols", err, "")
	}

	var found []types.Entry
collect:
	for name := range names {
		entries, err := ix.Entries(name)
		if err != nil {
			return createErrorResponse("workspace_symbols", err, "")
		}
		for _, e := range entries {
			if e.Kind() == types.KindUnresolvedAlias {
				continue
			}
			found = append(found, e)
			if limit > 0 && len(found) >= limit {
				break collect
			}
		}
	}
	symbols := s.views(found, false)
	return createJSONResponse(SymbolsResponse{Ready: true, Query: p.Query, Showing: len(symbols), Symbols: symbols})
}

func (s *Server) handleIndexStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.ws.Index().Stats()
	if err != nil {
		return createErrorResponse("index_status", err, "")
	}
	resp := StatusResponse{
		Version:   version.FullInfo(),
		BuildID:   version.BuildID(),
		Workspace: s.ws.Status(),
		Index:     stats,
	}
	if watch, ok := s.ws.WatchStats(); ok {
		resp.Watch = &watch
	}
	diags := s.ws.Index().Diagnostics()
	resp.Diagnostics = diags[:min(len(diags), maxStatusDiagnostics)]
	return createJSONResponse(resp)
}

func (s *Server) views(entries []types.Entry, withDocs bool) []EntryView {
	return Views(s.ws.Index(), s.ws.Service(), entries, withDocs)
}

// Views converts entries for display, reading positions through src and
// documentation from ix when withDocs is set
func Views(ix *core.Index, src core.ContentSource, entries []types.Entry, withDocs bool) []EntryView {
	conv := lspconv.NewConverter(src)
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		d := e.Decl()
		pos := conv.Position(d.FilePath, d.Range.Start)
		v := EntryView{
			Name:          d.Name,
			QualifiedName: d.QualifiedName,
			Kind:          e.Kind().String(),
			File:          d.FilePath,
			Line:          int(pos.Line) + 1,
			Column:        int(pos.Character) + 1,
		}
		switch x := e.(type) {
		case *types.Class:
			v.Superclass = x.Superclass
		case *types.Method:
			v.Owner, v.Signature = x.Owner, types.FormatSignature(x.Parameters)
		case *types.Accessor:
			v.Owner = x.Owner
		case *types.MethodAlias:
			v.Owner, v.Signature, v.Target = x.Owner, types.FormatSignature(x.Parameters), x.Target
		case *types.ConstantAlias:
			v.Target = x.Target
		case *types.UnresolvedAlias:
			v.Target = x.Target
		}
		if e.Kind().IsMember() || e.Kind().IsConstantLike() {
			v.Visibility = d.Visibility.String()
		}
		if withDocs {
			if doc, err := ix.Documentation(e); err == nil {
				v.Doc = doc
			}
		}
		out = append(out, v)
	}
	return out
}

// CompletionResponse is returned by complete
type CompletionResponse struct {
	Ready bool                      `json:"ready"`
	Items []protocol.CompletionItem `json:"items"`
}

// FileSymbolsResponse is returned by file_symbols
type FileSymbolsResponse struct {
	Ready   bool                         `json:"ready"`
	File    string                       `json:"file"`
	Symbols []protocol.SymbolInformation `json:"symbols"`
}

func (s *Server) handleComplete(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p CompleteParams
	if err := parseArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("complete", err, `Use: {"receiver": "Foo", "prefix": "sa"} or {"prefix": "Ba", "nesting": "Foo"}`)
	}
	visibility, err := parseVisibility(p.Visibility)
	if err != nil {
		return createErrorResponse("complete", err, "visibility is one of public, protected, private")
	}
	debug.LogMCP("complete %q on %q in %v", p.Prefix, p.Receiver, p.Nesting)

	ix := s.ws.Index()
	items, err := lspconv.Completions(ix, s.ws.Service(), p.Receiver, p.Prefix, p.Nesting, visibility)
	if err != nil {
		return createErrorResponse("complete", err, "")
	}
	limit := p.Max
	if limit <= 0 {
		limit = s.ws.Config().Search.MaxResults
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return createJSONResponse(CompletionResponse{Ready: ix.Built(), Items: items})
}

func (s *Server) handleFileSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p FileSymbolsParams
	if err := parseArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("file_symbols", err, `Use: {"file": "app/models/user.rb", "line": 4, "character": 6}`)
	}
	if err := requireField("file", p.File); err != nil {
		return createErrorResponse("file_symbols", err, `Use: {"file": "app/models/user.rb"}`)
	}
	if (p.Line == nil) != (p.Character == nil) {
		return createErrorResponse("file_symbols", fmt.Errorf("line and character must be given together"), "")
	}

	path := s.resolveFile(p.File)
	var at *protocol.Position
	if p.Line != nil {
		at = &protocol.Position{Line: *p.Line, Character: *p.Character}
	}
	debug.LogMCP("file_symbols %s at %v", path, at)

	ix := s.ws.Index()
	symbols, err := lspconv.DocumentSymbols(ix, s.ws.Service(), path, at)
	if err != nil {
		return createErrorResponse("file_symbols", err, "")
	}
	return createJSONResponse(FileSymbolsResponse{Ready: ix.Built(), File: path, Symbols: symbols})
}

// resolveFile accepts a file URI, an absolute path or a path relative to
// the project root
func (s *Server) resolveFile(file string) string {
	switch {
	case strings.HasPrefix(file, "file://"):
		return lspconv.Path(protocol.DocumentURI(file))
	case filepath.IsAbs(file):
		return filepath.Clean(file)
	}
	return filepath.Join(s.ws.Config().Project.Root, file)
}
