// Package mcp exposes the workspace index to MCP clients: tools resolving
// ancestors, constants and methods, searching and completing symbols,
// listing a file's declarations and reporting the index status.
package mcp

import (
	"context"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/rubyidx/internal/indexing"
	"github.com/standardbeagle/rubyidx/internal/version"
)

// Server serves one workspace over MCP
type Server struct {
	ws     *indexing.Workspace
	server *mcp.Server
	logger *DiagnosticLogger

	wg sync.WaitGroup
}

// NewServer creates a server answering from ws. A nil logger logs to
// stderr.
func NewServer(ws *indexing.Workspace, logger *DiagnosticLogger) *Server {
	if logger == nil {
		logger = NewDiagnosticLogger(false)
	}
	s := &Server{
		ws:     ws,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "rubyidx",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	nesting := &jsonschema.Schema{
		Description: "Lexical nesting, outermost first: a constant path (\"Foo::Bar\") or an array of names",
		Types:       []string{"string", "array"},
		Items:       &jsonschema.Schema{Type: "string"},
	}

	s.server.AddTool(&mcp.Tool{
		Name:        "ancestors",
		Description: "Linearized ancestor chain (method resolution order) of a class or module, most specific first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Class or module name, qualified or relative to nesting",
				},
				"nesting": nesting,
			},
			Required: []string{"name"},
		},
	}, s.handleAncestors)

	s.server.AddTool(&mcp.Tool{
		Name:        "resolve_constant",
		Description: "Resolve a constant reference the way Ruby does: enclosing scopes innermost first, then ancestors of the innermost namespace, then the top level.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Constant reference as written, e.g. \"Baz\" or \"Foo::Baz\"",
				},
				"nesting": nesting,
			},
			Required: []string{"name"},
		},
	}, s.handleResolveConstant)

	s.server.AddTool(&mcp.Tool{
		Name:        "resolve_method",
		Description: "Find the definition a method call reaches by walking the receiver's ancestors.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"receiver": {
					Type:        "string",
					Description: "Qualified name of the receiver's class or module",
				},
				"method": {
					Type:        "string",
					Description: "Method name",
				},
				"visibility": {
					Type:        "string",
					Description: "Call-site visibility: public (explicit receiver), protected or private (implicit self)",
					Enum:        []any{"public", "protected", "private"},
				},
			},
			Required: []string{"receiver", "method"},
		},
	}, s.handleResolveMethod)

	s.server.AddTool(&mcp.Tool{
		Name:        "workspace_symbols",
		Description: "Search declarations by name: prefix matches first, then fuzzy matches.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Name prefix or fuzzy query",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum results (default from configuration)",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleWorkspaceSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "complete",
		Description: "Completion candidates: methods callable on a receiver, or constants visible from a nesting when no receiver is given.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prefix": {
					Type:        "string",
					Description: "Typed prefix of the method or constant name (may be empty)",
				},
				"receiver": {
					Type:        "string",
					Description: "Qualified name of the receiver's class or module",
				},
				"nesting": nesting,
				"visibility": {
					Type:        "string",
					Description: "Call-site visibility for method candidates",
					Enum:        []any{"public", "protected", "private"},
				},
				"max": {
					Type:        "integer",
					Description: "Maximum items (default from configuration)",
				},
			},
		},
	}, s.handleComplete)

	s.server.AddTool(&mcp.Tool{
		Name:        "file_symbols",
		Description: "Declarations of one file in source order, or only those enclosing a position.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "File URI, absolute path or path relative to the project root",
				},
				"line": {
					Type:        "integer",
					Description: "Zero-based line of the position",
				},
				"character": {
					Type:        "integer",
					Description: "Zero-based UTF-16 column of the position",
				},
			},
			Required: []string{"file"},
		},
	}, s.handleFileSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_status",
		Description: "Build progress, entry counts and diagnostics of the workspace index.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleIndexStatus)
}

// Start indexes the workspace in the background and serves MCP over stdio
// until ctx is done
func (s *Server) Start(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run indexes the workspace in the background and serves MCP on transport
// until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.autoIndex(ctx)
	}()

	s.logger.Printf("Serving %s over MCP", s.ws.Config().Project.Root)
	return s.server.Run(ctx, transport)
}

// autoIndex builds the index, then keeps it current with the watcher
func (s *Server) autoIndex(ctx context.Context) {
	s.logger.Printf("Starting auto-indexing for %s", s.ws.Config().Project.Root)
	if err := s.ws.Build(ctx); err != nil {
		s.logger.Printf("Auto-indexing stopped: %v", err)
		return
	}
	status := s.ws.Status()
	s.logger.Printf("Auto-indexing completed: %d files in %v", status.Files, status.Elapsed)
	if err := s.ws.Watch(); err != nil {
		s.logger.Printf("File watching unavailable: %v", err)
	}
}
