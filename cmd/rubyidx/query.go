package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.lsp.dev/protocol"

	"github.com/standardbeagle/rubyidx/internal/indexing"
	"github.com/standardbeagle/rubyidx/internal/lspconv"
	"github.com/standardbeagle/rubyidx/internal/mcp"
	"github.com/standardbeagle/rubyidx/internal/types"
	"github.com/standardbeagle/rubyidx/pkg/pathutil"
)

func ancestorsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: rubyidx ancestors NAME [--nesting Foo::Bar]")
	}
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	ix := ws.Index()
	name := c.Args().First()
	if resolved, ok := ix.ResolveNamespace(name, types.SplitName(c.String("nesting"))); ok {
		name = resolved
	}
	ancestors, err := ix.AncestorsOf(name)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		return writeJSON(out, mcp.QueryResponse{Ready: true, Resolved: name, Ancestors: ancestors, Entries: []mcp.EntryView{}})
	}
	if len(ancestors) == 0 {
		fmt.Fprintf(out, "No namespace named %s\n", name)
		return nil
	}
	for _, a := range ancestors {
		fmt.Fprintln(out, a)
	}
	return nil
}

func constantCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: rubyidx constant NAME [--nesting Foo::Bar]")
	}
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	entries, err := ws.Index().ResolveConstant(c.Args().First(), types.SplitName(c.String("nesting")))
	if err != nil {
		return err
	}
	return printEntries(c, ws, entries)
}

func methodCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: rubyidx method RECEIVER NAME [--visibility public]")
	}
	visibility, ok := types.ParseVisibility(c.String("visibility"))
	if !ok {
		return fmt.Errorf("unknown visibility %q: use public, protected or private", c.String("visibility"))
	}
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	entries, err := ws.Index().ResolveMethod(c.Args().Get(0), c.Args().Get(1), visibility)
	if err != nil {
		return err
	}
	return printEntries(c, ws, entries)
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: rubyidx search QUERY [--max N]")
	}
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	limit := c.Int("max")
	if limit <= 0 {
		limit = ws.Config().Search.MaxResults
	}
	if c.Bool("lsp") {
		symbols, err := lspconv.WorkspaceSymbols(ws.Index(), ws.Service(), c.Args().First(), limit)
		if err != nil {
			return err
		}
		return printSymbols(c, ws.Config().Project.Root, symbols)
	}
	ix := ws.Index()
	names, err := ix.FuzzySearch(c.Args().First())
	if err != nil {
		return err
	}

	var found []types.Entry
	for name := range names {
		entries, err := ix.Entries(name)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Kind() != types.KindUnresolvedAlias && len(found) < limit {
				found = append(found, e)
			}
		}
		if len(found) >= limit {
			break
		}
	}

	if c.Bool("json") {
		symbols := mcp.Views(ix, ws.Service(), found, false)
		return writeJSON(c.App.Writer, mcp.SymbolsResponse{
			Ready:   true,
			Query:   c.Args().First(),
			Showing: len(symbols),
			Symbols: symbols,
		})
	}
	return printEntries(c, ws, found)
}

// printEntries writes one line per entry, or the entry views as JSON
func printEntries(c *cli.Context, ws *indexing.Workspace, entries []types.Entry) error {
	views := mcp.Views(ws.Index(), ws.Service(), entries, c.Bool("json"))
	out := c.App.Writer
	if c.Bool("json") {
		resp := mcp.QueryResponse{Ready: true, Entries: views}
		if len(entries) > 0 {
			resp.Resolved = entries[0].Decl().QualifiedName
		}
		return writeJSON(out, resp)
	}
	if len(views) == 0 {
		fmt.Fprintln(out, "No matches")
		return nil
	}
	root := ws.Config().Project.Root
	for _, v := range views {
		v.File = pathutil.ToRelative(v.File, root)
		fmt.Fprintln(out, formatView(v))
	}
	return nil
}

// formatView renders "file:line:col  kind  Name(sig)"
func formatView(v mcp.EntryView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d\t%s\t%s", v.File, v.Line, v.Column, v.Kind, v.QualifiedName)
	if v.Signature != "" {
		b.WriteString(v.Signature)
	}
	switch {
	case v.Superclass != "":
		fmt.Fprintf(&b, " < %s", v.Superclass)
	case v.Target != "":
		fmt.Fprintf(&b, " -> %s", v.Target)
	}
	if v.Visibility != "" && v.Visibility != types.Public.String() {
		fmt.Fprintf(&b, " (%s)", v.Visibility)
	}
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func completeCommand(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("usage: rubyidx complete [--receiver Foo | --nesting Foo::Bar] [PREFIX]")
	}
	visibility, ok := types.ParseVisibility(c.String("visibility"))
	if !ok {
		return fmt.Errorf("unknown visibility %q: use public, protected or private", c.String("visibility"))
	}
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	items, err := lspconv.Completions(ws.Index(), ws.Service(), c.String("receiver"), c.Args().First(),
		types.SplitName(c.String("nesting")), visibility)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(c.App.Writer, "No matches")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", it.Label, it.Detail)
	}
	return nil
}

// symbolsCommand resolves a relative FILE against the project root
func symbolsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: rubyidx symbols FILE [--line N --character N]")
	}
	if c.IsSet("line") != c.IsSet("character") {
		return fmt.Errorf("--line and --character must be given together")
	}
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	path := c.Args().First()
	if !filepath.IsAbs(path) {
		path = filepath.Join(ws.Config().Project.Root, path)
	}
	var at *protocol.Position
	if c.IsSet("line") {
		at = &protocol.Position{Line: uint32(c.Uint("line")), Character: uint32(c.Uint("character"))}
	}

	symbols, err := lspconv.DocumentSymbols(ws.Index(), ws.Service(), path, at)
	if err != nil {
		return err
	}
	return printSymbols(c, ws.Config().Project.Root, symbols)
}

// printSymbols writes LSP symbol information as JSON or one line each
func printSymbols(c *cli.Context, root string, symbols []protocol.SymbolInformation) error {
	if c.Bool("json") {
		return writeJSON(c.App.Writer, symbols)
	}
	if len(symbols) == 0 {
		fmt.Fprintln(c.App.Writer, "No matches")
		return nil
	}
	for _, s := range symbols {
		start := s.Location.Range.Start
		fmt.Fprintf(c.App.Writer, "%s:%d:%d\t%v\t%s\n",
			pathutil.ToRelative(lspconv.Path(s.Location.URI), root), start.Line+1, start.Character+1, s.Kind, s.Name)
	}
	return nil
}
