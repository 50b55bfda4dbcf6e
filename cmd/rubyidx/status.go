package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/rubyidx/internal/core"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/indexing"
	"github.com/standardbeagle/rubyidx/internal/version"
	"github.com/standardbeagle/rubyidx/pkg/pathutil"
)

// StatusReport is the JSON form of the index and status commands
type StatusReport struct {
	Version     string                   `json:"version"`
	Workspace   indexing.WorkspaceStatus `json:"workspace"`
	Index       core.Stats               `json:"index"`
	Diagnostics []idxerrors.Diagnostic   `json:"diagnostics,omitempty"`
}

// maxListedDiagnostics bounds the diagnostics printed without --verbose
const maxListedDiagnostics = 20

func indexCommand(c *cli.Context) error {
	return report(c, false)
}

func statusCommand(c *cli.Context) error {
	return report(c, true)
}

func report(c *cli.Context, withDiagnostics bool) error {
	ws, err := buildWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	stats, err := ws.Index().Stats()
	if err != nil {
		return err
	}
	rep := StatusReport{
		Version:   version.Version,
		Workspace: ws.Status(),
		Index:     stats,
	}
	if withDiagnostics {
		rep.Diagnostics = ws.Index().Diagnostics()
		if !c.Bool("verbose") && len(rep.Diagnostics) > maxListedDiagnostics {
			rep.Diagnostics = rep.Diagnostics[:maxListedDiagnostics]
		}
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, rep)
	}
	printReport(c.App.Writer, rep)
	return nil
}

func printReport(out io.Writer, rep StatusReport) {
	fmt.Fprintf(out, "Indexed %s: %d files, %d entries, %d names in %v\n",
		rep.Workspace.Root, rep.Index.Files, rep.Index.Entries, rep.Index.Names,
		rep.Workspace.Elapsed.Round(time.Millisecond))
	for _, kind := range slices.Sorted(maps.Keys(rep.Index.ByKind)) {
		fmt.Fprintf(out, "  %-18s %d\n", kind, rep.Index.ByKind[kind])
	}
	if rep.Index.Diagnostics == 0 {
		return
	}
	fmt.Fprintf(out, "Diagnostics: %d\n", rep.Index.Diagnostics)
	for _, d := range rep.Diagnostics {
		d.Path = pathutil.ToRelative(d.Path, rep.Workspace.Root)
		fmt.Fprintf(out, "  %s\n", d)
	}
	if hidden := rep.Index.Diagnostics - len(rep.Diagnostics); hidden > 0 && len(rep.Diagnostics) > 0 {
		fmt.Fprintf(out, "  ... %d more (use --verbose)\n", hidden)
	}
}
