package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/rubyidx/internal/debug"
	"github.com/standardbeagle/rubyidx/internal/indexing"
	"github.com/standardbeagle/rubyidx/internal/mcp"
)

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	cfg.Index.WatchMode = true

	ws := indexing.OpenWorkspace(cfg)
	defer ws.Close()
	if err := ws.Build(ctx); err != nil {
		return err
	}
	if err := ws.Watch(); err != nil {
		return err
	}

	status := ws.Status()
	fmt.Fprintf(c.App.Writer, "Indexed %d files in %v; watching %s (Ctrl+C to stop)\n",
		status.Files, status.Elapsed, status.Root)
	<-ctx.Done()

	if stats, ok := ws.WatchStats(); ok {
		fmt.Fprintf(c.App.Writer, "Processed %d file events (%d errors)\n", stats.EventsProcessed, stats.ErrorCount)
	}
	return nil
}

// serveCommand serves MCP over stdio. Stdout belongs to the protocol, so
// every log line goes to the diagnostic log file.
func serveCommand(c *cli.Context) error {
	debug.SetMCPMode(true)
	logger := mcp.NewDiagnosticLogger(true)
	defer logger.Close()
	if path := logger.FilePath(); path != "" {
		fmt.Fprintf(c.App.ErrWriter, "rubyidx: MCP diagnostics in %s\n", path)
	}
	log.SetOutput(logger.Writer())
	if debug.IsDebugEnabled() {
		debug.SetDebugOutput(logger.Writer())
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		logger.Printf("Configuration error: %v", err)
		return err
	}
	ws := indexing.OpenWorkspace(cfg)
	defer ws.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = mcp.NewServer(ws, logger).Start(ctx)
	if err != nil && ctx.Err() != nil {
		logger.Printf("Shutting down: %v", context.Cause(ctx))
		return nil
	}
	return err
}
