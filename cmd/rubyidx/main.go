package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/rubyidx/internal/config"
	"github.com/standardbeagle/rubyidx/internal/debug"
	"github.com/standardbeagle/rubyidx/internal/indexing"
	"github.com/standardbeagle/rubyidx/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	jsonFlag := &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}

	return &cli.App{
		Name:                   "rubyidx",
		Usage:                  "Workspace symbol index for Ruby projects",
		Version:                version.FullInfo(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); discovered from the project root when empty",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (detected from the working directory when empty)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Index only files matching glob patterns (e.g., --include 'app/**/*.rb')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude 'spec/**')",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a file under the temp dir",
			},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool("debug-log") {
				return nil
			}
			path, err := debug.InitDebugLogFile()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Index the workspace and print statistics",
				Flags:  []cli.Flag{jsonFlag},
				Action: indexCommand,
			},
			{
				Name:      "ancestors",
				Aliases:   []string{"a"},
				Usage:     "Print the ancestor chain of a class or module",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "nesting", Aliases: []string{"n"}, Usage: "Lexical nesting the name is written in (e.g., Foo::Bar)"},
				},
				Action: ancestorsCommand,
			},
			{
				Name:      "constant",
				Aliases:   []string{"const"},
				Usage:     "Resolve a constant reference",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "nesting", Aliases: []string{"n"}, Usage: "Lexical nesting of the reference (e.g., Foo::Bar)"},
				},
				Action: constantCommand,
			},
			{
				Name:      "method",
				Aliases:   []string{"m"},
				Usage:     "Resolve the definition a method call reaches",
				ArgsUsage: "RECEIVER NAME",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "visibility", Aliases: []string{"v"}, Usage: "Call-site visibility: public, protected or private", Value: "public"},
				},
				Action: methodCommand,
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search declarations by name prefix, falling back to fuzzy matches",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.IntFlag{Name: "max", Usage: "Maximum results (0 = configured default)"},
					&cli.BoolFlag{Name: "lsp", Usage: "Answer as an LSP workspace/symbol request"},
				},
				Action: searchCommand,
			},
			{
				Name:      "complete",
				Usage:     "List completion candidates: methods of a receiver, or constants visible from a nesting",
				ArgsUsage: "[PREFIX]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "receiver", Usage: "Complete methods callable on this class or module"},
					&cli.StringFlag{Name: "nesting", Aliases: []string{"n"}, Usage: "Lexical nesting for constant completion (e.g., Foo::Bar)"},
					&cli.StringFlag{Name: "visibility", Aliases: []string{"v"}, Usage: "Call-site visibility for method completion", Value: "public"},
				},
				Action: completeCommand,
			},
			{
				Name:      "symbols",
				Usage:     "List the declarations of a file, or those enclosing a position",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.UintFlag{Name: "line", Usage: "Zero-based line of the position"},
					&cli.UintFlag{Name: "character", Usage: "Zero-based UTF-16 column of the position"},
				},
				Action: symbolsCommand,
			},
			{
				Name:    "status",
				Aliases: []string{"st"},
				Usage:   "Index the workspace and report entry counts and diagnostics",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "List every diagnostic"},
				},
				Action: statusCommand,
			},
			{
				Name:   "watch",
				Usage:  "Index the workspace and keep it current until interrupted",
				Action: watchCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the index to MCP clients over stdio",
				Action: serveCommand,
			},
		},
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		detected, marker, err := indexing.FindProjectRoot("")
		if err != nil {
			return nil, fmt.Errorf("no project root found (use --root): %w", err)
		}
		debug.LogIndexing("project root %s (found %s)", detected, marker)
		root = detected
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.LoadWithRoot(c.String("config"), absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildWorkspace loads the configuration and indexes the workspace. The
// caller closes the returned workspace.
func buildWorkspace(c *cli.Context) (*indexing.Workspace, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	ws := indexing.OpenWorkspace(cfg)
	if err := ws.Build(c.Context); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return ws, nil
}
