package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/rubyidx/internal/mcp"
)

func setupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Gemfile": "source 'https://rubygems.org'\n",
		"lib/shop/base.rb": `module Shop
  class Base
    # Saves the record.
    def save(validate: true)
    end

    private

    def write
    end
  end
end
`,
		"lib/shop/order.rb": `module Shop
  module Trackable
    def track; end
  end

  class Order < Base
    include Trackable
    TAX = 0.2
  end
end
`,
		"spec/order_spec.rb": "class OrderSpec; end\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// runCLI runs the app in-process and returns what it wrote to stdout
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"rubyidx"}, args...))
	return out.String(), err
}

func TestAncestorsCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "ancestors", "Shop::Order")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"Shop::Order", "Shop::Trackable", "Shop::Base", "Object", "Kernel", "BasicObject"},
		strings.Fields(out))

	t.Run("relative to nesting", func(t *testing.T) {
		out, err := runCLI(t, "--root", root, "ancestors", "--nesting", "Shop", "--json", "Order")
		require.NoError(t, err)
		var resp mcp.QueryResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.True(t, resp.Ready)
		assert.Equal(t, "Shop::Order", resp.Resolved)
		assert.Equal(t, "Shop::Trackable", resp.Ancestors[1])
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := runCLI(t, "--root", root, "ancestors")
		assert.Error(t, err)
	})
}

func TestConstantCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "constant", "--nesting", "Shop::Order", "--json", "TAX")
	require.NoError(t, err)
	var resp mcp.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Shop::Order::TAX", resp.Resolved)
	assert.Equal(t, "constant", resp.Entries[0].Kind)
	assert.Equal(t, 8, resp.Entries[0].Line)

	out, err = runCLI(t, "--root", root, "constant", "Missing")
	require.NoError(t, err)
	assert.Equal(t, "No matches\n", out)
}

func TestMethodCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "method", "Shop::Order", "save")
	require.NoError(t, err)
	assert.Contains(t, out, "base.rb:4:5\tmethod\tShop::Base#save(validate: <default>)")

	t.Run("private needs private visibility", func(t *testing.T) {
		out, err := runCLI(t, "--root", root, "method", "Shop::Order", "write")
		require.NoError(t, err)
		assert.Equal(t, "No matches\n", out)

		out, err = runCLI(t, "--root", root, "method", "--visibility", "private", "Shop::Order", "write")
		require.NoError(t, err)
		assert.Contains(t, out, "Shop::Base#write() (private)")
	})

	t.Run("invalid visibility", func(t *testing.T) {
		_, err := runCLI(t, "--root", root, "method", "-v", "internal", "Shop::Order", "save")
		assert.ErrorContains(t, err, "unknown visibility")
	})
}

func TestSearchCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "search", "--json", "Shop::Ord")
	require.NoError(t, err)
	var resp mcp.SymbolsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Ready)
	require.NotEmpty(t, resp.Symbols)
	assert.Equal(t, "Shop::Order", resp.Symbols[0].QualifiedName)

	out, err = runCLI(t, "--root", root, "search", "--max", "1", "Shop")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestIncludeExcludeFlags(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "--exclude", "lib/shop/order.rb", "ancestors", "Shop::Order")
	require.NoError(t, err)
	assert.Equal(t, "No namespace named Shop::Order\n", out)

	out, err = runCLI(t, "--root", root, "--include", "spec/**/*.rb", "index", "--json")
	require.NoError(t, err)
	var rep StatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.Index.Files)
}

func TestStatusCommand(t *testing.T) {
	root := setupTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "broken.rb"), []byte("class Broken\n  def oops(\nend\n"), 0644))

	out, err := runCLI(t, "--root", root, "status", "--json")
	require.NoError(t, err)
	var rep StatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.Index.Built)
	assert.Equal(t, "completed", rep.Workspace.Status)
	assert.Equal(t, 3, rep.Index.ByKind["module"], "Shop is reopened in two files")
	require.NotEmpty(t, rep.Diagnostics)
	assert.Equal(t, "broken.rb", filepath.Base(rep.Diagnostics[0].Path))

	out, err = runCLI(t, "--root", root, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed "+root)
	assert.Contains(t, out, "Diagnostics: ")
}

func TestUnknownConfigFile(t *testing.T) {
	root := setupTestProject(t)
	_, err := runCLI(t, "--root", root, "--config", filepath.Join(root, "missing.kdl"), "index")
	assert.Error(t, err)
}

func TestCompleteCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "complete", "--receiver", "Shop::Order", "t")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "track\t"), out)

	out, err = runCLI(t, "--root", root, "complete", "--nesting", "Shop::Order", "--json", "T")
	require.NoError(t, err)
	var items []struct {
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "TAX", items[0].Label)
	assert.Equal(t, "Trackable", items[1].Label)
}

func TestSymbolsCommand(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "symbols", "lib/shop/base.rb")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], filepath.Join("lib", "shop", "base.rb")+":1:1\t"), lines[0])
	assert.True(t, strings.HasSuffix(lines[2], "\tsave"), lines[2])

	out, err = runCLI(t, "--root", root, "symbols", "--line", "3", "--character", "6", "--json", "lib/shop/base.rb")
	require.NoError(t, err)
	var symbols []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &symbols))
	require.Len(t, symbols, 3)
	assert.Equal(t, "save", symbols[2].Name)

	_, err = runCLI(t, "--root", root, "symbols", "--line", "3", "lib/shop/base.rb")
	assert.Error(t, err)
}

func TestSearchCommand_LSP(t *testing.T) {
	root := setupTestProject(t)

	out, err := runCLI(t, "--root", root, "search", "--lsp", "--json", "Shop::Base")
	require.NoError(t, err)
	var symbols []struct {
		Name     string `json:"name"`
		Location struct {
			URI string `json:"uri"`
		} `json:"location"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &symbols))
	require.NotEmpty(t, symbols)
	assert.Equal(t, "Shop::Base", symbols[0].Name)
	assert.True(t, strings.HasPrefix(symbols[0].Location.URI, "file://"))
}
