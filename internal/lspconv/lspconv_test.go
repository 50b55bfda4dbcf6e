package lspconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/standardbeagle/rubyidx/internal/core"
	"github.com/standardbeagle/rubyidx/internal/extractor"
	"github.com/standardbeagle/rubyidx/internal/types"
)

type files map[string]string

func (f files) Content(path string) ([]byte, error) {
	if s, ok := f[path]; ok {
		return []byte(s), nil
	}
	return nil, os.ErrNotExist
}

func buildIndex(t *testing.T, src files) *core.Index {
	t.Helper()
	ix := core.New(core.WithContentSource(src))
	t.Cleanup(func() { _ = ix.Close() })
	x := extractor.New(extractor.WithResolver(ix))
	for path, content := range src {
		res, err := x.ExtractSource(path, []byte(content))
		require.NoError(t, err)
		require.NoError(t, ix.ReindexFile(path, res.Entries, res.Diagnostics))
	}
	return ix
}

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app", "user model.rb")
	u := URI(path)
	assert.Contains(t, string(u), "file://")
	assert.Equal(t, path, Path(u))
}

func TestSymbolKind(t *testing.T) {
	tests := []struct {
		kind types.Kind
		want protocol.SymbolKind
	}{
		{types.KindClass, protocol.SymbolKindClass},
		{types.KindSingletonClass, protocol.SymbolKindClass},
		{types.KindModule, protocol.SymbolKindModule},
		{types.KindMethod, protocol.SymbolKindMethod},
		{types.KindMethodAlias, protocol.SymbolKindMethod},
		{types.KindAccessor, protocol.SymbolKindProperty},
		{types.KindConstant, protocol.SymbolKindConstant},
		{types.KindGlobalVariable, protocol.SymbolKindVariable},
		{types.KindUnresolvedAlias, protocol.SymbolKindNull},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, SymbolKind(tt.kind))
		})
	}
}

func TestConverter_UTF16Columns(t *testing.T) {
	src := files{"/w/a.rb": "# héllo 😀 x\nplain\n"}
	c := NewConverter(src)

	// "# héllo " is 9 bytes, 8 UTF-16 units; the emoji is 4 bytes, 2 units
	assert.Equal(t, protocol.Position{Line: 0, Character: 8}, c.Position("/w/a.rb", types.Position{Line: 0, Column: 9}))
	assert.Equal(t, protocol.Position{Line: 0, Character: 11}, c.Position("/w/a.rb", types.Position{Line: 0, Column: 14}))
	assert.Equal(t, types.Position{Line: 0, Column: 14}, c.Offset("/w/a.rb", protocol.Position{Line: 0, Character: 11}))

	assert.Equal(t, protocol.Position{Line: 1, Character: 3}, c.Position("/w/a.rb", types.Position{Line: 1, Column: 3}))
	// unknown files and lines pass through
	assert.Equal(t, protocol.Position{Line: 7, Character: 4}, c.Position("/w/missing.rb", types.Position{Line: 7, Column: 4}))
	assert.Equal(t, protocol.Position{Line: 9, Character: 2}, NewConverter(nil).Position("/w/a.rb", types.Position{Line: 9, Column: 2}))
}

func TestConverter_SymbolInformation(t *testing.T) {
	src := files{"/w/user.rb": "module Admin\n  class User < Base\n    def save(force = false); end\n  end\nend\n"}
	ix := buildIndex(t, src)
	c := NewConverter(src)

	classes, err := ix.Entries("Admin::User")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	info := c.SymbolInformation(classes[0])
	assert.Equal(t, "Admin::User", info.Name)
	assert.Equal(t, protocol.SymbolKindClass, info.Kind)
	assert.Equal(t, "Admin", info.ContainerName)
	assert.Equal(t, URI("/w/user.rb"), info.Location.URI)
	assert.Equal(t, uint32(1), info.Location.Range.Start.Line)

	methods, err := ix.Entries("Admin::User#save")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	info = c.SymbolInformation(methods[0])
	assert.Equal(t, "save", info.Name)
	assert.Equal(t, "Admin::User", info.ContainerName)

	item := c.CompletionItem(methods[0], "Persists the user.")
	assert.Equal(t, "save", item.Label)
	assert.Equal(t, protocol.CompletionItemKindMethod, item.Kind)
	assert.Contains(t, item.Detail, "Admin::User#save(")
	assert.Equal(t, protocol.MarkupContent{Kind: protocol.Markdown, Value: "Persists the user."}, item.Documentation)
}

func TestWorkspaceSymbols(t *testing.T) {
	src := files{
		"/w/a.rb": "class Foo\n  def bar; end\nend\n",
		"/w/b.rb": "class Foo\nend\nclass FooBar; end\n",
	}
	ix := buildIndex(t, src)

	symbols, err := WorkspaceSymbols(ix, src, "Foo", 0)
	require.NoError(t, err)
	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Foo")
	assert.Contains(t, names, "FooBar")

	limited, err := WorkspaceSymbols(ix, src, "Foo", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWorkspaceSymbols_NotBuilt(t *testing.T) {
	ix := core.New()
	defer ix.Close()
	symbols, err := WorkspaceSymbols(ix, nil, "Foo", 0)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

const shopSource = `module Shop
  class Base
    # Saves it.
    def save; end
    def size; end
    private
    def secret; end
  end
  class Order < Base
    def submit; end
  end
  STATUS = 1
end
`

func labels(items []protocol.CompletionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func TestCompletions(t *testing.T) {
	src := files{"/w/shop.rb": shopSource}
	ix := buildIndex(t, src)

	t.Run("methods in ancestor order", func(t *testing.T) {
		items, err := Completions(ix, src, "Shop::Order", "s", nil, types.Public)
		require.NoError(t, err)
		assert.Equal(t, []string{"submit", "save", "size"}, labels(items))
		assert.Equal(t, protocol.MarkupContent{Kind: protocol.Markdown, Value: "Saves it."}, items[1].Documentation)
		assert.Nil(t, items[0].Documentation)
	})

	t.Run("private call site sees private methods", func(t *testing.T) {
		items, err := Completions(ix, src, "Shop::Order", "se", nil, types.Private)
		require.NoError(t, err)
		assert.Equal(t, []string{"secret"}, labels(items))
	})

	t.Run("constants from nesting", func(t *testing.T) {
		items, err := Completions(ix, src, "", "S", []string{"Shop", "Order"}, types.Public)
		require.NoError(t, err)
		assert.Equal(t, []string{"STATUS", "Shop"}, labels(items))
		assert.Equal(t, protocol.CompletionItemKindConstant, items[0].Kind)
	})

	t.Run("not built", func(t *testing.T) {
		empty := core.New()
		defer empty.Close()
		items, err := Completions(empty, nil, "Shop", "", nil, types.Public)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestDocumentSymbols(t *testing.T) {
	src := files{"/w/shop.rb": shopSource}
	ix := buildIndex(t, src)

	all, err := DocumentSymbols(ix, src, "/w/shop.rb", nil)
	require.NoError(t, err)
	require.Len(t, all, 8)
	assert.Equal(t, "Shop", all[0].Name)
	assert.Equal(t, "Shop::Base", all[1].Name)
	assert.Equal(t, "save", all[2].Name)

	enclosing, err := DocumentSymbols(ix, src, "/w/shop.rb", &protocol.Position{Line: 3, Character: 6})
	require.NoError(t, err)
	var names []string
	for _, s := range enclosing {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Shop", "Shop::Base", "save"}, names)

	none, err := DocumentSymbols(ix, src, "/w/other.rb", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
