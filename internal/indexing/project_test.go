package indexing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot(t *testing.T) {
	t.Run("nearest marker", func(t *testing.T) {
		root := t.TempDir()
		writeSource(t, root, "Gemfile", "source 'https://rubygems.org'\n")
		nested := filepath.Join(root, "app", "models")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		got, marker, err := FindProjectRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, got)
		assert.Equal(t, "Gemfile", marker)
	})

	t.Run("config marker wins over nested git", func(t *testing.T) {
		root := t.TempDir()
		writeSource(t, root, ".rubyidx.kdl", "project {\n}\n")
		engine := filepath.Join(root, "engines", "billing")
		require.NoError(t, os.MkdirAll(filepath.Join(engine, ".git"), 0o755))

		got, marker, err := FindProjectRoot(engine)
		require.NoError(t, err)
		assert.Equal(t, root, got)
		assert.Equal(t, ".rubyidx.kdl", marker)
	})

	t.Run("gemspec", func(t *testing.T) {
		root := t.TempDir()
		writeSource(t, root, "widget.gemspec", "")
		ok, marker := DetectProjectRoot(root)
		assert.True(t, ok)
		assert.Equal(t, "widget.gemspec", marker)
	})

	t.Run("not a directory", func(t *testing.T) {
		file := writeSource(t, t.TempDir(), "a.rb", "")
		ok, _ := DetectProjectRoot(file)
		assert.False(t, ok)
	})
}

func TestLooksBinary(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"empty", nil, false},
		{"ruby", []byte("class Foo\n\tdef bar; end\nend\n"), false},
		{"utf8", []byte("# café ☕\nputs 'héllo'\n"), false},
		{"nul", []byte("abc\x00def"), true},
		{"gzip", []byte{0x1F, 0x8B, 0x08, 0x00}, true},
		{"control heavy", []byte("\x01\x02\x03\x04ab"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksBinary(tt.content))
		})
	}
}
