package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticsReplacePerFile(t *testing.T) {
	d := NewDiagnostics()
	d.Set("a.rb", []Diagnostic{{Path: "a.rb", Line: 3, Kind: DiagnosticSyntax, Message: "unexpected end"}})
	d.Add(Diagnostic{Path: "b.rb", Kind: DiagnosticUnreadable, Message: "permission denied"})
	require.Equal(t, 2, d.Len())

	d.Set("a.rb", []Diagnostic{{Path: "a.rb", Line: 9, Kind: DiagnosticSyntax, Message: "missing end"}})
	got := d.For("a.rb")
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Line)

	d.Clear("a.rb")
	assert.Empty(t, d.For("a.rb"))
	assert.Equal(t, 1, d.Len())

	d.Reset()
	assert.Zero(t, d.Len())
}

func TestDiagnosticsAllIsOrdered(t *testing.T) {
	d := NewDiagnostics()
	d.Add(Diagnostic{Path: "b.rb", Line: 1})
	d.Add(Diagnostic{Path: "a.rb", Line: 7})
	d.Add(Diagnostic{Path: "a.rb", Line: 2})

	all := d.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a.rb", all[0].Path)
	assert.Equal(t, 2, all[0].Line)
	assert.Equal(t, 7, all[1].Line)
	assert.Equal(t, "b.rb", all[2].Path)
}

func TestDiagnosticFromError(t *testing.T) {
	parse := NewParseError("x.rb", 4, 2, "def", New("syntax error"))
	d := FromError("x.rb", fmt.Errorf("indexing: %w", parse))
	assert.Equal(t, DiagnosticSyntax, d.Kind)
	assert.Equal(t, 4, d.Line)
	assert.Equal(t, "x.rb:4:2: syntax: indexing: parse error at x.rb:4:2 (near token \"def\"): syntax error", d.String())

	big := FromError("big.rb", NewFileTooLargeError("big.rb", 2, 1))
	assert.Equal(t, DiagnosticFileTooLarge, big.Kind)

	plain := FromError("y.rb", New("boom"))
	assert.Equal(t, DiagnosticUnreadable, plain.Kind)
	assert.Equal(t, "y.rb: unreadable: boom", plain.String())
}

func TestDiagnosticsConcurrentUse(t *testing.T) {
	d := NewDiagnostics()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("f%d.rb", i%4)
			d.Add(Diagnostic{Path: path, Line: i})
			_ = d.All()
			_ = d.For(path)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, d.Len())
}
