package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/rubyidx/internal/types"
)

// AncestorsParams are the arguments of the ancestors tool
type AncestorsParams struct {
	Name    string  `json:"name"`
	Nesting Nesting `json:"nesting,omitempty"`
}

// ResolveConstantParams are the arguments of the resolve_constant tool
type ResolveConstantParams struct {
	Name    string  `json:"name"`
	Nesting Nesting `json:"nesting,omitempty"`
}

// ResolveMethodParams are the arguments of the resolve_method tool
type ResolveMethodParams struct {
	Receiver   string `json:"receiver"`
	Method     string `json:"method"`
	Visibility string `json:"visibility,omitempty"` // public (default), protected or private
}

// WorkspaceSymbolsParams are the arguments of the workspace_symbols tool
type WorkspaceSymbolsParams struct {
	Query string `json:"query"`
	Max   int    `json:"max,omitempty"`
}

// CompleteParams are the arguments of the complete tool. Without a
// receiver, constants visible from nesting are completed.
type CompleteParams struct {
	Prefix     string  `json:"prefix"`
	Receiver   string  `json:"receiver,omitempty"`
	Nesting    Nesting `json:"nesting,omitempty"`
	Visibility string  `json:"visibility,omitempty"`
	Max        int     `json:"max,omitempty"`
}

// FileSymbolsParams are the arguments of the file_symbols tool. Line and
// Character form a zero-based LSP position; when both are set only the
// declarations enclosing it are listed.
type FileSymbolsParams struct {
	File      string  `json:"file"`
	Line      *uint32 `json:"line,omitempty"`
	Character *uint32 `json:"character,omitempty"`
}

// Nesting is a lexical nesting, innermost last. It accepts a JSON array
// of segments (["Foo", "Bar"]) or a constant path ("Foo::Bar").
type Nesting []string

// UnmarshalJSON accepts both forms
func (n *Nesting) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		*n = types.SplitName(path)
		return nil
	}
	var segments []string
	if err := json.Unmarshal(data, &segments); err != nil {
		return fmt.Errorf("nesting must be a constant path or an array of names: %w", err)
	}
	var out []string
	for _, s := range segments {
		out = append(out, types.SplitName(s)...)
	}
	*n = out
	return nil
}

func parseArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// parseVisibility defaults to public
func parseVisibility(s string) (types.Visibility, error) {
	if s == "" {
		return types.Public, nil
	}
	v, ok := types.ParseVisibility(s)
	if !ok {
		return types.Public, fmt.Errorf("unknown visibility %q", s)
	}
	return v, nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
