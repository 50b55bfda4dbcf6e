package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/rubyidx/internal/types"
)

// nodeText extracts the source text of a node
func nodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}

	start := node.StartByte()
	end := node.EndByte()

	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}

	return string(content[start:end])
}

// nodeRange converts tree-sitter points to a zero-based range
func nodeRange(node *tree_sitter.Node) types.Range {
	start := node.StartPosition()
	end := node.EndPosition()
	return types.Range{
		Start: types.Position{Line: int(start.Row), Column: int(start.Column)},
		End:   types.Position{Line: int(end.Row), Column: int(end.Column)},
	}
}

// namedChildren returns the named children of node, skipping comments
func namedChildren(node *tree_sitter.Node) []*tree_sitter.Node {
	if node == nil {
		return nil
	}
	count := node.NamedChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// isConstantPath reports whether node is a constant or a chain of
// constants joined by "::", optionally rooted at the top level
func isConstantPath(node *tree_sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "constant":
		return true
	case "scope_resolution":
		name := node.ChildByFieldName("name")
		if name == nil || name.Kind() != "constant" {
			return false
		}
		scope := node.ChildByFieldName("scope")
		return scope == nil || isConstantPath(scope)
	}
	return false
}

// isSelfRootedPath reports whether node is "self::Name"
func isSelfRootedPath(node *tree_sitter.Node) bool {
	if node == nil || node.Kind() != "scope_resolution" {
		return false
	}
	scope := node.ChildByFieldName("scope")
	name := node.ChildByFieldName("name")
	return scope != nil && scope.Kind() == "self" && name != nil && name.Kind() == "constant"
}

// constantPath returns the written text of a constant path with
// whitespace removed
func constantPath(node *tree_sitter.Node, content []byte) string {
	return strings.Join(strings.Fields(nodeText(node, content)), "")
}

// literalName returns the name carried by a symbol or plain string literal
func literalName(node *tree_sitter.Node, content []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case "simple_symbol", "bare_symbol", "hash_key_symbol":
		return strings.TrimPrefix(nodeText(node, content), ":"), true
	case "delimited_symbol", "string", "bare_string":
		children := namedChildren(node)
		if len(children) == 0 {
			return "", false
		}
		for _, c := range children {
			if c.Kind() != "string_content" {
				// interpolated
				return "", false
			}
		}
		var b strings.Builder
		for _, c := range children {
			b.WriteString(nodeText(c, content))
		}
		return b.String(), true
	}
	return "", false
}

// methodName returns the name of a method as written in def, alias or
// alias_method positions
func methodName(node *tree_sitter.Node, content []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case "identifier", "constant", "setter", "operator":
		return nodeText(node, content), true
	case "global_variable":
		return "", false
	}
	return literalName(node, content)
}

// literalNames collects the symbol and string names of an argument list,
// flattening array literals and splats of arrays
func literalNames(nodes []*tree_sitter.Node, content []byte) []string {
	var out []string
	for _, n := range nodes {
		switch n.Kind() {
		case "array", "splat_argument":
			out = append(out, literalNames(namedChildren(n), content)...)
		default:
			if name, ok := literalName(n, content); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// parameters converts a method_parameters node into a signature
func parameters(node *tree_sitter.Node, content []byte) []types.Parameter {
	var params []types.Parameter
	for _, p := range namedChildren(node) {
		name := nodeText(p.ChildByFieldName("name"), content)
		switch p.Kind() {
		case "identifier":
			params = append(params, types.Parameter{Kind: types.ParamRequired, Name: nodeText(p, content)})
		case "destructured_parameter":
			params = append(params, types.Parameter{Kind: types.ParamRequired, Name: nodeText(p, content)})
		case "optional_parameter":
			params = append(params, types.Parameter{Kind: types.ParamOptional, Name: name})
		case "splat_parameter":
			params = append(params, types.Parameter{Kind: types.ParamRest, Name: name})
		case "keyword_parameter":
			kind := types.ParamKeyword
			if p.ChildByFieldName("value") != nil {
				kind = types.ParamOptionalKeyword
			}
			params = append(params, types.Parameter{Kind: kind, Name: name})
		case "hash_splat_parameter":
			params = append(params, types.Parameter{Kind: types.ParamKeywordRest, Name: name})
		case "block_parameter":
			params = append(params, types.Parameter{Kind: types.ParamBlock, Name: name})
		case "forward_parameter":
			params = append(params, types.Parameter{Kind: types.ParamForward})
		}
	}
	return params
}

// arguments converts an argument list into call-site arguments
func arguments(nodes []*tree_sitter.Node, content []byte) []Argument {
	out := make([]Argument, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, argument(n, content))
	}
	return out
}

func argument(n *tree_sitter.Node, content []byte) Argument {
	if n == nil {
		return Argument{}
	}
	switch n.Kind() {
	case "simple_symbol", "delimited_symbol":
		if v, ok := literalName(n, content); ok {
			return Argument{Kind: ArgSymbol, Value: v}
		}
	case "string":
		if v, ok := literalName(n, content); ok {
			return Argument{Kind: ArgString, Value: v}
		}
	case "constant", "scope_resolution":
		if isConstantPath(n) {
			return Argument{Kind: ArgConstant, Value: constantPath(n, content)}
		}
	case "pair":
		key := n.ChildByFieldName("key")
		k, ok := literalName(key, content)
		if !ok {
			k = nodeText(key, content)
		}
		v := argument(n.ChildByFieldName("value"), content)
		return Argument{Kind: ArgKeyword, Key: k, Value: v.Value}
	}
	return Argument{Kind: ArgOther, Value: nodeText(n, content)}
}

// isStatement reports whether node sits directly in a statement list
func isStatement(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "program", "body_statement", "begin", "block_body", "then", "else":
		return true
	}
	return false
}
