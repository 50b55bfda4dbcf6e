package extractor

import (
	"github.com/standardbeagle/rubyidx/internal/types"
)

// DefineMethod synthesizes a method for define_method calls with a literal
// name. The parameters of the block are not recovered.
var DefineMethod Enhancement = EnhancementFunc(defineMethod)

func defineMethod(_ Resolver, owner string, call CallSite, filePath string) []types.Entry {
	if call.Name != "define_method" || call.Receiver != "" {
		return nil
	}
	if len(call.Arguments) == 0 {
		return nil
	}
	first := call.Arguments[0]
	if first.Kind != ArgSymbol && first.Kind != ArgString {
		return nil
	}
	name := first.Value
	return []types.Entry{&types.Method{
		Member: types.Member{
			Declaration: synthesized(name, types.MemberName(owner, name), filePath, call),
			Owner:       owner,
		},
		Parameters: []types.Parameter{{Kind: types.ParamRest, Name: "args"}},
	}}
}

// Delegate synthesizes forwarding methods for ActiveSupport style
// "delegate :a, :b, to: :target" calls. A prefix: option renames the
// generated methods.
var Delegate Enhancement = EnhancementFunc(delegate)

func delegate(_ Resolver, owner string, call CallSite, filePath string) []types.Entry {
	if call.Name != "delegate" || call.Receiver != "" {
		return nil
	}
	target, ok := call.Keyword("to")
	if !ok || target == "" {
		return nil
	}
	prefix := ""
	if p, ok := call.Keyword("prefix"); ok {
		switch p {
		case "true":
			prefix = target + "_"
		case "false", "nil":
		default:
			prefix = p + "_"
		}
	}

	var out []types.Entry
	for _, a := range call.Arguments {
		if a.Kind != ArgSymbol && a.Kind != ArgString {
			continue
		}
		name := prefix + a.Value
		out = append(out, &types.Method{
			Member: types.Member{
				Declaration: synthesized(name, types.MemberName(owner, name), filePath, call),
				Owner:       owner,
			},
			Parameters: []types.Parameter{{Kind: types.ParamForward}},
		})
	}
	return out
}

func synthesized(name, qualified, filePath string, call CallSite) types.Declaration {
	return types.Declaration{
		Name:          name,
		QualifiedName: qualified,
		FilePath:      filePath,
		Range:         call.Range,
		Doc:           types.DocRef{Path: filePath, Line: call.Range.Start.Line},
		Visibility:    call.Visibility,
	}
}

// DefaultEnhancements returns the enhancements enabled unless configured
// otherwise
func DefaultEnhancements() []Enhancement {
	return []Enhancement{DefineMethod, Delegate}
}

// EnhancementByName looks up a built-in enhancement by its configuration
// name
func EnhancementByName(name string) (Enhancement, bool) {
	switch name {
	case "define_method":
		return DefineMethod, true
	case "delegate":
		return Delegate, true
	}
	return nil, false
}
