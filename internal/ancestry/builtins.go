package ancestry

import "github.com/standardbeagle/rubyidx/internal/types"

// Core classes every program has even when no source for them is indexed.
// Their chains are used when the workspace never reopens them.
var builtinChains = map[string][]string{
	"BasicObject": {"BasicObject"},
	"Kernel":      {"Kernel"},
	"Object":      {"Object", "Kernel", "BasicObject"},
	"Module":      {"Module", "Object", "Kernel", "BasicObject"},
	"Class":       {"Class", "Module", "Object", "Kernel", "BasicObject"},
}

// builtinSuperclass is the superclass of each builtin class
var builtinSuperclass = map[string]string{
	"Object": "BasicObject",
	"Module": "Object",
	"Class":  "Module",
}

func isBuiltin(name string) bool {
	_, ok := builtinChains[name]
	return ok
}

func builtinChain(name string) []string {
	chain, ok := builtinChains[name]
	if !ok {
		return nil
	}
	out := make([]string, len(chain))
	copy(out, chain)
	return out
}

// builtinSingletonTail returns what follows the singleton class of a builtin
// in its singleton chain: the singletons of its superclasses, then Class.
func builtinSingletonTail(attached string, levels int) []string {
	if attached == "Kernel" {
		return builtinChain("Module")
	}
	var out []string
	for parent := builtinSuperclass[attached]; parent != ""; parent = builtinSuperclass[parent] {
		out = append(out, types.WithSingletonLevels(parent, levels))
	}
	return append(out, builtinChain("Class")...)
}
