package ancestry

import (
	"slices"
	"strings"

	"github.com/standardbeagle/rubyidx/internal/types"
)

// ResolveConstant resolves a constant reference made inside nesting. It
// checks, in order: the enclosing lexical scopes from innermost to
// outermost, the ancestors of the innermost namespace, and the top level.
// A leading "::" skips straight to the top level. Constant aliases are
// resolved to their targets where possible; an alias whose target cannot be
// found is returned as is. Returns the qualified name that matched and its
// entries, or "" and nil when the reference is unresolved.
func (r *Resolver) ResolveConstant(name string, nesting []string) (string, []types.Entry) {
	st := newWalk()
	qualified, entries := r.resolve(name, nesting, st)
	if len(entries) == 0 {
		return "", nil
	}
	out := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		if alias, ok := e.(*types.UnresolvedAlias); ok {
			if resolved, ok := r.resolveAlias(alias, st); ok {
				out = append(out, resolved)
				continue
			}
		}
		out = append(out, e)
	}
	return qualified, out
}

// ResolveNamespace resolves a constant reference to the qualified name of a
// class or module, following aliases
func (r *Resolver) ResolveNamespace(name string, nesting []string) (string, bool) {
	return r.resolveNamespace(name, nesting, newWalk())
}

// Canonical follows constant aliases anywhere along a qualified namespace
// path ("Alias::Inner" -> "Target::Inner")
func (r *Resolver) Canonical(qualifiedName string) string {
	return r.followAliasedNamespace(qualifiedName, newWalk())
}

func (r *Resolver) resolve(name string, nesting []string, st *walk) (string, []types.Entry) {
	if name == "" {
		return "", nil
	}
	if strings.HasPrefix(name, types.Separator) {
		return r.lookupDirect(strings.TrimPrefix(name, types.Separator), st)
	}
	nesting = lexicalNesting(nesting)

	if q, e := r.lookupEnclosing(name, nesting, st); len(e) > 0 {
		return q, e
	}
	if q, e := r.lookupAncestors(name, nesting, st); len(e) > 0 {
		return q, e
	}
	if q, e := r.lookupDirect(name, st); len(e) > 0 {
		return q, e
	}
	return r.lookupThroughHead(name, nesting, st)
}

func (r *Resolver) lookupDirect(name string, st *walk) (string, []types.Entry) {
	if e := r.constants(name); len(e) > 0 {
		return name, e
	}
	if alias := r.followAliasedNamespace(name, st); alias != name {
		if e := r.constants(alias); len(e) > 0 {
			return alias, e
		}
	}
	return "", nil
}

func (r *Resolver) lookupEnclosing(name string, nesting []string, st *walk) (string, []types.Entry) {
	for i := len(nesting); i > 0; i-- {
		full := types.JoinName(types.NestingName(nesting[:i]), name)
		if q, e := r.lookupDirect(full, st); len(e) > 0 {
			return q, e
		}
	}
	return "", nil
}

func (r *Resolver) lookupAncestors(name string, nesting []string, st *walk) (string, []types.Entry) {
	if len(nesting) == 0 {
		return "", nil
	}
	parts := types.SplitName(nonRedundantName(name, nesting))
	if len(parts) < 2 {
		return "", nil
	}
	owner := types.JoinName(parts[:len(parts)-1]...)
	constant := parts[len(parts)-1]

	entries, canonical := r.namespaceEntries(owner, st)
	if len(entries) == 0 {
		if canonical == owner {
			return "", nil
		}
		owner = canonical
	}
	for _, ancestor := range r.linearize(owner, st, true).ancestors {
		full := types.JoinName(ancestor, constant)
		if e := r.constants(full); len(e) > 0 {
			return full, e
		}
	}
	return "", nil
}

// lookupThroughHead resolves the first segment of a qualified reference on
// its own and looks the rest up under whatever it resolved to. This finds
// "Inner::X" when Inner is inherited by an enclosing namespace.
func (r *Resolver) lookupThroughHead(name string, nesting []string, st *walk) (string, []types.Entry) {
	parts := types.SplitName(name)
	if len(parts) < 2 {
		return "", nil
	}
	head, ok := r.resolveNamespace(parts[0], nesting, st)
	if !ok || head == parts[0] {
		return "", nil
	}
	return r.lookupDirect(types.JoinName(append([]string{head}, parts[1:]...)...), st)
}

// constants returns the entries under name that take part in constant
// resolution
func (r *Resolver) constants(name string) []types.Entry {
	all := r.graph.Lookup(name)
	if len(all) == 0 {
		return nil
	}
	out := make([]types.Entry, 0, len(all))
	for _, e := range all {
		if e.Kind().IsConstantLike() {
			out = append(out, e)
			continue
		}
		if a, ok := e.(*types.UnresolvedAlias); ok && a.AliasOf == types.AliasConstant {
			out = append(out, e)
		}
	}
	return out
}

// resolveNamespace resolves a reference that must denote a class or module
func (r *Resolver) resolveNamespace(name string, nesting []string, st *walk) (string, bool) {
	qualified, entries := r.resolve(name, nesting, st)
	if len(entries) == 0 {
		bare := strings.TrimPrefix(name, types.Separator)
		if isBuiltin(bare) {
			return bare, true
		}
		return "", false
	}
	for _, e := range entries {
		if e.Kind() == types.KindClass || e.Kind() == types.KindModule {
			return qualified, true
		}
	}
	target := r.followAliasedNamespace(qualified, st)
	if target == qualified {
		return "", false
	}
	if ns, _ := r.namespaceEntries(target, st); len(ns) > 0 || isBuiltin(target) {
		return target, true
	}
	return "", false
}

// followAliasedNamespace rewrites the longest aliased prefix of a qualified
// name to its target, repeatedly. Names without aliases come back unchanged.
func (r *Resolver) followAliasedNamespace(name string, st *walk) string {
	visited := map[string]struct{}{name: {}}
	current := name
	for {
		next, ok := r.rewriteAliasedPrefix(current, st)
		if !ok {
			return current
		}
		if _, loop := visited[next]; loop {
			return current
		}
		visited[next] = struct{}{}
		current = next
	}
}

func (r *Resolver) rewriteAliasedPrefix(name string, st *walk) (string, bool) {
	parts := types.SplitName(name)
	for i := len(parts); i > 0; i-- {
		target, ok := r.aliasTarget(types.JoinName(parts[:i]...), st)
		if !ok {
			continue
		}
		return types.JoinName(append([]string{target}, parts[i:]...)...), true
	}
	return "", false
}

// followAlias reports the namespace an aliased name stands for
func (r *Resolver) followAlias(name string, st *walk) (string, bool) {
	target := r.followAliasedNamespace(name, st)
	return target, target != name
}

// aliasTarget returns the target of the first entry under name when that
// entry is a constant alias
func (r *Resolver) aliasTarget(name string, st *walk) (string, bool) {
	entries := r.constants(name)
	if len(entries) == 0 {
		return "", false
	}
	switch e := entries[0].(type) {
	case *types.ConstantAlias:
		return e.Target, true
	case *types.UnresolvedAlias:
		resolved, ok := r.resolveAlias(e, st)
		if !ok {
			return "", false
		}
		return resolved.Target, true
	}
	return "", false
}

// resolveAlias resolves the target of a constant alias. Alias chains that
// loop back on themselves stay unresolved.
func (r *Resolver) resolveAlias(alias *types.UnresolvedAlias, st *walk) (*types.ConstantAlias, bool) {
	if alias.AliasOf != types.AliasConstant {
		return nil, false
	}
	if _, looping := st.seen[alias.QualifiedName]; looping {
		return nil, false
	}
	st.seen[alias.QualifiedName] = struct{}{}
	defer delete(st.seen, alias.QualifiedName)

	target, entries := r.resolve(alias.Target, alias.Nesting, st)
	if len(entries) == 0 || target == alias.QualifiedName {
		return nil, false
	}
	if next, ok := entries[0].(*types.UnresolvedAlias); ok {
		if _, ok := r.resolveAlias(next, st); !ok {
			return nil, false
		}
	}
	return &types.ConstantAlias{Declaration: alias.Declaration, Target: target}, true
}

// lexicalNesting drops singleton segments, which do not open a constant scope
func lexicalNesting(nesting []string) []string {
	if !slices.ContainsFunc(nesting, func(n string) bool { return strings.Contains(n, "<Class:") }) {
		return nesting
	}
	out := make([]string, 0, len(nesting))
	for _, n := range nesting {
		parts := slices.DeleteFunc(types.SplitName(n), types.IsSingletonSegment)
		if len(parts) == 0 {
			continue
		}
		kept := types.JoinName(parts...)
		if types.IsAbsoluteName(n) {
			kept = types.AbsoluteName(kept)
		}
		out = append(out, kept)
	}
	return out
}

// nonRedundantName joins name onto nesting, dropping the nesting parts that
// the name repeats: "Foo::Bar" inside ["Outer", "Foo"] is "Outer::Foo::Bar".
func nonRedundantName(name string, nesting []string) string {
	if len(nesting) == 0 {
		return name
	}
	namespace := types.NestingName(nesting)
	flat := types.SplitName(namespace)
	if !strings.Contains(name, types.Separator) {
		return types.JoinName(namespace, name)
	}
	first := types.SplitName(name)[0]
	idx := slices.Index(flat, first)
	if idx < 0 {
		return types.JoinName(namespace, name)
	}
	return types.JoinName(append(slices.Clone(flat[:idx]), name)...)
}
