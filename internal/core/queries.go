package core

import (
	"iter"
	"slices"
	"strings"

	"github.com/standardbeagle/rubyidx/internal/debug"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// AncestorsOf returns the linearized ancestors of a namespace, most
// specific first. Unknown names yield an empty list.
func (ix *Index) AncestorsOf(name string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}
	return ix.ancestors.Ancestors(strings.TrimPrefix(name, types.Separator)), nil
}

// ResolveConstant resolves a constant reference written as name at a point
// whose lexical nesting is nesting. The lookup order is the enclosing
// scopes from innermost to outermost, the ancestors of the innermost
// namespace, then the top level. Constant aliases are returned resolved
// when their target is known. An empty result means unresolved.
func (ix *Index) ResolveConstant(name string, nesting []string) ([]types.Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}
	q, entries := ix.ancestors.ResolveConstant(name, nesting)
	debug.LogSearch("constant %s in %v -> %q (%d entries)", name, nesting, q, len(entries))
	return entries, nil
}

// ResolveMethod finds the definition a call of method on receiver reaches.
// Ancestors are walked in order and the first ancestor defining method
// with a visibility the call site may see wins; every such entry of that
// ancestor is returned (a method can be defined in several reopenings).
// When the instance side has no match the singleton side is tried, which
// serves class-level calls made with the bare class name.
func (ix *Index) ResolveMethod(receiver, method string, visibility types.Visibility) ([]types.Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}

	receiver = strings.TrimPrefix(receiver, types.Separator)
	found := ix.resolveMethodLocked(receiver, method, visibility, map[types.EntryKey]struct{}{})
	if len(found) == 0 {
		if _, levels := types.AttachedName(receiver); levels == 0 {
			found = ix.resolveMethodLocked(types.SingletonName(receiver), method, visibility, map[types.EntryKey]struct{}{})
		}
	}
	return found, nil
}

func (ix *Index) resolveMethodLocked(receiver, method string, visibility types.Visibility, seen map[types.EntryKey]struct{}) []types.Entry {
	for _, owner := range ix.ancestors.Ancestors(receiver) {
		var out []types.Entry
		for _, e := range ix.store.ByName(types.MemberName(owner, method)) {
			m, ok := ix.methodEntry(e, seen)
			if !ok || !visibility.Permits(m.Decl().Visibility) {
				continue
			}
			out = append(out, m)
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// methodEntry turns a stored member into the entry returned to callers,
// resolving method aliases against the ancestors of their owner
func (ix *Index) methodEntry(e types.Entry, seen map[types.EntryKey]struct{}) (types.Entry, bool) {
	switch v := e.(type) {
	case *types.Method, *types.Accessor, *types.MethodAlias:
		return e, true
	case *types.UnresolvedAlias:
		if v.AliasOf != types.AliasMethod {
			return nil, false
		}
		alias, ok := ix.resolveMethodAlias(v, seen)
		if !ok {
			return nil, false
		}
		return alias, true
	}
	return nil, false
}

func (ix *Index) resolveMethodAlias(alias *types.UnresolvedAlias, seen map[types.EntryKey]struct{}) (*types.MethodAlias, bool) {
	key := alias.Key()
	if _, ok := seen[key]; ok {
		return nil, false
	}
	seen[key] = struct{}{}
	defer delete(seen, key)

	targets := ix.resolveMethodLocked(alias.Owner, alias.Target, types.Private, seen)
	if len(targets) == 0 {
		debug.LogSearch("method alias %s -> %s is unresolved", alias.QualifiedName, alias.Target)
		return nil, false
	}
	target := targets[0]
	resolved := &types.MethodAlias{
		Member: types.Member{Declaration: alias.Declaration, Owner: alias.Owner},
		Target: target.Decl().QualifiedName,
	}
	if m, ok := types.AsMember(target); ok {
		if sigs := m.Signatures(); len(sigs) > 0 {
			resolved.Parameters = sigs[0]
		}
	}
	return resolved, true
}

// FuzzySearch returns the qualified names matching query: prefix matches
// first, alphabetically, otherwise the fuzzy and stemmed fallbacks. The
// sequence iterates over a snapshot and may be restarted.
func (ix *Index) FuzzySearch(query string) (iter.Seq[string], error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}
	return slices.Values(slices.Collect(ix.names.Search(query))), nil
}

// MethodCandidates lists the methods callable on receiver whose name
// starts with prefix, one entry per method name: the one reached first in
// ancestor order. Results are ordered by ancestor, then name.
func (ix *Index) MethodCandidates(receiver, prefix string, visibility types.Visibility) ([]types.Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []types.Entry
	for _, owner := range ix.ancestors.Ancestors(strings.TrimPrefix(receiver, types.Separator)) {
		for name := range ix.names.Prefix(types.MemberName(owner, prefix)) {
			o, method, ok := types.SplitMemberName(name)
			if !ok || o != owner || !strings.HasPrefix(method, prefix) {
				continue
			}
			if _, dup := seen[method]; dup {
				continue
			}
			for _, e := range ix.store.ByName(name) {
				m, ok := ix.methodEntry(e, map[types.EntryKey]struct{}{})
				if !ok || !visibility.Permits(m.Decl().Visibility) {
					continue
				}
				seen[method] = struct{}{}
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

// ConstantCandidates lists the constants and namespaces reachable as an
// unqualified reference from nesting whose name starts with prefix. Inner
// scopes shadow outer ones, so each simple name appears once.
func (ix *Index) ConstantCandidates(prefix string, nesting []string) ([]types.Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := ix.readable(); err != nil {
		return nil, err
	}

	var scopes []string
	for i := len(nesting); i > 0; i-- {
		scopes = append(scopes, types.NestingName(nesting[:i]))
	}
	if len(nesting) > 0 {
		scopes = append(scopes, ix.ancestors.Ancestors(types.NestingName(nesting))...)
	}
	scopes = append(scopes, "")

	seen := make(map[string]struct{})
	var out []types.Entry
	for _, scope := range scopes {
		for name := range ix.names.Prefix(types.JoinName(scope, prefix)) {
			if types.ParentName(name) != scope || strings.Contains(name, types.MemberSeparator) {
				continue
			}
			simple := types.LastSegment(name)
			if !strings.HasPrefix(simple, prefix) {
				continue
			}
			if _, dup := seen[simple]; dup {
				continue
			}
			if e, ok := firstConstantLike(ix.store.ByName(name)); ok {
				seen[simple] = struct{}{}
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func firstConstantLike(entries []types.Entry) (types.Entry, bool) {
	for _, e := range entries {
		switch v := e.(type) {
		case *types.Class, *types.Module, *types.Constant, *types.ConstantAlias:
			return e, true
		case *types.UnresolvedAlias:
			if v.AliasOf == types.AliasConstant {
				return e, true
			}
		}
	}
	return nil, false
}
