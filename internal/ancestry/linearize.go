package ancestry

import (
	"slices"

	"github.com/standardbeagle/rubyidx/internal/debug"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// walk is the state of one top-level resolution call
type walk struct {
	// partial holds the chain built so far for namespaces still being
	// linearized; reaching one of them again means a cycle
	partial map[string]*[]string
	seen    map[string]struct{} // aliases followed during constant lookups
}

func newWalk() *walk {
	return &walk{
		partial: make(map[string]*[]string),
		seen:    make(map[string]struct{}),
	}
}

// result carries a linearization plus the bookkeeping needed to decide
// whether it may be memoized
type result struct {
	ancestors []string
	deps      map[string]struct{}
	// cycles lists in-progress namespaces this result was cut short at.
	// A result is complete once it no longer depends on any of them.
	cycles map[string]struct{}
}

func (res *result) absorb(other result) {
	for k := range other.deps {
		res.deps[k] = struct{}{}
	}
	for k := range other.cycles {
		res.cycles[k] = struct{}{}
	}
}

// linearize computes the ancestors of name. lookup is set when the call comes
// from a constant lookup inside another linearization; reaching an
// in-progress namespace that way reads its partial chain (the ancestors known
// at that point of the class body) without marking a cycle.
func (r *Resolver) linearize(name string, st *walk, lookup bool) result {
	if cached, ok := r.cached(name); ok {
		return result{ancestors: cached, deps: map[string]struct{}{name: {}}}
	}
	if p, ok := st.partial[name]; ok {
		res := result{ancestors: slices.Clone(*p), deps: map[string]struct{}{name: {}}}
		if !lookup {
			debug.Log("ANCESTRY", "cycle reached at %s", name)
			res.cycles = map[string]struct{}{name: {}}
		}
		return res
	}

	res := result{deps: map[string]struct{}{}, cycles: map[string]struct{}{}}
	res.deps[name] = struct{}{}

	attached, levels := types.AttachedName(name)
	var chain []string
	if levels > 0 {
		res.deps[attached] = struct{}{}
		chain = r.linearizeSingleton(name, attached, levels, st, &res)
	} else {
		namespaces, canonical := r.namespaceEntries(name, st)
		if canonical != "" && canonical != name {
			// constant alias of a namespace: the alias shares the chain
			res.deps[canonical] = struct{}{}
			sub := r.linearize(canonical, st, lookup)
			res.absorb(sub)
			chain = sub.ancestors
		} else if len(namespaces) == 0 {
			chain = builtinChain(name)
		} else {
			chain = r.linearizeNamespace(name, namespaces, st, &res)
		}
	}

	chain = dedupe(chain)
	delete(res.cycles, name)
	res.ancestors = chain
	if len(res.cycles) == 0 && chain != nil {
		for _, a := range chain {
			res.deps[a] = struct{}{}
		}
		r.store(name, chain, res.deps)
	}
	return res
}

// linearizeNamespace handles classes and modules
func (r *Resolver) linearizeNamespace(name string, entries []types.NamespaceEntry, st *walk, res *result) []string {
	chain := []string{name}
	st.partial[name] = &chain
	defer delete(st.partial, name)

	var ops []mixinOp
	for _, e := range entries {
		ns := e.Space()
		for _, m := range ns.Mixins {
			if m.Kind == types.MixinExtend {
				continue
			}
			ops = append(ops, mixinOp{kind: m.Kind, target: m.Target, nesting: ns.Nesting})
		}
	}
	r.linearizeMixins(&chain, ops, st, res)
	r.linearizeSuperclass(&chain, name, entries, 0, st, res)
	return chain
}

// linearizeSingleton handles "Foo::<Class:Foo>": the singleton's own
// mixins, the attached namespace's extends, then the singleton of the
// superclass (or the Class/Module chain once the superclass chain ends).
func (r *Resolver) linearizeSingleton(name, attached string, levels int, st *walk, res *result) []string {
	attachedEntries, canonical := r.namespaceEntries(attached, st)
	if canonical != "" && canonical != attached {
		res.deps[canonical] = struct{}{}
		attached = canonical
		attachedEntries, _ = r.namespaceEntries(attached, st)
	}
	if len(attachedEntries) == 0 && !isBuiltin(attached) {
		return nil
	}

	chain := []string{name}
	st.partial[name] = &chain
	defer delete(st.partial, name)

	var ops []mixinOp
	if levels == 1 {
		for _, e := range attachedEntries {
			ns := e.Space()
			for _, m := range ns.Mixins {
				if m.Kind == types.MixinExtend {
					ops = append(ops, mixinOp{kind: types.MixinInclude, target: m.Target, nesting: ns.Nesting})
				}
			}
		}
	}
	for _, e := range r.singletonEntries(name) {
		ns := e.Space()
		for _, m := range ns.Mixins {
			if m.Kind == types.MixinExtend {
				continue
			}
			ops = append(ops, mixinOp{kind: m.Kind, target: m.Target, nesting: ns.Nesting})
		}
	}
	r.linearizeMixins(&chain, ops, st, res)

	if len(attachedEntries) == 0 {
		// builtin attached class that was never reopened
		chain = append(chain, builtinSingletonTail(attached, levels)...)
		return chain
	}
	r.linearizeSuperclass(&chain, attached, attachedEntries, levels, st, res)
	return chain
}

type mixinOp struct {
	kind    types.MixinKind
	target  string
	nesting []string
}

// linearizeMixins splices prepends in front of the namespace and includes
// right after it. Processing in declaration order while always inserting at
// the same spot yields reverse declaration order, so the last prepend or
// include is the most specific.
func (r *Resolver) linearizeMixins(chain *[]string, ops []mixinOp, st *walk, res *result) {
	main := 0 // index of the namespace itself within chain
	for _, op := range ops {
		res.deps[types.LastSegment(op.target)] = struct{}{}
		target, ok := r.resolveNamespace(op.target, op.nesting, st)
		if !ok {
			debug.Log("ANCESTRY", "unresolved %s %s in %s", op.kind, op.target, (*chain)[main])
			continue
		}
		sub := r.linearize(target, st, false)
		res.absorb(sub)
		if len(sub.ancestors) == 0 {
			continue
		}

		switch op.kind {
		case types.MixinPrepend:
			if slices.Contains((*chain)[:main], target) {
				continue
			}
			add := missing(sub.ancestors, (*chain)[:main])
			*chain = slices.Insert(*chain, 0, add...)
			main += len(add)
		case types.MixinInclude:
			if slices.Contains(*chain, target) {
				continue
			}
			add := missing(sub.ancestors, *chain)
			*chain = slices.Insert(*chain, main+1, add...)
		}
	}
}

// linearizeSuperclass appends the superclass chain. levels is the number of
// singleton levels being linearized (0 for the namespace itself).
func (r *Resolver) linearizeSuperclass(chain *[]string, attached string, entries []types.NamespaceEntry, levels int, st *walk, res *result) {
	var class *types.Class
	isModule := false
	for _, e := range entries {
		switch v := e.(type) {
		case *types.Class:
			if class == nil || (class.Superclass == "" && v.Superclass != "") {
				class = v
			}
		case *types.Module:
			isModule = true
		}
	}

	if class == nil {
		if isModule && levels > 0 {
			*chain = append(*chain, r.chainOf(metaName("Module", levels-1), st, res)...)
		}
		return
	}

	parent := ""
	switch {
	case class.Superclass != "":
		res.deps[types.LastSegment(class.Superclass)] = struct{}{}
		// the superclass expression is evaluated outside the class body
		outer := class.Nesting
		if len(outer) > 0 {
			outer = outer[:len(outer)-1]
		}
		if resolved, ok := r.resolveNamespace(class.Superclass, outer, st); ok {
			parent = resolved
		} else {
			debug.Log("ANCESTRY", "unresolved superclass %s of %s", class.Superclass, attached)
		}
	case attached == "BasicObject":
	case attached == "Object":
		parent = "BasicObject"
	default:
		parent = "Object"
	}

	if parent != "" && parent != attached {
		*chain = append(*chain, r.chainOf(types.WithSingletonLevels(parent, levels), st, res)...)
	}
	if levels > 0 && (parent == "" || parent == "BasicObject") {
		*chain = append(*chain, r.chainOf(metaName("Class", levels-1), st, res)...)
	}
}

func (r *Resolver) chainOf(name string, st *walk, res *result) []string {
	sub := r.linearize(name, st, false)
	res.absorb(sub)
	return sub.ancestors
}

// metaName builds "Class", "Class::<Class:Class>", ... for extra levels
func metaName(base string, levels int) string {
	return types.WithSingletonLevels(base, levels)
}

// namespaceEntries returns the class and module entries declared under name.
// When name is a constant alias, canonical is the namespace it points at.
func (r *Resolver) namespaceEntries(name string, st *walk) ([]types.NamespaceEntry, string) {
	var out []types.NamespaceEntry
	aliased := false
	for _, e := range r.graph.Lookup(name) {
		switch v := e.(type) {
		case *types.Class, *types.Module:
			out = append(out, v.(types.NamespaceEntry))
		case *types.ConstantAlias, *types.UnresolvedAlias:
			aliased = true
		}
	}
	if len(out) > 0 || !aliased {
		return out, name
	}
	if target, ok := r.followAlias(name, st); ok && target != name {
		return nil, target
	}
	return nil, name
}

func (r *Resolver) singletonEntries(name string) []types.NamespaceEntry {
	var out []types.NamespaceEntry
	for _, e := range r.graph.Lookup(name) {
		if s, ok := e.(*types.SingletonClass); ok {
			out = append(out, s)
		}
	}
	return out
}

// missing returns the elements of add not present in have, in order
func missing(add, have []string) []string {
	out := make([]string, 0, len(add))
	for _, a := range add {
		if !slices.Contains(have, a) {
			out = append(out, a)
		}
	}
	return out
}

// dedupe keeps the first occurrence of every name
func dedupe(chain []string) []string {
	if chain == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(chain))
	out := chain[:0:0]
	for _, a := range chain {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
