package ancestry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/rubyidx/internal/types"
)

// fakeGraph is a name-keyed multimap of entries
type fakeGraph map[string][]types.Entry

func (g fakeGraph) Lookup(name string) []types.Entry { return g[name] }

func (g fakeGraph) add(entries ...types.Entry) {
	for _, e := range entries {
		q := e.Decl().QualifiedName
		g[q] = append(g[q], e)
	}
}

type mixin struct {
	kind   types.MixinKind
	target string
}

func include(t string) mixin { return mixin{types.MixinInclude, t} }
func prepend(t string) mixin { return mixin{types.MixinPrepend, t} }
func extend(t string) mixin  { return mixin{types.MixinExtend, t} }

func space(qualified string, nesting []string, mixins []mixin) types.Namespace {
	if nesting == nil {
		nesting = types.SplitName(qualified)
	}
	ns := types.Namespace{
		Declaration: types.Declaration{Name: types.LastSegment(qualified), QualifiedName: qualified, FilePath: "test.rb"},
		Nesting:     nesting,
	}
	for _, m := range mixins {
		ns.AddMixin(m.kind, m.target)
	}
	return ns
}

func class(qualified, superclass string, mixins ...mixin) *types.Class {
	return &types.Class{Namespace: space(qualified, nil, mixins), Superclass: superclass}
}

func module(qualified string, mixins ...mixin) *types.Module {
	return &types.Module{Namespace: space(qualified, nil, mixins)}
}

func constant(qualified string) *types.Constant {
	return &types.Constant{Declaration: types.Declaration{Name: types.LastSegment(qualified), QualifiedName: qualified, FilePath: "test.rb"}}
}

func constAlias(qualified, target string, nesting ...string) *types.UnresolvedAlias {
	return &types.UnresolvedAlias{
		Declaration: types.Declaration{Name: types.LastSegment(qualified), QualifiedName: qualified, FilePath: "test.rb"},
		AliasOf:     types.AliasConstant,
		Target:      target,
		Nesting:     nesting,
	}
}

var objectChain = []string{"Object", "Kernel", "BasicObject"}

func chain(names ...string) []string {
	return append(names, objectChain...)
}

func TestAncestorPrecedence(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("A", "", prepend("P"), include("M1"), include("M2")),
		module("P"), module("M1"), module("M2"),
	)
	r := New(g)

	assert.Equal(t, chain("P", "A", "M2", "M1"), r.Ancestors("A"))
}

func TestAncestorPrependOrder(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("A", "", prepend("P1"), prepend("P2")),
		module("P1"), module("P2", include("Q")), module("Q"),
	)
	r := New(g)

	assert.Equal(t, chain("P2", "Q", "P1", "A"), r.Ancestors("A"))
}

func TestAncestorDeduplication(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("A", "", include("M"), include("N")),
		module("N", include("M")),
		module("M"),
	)
	r := New(g)

	got := r.Ancestors("A")
	assert.Equal(t, chain("A", "N", "M"), got)

	count := 0
	for _, a := range got {
		if a == "M" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAncestorCycleTerminates(t *testing.T) {
	t.Run("mixins", func(t *testing.T) {
		g := fakeGraph{}
		g.add(module("A", include("B")), module("B", include("A")))
		r := New(g)

		assert.Equal(t, []string{"A", "B"}, r.Ancestors("A"))
		assert.Equal(t, []string{"B", "A"}, r.Ancestors("B"))
	})

	t.Run("superclasses", func(t *testing.T) {
		g := fakeGraph{}
		g.add(class("A", "B"), class("B", "A"))
		r := New(g)

		assert.Equal(t, []string{"A", "B"}, r.Ancestors("A"))
	})

	t.Run("self include", func(t *testing.T) {
		g := fakeGraph{}
		g.add(module("A", include("A")))
		assert.Equal(t, []string{"A"}, New(g).Ancestors("A"))
	})
}

func TestAncestorSuperclassChain(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("Child", "Parent", include("C")),
		class("Parent", "", include("M")),
		module("M"), module("C"),
	)
	r := New(g)

	assert.Equal(t, chain("Child", "C", "Parent", "M"), r.Ancestors("Child"))
}

func TestAncestorModulesTerminate(t *testing.T) {
	g := fakeGraph{}
	g.add(module("M", include("N")), module("N"))
	assert.Equal(t, []string{"M", "N"}, New(g).Ancestors("M"))
}

func TestAncestorUnknownAndUnresolved(t *testing.T) {
	g := fakeGraph{}
	g.add(class("A", "Missing::Base", include("Nope")))
	r := New(g)

	assert.Nil(t, r.Ancestors("DoesNotExist"))
	assert.Equal(t, []string{"A"}, r.Ancestors("A"))
	assert.Equal(t, objectChain, r.Ancestors("Object"))
}

func TestAncestorReopenedNamespace(t *testing.T) {
	g := fakeGraph{}
	first := class("Foo", "", include("M1"))
	first.FilePath = "a.rb"
	second := class("Foo", "", include("M2"))
	second.FilePath = "b.rb"
	g.add(first, second, module("M1"), module("M2"))

	assert.Equal(t, chain("Foo", "M2", "M1"), New(g).Ancestors("Foo"))
}

func TestAncestorNestedMixinResolution(t *testing.T) {
	g := fakeGraph{}
	g.add(
		module("Outer"),
		class("Outer::A", "", include("Helper")),
		module("Outer::Helper"),
		module("Helper"),
	)
	assert.Equal(t, chain("Outer::A", "Outer::Helper"), New(g).Ancestors("Outer::A"))
}

func TestSingletonAncestors(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("Parent", "", extend("E")),
		class("Child", "Parent"),
		module("E"),
		module("Util"),
	)
	r := New(g)

	assert.Equal(t, []string{
		"Child::<Class:Child>",
		"Parent::<Class:Parent>",
		"E",
		"Object::<Class:Object>",
		"BasicObject::<Class:BasicObject>",
		"Class", "Module", "Object", "Kernel", "BasicObject",
	}, r.Ancestors("Child::<Class:Child>"))

	assert.Equal(t, []string{"Util::<Class:Util>", "Module", "Object", "Kernel", "BasicObject"}, r.Ancestors("Util::<Class:Util>"))
	assert.Nil(t, r.Ancestors("Nope::<Class:Nope>"))
}

func TestSingletonClassMixins(t *testing.T) {
	g := fakeGraph{}
	g.add(
		module("Util"),
		&types.SingletonClass{Namespace: space("Util::<Class:Util>", []string{"Util", "<Class:Util>"}, []mixin{include("Helpers")})},
		module("Helpers"),
	)
	got := New(g).Ancestors("Util::<Class:Util>")
	require.NotEmpty(t, got)
	assert.Equal(t, []string{"Util::<Class:Util>", "Helpers", "Module"}, got[:3])
}

func TestInvalidation(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("A", "", include("M")),
		class("B", "A"),
		module("M"),
		module("N"),
	)
	r := New(g)

	assert.Equal(t, chain("B", "A", "M"), r.Ancestors("B"))
	assert.True(t, r.IsCached("A"))
	assert.True(t, r.IsCached("B"))

	// M now includes N: A and, transitively, B must be recomputed
	g["M"] = []types.Entry{module("M", include("N"))}
	assert.GreaterOrEqual(t, r.Invalidate("M"), 2)
	assert.False(t, r.IsCached("A"))
	assert.False(t, r.IsCached("B"))
	assert.Equal(t, chain("B", "A", "M", "N"), r.Ancestors("B"))
}

func TestInvalidationByShadowingDefinition(t *testing.T) {
	g := fakeGraph{}
	g.add(module("Outer"), class("Outer::A", "", include("M")), module("M"))
	r := New(g)
	assert.Equal(t, chain("Outer::A", "M"), r.Ancestors("Outer::A"))

	g.add(module("Outer::M"))
	r.Invalidate("Outer::M")
	assert.Equal(t, chain("Outer::A", "Outer::M"), r.Ancestors("Outer::A"))
}

func TestInvalidationOfUnresolvedTarget(t *testing.T) {
	g := fakeGraph{}
	g.add(class("A", "", include("Late")))
	r := New(g)
	assert.Equal(t, chain("A"), r.Ancestors("A"))

	g.add(module("Late"))
	r.Invalidate("Late")
	assert.Equal(t, chain("A", "Late"), r.Ancestors("A"))

	r.Reset()
	assert.Zero(t, r.Cached())
}

func TestResolveConstantNesting(t *testing.T) {
	g := fakeGraph{}
	g.add(module("Foo"), module("Foo::Bar"))
	g.add(constant("Foo::Bar::Baz"), constant("Foo::Baz"), constant("Baz"))
	r := New(g)
	nesting := []string{"Foo", "Bar"}

	q, entries := r.ResolveConstant("Baz", nesting)
	assert.Equal(t, "Foo::Bar::Baz", q)
	require.Len(t, entries, 1)

	delete(g, "Foo::Bar::Baz")
	q, _ = r.ResolveConstant("Baz", nesting)
	assert.Equal(t, "Foo::Baz", q)

	delete(g, "Foo::Baz")
	q, _ = r.ResolveConstant("Baz", nesting)
	assert.Equal(t, "Baz", q)

	delete(g, "Baz")
	q, entries = r.ResolveConstant("Baz", nesting)
	assert.Empty(t, q)
	assert.Nil(t, entries)
}

func TestResolveConstantTopLevelPrefix(t *testing.T) {
	g := fakeGraph{}
	g.add(module("Foo"), constant("Foo::Baz"), constant("Baz"))
	r := New(g)

	q, _ := r.ResolveConstant("::Baz", []string{"Foo"})
	assert.Equal(t, "Baz", q)
	q, _ = r.ResolveConstant("Baz", []string{"Foo"})
	assert.Equal(t, "Foo::Baz", q)
}

func TestResolveConstantThroughAncestors(t *testing.T) {
	g := fakeGraph{}
	g.add(
		class("Parent", "", include("Mixin")),
		class("Child", "Parent"),
		module("Mixin"),
		constant("Mixin::LIMIT"),
		constant("Parent::NAME"),
	)
	r := New(g)

	q, _ := r.ResolveConstant("NAME", []string{"Child"})
	assert.Equal(t, "Parent::NAME", q)
	q, _ = r.ResolveConstant("LIMIT", []string{"Child"})
	assert.Equal(t, "Mixin::LIMIT", q)
}

func TestResolveConstantInsideSingletonClass(t *testing.T) {
	g := fakeGraph{}
	g.add(module("Foo"), constant("Foo::X"))
	q, _ := New(g).ResolveConstant("X", []string{"Foo", "<Class:Foo>"})
	assert.Equal(t, "Foo::X", q)
}

func TestResolveConstantAliases(t *testing.T) {
	g := fakeGraph{}
	g.add(
		module("Lib"),
		class("Lib::Impl", ""),
		class("Lib::Impl::Inner", ""),
		constAlias("Short", "Lib::Impl"),
	)
	r := New(g)

	q, entries := r.ResolveConstant("Short", nil)
	assert.Equal(t, "Short", q)
	require.Len(t, entries, 1)
	alias, ok := entries[0].(*types.ConstantAlias)
	require.True(t, ok)
	assert.Equal(t, "Lib::Impl", alias.Target)

	q, _ = r.ResolveConstant("Short::Inner", nil)
	assert.Equal(t, "Lib::Impl::Inner", q)

	assert.Equal(t, "Lib::Impl::Inner", r.Canonical("Short::Inner"))
	assert.Equal(t, chain("Lib::Impl"), r.Ancestors("Short"))

	ns, ok := r.ResolveNamespace("Short", nil)
	assert.True(t, ok)
	assert.Equal(t, "Lib::Impl", ns)
}

func TestResolveConstantAliasCycle(t *testing.T) {
	g := fakeGraph{}
	g.add(constAlias("A", "B"), constAlias("B", "A"))
	r := New(g)

	q, entries := r.ResolveConstant("A", nil)
	assert.Equal(t, "A", q)
	require.Len(t, entries, 1)
	_, unresolved := entries[0].(*types.UnresolvedAlias)
	assert.True(t, unresolved)
	assert.Nil(t, r.Ancestors("A"))
}

func TestNonRedundantName(t *testing.T) {
	assert.Equal(t, "Baz", nonRedundantName("Baz", nil))
	assert.Equal(t, "Foo::Bar::Baz", nonRedundantName("Baz", []string{"Foo", "Bar"}))
	assert.Equal(t, "Outer::Foo::Bar", nonRedundantName("Foo::Bar", []string{"Outer", "Foo"}))
	assert.Equal(t, "A::B::X::Y", nonRedundantName("X::Y", []string{"A::B"}))
}

func TestSuperclassResolvesOutsideClassBody(t *testing.T) {
	g := fakeGraph{}
	g.add(
		module("Lib"),
		class("Lib::Error", "Error"),
		class("Lib::Error::Error", ""),
		class("Error", ""),
	)
	assert.Equal(t, chain("Lib::Error", "Error"), New(g).Ancestors("Lib::Error"))
}
