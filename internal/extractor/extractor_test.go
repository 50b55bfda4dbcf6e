package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/types"
)

func extract(t *testing.T, src string, opts ...Option) Result {
	t.Helper()
	res, err := New(opts...).ExtractSource("/w/a.rb", []byte(src))
	require.NoError(t, err)
	return res
}

func find(res Result, qualified string) []types.Entry {
	var out []types.Entry
	for _, e := range res.Entries {
		if e.Decl().QualifiedName == qualified {
			out = append(out, e)
		}
	}
	return out
}

func one[T types.Entry](t *testing.T, res Result, qualified string) T {
	t.Helper()
	found := find(res, qualified)
	require.Len(t, found, 1, "entries named %s", qualified)
	e, ok := found[0].(T)
	require.True(t, ok, "%s is %T", qualified, found[0])
	return e
}

func names(res Result) []string {
	out := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, e.Decl().QualifiedName)
	}
	return out
}

type mapResolver map[string]string

func (m mapResolver) ResolveNamespace(name string, _ []string) (string, bool) {
	q, ok := m[name]
	return q, ok
}

func TestNestedNamespaces(t *testing.T) {
	res := extract(t, `
module Outer
  class Inner < Base
    CONST = 1
    def run(a, b = 2, *rest, k:, o: 1, **opts, &blk); end
  end
end
`)
	assert.Equal(t, []string{"Outer", "Outer::Inner", "Outer::Inner::CONST", "Outer::Inner#run"}, names(res))
	assert.Empty(t, res.Diagnostics)

	inner := one[*types.Class](t, res, "Outer::Inner")
	assert.Equal(t, "Inner", inner.Name)
	assert.Equal(t, "Base", inner.Superclass)
	assert.Equal(t, []string{"Outer", "Inner"}, inner.Nesting)
	assert.Equal(t, "/w/a.rb", inner.FilePath)
	assert.Equal(t, 2, inner.Range.Start.Line)

	run := one[*types.Method](t, res, "Outer::Inner#run")
	assert.Equal(t, "Outer::Inner", run.Owner)
	assert.Equal(t, types.Public, run.Visibility)
	assert.Equal(t, "(a, b = <default>, *rest, k:, o: <default>, **opts, &blk)", types.FormatSignature(run.Parameters))
}

func TestCompactNamespacePaths(t *testing.T) {
	res := extract(t, `
module Foo; end
class Foo::Bar
  include Baz
end
class Unknown::Thing; end
`)
	bar := one[*types.Class](t, res, "Foo::Bar")
	assert.Equal(t, []string{"Foo::Bar"}, bar.Nesting)
	assert.Equal(t, []types.Mixin{{Kind: types.MixinInclude, Target: "Baz", Order: 0}}, bar.Mixins)

	thing := one[*types.Class](t, res, "Unknown::Thing")
	assert.Equal(t, []string{"Unknown::Thing"}, thing.Nesting)
}

func TestCompactPathAnchoredThroughIndex(t *testing.T) {
	src := `
module App
  class Models::User; end
end
`
	res := extract(t, src, WithResolver(mapResolver{"Models": "Models"}))
	user := one[*types.Class](t, res, "Models::User")
	assert.Equal(t, []string{"App", "::Models::User"}, user.Nesting)
	assert.True(t, res.ConsultedIndex)

	res = extract(t, src)
	user = one[*types.Class](t, res, "App::Models::User")
	assert.Equal(t, []string{"App", "Models::User"}, user.Nesting)
	assert.False(t, res.ConsultedIndex)
}

func TestCompactPathKeepsEnclosingScopes(t *testing.T) {
	res := extract(t, `
module Outer
  class Target::Inner < Base
    include Helper
    class << Other; end
  end
end
`, WithResolver(mapResolver{"Target": "Target"}))

	inner := one[*types.Class](t, res, "Target::Inner")
	assert.Equal(t, []string{"Outer", "::Target::Inner"}, inner.Nesting)
	assert.Equal(t, "Target::Inner", types.NestingName(inner.Nesting))

	other := one[*types.SingletonClass](t, res, "Other::<Class:Other>")
	assert.Equal(t, []string{"Outer", "::Target::Inner", "::Other::<Class:Other>"}, other.Nesting)
}

func TestLocalNamespacesDoNotConsultIndex(t *testing.T) {
	res := extract(t, `
module Target; end
module Outer
  class Target::Inner; end
end
`, WithResolver(mapResolver{"Target": "Elsewhere"}))
	one[*types.Class](t, res, "Target::Inner")
	assert.False(t, res.ConsultedIndex)
}

func TestTopLevelPathsAndSelfPaths(t *testing.T) {
	res := extract(t, `
module A
  class ::B; end
  class self::C; end
end
`)
	b := one[*types.Class](t, res, "B")
	assert.Equal(t, []string{"A", "::B"}, b.Nesting)
	c := one[*types.Class](t, res, "A::C")
	assert.Equal(t, "A::C", types.NestingName(c.Nesting))
}

func TestDynamicNamespaceIsSkipped(t *testing.T) {
	res := extract(t, `
class foo::Bar
  def hidden; end
end
class Visible; end
`)
	assert.Equal(t, []string{"Visible"}, names(res))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, idxerrors.DiagnosticDynamicPath, res.Diagnostics[0].Kind)
	assert.Equal(t, 2, res.Diagnostics[0].Line)
}

func TestMixins(t *testing.T) {
	res := extract(t, `
class Foo
  include A, B
  prepend P
  extend E
  include self
  include something.dynamic
end
`)
	foo := one[*types.Class](t, res, "Foo")
	assert.Equal(t, []types.Mixin{
		{Kind: types.MixinInclude, Target: "A", Order: 0},
		{Kind: types.MixinInclude, Target: "B", Order: 1},
		{Kind: types.MixinPrepend, Target: "P", Order: 2},
		{Kind: types.MixinExtend, Target: "E", Order: 3},
		{Kind: types.MixinInclude, Target: "::Foo", Order: 4},
	}, foo.Mixins)
}

func TestTopLevelMixinIsIgnored(t *testing.T) {
	res := extract(t, "include Comparable\n")
	assert.Empty(t, res.Entries)
}

func TestSingletonClassBlock(t *testing.T) {
	res := extract(t, `
class Foo
  class << self
    include Helpers
    def build; end
    private
    def secret; end
  end
  def self.create; end
end
def Foo.other; end
`)
	sc := one[*types.SingletonClass](t, res, "Foo::<Class:Foo>")
	assert.Equal(t, []string{"Foo", "<Class:Foo>"}, sc.Nesting)
	assert.Equal(t, "Helpers", sc.Mixins[0].Target)

	build := one[*types.Method](t, res, "Foo::<Class:Foo>#build")
	assert.Equal(t, "Foo::<Class:Foo>", build.Owner)
	assert.Equal(t, types.Public, build.Visibility)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Foo::<Class:Foo>#secret").Visibility)
	one[*types.Method](t, res, "Foo::<Class:Foo>#create")
	one[*types.Method](t, res, "Foo::<Class:Foo>#other")
}

func TestVisibilityCursor(t *testing.T) {
	res := extract(t, `
class Foo
  def a; end
  private
  def b; end
  protected
  def c; end
  public
  def d; end
end
class Foo
  def e; end
end
`)
	assert.Equal(t, types.Public, one[*types.Method](t, res, "Foo#a").Visibility)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Foo#b").Visibility)
	assert.Equal(t, types.Protected, one[*types.Method](t, res, "Foo#c").Visibility)
	assert.Equal(t, types.Public, one[*types.Method](t, res, "Foo#d").Visibility)
	assert.Equal(t, types.Public, one[*types.Method](t, res, "Foo#e").Visibility, "cursor resets on reopen")
}

func TestVisibilityWithArguments(t *testing.T) {
	res := extract(t, `
class Foo
  def a; end
  def b; end
  private :a
  private def c; end
  protected attr_reader :d
  def e; end
  private_class_method def self.f; end
  def self.g; end
  private_class_method :g
end
`)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Foo#a").Visibility)
	assert.Equal(t, types.Public, one[*types.Method](t, res, "Foo#b").Visibility)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Foo#c").Visibility)
	assert.Equal(t, types.Protected, one[*types.Accessor](t, res, "Foo#d").Visibility)
	assert.Equal(t, types.Public, one[*types.Method](t, res, "Foo#e").Visibility, "inline forms leave the cursor alone")
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Foo::<Class:Foo>#f").Visibility)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Foo::<Class:Foo>#g").Visibility)
}

func TestAccessors(t *testing.T) {
	res := extract(t, `
class Foo
  attr_reader :r
  attr_writer :w
  attr_accessor :x, "y"
end
`)
	assert.Equal(t, []string{"Foo", "Foo#r", "Foo#w=", "Foo#x", "Foo#x=", "Foo#y", "Foo#y="}, names(res))
	w := one[*types.Accessor](t, res, "Foo#w=")
	assert.True(t, w.Writer)
	assert.Equal(t, "w=", w.Name)
	assert.False(t, one[*types.Accessor](t, res, "Foo#r").Writer)
}

func TestModuleFunction(t *testing.T) {
	res := extract(t, `
module Util
  def before; end
  module_function :before

  module_function
  def helper(x); end
end
`)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Util#before").Visibility)
	assert.Equal(t, types.Public, one[*types.Method](t, res, "Util::<Class:Util>#before").Visibility)
	assert.Equal(t, types.Private, one[*types.Method](t, res, "Util#helper").Visibility)
	h := one[*types.Method](t, res, "Util::<Class:Util>#helper")
	assert.Equal(t, types.Public, h.Visibility)
	assert.Equal(t, "(x)", types.FormatSignature(h.Parameters))
}

func TestConstantsAndAliases(t *testing.T) {
	res := extract(t, `
module M
  A = 1
  B = A
  C = ::Other::Thing
  D, E = 1, 2
  A += 1
  private_constant :B
end
$global = 1
`)
	b := one[*types.UnresolvedAlias](t, res, "M::B")
	assert.Equal(t, types.AliasConstant, b.AliasOf)
	assert.Equal(t, "A", b.Target)
	assert.Equal(t, []string{"M"}, b.Nesting)
	assert.Equal(t, types.Private, b.Visibility)

	assert.Equal(t, "::Other::Thing", one[*types.UnresolvedAlias](t, res, "M::C").Target)
	one[*types.Constant](t, res, "M::D")
	one[*types.Constant](t, res, "M::E")
	assert.Len(t, find(res, "M::A"), 2, "operator assignments record a declaration")
	one[*types.GlobalVariable](t, res, "$global")
}

func TestMethodAliases(t *testing.T) {
	res := extract(t, `
class Foo
  def original; end
  alias copy original
  alias_method :other, :original
end
`)
	copyAlias := one[*types.UnresolvedAlias](t, res, "Foo#copy")
	assert.Equal(t, types.AliasMethod, copyAlias.AliasOf)
	assert.Equal(t, "original", copyAlias.Target)
	assert.Equal(t, "Foo", copyAlias.Owner)
	assert.Equal(t, "original", one[*types.UnresolvedAlias](t, res, "Foo#other").Target)
}

func TestTopLevelMethodsBelongToObject(t *testing.T) {
	res := extract(t, "def helper; end\n")
	m := one[*types.Method](t, res, "Object#helper")
	assert.Equal(t, "Object", m.Owner)
}

func TestMethodBodiesAreNotIndexed(t *testing.T) {
	res := extract(t, `
class Foo
  def run
    x = 1
    include Nope
  end
end
`)
	foo := one[*types.Class](t, res, "Foo")
	assert.Empty(t, foo.Mixins)
	assert.Equal(t, []string{"Foo", "Foo#run"}, names(res))
}

func TestSyntaxErrorsAreReported(t *testing.T) {
	res := extract(t, "class Foo\n  def (\nend\nmodule Ok; end\n")
	assert.NotEmpty(t, res.Diagnostics)
	for _, d := range res.Diagnostics {
		assert.Equal(t, idxerrors.DiagnosticSyntax, d.Kind)
		assert.Equal(t, "/w/a.rb", d.Path)
	}
}

func TestEnhancements(t *testing.T) {
	res := extract(t, `
class Foo
  define_method(:dynamic) { }
  define_method(name) { }
  delegate :size, :empty?, to: :items
  delegate :name, to: :owner, prefix: true
end
define_method(:outside) { }
`, WithEnhancements(DefaultEnhancements()...))

	m := one[*types.Method](t, res, "Foo#dynamic")
	assert.Equal(t, "Foo", m.Owner)
	assert.Equal(t, "/w/a.rb", m.FilePath)
	one[*types.Method](t, res, "Foo#size")
	one[*types.Method](t, res, "Foo#empty?")
	one[*types.Method](t, res, "Foo#owner_name")
	assert.Empty(t, find(res, "Object#outside"), "enhancements only run in namespace bodies")
}

func TestPanickingEnhancementIsIsolated(t *testing.T) {
	boom := EnhancementFunc(func(Resolver, string, CallSite, string) []types.Entry {
		panic("boom")
	})
	res := extract(t, `
class Foo
  has_many :things
  def ok; end
end
`, WithEnhancements(boom))

	one[*types.Method](t, res, "Foo#ok")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, idxerrors.DiagnosticEnhancement, res.Diagnostics[0].Kind)
	assert.Contains(t, res.Diagnostics[0].Message, "has_many")
}

func TestEnhancementSeesCallSite(t *testing.T) {
	var got CallSite
	var gotOwner string
	spy := EnhancementFunc(func(_ Resolver, owner string, call CallSite, _ string) []types.Entry {
		if call.Name == "scope" {
			got, gotOwner = call, owner
		}
		return nil
	})
	extract(t, `
module App
  class Post
    private
    scope :recent, Arel, limit: 5
  end
end
`, WithEnhancements(spy))

	assert.Equal(t, "App::Post", gotOwner)
	assert.Equal(t, []string{"App", "Post"}, got.Nesting)
	assert.Equal(t, types.Private, got.Visibility)
	assert.Equal(t, []string{"recent"}, got.Symbols())
	assert.Equal(t, ArgConstant, got.Arguments[1].Kind)
	v, ok := got.Keyword("limit")
	assert.True(t, ok)
	assert.Equal(t, "5", v)
}

func TestEnhancementSeesReceiverCalls(t *testing.T) {
	var receivers []string
	spy := EnhancementFunc(func(_ Resolver, _ string, call CallSite, _ string) []types.Entry {
		if call.Name == "register" {
			receivers = append(receivers, call.Receiver)
		}
		return nil
	})
	res := extract(t, `
class Plugin
  Registry.register :plugin
  self.register :self
  register :implicit
end
`, WithEnhancements(spy), WithEnhancements(DefaultEnhancements()...))

	assert.Equal(t, []string{"Registry", "self", ""}, receivers)
	assert.Equal(t, []string{"Plugin"}, names(res))
}

func TestEnhancementLookupsAreRecorded(t *testing.T) {
	lookup := EnhancementFunc(func(index Resolver, _ string, call CallSite, _ string) []types.Entry {
		if call.Name == "concern" {
			index.ResolveNamespace("Concern", call.Nesting)
		}
		return nil
	})
	res := extract(t, "class Foo\n  concern :x\nend\n", WithEnhancements(lookup))
	assert.False(t, res.ConsultedIndex, "no index to consult")

	res = extract(t, "class Foo\n  concern :x\nend\n", WithEnhancements(lookup), WithResolver(mapResolver{}))
	assert.True(t, res.ConsultedIndex)
}
