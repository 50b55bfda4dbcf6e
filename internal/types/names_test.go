package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinAndSplitName(t *testing.T) {
	assert.Equal(t, "Foo::Bar", JoinName("Foo", "", "Bar"))
	assert.Equal(t, "", JoinName())
	assert.Equal(t, []string{"Foo", "Bar"}, SplitName("::Foo::Bar"))
	assert.Nil(t, SplitName(""))
}

func TestNestingName(t *testing.T) {
	tests := []struct {
		nesting []string
		want    string
	}{
		{nil, ""},
		{[]string{"Outer", "Inner"}, "Outer::Inner"},
		{[]string{"Outer", "Foo::Bar"}, "Outer::Foo::Bar"},
		{[]string{"Outer", "::Target::Inner"}, "Target::Inner"},
		{[]string{"Outer", "::Target", "Deep"}, "Target::Deep"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, NestingName(test.nesting), "%v", test.nesting)
	}
	assert.Equal(t, "::Foo", AbsoluteName("Foo"))
	assert.Equal(t, "::Foo", AbsoluteName("::Foo"))
	assert.True(t, IsAbsoluteName("::Foo"))
	assert.False(t, IsAbsoluteName("Foo"))
}

func TestLastSegmentAndParent(t *testing.T) {
	tests := []struct {
		name   string
		last   string
		parent string
	}{
		{"Foo", "Foo", ""},
		{"Foo::Bar", "Bar", "Foo"},
		{"Foo::Bar#baz", "baz", "Foo"},
		{"A::B::C", "C", "A::B"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.last, LastSegment(test.name))
			assert.Equal(t, test.parent, ParentName(test.name))
		})
	}
}

func TestMemberName(t *testing.T) {
	q := MemberName("Foo::<Class:Foo>", "create")
	assert.Equal(t, "Foo::<Class:Foo>#create", q)

	owner, name, ok := SplitMemberName(q)
	assert.True(t, ok)
	assert.Equal(t, "Foo::<Class:Foo>", owner)
	assert.Equal(t, "create", name)

	_, _, ok = SplitMemberName("Foo")
	assert.False(t, ok)
}

func TestSingletonNames(t *testing.T) {
	assert.Equal(t, "Foo::Bar::<Class:Bar>", SingletonName("Foo::Bar"))
	assert.True(t, IsSingletonSegment("<Class:Bar>"))
	assert.False(t, IsSingletonSegment("Bar"))

	name, levels := AttachedName("Foo::<Class:Foo>::<Class:<Class:Foo>>")
	assert.Equal(t, "Foo", name)
	assert.Equal(t, 2, levels)

	name, levels = AttachedName("Foo")
	assert.Equal(t, "Foo", name)
	assert.Equal(t, 0, levels)

	assert.Equal(t, "Foo::<Class:Foo>", WithSingletonLevels("Foo", 1))
	assert.Equal(t, "Foo", WithSingletonLevels("Foo", 0))
}

func TestVisibilityPermits(t *testing.T) {
	assert.True(t, Public.Permits(Public))
	assert.False(t, Public.Permits(Protected))
	assert.False(t, Public.Permits(Private))
	assert.True(t, Protected.Permits(Protected))
	assert.False(t, Protected.Permits(Private))
	assert.True(t, Private.Permits(Private))
	assert.True(t, Private.Permits(Public))

	v, ok := ParseVisibility("protected")
	assert.True(t, ok)
	assert.Equal(t, Protected, v)
	_, ok = ParseVisibility("internal")
	assert.False(t, ok)
}

func TestFormatSignature(t *testing.T) {
	params := []Parameter{
		{Kind: ParamRequired, Name: "a"},
		{Kind: ParamOptional, Name: "b"},
		{Kind: ParamRest, Name: "rest"},
		{Kind: ParamKeyword, Name: "k"},
		{Kind: ParamOptionalKeyword, Name: "o"},
		{Kind: ParamKeywordRest, Name: "opts"},
		{Kind: ParamBlock, Name: "blk"},
	}
	assert.Equal(t, "(a, b = <default>, *rest, k:, o: <default>, **opts, &blk)", FormatSignature(params))
	assert.Equal(t, "(...)", FormatSignature([]Parameter{{Kind: ParamForward}}))
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: Position{Line: 2, Column: 0}, End: Position{Line: 4, Column: 3}}
	assert.True(t, r.Contains(Position{Line: 3, Column: 10}))
	assert.True(t, r.Contains(Position{Line: 2, Column: 0}))
	assert.False(t, r.Contains(Position{Line: 4, Column: 3}))
	assert.False(t, r.Contains(Position{Line: 1, Column: 5}))
}
