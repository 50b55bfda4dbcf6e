package types

import "strings"

const (
	// Separator joins namespace path segments
	Separator = "::"

	// MemberSeparator joins an owner and a member name ("Foo#bar")
	MemberSeparator = "#"

	singletonPrefix = "<Class:"
)

// JoinName joins path segments with "::", skipping empty segments
func JoinName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, Separator)
}

// SplitName splits a qualified name into its segments. A leading "::" is
// dropped.
func SplitName(name string) []string {
	name = strings.TrimPrefix(name, Separator)
	if name == "" {
		return nil
	}
	return strings.Split(name, Separator)
}

// AbsoluteName marks a nesting element as anchored at the top level, as
// "class ::Foo" or a compact path resolved outside the enclosing scopes
func AbsoluteName(name string) string {
	return Separator + strings.TrimPrefix(name, Separator)
}

// IsAbsoluteName reports whether a nesting element is anchored at the top level
func IsAbsoluteName(name string) bool {
	return strings.HasPrefix(name, Separator)
}

// NestingName returns the namespace a lexical nesting denotes. An anchored
// element discards the elements before it: ["Outer", "::Target::Inner"]
// denotes "Target::Inner".
func NestingName(nesting []string) string {
	var parts []string
	for _, n := range nesting {
		if IsAbsoluteName(n) {
			parts = parts[:0]
		}
		parts = append(parts, SplitName(n)...)
	}
	return JoinName(parts...)
}

// LastSegment returns the final segment of a constant path or the member name
// of a member key
func LastSegment(name string) string {
	if i := strings.LastIndex(name, MemberSeparator); i >= 0 {
		return name[i+1:]
	}
	if i := strings.LastIndex(name, Separator); i >= 0 {
		return name[i+len(Separator):]
	}
	return name
}

// ParentName returns the name without its final segment, or "" at top level
func ParentName(name string) string {
	if i := strings.LastIndex(name, Separator); i >= 0 {
		return name[:i]
	}
	return ""
}

// MemberName builds the qualified name of a member: "Owner#name"
func MemberName(owner, name string) string {
	return owner + MemberSeparator + name
}

// SplitMemberName splits "Owner#name" into its owner and member name
func SplitMemberName(qualified string) (owner, name string, ok bool) {
	i := strings.LastIndex(qualified, MemberSeparator)
	if i < 0 {
		return "", "", false
	}
	return qualified[:i], qualified[i+1:], true
}

// SingletonName returns the qualified name of the singleton class of the
// namespace: "Foo::Bar" -> "Foo::Bar::<Class:Bar>"
func SingletonName(attached string) string {
	return attached + Separator + singletonSegment(LastSegment(attached))
}

func singletonSegment(name string) string {
	return singletonPrefix + name + ">"
}

// IsSingletonSegment reports whether a path segment names a singleton class
func IsSingletonSegment(segment string) bool {
	return strings.HasPrefix(segment, singletonPrefix) && strings.HasSuffix(segment, ">")
}

// AttachedName strips trailing singleton segments from a namespace name and
// reports how many levels were removed: "Foo::<Class:Foo>" -> ("Foo", 1)
func AttachedName(name string) (string, int) {
	parts := SplitName(name)
	levels := 0
	for len(parts) > 0 && IsSingletonSegment(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
		levels++
	}
	return strings.Join(parts, Separator), levels
}

// WithSingletonLevels appends levels singleton segments to a namespace name
func WithSingletonLevels(name string, levels int) string {
	for i := 0; i < levels; i++ {
		name = SingletonName(name)
	}
	return name
}
