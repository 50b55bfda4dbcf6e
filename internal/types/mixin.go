package types

// MixinKind is the way a module is mixed into a namespace
type MixinKind uint8

const (
	MixinInclude MixinKind = iota + 1
	MixinPrepend
	MixinExtend
)

// String returns the Ruby keyword for the mixin kind
func (k MixinKind) String() string {
	switch k {
	case MixinInclude:
		return "include"
	case MixinPrepend:
		return "prepend"
	case MixinExtend:
		return "extend"
	default:
		return "unknown"
	}
}

// ParseMixinKind maps a call name to a mixin kind
func ParseMixinKind(s string) (MixinKind, bool) {
	switch s {
	case "include":
		return MixinInclude, true
	case "prepend":
		return MixinPrepend, true
	case "extend":
		return MixinExtend, true
	}
	return 0, false
}

// Mixin records one include/prepend/extend statement of a namespace body
type Mixin struct {
	Kind   MixinKind
	Target string // module path as written, resolved against the namespace nesting
	Order  int    // position in file encounter order within the namespace entry
}
