package types

// Visibility is the access level of a method or constant
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

// String returns the keyword for the visibility
func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// ParseVisibility maps a keyword to a Visibility
func ParseVisibility(s string) (Visibility, bool) {
	switch s {
	case "public":
		return Public, true
	case "protected":
		return Protected, true
	case "private":
		return Private, true
	}
	return Public, false
}

// Permits reports whether a call made with call-site visibility v may reach a
// member declared with visibility target. A public call site (explicit
// receiver) only reaches public members, a protected one (receiver of the
// same family) also reaches protected members, and a private one (implicit
// self) reaches everything.
func (v Visibility) Permits(target Visibility) bool {
	return target <= v
}
