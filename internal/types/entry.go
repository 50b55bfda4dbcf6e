package types

import "fmt"

// Kind identifies the declaration kind carried by an Entry
type Kind uint8

const (
	KindClass Kind = iota + 1
	KindModule
	KindSingletonClass
	KindMethod
	KindAccessor
	KindConstant
	KindConstantAlias
	KindMethodAlias
	KindUnresolvedAlias
	KindGlobalVariable
)

var kindStrings = map[Kind]string{
	KindClass:           "class",
	KindModule:          "module",
	KindSingletonClass:  "singleton_class",
	KindMethod:          "method",
	KindAccessor:        "accessor",
	KindConstant:        "constant",
	KindConstantAlias:   "constant_alias",
	KindMethodAlias:     "method_alias",
	KindUnresolvedAlias: "unresolved_alias",
	KindGlobalVariable:  "global_variable",
}

// String returns the snake_case name of the kind
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// IsNamespace reports whether entries of this kind can own members and mixins
func (k Kind) IsNamespace() bool {
	return k == KindClass || k == KindModule || k == KindSingletonClass
}

// IsMember reports whether entries of this kind are callable members of a namespace
func (k Kind) IsMember() bool {
	return k == KindMethod || k == KindAccessor || k == KindMethodAlias
}

// IsConstantLike reports whether entries of this kind take part in constant resolution
func (k Kind) IsConstantLike() bool {
	switch k {
	case KindClass, KindModule, KindConstant, KindConstantAlias:
		return true
	}
	return false
}

// Entry is a single indexed declaration.
//
// The set of implementations is closed: *Class, *Module, *SingletonClass,
// *Method, *Accessor, *Constant, *ConstantAlias, *MethodAlias,
// *UnresolvedAlias and *GlobalVariable. Code that needs per-kind behaviour
// switches on the concrete type.
type Entry interface {
	Kind() Kind
	Decl() *Declaration
	sealed()
}

// Declaration holds the fields every entry carries
type Declaration struct {
	Name          string // simple, unqualified name
	QualifiedName string // "::"-joined path at declaration time ("Foo#bar" for members)
	FilePath      string
	Range         Range
	Doc           DocRef
	Visibility    Visibility
}

// Decl returns the shared declaration fields
func (d *Declaration) Decl() *Declaration { return d }

func (d *Declaration) sealed() {}

// Key returns the identity of the declaration
func (d *Declaration) Key() EntryKey {
	return EntryKey{QualifiedName: d.QualifiedName, FilePath: d.FilePath, Range: d.Range}
}

// EntryKey is the equality key of an entry: two entries with the same key are
// the same declaration.
type EntryKey struct {
	QualifiedName string
	FilePath      string
	Range         Range
}

// String renders the key for diagnostics
func (k EntryKey) String() string {
	return fmt.Sprintf("%s@%s:%s", k.QualifiedName, k.FilePath, k.Range)
}

// KeyOf returns the identity key of any entry
func KeyOf(e Entry) EntryKey {
	return e.Decl().Key()
}

// SameEntry compares two entries by identity key
func SameEntry(a, b Entry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return KeyOf(a) == KeyOf(b)
}

// Namespace holds the fields shared by classes, modules and singleton classes
type Namespace struct {
	Declaration

	// Nesting is the lexical nesting the namespace was opened in, including
	// the namespace itself. Mixin and superclass names resolve against it.
	// An element anchored outside its enclosing scopes carries a leading
	// "::"; see NestingName.
	Nesting []string

	// Mixins are kept in file encounter order
	Mixins []Mixin
}

// Space returns the namespace fields
func (n *Namespace) Space() *Namespace { return n }

// AddMixin appends a mixin record, assigning its declaration order
func (n *Namespace) AddMixin(kind MixinKind, target string) {
	n.Mixins = append(n.Mixins, Mixin{Kind: kind, Target: target, Order: len(n.Mixins)})
}

// NamespaceEntry is implemented by *Class, *Module and *SingletonClass
type NamespaceEntry interface {
	Entry
	Space() *Namespace
}

// Class is a class declaration (one per opening, classes are reopened freely)
type Class struct {
	Namespace

	// Superclass is the superclass expression as written, empty when absent
	Superclass string
}

func (*Class) Kind() Kind { return KindClass }

// Module is a module declaration
type Module struct {
	Namespace
}

func (*Module) Kind() Kind { return KindModule }

// SingletonClass is the metaclass of a namespace (Foo::<Class:Foo>)
type SingletonClass struct {
	Namespace
}

func (*SingletonClass) Kind() Kind { return KindSingletonClass }

// Member holds the fields shared by method-like entries
type Member struct {
	Declaration

	// Owner is the qualified name of the namespace the member belongs to
	Owner string
}

// Membership returns the member fields
func (m *Member) Membership() *Member { return m }

// MemberEntry is implemented by *Method, *Accessor and *MethodAlias
type MemberEntry interface {
	Entry
	Membership() *Member
	Signatures() [][]Parameter
}

// Method is a method definition
type Method struct {
	Member
	Parameters []Parameter
}

func (*Method) Kind() Kind { return KindMethod }

// Signatures returns the parameter lists the method can be called with
func (m *Method) Signatures() [][]Parameter { return [][]Parameter{m.Parameters} }

// Accessor is an attribute reader or writer generated by attr_* calls
type Accessor struct {
	Member
	Writer bool
}

func (*Accessor) Kind() Kind { return KindAccessor }

// Signatures returns the implicit signature of the accessor
func (a *Accessor) Signatures() [][]Parameter {
	if a.Writer {
		return [][]Parameter{{{Kind: ParamRequired, Name: "value"}}}
	}
	return [][]Parameter{nil}
}

// MethodAlias is a method alias whose target has been resolved
type MethodAlias struct {
	Member

	// Target is the qualified name of the aliased member ("Foo#old")
	Target     string
	Parameters []Parameter
}

func (*MethodAlias) Kind() Kind { return KindMethodAlias }

// Signatures returns the signature of the aliased member
func (a *MethodAlias) Signatures() [][]Parameter { return [][]Parameter{a.Parameters} }

// Constant is a constant assignment
type Constant struct {
	Declaration
}

func (*Constant) Kind() Kind { return KindConstant }

// ConstantAlias is a constant assigned another constant whose target has
// been resolved
type ConstantAlias struct {
	Declaration

	// Target is the qualified name of the aliased constant
	Target string
}

func (*ConstantAlias) Kind() Kind { return KindConstantAlias }

// AliasKind distinguishes the two flavours of unresolved alias
type AliasKind uint8

const (
	AliasConstant AliasKind = iota + 1
	AliasMethod
)

// String returns the alias kind name
func (k AliasKind) String() string {
	switch k {
	case AliasConstant:
		return "constant"
	case AliasMethod:
		return "method"
	default:
		return "unknown"
	}
}

// UnresolvedAlias is an alias recorded at index time whose target is only
// known by name. Resolution happens at query time.
type UnresolvedAlias struct {
	Declaration
	AliasOf AliasKind

	// Target is the aliased name as written (constant path or method name)
	Target string

	// Nesting is the lexical nesting of a constant alias
	Nesting []string

	// Owner is the namespace of a method alias
	Owner string
}

func (*UnresolvedAlias) Kind() Kind { return KindUnresolvedAlias }

// GlobalVariable is a $global assignment
type GlobalVariable struct {
	Declaration
}

func (*GlobalVariable) Kind() Kind { return KindGlobalVariable }

// AsNamespace returns the namespace fields of namespace entries
func AsNamespace(e Entry) (NamespaceEntry, bool) {
	ns, ok := e.(NamespaceEntry)
	return ns, ok
}

// AsMember returns the member fields of method-like entries
func AsMember(e Entry) (MemberEntry, bool) {
	m, ok := e.(MemberEntry)
	return m, ok
}

// OwnerOf returns the owning namespace of members and method aliases, or ""
func OwnerOf(e Entry) string {
	switch v := e.(type) {
	case *Method:
		return v.Owner
	case *Accessor:
		return v.Owner
	case *MethodAlias:
		return v.Owner
	case *UnresolvedAlias:
		return v.Owner
	default:
		return ""
	}
}
