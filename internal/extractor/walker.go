package extractor

import (
	"fmt"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// topLevelOwner owns methods defined outside any namespace
const topLevelOwner = "Object"

// scope is one level of the nesting stack
type scope struct {
	name    string   // qualified name, "" at top level
	owner   string   // owner of members defined here
	nesting []string // lexical nesting; types.NestingName gives name
	entry   types.NamespaceEntry

	// visibility cursor, reset for every namespace body
	visibility     types.Visibility
	moduleFunction bool
}

type walker struct {
	x       *Extractor
	path    string
	src     []byte
	entries []types.Entry
	diags   []idxerrors.Diagnostic
	scopes  []*scope

	// namespaces opened earlier in this file, which the existing index
	// does not know about yet
	local map[string]struct{}

	// set once any placement or enhancement asked the existing index
	consulted bool
}

func newWalker(x *Extractor, path string, src []byte) *walker {
	return &walker{
		x:      x,
		path:   path,
		src:    src,
		scopes: []*scope{{owner: topLevelOwner}},
		local:  make(map[string]struct{}),
	}
}

func (w *walker) current() *scope {
	return w.scopes[len(w.scopes)-1]
}

func (w *walker) push(s *scope) {
	w.scopes = append(w.scopes, s)
}

func (w *walker) pop() {
	if len(w.scopes) > 1 {
		w.scopes = w.scopes[:len(w.scopes)-1]
	}
}

func (w *walker) declaration(name, qualified string, node *tree_sitter.Node, vis types.Visibility) types.Declaration {
	rng := nodeRange(node)
	return types.Declaration{
		Name:          name,
		QualifiedName: qualified,
		FilePath:      w.path,
		Range:         rng,
		Doc:           types.DocRef{Path: w.path, Line: rng.Start.Line},
		Visibility:    vis,
	}
}

func (w *walker) add(e types.Entry) {
	w.entries = append(w.entries, e)
}

func (w *walker) diagnose(node *tree_sitter.Node, kind idxerrors.DiagnosticKind, format string, args ...any) {
	pos := node.StartPosition()
	w.diags = append(w.diags, idxerrors.Diagnostic{
		Path:    w.path,
		Line:    int(pos.Row) + 1,
		Column:  int(pos.Column) + 1,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

func (w *walker) visitChildren(node *tree_sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			w.visit(child)
		}
	}
}

func (w *walker) visit(node *tree_sitter.Node) {
	if node.IsError() {
		w.diagnose(node, idxerrors.DiagnosticSyntax, "skipped unparseable region")
		return
	}
	if node.IsMissing() {
		w.diagnose(node, idxerrors.DiagnosticSyntax, "missing %q", node.Kind())
		return
	}

	switch node.Kind() {
	case "class":
		w.visitClass(node)
	case "module":
		w.visitModule(node)
	case "singleton_class":
		w.visitSingletonClass(node)
	case "method":
		w.visitMethod(node, nil)
	case "singleton_method":
		w.visitSingletonMethod(node, nil)
	case "assignment", "operator_assignment":
		w.visitAssignment(node)
	case "call":
		w.visitCall(node, nil)
	case "identifier":
		w.visitBareIdentifier(node)
	case "alias":
		w.visitAlias(node)
	case "comment", "string", "simple_symbol", "integer", "float":
	default:
		w.visitChildren(node)
	}
}

// qualify places a namespace opened through the written path. A qualified
// path whose first segment names a namespace known to this file or to the
// existing index is anchored there, otherwise it is nested in the current
// namespace.
func (w *walker) qualify(node *tree_sitter.Node) (string, []string, bool) {
	cur := w.current()
	if isSelfRootedPath(node) {
		q := types.JoinName(cur.name, nodeText(node.ChildByFieldName("name"), w.src))
		return q, cur.anchored(q), true
	}
	if !isConstantPath(node) {
		return "", nil, false
	}

	written := constantPath(node, w.src)
	if strings.HasPrefix(written, types.Separator) {
		q := strings.TrimPrefix(written, types.Separator)
		return q, cur.anchored(q), true
	}

	concat := types.JoinName(cur.name, written)
	nesting := append(slices.Clone(cur.nesting), written)
	parts := types.SplitName(written)
	if len(parts) == 1 {
		return concat, nesting, true
	}

	base, ok := w.lookupNamespace(parts[0])
	if !ok {
		return concat, nesting, true
	}
	q := types.JoinName(append([]string{base}, parts[1:]...)...)
	if q == concat {
		return q, nesting, true
	}
	return q, cur.anchored(q), true
}

// anchored is the nesting of a namespace placed at qualified outside this
// scope. The enclosing scopes stay part of the lexical nesting.
func (s *scope) anchored(qualified string) []string {
	if len(s.nesting) == 0 {
		return []string{qualified}
	}
	return append(slices.Clone(s.nesting), types.AbsoluteName(qualified))
}

// lookupNamespace resolves a single constant to a namespace opened earlier
// in this file or known to the existing index
func (w *walker) lookupNamespace(name string) (string, bool) {
	cur := w.current()
	for i := len(cur.nesting); i >= 0; i-- {
		candidate := types.JoinName(types.NestingName(cur.nesting[:i]), name)
		if _, ok := w.local[candidate]; ok {
			return candidate, true
		}
	}
	return w.ResolveNamespace(name, cur.nesting)
}

// ResolveNamespace asks the existing index and records that the result
// depends on it
func (w *walker) ResolveNamespace(name string, nesting []string) (string, bool) {
	if w.x.resolver == nil {
		return "", false
	}
	w.consulted = true
	return w.x.resolver.ResolveNamespace(name, nesting)
}

// reference resolves a constant path used as a receiver ("def Foo.bar",
// "class << Foo")
func (w *walker) reference(node *tree_sitter.Node) (string, bool) {
	if node.Kind() == "self" {
		if name := w.current().name; name != "" {
			return name, true
		}
		return topLevelOwner, true
	}
	if !isConstantPath(node) {
		return "", false
	}
	written := constantPath(node, w.src)
	if strings.HasPrefix(written, types.Separator) {
		return strings.TrimPrefix(written, types.Separator), true
	}
	parts := types.SplitName(written)
	base, ok := w.lookupNamespace(parts[0])
	if !ok {
		return written, true
	}
	return types.JoinName(append([]string{base}, parts[1:]...)...), true
}

func (w *walker) visitClass(node *tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	q, nesting, ok := w.qualify(nameNode)
	if !ok {
		w.diagnose(node, idxerrors.DiagnosticDynamicPath, "class %s is opened through a dynamic namespace", nodeText(nameNode, w.src))
		return
	}

	superclass := ""
	if sc := node.ChildByFieldName("superclass"); sc != nil {
		if expr := sc.NamedChild(0); expr != nil && isConstantPath(expr) {
			superclass = constantPath(expr, w.src)
		}
	}

	class := &types.Class{
		Namespace: types.Namespace{
			Declaration: w.declaration(types.LastSegment(q), q, node, types.Public),
			Nesting:     nesting,
		},
		Superclass: superclass,
	}
	w.openNamespace(class, node)
}

func (w *walker) visitModule(node *tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	q, nesting, ok := w.qualify(nameNode)
	if !ok {
		w.diagnose(node, idxerrors.DiagnosticDynamicPath, "module %s is opened through a dynamic namespace", nodeText(nameNode, w.src))
		return
	}

	module := &types.Module{
		Namespace: types.Namespace{
			Declaration: w.declaration(types.LastSegment(q), q, node, types.Public),
			Nesting:     nesting,
		},
	}
	w.openNamespace(module, node)
}

func (w *walker) openNamespace(entry types.NamespaceEntry, node *tree_sitter.Node) {
	ns := entry.Space()
	w.add(entry)
	w.local[ns.QualifiedName] = struct{}{}

	w.push(&scope{name: ns.QualifiedName, owner: ns.QualifiedName, nesting: ns.Nesting, entry: entry})
	defer w.pop()
	if body := node.ChildByFieldName("body"); body != nil {
		w.visitChildren(body)
	}
}

func (w *walker) visitSingletonClass(node *tree_sitter.Node) {
	value := node.ChildByFieldName("value")
	if value == nil {
		return
	}
	attached, ok := w.reference(value)
	if !ok {
		w.diagnose(node, idxerrors.DiagnosticDynamicPath, "singleton class of %s cannot be resolved statically", nodeText(value, w.src))
		return
	}

	cur := w.current()
	name := types.SingletonName(attached)
	nesting := cur.anchored(name)
	if attached == cur.name {
		nesting = append(slices.Clone(cur.nesting), types.LastSegment(name))
	}

	singleton := &types.SingletonClass{
		Namespace: types.Namespace{
			Declaration: w.declaration(types.LastSegment(name), name, node, types.Public),
			Nesting:     nesting,
		},
	}
	w.add(singleton)

	w.push(&scope{name: name, owner: name, nesting: nesting, entry: singleton})
	defer w.pop()
	if body := node.ChildByFieldName("body"); body != nil {
		w.visitChildren(body)
	}
}

// visitMethod records a def. vis overrides the visibility cursor.
func (w *walker) visitMethod(node *tree_sitter.Node, vis *types.Visibility) {
	name, ok := methodName(node.ChildByFieldName("name"), w.src)
	if !ok {
		return
	}
	cur := w.current()
	params := parameters(node.ChildByFieldName("parameters"), w.src)

	visibility := cur.visibility
	if vis != nil {
		visibility = *vis
	}
	if cur.moduleFunction && vis == nil {
		visibility = types.Private
		w.addMethod(types.SingletonName(cur.name), name, params, node, types.Public)
	}
	w.addMethod(cur.owner, name, params, node, visibility)
}

func (w *walker) addMethod(owner, name string, params []types.Parameter, node *tree_sitter.Node, vis types.Visibility) {
	w.add(&types.Method{
		Member: types.Member{
			Declaration: w.declaration(name, types.MemberName(owner, name), node, vis),
			Owner:       owner,
		},
		Parameters: params,
	})
}

// visitSingletonMethod records "def self.m" and "def Const.m"
func (w *walker) visitSingletonMethod(node *tree_sitter.Node, vis *types.Visibility) {
	object := node.ChildByFieldName("object")
	name, ok := methodName(node.ChildByFieldName("name"), w.src)
	if object == nil || !ok {
		return
	}
	attached, ok := w.reference(object)
	if !ok {
		// def some_object.m: not a declaration on a namespace
		return
	}
	visibility := types.Public
	if vis != nil {
		visibility = *vis
	}
	params := parameters(node.ChildByFieldName("parameters"), w.src)
	w.addMethod(types.SingletonName(attached), name, params, node, visibility)
}

func (w *walker) visitAssignment(node *tree_sitter.Node) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil {
		return
	}

	switch left.Kind() {
	case "constant", "scope_resolution":
		w.addConstant(left, right, node)
	case "global_variable":
		w.addGlobal(left, node)
	case "left_assignment_list":
		for _, target := range namedChildren(left) {
			switch target.Kind() {
			case "constant", "scope_resolution":
				w.addConstant(target, nil, node)
			case "global_variable":
				w.addGlobal(target, node)
			}
		}
	}
	if right != nil {
		w.visit(right)
	}
}

// addConstant records a constant, or an unresolved alias when the value is
// itself a constant reference
func (w *walker) addConstant(target, value, node *tree_sitter.Node) {
	cur := w.current()
	var q string
	if target.Kind() == "constant" {
		q = types.JoinName(cur.name, nodeText(target, w.src))
	} else {
		var ok bool
		if q, _, ok = w.qualify(target); !ok {
			w.diagnose(node, idxerrors.DiagnosticDynamicPath, "constant %s is assigned through a dynamic namespace", nodeText(target, w.src))
			return
		}
	}
	decl := w.declaration(types.LastSegment(q), q, node, types.Public)

	if value != nil && isConstantPath(value) {
		w.add(&types.UnresolvedAlias{
			Declaration: decl,
			AliasOf:     types.AliasConstant,
			Target:      constantPath(value, w.src),
			Nesting:     slices.Clone(cur.nesting),
		})
		return
	}
	w.add(&types.Constant{Declaration: decl})
}

func (w *walker) addGlobal(target, node *tree_sitter.Node) {
	name := nodeText(target, w.src)
	w.add(&types.GlobalVariable{Declaration: w.declaration(name, name, node, types.Public)})
}

// visitAlias records "alias new old" between methods
func (w *walker) visitAlias(node *tree_sitter.Node) {
	newName, ok1 := methodName(node.ChildByFieldName("name"), w.src)
	oldName, ok2 := methodName(node.ChildByFieldName("alias"), w.src)
	if !ok1 || !ok2 {
		return
	}
	w.addMethodAlias(newName, oldName, node, nil)
}

func (w *walker) addMethodAlias(newName, oldName string, node *tree_sitter.Node, vis *types.Visibility) {
	cur := w.current()
	visibility := cur.visibility
	if vis != nil {
		visibility = *vis
	}
	w.add(&types.UnresolvedAlias{
		Declaration: w.declaration(newName, types.MemberName(cur.owner, newName), node, visibility),
		AliasOf:     types.AliasMethod,
		Target:      oldName,
		Owner:       cur.owner,
	})
}

func (w *walker) reportedSyntax() bool {
	for _, d := range w.diags {
		if d.Kind == idxerrors.DiagnosticSyntax {
			return true
		}
	}
	return false
}

// firstError finds the first error or missing node in document order,
// including inside method bodies the walk does not enter
func firstError(node *tree_sitter.Node) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstError(node.Child(i)); found != nil {
			return found
		}
	}
	return node
}
