package extractor

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/types"
)

// visitBareIdentifier handles argument-less visibility keywords, which the
// grammar parses as plain identifiers
func (w *walker) visitBareIdentifier(node *tree_sitter.Node) {
	if !isStatement(node) {
		return
	}
	switch text := nodeText(node, w.src); text {
	case "private", "protected", "public":
		vis, _ := types.ParseVisibility(text)
		w.setCursor(vis)
	case "module_function":
		w.current().moduleFunction = true
	}
}

func (w *walker) setCursor(vis types.Visibility) {
	cur := w.current()
	cur.visibility = vis
	cur.moduleFunction = false
}

// visitCall dispatches calls made on implicit self. Calls on any other
// receiver only reach the enhancements. vis overrides the visibility cursor
// for declarations made by the call ("private attr_reader").
func (w *walker) visitCall(node *tree_sitter.Node, vis *types.Visibility) {
	receiver := node.ChildByFieldName("receiver")
	name := nodeText(node.ChildByFieldName("method"), w.src)
	args := namedChildren(node.ChildByFieldName("arguments"))
	if receiver != nil && receiver.Kind() != "self" {
		w.runEnhancements(name, receiver, args, node)
		w.visitChildren(node)
		return
	}

	switch name {
	case "include", "prepend", "extend":
		kind, _ := types.ParseMixinKind(name)
		w.addMixins(kind, args)
	case "attr_reader", "attr_writer", "attr_accessor", "attr":
		w.addAccessors(name, args, node, vis)
	case "private", "protected", "public":
		v, _ := types.ParseVisibility(name)
		w.applyVisibility(v, args)
	case "private_class_method", "public_class_method":
		v := types.Private
		if name == "public_class_method" {
			v = types.Public
		}
		w.applyClassMethodVisibility(v, args)
	case "module_function":
		w.applyModuleFunction(args)
	case "private_constant", "public_constant":
		v := types.Private
		if name == "public_constant" {
			v = types.Public
		}
		w.applyConstantVisibility(v, args)
	case "alias_method":
		names := literalNames(args, w.src)
		if len(names) >= 2 {
			w.addMethodAlias(names[0], names[1], node, vis)
		}
	default:
		w.runEnhancements(name, receiver, args, node)
		w.visitChildren(node)
		return
	}

	if block := node.ChildByFieldName("block"); block != nil {
		w.visit(block)
	}
}

func (w *walker) addMixins(kind types.MixinKind, args []*tree_sitter.Node) {
	cur := w.current()
	if cur.entry == nil {
		return
	}
	if kind == types.MixinExtend && cur.entry.Kind() == types.KindSingletonClass {
		return
	}
	ns := cur.entry.Space()
	for _, arg := range args {
		switch {
		case arg.Kind() == "self":
			ns.AddMixin(kind, types.Separator+cur.name)
		case isConstantPath(arg):
			ns.AddMixin(kind, constantPath(arg, w.src))
		default:
			debug.Log("EXTRACTOR", "%s: ignoring dynamic %s argument %q", w.path, kind, nodeText(arg, w.src))
		}
	}
}

func (w *walker) addAccessors(call string, args []*tree_sitter.Node, node *tree_sitter.Node, vis *types.Visibility) {
	cur := w.current()
	visibility := cur.visibility
	if vis != nil {
		visibility = *vis
	}
	reader := call != "attr_writer"
	writer := call == "attr_writer" || call == "attr_accessor"

	for _, name := range literalNames(args, w.src) {
		if reader {
			w.add(&types.Accessor{Member: types.Member{
				Declaration: w.declaration(name, types.MemberName(cur.owner, name), node, visibility),
				Owner:       cur.owner,
			}})
		}
		if writer {
			setter := name + "="
			w.add(&types.Accessor{
				Member: types.Member{
					Declaration: w.declaration(setter, types.MemberName(cur.owner, setter), node, visibility),
					Owner:       cur.owner,
				},
				Writer: true,
			})
		}
	}
}

// applyVisibility handles private/protected/public with arguments: inline
// definitions get the visibility, symbols retroactively change methods
// already defined in this file
func (w *walker) applyVisibility(vis types.Visibility, args []*tree_sitter.Node) {
	if len(args) == 0 {
		w.setCursor(vis)
		return
	}
	cur := w.current()
	for _, arg := range args {
		switch arg.Kind() {
		case "method":
			w.visitMethod(arg, &vis)
		case "singleton_method":
			w.visitSingletonMethod(arg, nil)
		case "call":
			w.visitCall(arg, &vis)
		default:
			for _, name := range literalNames([]*tree_sitter.Node{arg}, w.src) {
				w.setMemberVisibility(cur.owner, name, vis)
			}
		}
	}
}

func (w *walker) applyClassMethodVisibility(vis types.Visibility, args []*tree_sitter.Node) {
	cur := w.current()
	if cur.name == "" {
		return
	}
	owner := types.SingletonName(cur.name)
	for _, arg := range args {
		if arg.Kind() == "singleton_method" {
			w.visitSingletonMethod(arg, &vis)
			continue
		}
		for _, name := range literalNames([]*tree_sitter.Node{arg}, w.src) {
			w.setMemberVisibility(owner, name, vis)
		}
	}
}

// applyModuleFunction turns methods into module functions: the instance
// method becomes private and a public copy is defined on the singleton
func (w *walker) applyModuleFunction(args []*tree_sitter.Node) {
	cur := w.current()
	if len(args) == 0 {
		cur.moduleFunction = true
		return
	}
	if cur.name == "" {
		return
	}
	singleton := types.SingletonName(cur.name)
	for _, arg := range args {
		if arg.Kind() == "method" {
			private := types.Private
			w.visitMethod(arg, &private)
			name, _ := methodName(arg.ChildByFieldName("name"), w.src)
			w.addMethod(singleton, name, parameters(arg.ChildByFieldName("parameters"), w.src), arg, types.Public)
			continue
		}
		for _, name := range literalNames([]*tree_sitter.Node{arg}, w.src) {
			for _, e := range w.entries {
				m, ok := e.(*types.Method)
				if !ok || m.Owner != cur.owner || m.Name != name {
					continue
				}
				m.Visibility = types.Private
				copied := *m
				copied.Owner = singleton
				copied.QualifiedName = types.MemberName(singleton, name)
				copied.Visibility = types.Public
				w.add(&copied)
				break
			}
		}
	}
}

func (w *walker) applyConstantVisibility(vis types.Visibility, args []*tree_sitter.Node) {
	cur := w.current()
	for _, name := range literalNames(args, w.src) {
		q := types.JoinName(cur.name, name)
		for _, e := range w.entries {
			d := e.Decl()
			if d.QualifiedName != q {
				continue
			}
			switch e.(type) {
			case *types.Constant, *types.UnresolvedAlias, *types.Class, *types.Module:
				d.Visibility = vis
			}
		}
	}
}

// setMemberVisibility changes the visibility of members of owner named
// name that were defined earlier in this file
func (w *walker) setMemberVisibility(owner, name string, vis types.Visibility) {
	found := false
	for _, e := range w.entries {
		if types.OwnerOf(e) != owner || e.Decl().Name != name {
			continue
		}
		if a, ok := e.(*types.UnresolvedAlias); ok && a.AliasOf != types.AliasMethod {
			continue
		}
		e.Decl().Visibility = vis
		found = true
	}
	if !found {
		debug.Log("EXTRACTOR", "%s: %s %s#%s not defined in this file", w.path, vis, owner, name)
	}
}

// runEnhancements offers an unrecognized call in a namespace body to the
// registered enhancements
func (w *walker) runEnhancements(name string, receiver *tree_sitter.Node, args []*tree_sitter.Node, node *tree_sitter.Node) {
	cur := w.current()
	if len(w.x.enhancements) == 0 || cur.entry == nil {
		return
	}
	call := CallSite{
		Name:       name,
		Receiver:   nodeText(receiver, w.src),
		Arguments:  arguments(args, w.src),
		Range:      nodeRange(node),
		Nesting:    cur.nesting,
		Visibility: cur.visibility,
		Node:       node,
		Source:     w.src,
	}
	for _, e := range w.x.enhancements {
		entries, err := w.callEnhancement(e, w, cur.owner, call)
		if err != nil {
			w.diagnose(node, idxerrors.DiagnosticEnhancement, "%v", err)
			continue
		}
		for _, entry := range entries {
			if entry == nil {
				continue
			}
			if d := entry.Decl(); d.FilePath == "" {
				d.FilePath = w.path
			}
			w.add(entry)
		}
	}
}

// callEnhancement isolates the walk from a failing enhancement
func (w *walker) callEnhancement(e Enhancement, index Resolver, owner string, call CallSite) (entries []types.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enhancement failed on %s: %v", call.Name, r)
		}
	}()
	return e.OnDeclarationCall(index, owner, call, w.path), nil
}
