package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/textutil"
)

// Result is the outcome of extracting one module.
type Result struct {
	Path      string
	Records   []*ace.Record
	Spans     []textutil.Span
	Rewritten []byte
}

// Extract parses src, builds one record per annotated method, registers them
// in bc and returns the source with every consumed annotation removed.
func Extract(ctx context.Context, bc *ace.BuildContext, path string, src []byte) (*Result, error) {
	res, err := Scan(ctx, path, src)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Records {
		if err := bc.Register(r); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Scan is Extract without registration. It is used by tooling that inspects
// a single file.
func Scan(ctx context.Context, path string, src []byte) (*Result, error) {
	if !bytes.ContainsRune(src, '@') {
		return &Result{Path: path, Rewritten: src}, nil
	}
	mod, err := ParseModule(ctx, path, src)
	if err != nil {
		return nil, err
	}
	x := &extractor{mod: mod}
	for _, cls := range topLevelClasses(mod.Root) {
		if err := x.class(cls); err != nil {
			return nil, err
		}
	}
	out, err := textutil.Splice(src, x.spans)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", path, err)
	}
	return &Result{Path: path, Records: x.records, Spans: textutil.SortSpans(x.spans), Rewritten: out}, nil
}

type extractor struct {
	mod     *Module
	spans   []textutil.Span
	records []*ace.Record
}

func (x *extractor) remove(n *sitter.Node) {
	x.spans = append(x.spans, textutil.Span{Start: int(n.StartByte()), End: int(n.EndByte())})
}

// classDecl is a class node plus the decorators attached to it, which the
// grammar places either on the class or on the enclosing export statement.
type classDecl struct {
	node       *sitter.Node
	decorators []*sitter.Node
}

func topLevelClasses(root *sitter.Node) []classDecl {
	var out []classDecl
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "class_declaration", "abstract_class_declaration":
			out = append(out, classDecl{node: n, decorators: childrenOfType(n, "decorator")})
		case "export_statement":
			outer := childrenOfType(n, "decorator")
			for j := 0; j < int(n.NamedChildCount()); j++ {
				c := n.NamedChild(j)
				switch c.Type() {
				case "class_declaration", "abstract_class_declaration", "class":
					decs := append(append([]*sitter.Node{}, outer...), childrenOfType(c, "decorator")...)
					out = append(out, classDecl{node: c, decorators: decs})
				}
			}
		}
	}
	return out
}

func childrenOfType(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

func (x *extractor) class(cls classDecl) error {
	container := false
	for _, d := range cls.decorators {
		if name, _, ok := x.decoratorCall(d); ok && name == ace.ContainerMarker {
			container = true
			x.remove(d)
		}
	}
	if !container {
		return nil
	}
	body := cls.node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var pending []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		switch m.Type() {
		case "decorator":
			pending = append(pending, m)
			continue
		case "comment":
			continue
		case "method_definition":
			decs := append(pending, childrenOfType(m, "decorator")...)
			if len(decs) > 0 {
				if err := x.method(m, decs); err != nil {
					return err
				}
			}
		}
		pending = nil
	}
	return nil
}

// decoratorCall splits a decorator into its marker name and argument list.
// Accepted forms are @Name, @ns.Name and either of them called.
func (x *extractor) decoratorCall(d *sitter.Node) (string, *sitter.Node, bool) {
	if d.NamedChildCount() == 0 {
		return "", nil, false
	}
	expr := d.NamedChild(0)
	var args *sitter.Node
	if expr.Type() == "call_expression" {
		args = expr.ChildByFieldName("arguments")
		expr = expr.ChildByFieldName("function")
		if expr == nil {
			return "", nil, false
		}
	}
	switch expr.Type() {
	case "identifier":
		return x.mod.Text(expr), args, true
	case "member_expression":
		if p := expr.ChildByFieldName("property"); p != nil {
			return x.mod.Text(p), args, true
		}
	}
	return x.mod.Text(expr), args, true
}

func argumentNodes(args *sitter.Node) []*sitter.Node {
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if c := args.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func (x *extractor) methodName(m *sitter.Node) (string, error) {
	name := m.ChildByFieldName("name")
	if name == nil {
		return "", fmt.Errorf("%s: method without a name", x.mod.Pos(m))
	}
	switch name.Type() {
	case "property_identifier":
		return x.mod.Text(name), nil
	case "string":
		v, err := x.mod.Scope.Eval(name)
		if err == nil {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
	}
	return "", ace.MethodName(x.mod.Text(name)).At(x.mod.Pos(name))
}

func (x *extractor) method(m *sitter.Node, decs []*sitter.Node) error {
	id, err := x.methodName(m)
	if err != nil {
		return err
	}
	if len(decs) > 1 {
		return ace.MultipleACE(id).At(x.mod.Pos(decs[1]))
	}
	dec := decs[0]
	name, argList, _ := x.decoratorCall(dec)
	marker, ok := ace.LookupMethodMarker(name)
	if !ok {
		return ace.UnknownOperation(name, id).At(x.mod.Pos(dec))
	}
	x.remove(dec)

	args := argumentNodes(argList)
	if len(args) > 2 || (len(args) == 2 && args[1].Type() != "object") {
		return ace.OptionArgument(id).At(x.mod.Pos(dec))
	}
	var textArg, optsArg *sitter.Node
	switch {
	case len(args) == 2:
		textArg, optsArg = args[0], args[1]
	case len(args) == 1 && args[0].Type() == "object":
		// @Action({...}) is shorthand for @Action(undefined, {...}).
		optsArg = args[0]
	case len(args) == 1:
		textArg = args[0]
	}

	displayText := ""
	if textArg != nil {
		v, err := x.mod.Scope.Eval(textArg)
		if err != nil {
			return ace.NotCompilable("displayText", err).At(x.mod.Pos(textArg))
		}
		switch t := v.(type) {
		case nil:
		case string:
			displayText = t
		default:
			return ace.DisplayText(id).At(x.mod.Pos(textArg))
		}
	}

	opts := eval.NewObject()
	if optsArg != nil {
		if opts, err = x.objectArgument(optsArg); err != nil {
			return err
		}
	}
	if marker.Trigger && !opts.Has("isTrigger") {
		opts.Set("isTrigger", true)
	}

	strOpt := func(key string) (string, bool, error) {
		v, ok := opts.Get(key)
		if !ok || v == nil {
			return "", false, nil
		}
		s, isStr := v.(string)
		if !isStr {
			return "", false, ace.OptionType(id, key).At(x.mod.Pos(optsArg))
		}
		return s, true, nil
	}

	category, _, err := strOpt("category")
	if err != nil {
		return err
	}
	description, _, err := strOpt("description")
	if err != nil {
		return err
	}
	title := TitleCase(id)
	listName, ok, err := strOpt("listName")
	if err != nil {
		return err
	}
	if !ok {
		listName = title
	}
	returnType, ok, err := strOpt("returnType")
	if err != nil {
		return err
	}
	if !ok && marker.Kind == ace.KindExpression {
		if rt := m.ChildByFieldName("return_type"); rt != nil {
			returnType = ResolveType(rt, x.mod.Src)
		}
	}

	params, err := x.parameters(id, m.ChildByFieldName("parameters"))
	if err != nil {
		return err
	}
	if displayText == "" {
		displayText = synthesizeDisplayText(title, len(params))
	}
	if category == "" {
		category = ace.DefaultCategory
	}

	x.records = append(x.records, &ace.Record{
		ID:          id,
		Kind:        marker.Kind,
		Category:    category,
		DisplayText: displayText,
		ListName:    listName,
		Description: description,
		Params:      params,
		ReturnType:  returnType,
		Options:     opts,
		Method:      id,
		Source:      x.mod.Path,
	})
	return nil
}

func synthesizeDisplayText(title string, n int) string {
	if n == 0 {
		return title
	}
	slots := make([]string, n)
	for i := range slots {
		slots[i] = fmt.Sprintf("{%d}", i)
	}
	return title + " (" + strings.Join(slots, ", ") + ")"
}

// objectArgument reduces an object literal key by key so that an evaluation
// failure names the offending key.
func (x *extractor) objectArgument(n *sitter.Node) (*eval.Object, error) {
	out := eval.NewObject()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
		case "pair":
			keyNode := c.ChildByFieldName("key")
			key, err := x.mod.Scope.PropertyKey(keyNode)
			if err != nil {
				return nil, ace.NotCompilable(x.mod.Text(keyNode), err).At(x.mod.Pos(keyNode))
			}
			v, err := x.mod.Scope.Eval(c.ChildByFieldName("value"))
			if err != nil {
				return nil, ace.NotCompilable(key, err).At(x.mod.Pos(c))
			}
			out.Set(key, v)
		case "shorthand_property_identifier":
			key := x.mod.Text(c)
			v, err := x.mod.Scope.Eval(c)
			if err != nil {
				return nil, ace.NotCompilable(key, err).At(x.mod.Pos(c))
			}
			out.Set(key, v)
		case "spread_element":
			v, err := x.mod.Scope.Eval(c.NamedChild(0))
			if err != nil {
				return nil, ace.NotCompilable(x.mod.Text(c), err).At(x.mod.Pos(c))
			}
			spread, ok := v.(*eval.Object)
			if !ok {
				return nil, ace.NotCompilable(x.mod.Text(c), fmt.Errorf("only objects can be spread")).At(x.mod.Pos(c))
			}
			for _, k := range spread.Keys() {
				sv, _ := spread.Get(k)
				out.Set(k, sv)
			}
		default:
			return nil, ace.NotCompilable(x.mod.Text(c), fmt.Errorf("unsupported object member")).At(x.mod.Pos(c))
		}
	}
	return out, nil
}
