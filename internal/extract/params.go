package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/eval"
)

// paramNode is one formal parameter split into the parts the record needs.
type paramNode struct {
	node       *sitter.Node
	name       *sitter.Node // identifier, nil for destructuring and rest
	typ        *sitter.Node
	value      *sitter.Node
	decorators []*sitter.Node
}

func (x *extractor) parameters(method string, list *sitter.Node) ([]ace.Parameter, error) {
	if list == nil {
		return nil, nil
	}
	var nodes []paramNode
	var pending []*sitter.Node
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "decorator":
			pending = append(pending, c)
			continue
		case "required_parameter", "optional_parameter":
			p := paramNode{node: c, typ: c.ChildByFieldName("type"), value: c.ChildByFieldName("value")}
			if pat := c.ChildByFieldName("pattern"); pat != nil && pat.Type() == "identifier" {
				p.name = pat
			}
			p.decorators = append(pending, childrenOfType(c, "decorator")...)
			nodes = append(nodes, p)
		case "identifier":
			nodes = append(nodes, paramNode{node: c, name: c, decorators: pending})
		case "assignment_pattern":
			p := paramNode{node: c, value: c.ChildByFieldName("right"), decorators: pending}
			if left := c.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				p.name = left
			}
			nodes = append(nodes, p)
		default:
			nodes = append(nodes, paramNode{node: c, decorators: pending})
		}
		pending = nil
	}

	params := make([]ace.Parameter, 0, len(nodes))
	for _, pn := range nodes {
		p, err := x.parameter(method, pn)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func (x *extractor) parameter(method string, pn paramNode) (ace.Parameter, error) {
	if pn.name == nil {
		return ace.Parameter{}, ace.ParamShape(method).At(x.mod.Pos(pn.node))
	}
	name := x.mod.Text(pn.name)

	var marker *sitter.Node
	for _, d := range pn.decorators {
		dn, _, ok := x.decoratorCall(d)
		if !ok || dn != ace.ParamMarker {
			continue
		}
		if marker != nil {
			return ace.Parameter{}, ace.ParamDeclaredTwice(name).At(x.mod.Pos(d))
		}
		marker = d
	}

	opts := eval.NewObject()
	if marker != nil {
		x.remove(marker)
		_, argList, _ := x.decoratorCall(marker)
		args := argumentNodes(argList)
		if len(args) > 1 || (len(args) == 1 && args[0].Type() != "object") {
			return ace.Parameter{}, ace.OptionArgument(method).At(x.mod.Pos(marker))
		}
		if len(args) == 1 {
			var err error
			if opts, err = x.objectArgument(args[0]); err != nil {
				return ace.Parameter{}, err
			}
		}
	}

	p := ace.Parameter{
		ID:      name,
		Name:    TitleCase(name),
		Type:    ResolveType(pn.typ, x.mod.Src),
		Options: opts,
	}
	if s, ok := opts.GetString("id"); ok && s != "" {
		p.ID = s
	}
	if s, ok := opts.GetString("name"); ok {
		p.Name = s
	}
	if s, ok := opts.GetString("desc"); ok {
		p.Desc = s
	}
	if s, ok := opts.GetString("type"); ok {
		p.Type = ResolveTag(s)
	}

	if v, ok := opts.Get("initialValue"); ok {
		p.InitialValue, p.HasInitial = v, true
	} else if pn.value != nil {
		v, err := x.mod.Scope.Eval(pn.value)
		if err != nil {
			return ace.Parameter{}, ace.NotCompilable("initialValue", err).At(x.mod.Pos(pn.value))
		}
		p.InitialValue, p.HasInitial = v, true
	}

	if v, ok := opts.Get("items"); ok {
		items, err := ace.ParseItems(v)
		if err != nil {
			e := ace.ParamItems(p.ID)
			e.Cause = err
			return ace.Parameter{}, e.At(x.mod.Pos(marker))
		}
		p.Items, p.HasItems = items, true
	}
	return p, nil
}
