package eval

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"

	sitter "github.com/smacker/go-tree-sitter"
)

// Error reports an expression the evaluator refuses to reduce. Decorator
// arguments are evaluated at build time, so anything that could execute
// user code (calls, functions, constructors, assignments) lands here.
type Error struct {
	Node   string
	Row    uint32
	Column uint32
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s at %d:%d)", e.Reason, e.Node, e.Row+1, e.Column+1)
}

func errorAt(n *sitter.Node, format string, args ...any) *Error {
	p := n.StartPoint()
	return &Error{
		Node:   n.Type(),
		Row:    p.Row,
		Column: p.Column,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Scope evaluates expression nodes of one parsed module. Identifiers resolve
// to the module's top-level const declarations, evaluated lazily and at most
// once.
type Scope struct {
	src    []byte
	decls  map[string]*sitter.Node
	values map[string]any
	active map[string]bool
}

// NewScope indexes the top-level `const` declarations under root. root may be
// nil, in which case no identifiers resolve.
func NewScope(root *sitter.Node, src []byte) *Scope {
	s := &Scope{
		src:    src,
		decls:  make(map[string]*sitter.Node),
		values: make(map[string]any),
		active: make(map[string]bool),
	}
	if root == nil {
		return s
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "lexical_declaration":
			s.indexConst(child)
		case "export_statement":
			if d := child.ChildByFieldName("declaration"); d != nil && d.Type() == "lexical_declaration" {
				s.indexConst(d)
			}
		}
	}
	return s
}

func (s *Scope) indexConst(decl *sitter.Node) {
	if decl.ChildCount() == 0 || decl.Child(0).Type() != "const" {
		return
	}
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		d := decl.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		value := d.ChildByFieldName("value")
		if name == nil || value == nil || name.Type() != "identifier" {
			continue
		}
		s.decls[s.text(name)] = value
	}
}

// Const returns the evaluated value of a top-level const declaration.
func (s *Scope) Const(name string) (any, bool, error) {
	v, found, err := s.constValue(name)
	if err != nil || !found {
		return nil, found, err
	}
	return exported(v), true, nil
}

func (s *Scope) constValue(name string) (any, bool, error) {
	if v, ok := s.values[name]; ok {
		return v, true, nil
	}
	n, ok := s.decls[name]
	if !ok {
		return nil, false, nil
	}
	if s.active[name] {
		return nil, true, errorAt(n, "circular reference to %q", name)
	}
	s.active[name] = true
	v, err := s.eval(n)
	delete(s.active, name)
	if err != nil {
		return nil, true, err
	}
	s.values[name] = v
	return v, true, nil
}

// Eval reduces n to a JSON-safe value.
func (s *Scope) Eval(n *sitter.Node) (any, error) {
	v, err := s.eval(n)
	if err != nil {
		return nil, err
	}
	v = exported(v)
	if err := checkJSONSafe(v); err != nil {
		return nil, errorAt(n, "%v", err)
	}
	return v, nil
}

// Text returns the source text of n.
func (s *Scope) Text(n *sitter.Node) string { return s.text(n) }

func (s *Scope) text(n *sitter.Node) string {
	return string(s.src[n.StartByte():n.EndByte()])
}

func (s *Scope) eval(n *sitter.Node) (any, error) {
	switch n.Type() {
	case "string":
		raw := s.text(n)
		if len(raw) < 2 {
			return nil, errorAt(n, "malformed string literal")
		}
		out, err := unescape(raw[1 : len(raw)-1])
		if err != nil {
			return nil, errorAt(n, "%v", err)
		}
		return out, nil
	case "template_string":
		return s.evalTemplate(n)
	case "number":
		f, err := parseNumber(s.text(n))
		if err != nil {
			return nil, errorAt(n, "%v", err)
		}
		return f, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "undefined":
		return undefined, nil
	case "identifier", "shorthand_property_identifier":
		return s.evalIdentifier(n)
	case "array":
		return s.evalArray(n)
	case "object":
		return s.evalObject(n)
	case "parenthesized_expression":
		if n.NamedChildCount() != 1 {
			return nil, errorAt(n, "unsupported parenthesized expression")
		}
		return s.eval(n.NamedChild(0))
	case "as_expression", "satisfies_expression", "non_null_expression":
		if n.NamedChildCount() == 0 {
			return nil, errorAt(n, "empty expression")
		}
		return s.eval(n.NamedChild(0))
	case "type_assertion":
		if n.NamedChildCount() == 0 {
			return nil, errorAt(n, "empty expression")
		}
		return s.eval(n.NamedChild(int(n.NamedChildCount()) - 1))
	case "unary_expression":
		return s.evalUnary(n)
	case "binary_expression":
		return s.evalBinary(n)
	case "ternary_expression":
		cond, err := s.eval(n.ChildByFieldName("condition"))
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return s.eval(n.ChildByFieldName("consequence"))
		}
		return s.eval(n.ChildByFieldName("alternative"))
	case "member_expression":
		return s.evalMember(n)
	case "subscript_expression":
		return s.evalSubscript(n)
	case "call_expression", "new_expression":
		return nil, errorAt(n, "calls are not evaluated at build time")
	case "arrow_function", "function_expression", "function", "class":
		return nil, errorAt(n, "functions cannot be used as static values")
	}
	return nil, errorAt(n, "unsupported expression")
}

func (s *Scope) evalIdentifier(n *sitter.Node) (any, error) {
	name := s.text(n)
	switch name {
	case "undefined":
		return undefined, nil
	case "NaN", "Infinity":
		return nil, errorAt(n, "%s is not JSON-safe", name)
	}
	v, found, err := s.constValue(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorAt(n, "unresolved reference %q", name)
	}
	return v, nil
}

func (s *Scope) evalTemplate(n *sitter.Node) (any, error) {
	start, end := n.StartByte()+1, n.EndByte()-1
	var out []byte
	pos := start
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "template_substitution" {
			continue
		}
		seg, err := unescape(string(s.src[pos:c.StartByte()]))
		if err != nil {
			return nil, errorAt(n, "%v", err)
		}
		out = append(out, seg...)
		if c.NamedChildCount() != 1 {
			return nil, errorAt(c, "unsupported template substitution")
		}
		v, err := s.eval(c.NamedChild(0))
		if err != nil {
			return nil, err
		}
		out = append(out, toString(v)...)
		pos = c.EndByte()
	}
	if pos < end {
		seg, err := unescape(string(s.src[pos:end]))
		if err != nil {
			return nil, errorAt(n, "%v", err)
		}
		out = append(out, seg...)
	}
	return string(out), nil
}

func (s *Scope) evalArray(n *sitter.Node) (any, error) {
	out := []any{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "spread_element":
			v, err := s.eval(c.NamedChild(0))
			if err != nil {
				return nil, err
			}
			arr, ok := v.([]any)
			if !ok {
				return nil, errorAt(c, "only arrays can be spread into arrays")
			}
			out = append(out, arr...)
		default:
			v, err := s.eval(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Scope) evalObject(n *sitter.Node) (any, error) {
	obj := NewObject()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "pair":
			key, err := s.PropertyKey(c.ChildByFieldName("key"))
			if err != nil {
				return nil, err
			}
			v, err := s.eval(c.ChildByFieldName("value"))
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		case "shorthand_property_identifier":
			v, err := s.evalIdentifier(c)
			if err != nil {
				return nil, err
			}
			obj.Set(s.text(c), v)
		case "spread_element":
			v, err := s.eval(c.NamedChild(0))
			if err != nil {
				return nil, err
			}
			src, ok := v.(*Object)
			if !ok {
				return nil, errorAt(c, "only objects can be spread into objects")
			}
			for _, k := range src.keys {
				obj.Set(k, src.values[k])
			}
		default:
			return nil, errorAt(c, "unsupported object member")
		}
	}
	return obj, nil
}

// PropertyKey returns the key named by an object literal key node.
func (s *Scope) PropertyKey(k *sitter.Node) (string, error) {
	switch k.Type() {
	case "property_identifier":
		return s.text(k), nil
	case "string", "number":
		v, err := s.eval(k)
		if err != nil {
			return "", err
		}
		return toString(v), nil
	case "computed_property_name":
		if k.NamedChildCount() != 1 {
			return "", errorAt(k, "unsupported computed key")
		}
		v, err := s.eval(k.NamedChild(0))
		if err != nil {
			return "", err
		}
		return toString(v), nil
	}
	return "", errorAt(k, "unsupported property key")
}

func (s *Scope) evalUnary(n *sitter.Node) (any, error) {
	op := s.text(n.ChildByFieldName("operator"))
	arg, err := s.eval(n.ChildByFieldName("argument"))
	if err != nil {
		return nil, err
	}
	switch op {
	case "-":
		return -toNumber(arg), nil
	case "+":
		return toNumber(arg), nil
	case "!":
		return !truthy(arg), nil
	case "~":
		return float64(^toInt32(arg)), nil
	case "void":
		return undefined, nil
	case "typeof":
		return typeOf(arg), nil
	}
	return nil, errorAt(n, "unsupported unary operator %q", op)
}

func (s *Scope) evalBinary(n *sitter.Node) (any, error) {
	op := s.text(n.ChildByFieldName("operator"))
	left, err := s.eval(n.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	// Short-circuit operators leave the right operand unevaluated.
	switch op {
	case "&&":
		if !truthy(left) {
			return left, nil
		}
		return s.eval(n.ChildByFieldName("right"))
	case "||":
		if truthy(left) {
			return left, nil
		}
		return s.eval(n.ChildByFieldName("right"))
	case "??":
		if !isNullish(left) {
			return left, nil
		}
		return s.eval(n.ChildByFieldName("right"))
	}
	right, err := s.eval(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs || isComposite(left) || isComposite(right) {
			return toString(left) + toString(right), nil
		}
		return toNumber(left) + toNumber(right), nil
	case "-":
		return toNumber(left) - toNumber(right), nil
	case "*":
		return toNumber(left) * toNumber(right), nil
	case "/":
		return toNumber(left) / toNumber(right), nil
	case "%":
		return math.Mod(toNumber(left), toNumber(right)), nil
	case "**":
		return math.Pow(toNumber(left), toNumber(right)), nil
	case "===":
		return strictEqual(left, right), nil
	case "!==":
		return !strictEqual(left, right), nil
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compare(op, left, right), nil
	case "&":
		return float64(toInt32(left) & toInt32(right)), nil
	case "|":
		return float64(toInt32(left) | toInt32(right)), nil
	case "^":
		return float64(toInt32(left) ^ toInt32(right)), nil
	case "<<":
		return float64(toInt32(left) << (uint32(toInt32(right)) & 31)), nil
	case ">>":
		return float64(toInt32(left) >> (uint32(toInt32(right)) & 31)), nil
	case ">>>":
		return float64(uint32(toInt32(left)) >> (uint32(toInt32(right)) & 31)), nil
	}
	return nil, errorAt(n, "unsupported binary operator %q", op)
}

func (s *Scope) evalMember(n *sitter.Node) (any, error) {
	obj, err := s.eval(n.ChildByFieldName("object"))
	if err != nil {
		return nil, err
	}
	prop := n.ChildByFieldName("property")
	if prop == nil || prop.Type() != "property_identifier" {
		return nil, errorAt(n, "unsupported member access")
	}
	return s.access(n, obj, s.text(prop))
}

func (s *Scope) evalSubscript(n *sitter.Node) (any, error) {
	obj, err := s.eval(n.ChildByFieldName("object"))
	if err != nil {
		return nil, err
	}
	idx, err := s.eval(n.ChildByFieldName("index"))
	if err != nil {
		return nil, err
	}
	return s.access(n, obj, toString(idx))
}

func (s *Scope) access(n *sitter.Node, obj any, key string) (any, error) {
	if isNullish(obj) {
		if isOptionalChain(n) {
			return undefined, nil
		}
		return nil, errorAt(n, "cannot read %q of %s", key, toString(obj))
	}
	v, err := property(obj, key)
	if err != nil {
		return nil, errorAt(n, "%v", err)
	}
	return v, nil
}

func isOptionalChain(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "optional_chain", "?.":
			return true
		}
	}
	return false
}

// property reads key from v. Strings are indexed and measured in UTF-16
// code units.
func property(v any, key string) (any, error) {
	switch t := v.(type) {
	case *Object:
		if out, ok := t.Get(key); ok {
			return out, nil
		}
	case []any:
		if key == "length" {
			return float64(len(t)), nil
		}
		if i, ok := arrayIndex(key); ok && i < len(t) {
			return t[i], nil
		}
	case string:
		units := utf16.Encode([]rune(t))
		if key == "length" {
			return float64(len(units)), nil
		}
		if i, ok := arrayIndex(key); ok && i < len(units) {
			if utf16.IsSurrogate(rune(units[i])) {
				return nil, fmt.Errorf("index %d splits a surrogate pair", i)
			}
			return string(rune(units[i])), nil
		}
	}
	return undefined, nil
}

// arrayIndex reports whether key is a canonical non-negative integer.
func arrayIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}
	return i, true
}
