package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"c3addon-builder/internal/ace"
)

var keywordTypes = map[string]string{
	"string": "string",
	"number": "number",
	"any":    ace.AnyType,
}

// ResolveType maps a type annotation to a parameter type tag. Absent or
// unmodelled types resolve to "any"; it never fails.
func ResolveType(n *sitter.Node, src []byte) string {
	if n == nil {
		return ace.AnyType
	}
	text := func(x *sitter.Node) string { return string(src[x.StartByte():x.EndByte()]) }
	switch n.Type() {
	case "type_annotation", "parenthesized_type":
		if n.NamedChildCount() == 0 {
			return ace.AnyType
		}
		return ResolveType(n.NamedChild(0), src)
	case "predefined_type":
		if tag, ok := keywordTypes[text(n)]; ok {
			return tag
		}
		return ace.AnyType
	case "type_identifier":
		return text(n)
	case "generic_type":
		if name := n.ChildByFieldName("name"); name != nil {
			return ResolveType(name, src)
		}
		return ace.AnyType
	case "nested_type_identifier":
		if name := n.ChildByFieldName("name"); name != nil {
			return text(name)
		}
		return ace.AnyType
	}
	return ace.AnyType
}

// ResolveTag passes an explicit tag through; empty means "any".
func ResolveTag(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return ace.AnyType
	}
	return tag
}

// TitleCase turns an identifier into a label: "doThing" -> "Do Thing".
func TitleCase(id string) string {
	var b strings.Builder
	var prev rune
	for i, r := range id {
		if i > 0 && r >= 'A' && r <= 'Z' && isWordRune(prev) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return cases.Title(language.Und).String(b.String())
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
