package extract

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"c3addon-builder/internal/textutil"
)

// DefaultExport returns the `export default <expr>` statement of mod and its
// value expression. Declarations (`export default class ...`) do not count.
func DefaultExport(mod *Module) (stmt, value *sitter.Node, ok bool) {
	for i := 0; i < int(mod.Root.NamedChildCount()); i++ {
		n := mod.Root.NamedChild(i)
		if n.Type() != "export_statement" || !hasDefaultKeyword(n) {
			continue
		}
		if v := n.ChildByFieldName("value"); v != nil {
			return n, v, true
		}
	}
	return nil, nil, false
}

func hasDefaultKeyword(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "default" {
			return true
		}
	}
	return false
}

// InjectDefault rewrites `export default X;` into
// `export default {...(X), <key>: <script>};`. script must be a JS expression.
func InjectDefault(ctx context.Context, path string, src []byte, key, script string) ([]byte, error) {
	mod, err := ParseModule(ctx, path, src)
	if err != nil {
		return nil, err
	}
	stmt, value, ok := DefaultExport(mod)
	if !ok {
		return nil, fmt.Errorf("%s: no `export default <expression>` to inject %s into", path, key)
	}
	text := fmt.Sprintf("export default {...(%s), %q: %s};", mod.Text(value), key, script)
	span := textutil.Span{Start: int(stmt.StartByte()), End: int(stmt.EndByte())}
	return textutil.Replace(src, span, []byte(text))
}
