// Package extract finds ACE annotations in addon sources, turns them into
// records and produces the annotation-free source.
//
// Goals:
//   - Single pass over the tree. Removals are collected as byte spans and
//     applied once at the end, so node positions never go stale.
//   - Every rejected arrangement yields exactly one positioned *ace.Error.
//   - Annotation arguments are reduced by internal/eval; no user code runs.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"c3addon-builder/internal/eval"
)

// Module is one parsed source file.
type Module struct {
	Path  string
	Src   []byte
	Root  *sitter.Node
	Scope *eval.Scope

	tree *sitter.Tree
}

// LanguageFor picks the grammar for a file by extension. Unknown extensions
// are parsed as TypeScript.
func LanguageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".js", ".mjs", ".cjs", ".jsx":
		return javascript.GetLanguage()
	default:
		return typescript.GetLanguage()
	}
}

// SourceExts are the extensions the extractor understands.
var SourceExts = []string{".ts", ".tsx", ".mts", ".js", ".mjs", ".cjs", ".jsx"}

// IsSource reports whether path is a file the extractor understands.
// Declaration files are not.
func IsSource(path string) bool {
	lower := strings.ToLower(path)
	return slices.Contains(SourceExts, filepath.Ext(lower)) && !strings.HasSuffix(lower, ".d.ts")
}

// ParseModule parses src and fails on any syntax error.
func ParseModule(ctx context.Context, path string, src []byte) (*Module, error) {
	p := sitter.NewParser()
	p.SetLanguage(LanguageFor(path))
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		return nil, fmt.Errorf("parse %s: syntax error at %s", path, point(bad))
	}
	return &Module{
		Path:  path,
		Src:   src,
		Root:  root,
		Scope: eval.NewScope(root, src),
		tree:  tree,
	}, nil
}

// Text returns the source text of n.
func (m *Module) Text(n *sitter.Node) string {
	return string(m.Src[n.StartByte():n.EndByte()])
}

// Pos formats the start of n as path:line:col.
func (m *Module) Pos(n *sitter.Node) string {
	return m.Path + ":" + point(n)
}

func point(n *sitter.Node) string {
	p := n.StartPoint()
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.Type() == "ERROR" {
			return firstError(c)
		}
	}
	return n
}
