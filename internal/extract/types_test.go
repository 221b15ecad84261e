package extract

import (
	"context"
	"testing"
)

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"doThing":     "Do Thing",
		"jump":        "Jump",
		"setHPValue":  "Set H P Value",
		"move2Target": "Move2 Target",
		"":            "",
	}
	for in, want := range cases {
		if got := TitleCase(in); got != want {
			t.Fatalf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveType(t *testing.T) {
	src := `function f(a: string, b: number, c: boolean, d: combo, e: Array<string>, f: ns.Kind, g, h: "x" | "y", i: any) {}`
	mod, err := ParseModule(context.Background(), "t.ts", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fn := mod.Root.NamedChild(0)
	params := fn.ChildByFieldName("parameters")
	want := []string{"string", "number", "any", "combo", "Array", "Kind", "any", "any", "any"}
	if int(params.NamedChildCount()) != len(want) {
		t.Fatalf("got %d params", params.NamedChildCount())
	}
	for i, w := range want {
		p := params.NamedChild(i)
		if got := ResolveType(p.ChildByFieldName("type"), mod.Src); got != w {
			t.Fatalf("param %d: got %q want %q", i, got, w)
		}
	}
}

func TestResolveTag(t *testing.T) {
	if got := ResolveTag(""); got != "any" {
		t.Fatalf("got %q", got)
	}
	if got := ResolveTag("combo"); got != "combo" {
		t.Fatalf("got %q", got)
	}
}

func TestIsSource(t *testing.T) {
	for path, want := range map[string]bool{
		"src/instance.ts": true,
		"src/view.tsx":    true,
		"lib/util.js":     true,
		"src/types.d.ts":  false,
		"src/icon.svg":    false,
	} {
		if got := IsSource(path); got != want {
			t.Fatalf("IsSource(%q) = %v", path, got)
		}
	}
}
