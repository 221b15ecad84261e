package diff

import (
	"strings"
	"testing"
)

func TestUnifiedShowsRemovedAnnotations(t *testing.T) {
	before := "class A {\n  @Action(\"Go\")\n  go() {}\n}\n"
	after := "class A {\n  \n  go() {}\n}\n"
	patch, oversize, err := Unified("instance.ts", "instance.ts", []byte(before), []byte(after), Options{})
	if err != nil || oversize {
		t.Fatalf("unexpected err=%v oversize=%v", err, oversize)
	}
	if !strings.HasPrefix(patch, "--- a/instance.ts\n+++ b/instance.ts\n") {
		t.Fatalf("unexpected headers:\n%s", patch)
	}
	if !strings.Contains(patch, "-  @Action(\"Go\")\n") {
		t.Fatalf("removed line missing:\n%s", patch)
	}
	if r, a := Stat(patch); r != 1 || a != 1 {
		t.Fatalf("stat = -%d +%d, want -1 +1", r, a)
	}
}

func TestUnifiedIdentical(t *testing.T) {
	src := []byte("x\n")
	patch, _, err := Unified("a.ts", "a.ts", src, src, Options{NoPrefix: true})
	if err != nil {
		t.Fatal(err)
	}
	if patch != "" {
		t.Fatalf("identical inputs must produce no patch, got:\n%s", patch)
	}
}

func TestUnifiedOversize(t *testing.T) {
	patch, oversize, err := Unified("a", "b", []byte("12345"), []byte("678"), Options{MaxBytes: 4})
	if err != nil || !oversize {
		t.Fatalf("expected oversize placeholder, err=%v", err)
	}
	if !strings.Contains(patch, "# diff omitted (oversize)") {
		t.Fatalf("unexpected placeholder:\n%s", patch)
	}
}
