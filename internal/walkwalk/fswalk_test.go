package walkwalk

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func rels(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestWalkFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"runtime.ts":          "x",
		"instance.ts":         "x",
		"lib/helper.ts":       "x",
		"lib/types.d.ts":      "x",
		"icon.svg":            "<svg/>",
		".cache/tmp.ts":       "x",
		"node_modules/m/i.ts": "x",
		"generated/out.ts":    "x",
		".gitignore":          "generated/\n",
	})

	files, err := Walk(root, Options{
		Exts:         []string{".ts"},
		Exclude:      []string{"node_modules"},
		UseGitignore: true,
		Keep:         func(rel string) bool { return !strings.HasSuffix(rel, ".d.ts") },
	})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(rels(files), ",")
	if got != "instance.ts,lib/helper.ts,runtime.ts" {
		t.Fatalf("unexpected files: %s", got)
	}
	if files[0].SHA256Hex != "2d711642b726b04401627ca9fbac32f5c8530fb1903cc4db02258717921a4881" {
		t.Fatalf("unexpected hash %s", files[0].SHA256Hex)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	files, err := Walk(filepath.Join(t.TempDir(), "nope"), Options{})
	if err != nil || len(files) != 0 {
		t.Fatalf("expected no files and no error, got %v %v", files, err)
	}
}

func TestDirsSkipsHiddenAndExcluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/x.ts":            "x",
		"a/b/y.ts":          "x",
		".git/HEAD":         "x",
		"node_modules/p.js": "x",
	})
	dirs, err := Dirs(root, Options{Exclude: []string{"node_modules"}})
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(root)
	want := []string{abs, filepath.Join(abs, "a"), filepath.Join(abs, "a", "b")}
	if strings.Join(dirs, "|") != strings.Join(want, "|") {
		t.Fatalf("dirs = %v, want %v", dirs, want)
	}
}

func TestGitignoreNegation(t *testing.T) {
	pats := []gitPattern{
		{rx: compileGitGlob("*.gen.ts", false)},
		{neg: true, rx: compileGitGlob("keep.gen.ts", false)},
	}
	if !matchGitignore(pats, "a/x.gen.ts", false) {
		t.Fatal("expected x.gen.ts to be ignored")
	}
	if matchGitignore(pats, "a/keep.gen.ts", false) {
		t.Fatal("expected keep.gen.ts to be kept")
	}
}
