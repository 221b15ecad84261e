package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&app{})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/addon.ts": `const Config = {
  addonType: "behavior",
  id: "Jumper",
  name: "Jumper",
  version: "1.0.0.0",
  author: "me",
  aceCategories: { general: "General" },
};

export default Config;
`,
		"src/runtime.ts": `import Config from "./addon";
import { Instance } from "./instance";

console.log(Config, Instance);
`,
		"src/instance.ts": `@AceClass
export class Instance {
  @Action("Jump {0}")
  jump(@Param({ desc: "Height" }) height: number = 10) {}

  @Expression()
  speed(): number { return 1; }
}
`,
		"src/icon.svg": "<svg/>",
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatal("version printed nothing")
	}
}

func TestInspectPrintsRecordsAndDiff(t *testing.T) {
	dir := writeProject(t)
	file := filepath.Join(dir, "src", "instance.ts")
	out, err := run(t, "-C", dir, "inspect", file)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{`"kind": "actions"`, `"id": "jump"`, `"kind": "expressions"`, `-  @Action("Jump {0}")`, "-@AceClass"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestInspectRequiresFile(t *testing.T) {
	if _, err := run(t, "-C", t.TempDir(), "inspect"); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestBuildPackagesArchive(t *testing.T) {
	dir := writeProject(t)
	out, err := run(t, "-C", dir, "build")
	if err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	if !strings.Contains(out, "built Jumper 1.0.0.0: 2 ACEs") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	archive := filepath.Join(dir, "dist", "Jumper-1.0.0.0.c3addon")
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	runtime, err := os.ReadFile(filepath.Join(dir, "export", "c3runtime", "behavior.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(runtime), "forward") || strings.Contains(string(runtime), "@Action") {
		t.Fatalf("runtime not rewritten:\n%s", runtime)
	}

	out, err = run(t, "-C", dir, "build", "--dev")
	if err != nil {
		t.Fatalf("dev build: %v", err)
	}
	if !strings.Contains(out, "inputs unchanged") {
		t.Fatalf("dev build after a full build must be skipped:\n%s", out)
	}

	out, err = run(t, "-C", dir, "build", "--dev", "--clean")
	if err != nil {
		t.Fatalf("clean dev build: %v", err)
	}
	if !strings.Contains(out, "built Jumper") {
		t.Fatalf("--clean must force a build:\n%s", out)
	}
}

func TestDocsToStdout(t *testing.T) {
	dir := writeProject(t)
	out, err := run(t, "-C", dir, "docs", "--stdout")
	if err != nil {
		t.Fatalf("docs: %v", err)
	}
	if !strings.HasPrefix(out, "# Jumper ACE reference") || !strings.Contains(out, "`jump`") {
		t.Fatalf("unexpected docs:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "export")); !os.IsNotExist(err) {
		t.Fatal("docs must not write the export directory")
	}
}
