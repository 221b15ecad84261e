package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "c")
	if s, err := Load(dir); err != nil || s != nil {
		t.Fatalf("expected no snapshot, got %v %v", s, err)
	}
	want := &Snapshot{Addon: "a", Build: "b1", Created: "2024-01-01T00:00:00Z", Files: []SnapFile{{Path: "src/a.ts", Hash: "aa", Size: 1}}}
	if err := Save(dir, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(entries))
	}
	if err := Clear(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected cache dir removed, got %v", err)
	}
}

func TestLoadIgnoresOtherFormats(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, snapshotFileName), []byte(`{"formatVersion":"0","files":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(dir)
	if err != nil || s != nil {
		t.Fatalf("expected stale snapshot to be ignored, got %v %v", s, err)
	}
}

func TestCompare(t *testing.T) {
	prev := &Snapshot{Files: []SnapFile{{Path: "a", Hash: "1"}, {Path: "b", Hash: "2"}, {Path: "c", Hash: "3"}}}
	curr := &Snapshot{Files: []SnapFile{{Path: "a", Hash: "1"}, {Path: "b", Hash: "9"}, {Path: "d", Hash: "4"}}}
	c := Compare(prev, curr)
	want := Changes{Added: []string{"d"}, Removed: []string{"c"}, Changed: []string{"b"}}
	if !reflect.DeepEqual(c, want) {
		t.Fatalf("got %+v, want %+v", c, want)
	}
	if c.Empty() || c.Count() != 3 {
		t.Fatalf("unexpected summary: empty=%v count=%d", c.Empty(), c.Count())
	}
	if !Compare(curr, curr).Empty() {
		t.Fatal("identical snapshots must compare empty")
	}
	if got := Compare(nil, curr).Added; len(got) != 3 {
		t.Fatalf("nil previous: added=%v", got)
	}
}

func TestDirIsStable(t *testing.T) {
	a := Dir("", "/p/x")
	if a != Dir("", "/p/x") || a == Dir("", "/p/y") {
		t.Fatal("cache dir must be stable per project and differ across projects")
	}
	if filepath.Dir(a) != filepath.Join("/p/x", DirName) {
		t.Fatalf("unexpected cache root %s", a)
	}
}
