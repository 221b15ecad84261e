package ziputil

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestSanitizePath(t *testing.T) {
	cases := map[string]string{
		"a/b.js":          "a/b.js",
		"/abs/x.json":     "abs/x.json",
		`C:\dir\file.txt`: "dir/file.txt",
		`lang\en-US.json`: "lang/en-US.json",
		"../../escape.js": "escape.js",
		"a/./b/../c.js":   "a/c.js",
		"":                "entry",
	}
	for in, want := range cases {
		if got := SanitizePath(in); got != want {
			t.Errorf("SanitizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func archive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := NewWriter(&buf)
	if err := WriteFile(zw, "addon.json", []byte(`{"id":"x"}`)); err != nil {
		t.Fatal(err)
	}
	if err := CopyFromReader(zw, "c3runtime/behavior.js", strings.NewReader("console.log(1);\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestArchivesAreReproducible(t *testing.T) {
	a, b := archive(t), archive(t)
	if !bytes.Equal(a, b) {
		t.Fatal("archives differ between runs")
	}
	zr, err := zip.NewReader(bytes.NewReader(a), int64(len(a)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}
	f := zr.File[1]
	if f.Name != "c3runtime/behavior.js" || !f.Modified.Equal(FixedZipTime) {
		t.Fatalf("unexpected entry %s modified %v", f.Name, f.Modified)
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "console.log(1);\n" {
		t.Fatalf("unexpected body %q", body)
	}
}
