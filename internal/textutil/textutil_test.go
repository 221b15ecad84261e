package textutil

import (
	"bytes"
	"testing"
)

func TestSpliceRemovesInAnyOrder(t *testing.T) {
	src := []byte("@A class X { @B m(@C p) {} }")
	spans := []Span{{Start: 18, End: 21}, {Start: 0, End: 3}, {Start: 13, End: 16}}
	got, err := Splice(src, spans)
	if err != nil {
		t.Fatalf("splice: %v", err)
	}
	if want := "class X { m(p) {} }"; string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
	removed := 0
	for _, s := range spans {
		removed += s.Len()
	}
	if len(got) != len(src)-removed {
		t.Fatalf("length %d, want %d", len(got), len(src)-removed)
	}
	if back := restore(got, src, spans); !bytes.Equal(back, src) {
		t.Fatalf("restore: got %q", back)
	}
}

func TestSpliceRejectsOverlap(t *testing.T) {
	if _, err := Splice([]byte("abcdef"), []Span{{1, 4}, {3, 5}}); err == nil {
		t.Fatal("expected overlap error")
	}
	if _, err := Splice([]byte("abc"), []Span{{2, 9}}); err == nil {
		t.Fatal("expected range error")
	}
}

func TestSpliceAdjacentSpans(t *testing.T) {
	got, err := Splice([]byte("aXYb"), []Span{{2, 3}, {1, 2}})
	if err != nil {
		t.Fatalf("splice: %v", err)
	}
	if string(got) != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestSpliceNoSpans(t *testing.T) {
	src := []byte("unchanged")
	got, err := Splice(src, nil)
	if err != nil || !bytes.Equal(got, src) {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestEnsureTrailingLF(t *testing.T) {
	if got := string(EnsureTrailingLF([]byte("a"))); got != "a\n" {
		t.Fatalf("got %q", got)
	}
	if got := string(EnsureTrailingLF([]byte("a\n"))); got != "a\n" {
		t.Fatalf("got %q", got)
	}
}

func TestReplace(t *testing.T) {
	got, err := Replace([]byte("export default X;"), Span{Start: 15, End: 16}, []byte("{...(X)}"))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if string(got) != "export default {...(X)};" {
		t.Fatalf("got %q", got)
	}
}

// restore reinserts the removed spans of original into rewritten.
func restore(rewritten, original []byte, spans []Span) []byte {
	out := make([]byte, 0, len(original))
	r, o := 0, 0
	for _, s := range SortSpans(spans) {
		kept := s.Start - o
		out = append(out, rewritten[r:r+kept]...)
		out = append(out, original[s.Start:s.End]...)
		r += kept
		o = s.End
	}
	return append(out, rewritten[r:]...)
}
