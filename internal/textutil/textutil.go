package textutil

import (
	"bytes"
	"fmt"
	"sort"
)

// Span is a half-open byte range [Start, End) of a source text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by s.
func (s Span) Len() int { return s.End - s.Start }

// Splice removes every span from src in one left-to-right pass. Spans may be
// given in any order; overlapping or out-of-range spans are an error. The
// input slice is not modified.
func Splice(src []byte, spans []Span) ([]byte, error) {
	if len(spans) == 0 {
		return src, nil
	}
	sorted := SortSpans(spans)
	removed := 0
	prev := 0
	for _, s := range sorted {
		if s.Start < 0 || s.End > len(src) || s.Start > s.End {
			return nil, fmt.Errorf("span [%d,%d) out of range (len %d)", s.Start, s.End, len(src))
		}
		if s.Start < prev {
			return nil, fmt.Errorf("span [%d,%d) overlaps previous span ending at %d", s.Start, s.End, prev)
		}
		removed += s.Len()
		prev = s.End
	}

	out := make([]byte, 0, len(src)-removed)
	cursor := 0
	for _, s := range sorted {
		out = append(out, src[cursor:s.Start]...)
		cursor = s.End
	}
	out = append(out, src[cursor:]...)
	return out, nil
}

// Replace substitutes text for the bytes covered by span.
func Replace(src []byte, span Span, text []byte) ([]byte, error) {
	if span.Start < 0 || span.End > len(src) || span.Start > span.End {
		return nil, fmt.Errorf("span [%d,%d) out of range (len %d)", span.Start, span.End, len(src))
	}
	out := make([]byte, 0, len(src)-span.Len()+len(text))
	out = append(out, src[:span.Start]...)
	out = append(out, text...)
	return append(out, src[span.End:]...), nil
}

// SortSpans returns a copy of spans ordered by start offset.
func SortSpans(spans []Span) []Span {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	return sorted
}

// NormalizeUTF8LF converts CRLF to LF and ensures the output is valid UTF-8
// by replacing invalid byte sequences with the Unicode replacement character.
func NormalizeUTF8LF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
	return bytes.ToValidUTF8(b, []byte("\uFFFD"))
}

// EnsureTrailingLF appends a single \n if not already present.
func EnsureTrailingLF(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] == '\n' {
		return b
	}
	return append(b, '\n')
}
