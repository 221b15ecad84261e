// Package diff renders unified diffs between an annotated source and its
// rewritten form, using github.com/pmezard/go-difflib/difflib.
package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Options controls patch generation.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded, a
	// placeholder patch is returned and oversize is true. 0 means no limit.
	MaxBytes int

	// Context is the number of context lines per hunk. 0 means 3.
	Context int

	// NoPrefix drops the "a/" and "b/" prefixes from the file headers.
	NoPrefix bool
}

// Unified produces a unified patch for a -> b. Identical inputs yield "".
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool, err error) {
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return omitted(aName, bName), true, nil
	}
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	if !opt.NoPrefix {
		aName, bName = "a/"+aName, "b/"+bName
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(a)),
		B:        splitLinesKeepNL(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", false, fmt.Errorf("diff %s: %w", bName, err)
	}
	return s, false, nil
}

// Stat counts removed and added lines of a unified patch, headers excluded.
func Stat(patch string) (removed, added int) {
	for _, ln := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(ln, "---"), strings.HasPrefix(ln, "+++"):
		case strings.HasPrefix(ln, "-"):
			removed++
		case strings.HasPrefix(ln, "+"):
			added++
		}
	}
	return removed, added
}

// splitLinesKeepNL keeps the newline on every line, which difflib expects.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}
