// Package ziputil writes reproducible zip archives: fixed timestamps, fixed
// modes, sanitized forward-slash entry names and a fixed compression level.
package ziputil

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// FixedZipTime ensures byte-for-byte reproducible archives (1980-01-01 UTC).
var FixedZipTime = time.Unix(315532800, 0).UTC()

// NewWriter returns a zip writer that deflates at the best compression level.
func NewWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return zw
}

// SanitizePath normalizes ZIP entry paths (forward slashes on every OS, no
// drive, no leading '/') and removes '.' and '..' segments without escaping
// the root.
func SanitizePath(p string) string {
	s := strings.ReplaceAll(p, `\`, "/")
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "/")
	parts := strings.Split(s, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
			continue
		}
		stack = append(stack, part)
	}
	s = strings.Join(stack, "/")
	if s == "" {
		return "entry"
	}
	return s
}

func create(zw *zip.Writer, name string) (io.Writer, error) {
	h := &zip.FileHeader{Name: SanitizePath(name), Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = FixedZipTime
	w, err := zw.CreateHeader(h)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return w, nil
}

// WriteFile writes data as an entry with fixed timestamp and mode.
func WriteFile(zw *zip.Writer, name string, data []byte) error {
	w, err := create(zw, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CopyFromReader writes an entry from an io.Reader to avoid buffering whole files.
func CopyFromReader(zw *zip.Writer, name string, r io.Reader) error {
	w, err := create(zw, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
