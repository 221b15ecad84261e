// Package bundle packages an export directory into an installable .c3addon
// archive and renders the Markdown ACE reference.
//
// The archive is reproducible:
//   - entries are sorted by their export-relative path
//   - timestamps and modes are fixed (see ziputil)
//   - the file is written to a temp name and renamed into place
package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"c3addon-builder/internal/walkwalk"
	"c3addon-builder/internal/ziputil"
)

// Extension is the archive extension the editor installs from.
const Extension = ".c3addon"

// Info summarizes a written archive.
type Info struct {
	Path    string
	Entries []string
	Bytes   int64
}

// ArchiveName is the archive file name for an addon id and version.
func ArchiveName(id, version string) string {
	if version == "" {
		return id + Extension
	}
	return id + "-" + version + Extension
}

// Pack zips every file of exportDir into outPath.
func Pack(ctx context.Context, exportDir, outPath string) (Info, error) {
	files, err := walkwalk.Walk(exportDir, walkwalk.Options{})
	if err != nil {
		return Info{}, fmt.Errorf("walk %s: %w", exportDir, err)
	}
	if len(files) == 0 {
		return Info{}, fmt.Errorf("nothing to pack in %s", exportDir)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".pack-*")
	if err != nil {
		return Info{}, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	info := Info{Path: outPath}
	if err := writeEntries(ctx, tmp, files, &info); err != nil {
		tmp.Close()
		return Info{}, err
	}
	st, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return Info{}, err
	}
	info.Bytes = st.Size()
	if err := tmp.Close(); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return Info{}, fmt.Errorf("rename %s: %w", outPath, err)
	}
	return info, nil
}

func writeEntries(ctx context.Context, out *os.File, files []walkwalk.File, info *Info) error {
	zw := ziputil.NewWriter(out)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyEntry(zw, f); err != nil {
			return err
		}
		info.Entries = append(info.Entries, f.RelPath)
	}
	return zw.Close()
}

func copyEntry(zw *zip.Writer, f walkwalk.File) error {
	in, err := os.Open(f.AbsPath)
	if err != nil {
		return err
	}
	defer in.Close()
	return ziputil.CopyFromReader(zw, f.RelPath, in)
}
