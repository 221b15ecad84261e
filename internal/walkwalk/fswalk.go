// Package walkwalk provides a deterministic, filterable walker over the addon
// source tree. The pipeline and the dev-server watcher use it so that both see
// the same set of files in the same order.
package walkwalk

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// File is a minimal, deterministic descriptor of a collected file.
type File struct {
	RelPath   string // root-relative path with forward slashes
	AbsPath   string // absolute filesystem path
	Size      int64  // size in bytes
	SHA256Hex string // lowercase hex sha256 of the file contents
	Ext       string // lowercase extension including dot (e.g., ".ts")
}

// Options filter the walk. The zero value collects every regular file except
// dot-files, honoring no .gitignore. Symlinks are never followed.
type Options struct {
	// Exts keeps only files with these lowercase extensions. Empty keeps all.
	Exts []string
	// Exclude skips files and directories whose base name is listed.
	Exclude []string
	// Keep, when set, is consulted last for every file.
	Keep func(rel string) bool
	// UseGitignore applies <root>/.gitignore.
	UseGitignore bool
	// Hidden includes dot-files and dot-directories.
	Hidden bool
}

type walkState struct {
	opts     Options
	exts     map[string]bool
	exclude  map[string]bool
	root     string
	patterns []gitPattern
	files    []File
}

// Walk returns the files under root matching opts, sorted by relative path.
// A missing root yields no files.
func Walk(root string, opts Options) ([]File, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil, nil
	}
	ws := &walkState{
		opts:    opts,
		exts:    set(opts.Exts),
		exclude: set(opts.Exclude),
		root:    abs,
	}
	if opts.UseGitignore {
		// A missing or unreadable .gitignore means no patterns.
		ws.patterns, _ = parseGitignore(filepath.Join(abs, ".gitignore"))
	}
	if err := filepath.WalkDir(abs, ws.visit); err != nil {
		return nil, err
	}
	sort.Slice(ws.files, func(i, j int) bool { return ws.files[i].RelPath < ws.files[j].RelPath })
	return ws.files, nil
}

// Dirs returns root and every directory below it that a walk with opts
// would enter, sorted. The watcher registers these.
func Dirs(root string, opts Options) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ws := &walkState{opts: opts, exclude: set(opts.Exclude), root: abs}
	if opts.UseGitignore {
		ws.patterns, _ = parseGitignore(filepath.Join(abs, ".gitignore"))
	}
	var dirs []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != abs {
			rel, ok := ws.relative(path)
			if !ok || ws.shouldSkip(rel, d) || isSymlink(d) {
				return filepath.SkipDir
			}
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}

func set(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[s] = true
	}
	return m
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return nil
	}
	if path == ws.root {
		return nil
	}
	rel, ok := ws.relative(path)
	if !ok {
		return nil
	}
	if ws.shouldSkip(rel, d) {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() {
		if isSymlink(d) {
			return filepath.SkipDir
		}
		return nil
	}
	return ws.handleFile(path, rel, d)
}

func (ws *walkState) relative(path string) (string, bool) {
	rel, err := filepath.Rel(ws.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", false
	}
	return rel, true
}

// IsHidden reports whether base names a dot-file or dot-directory.
func IsHidden(base string) bool {
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func (ws *walkState) shouldSkip(rel string, d fs.DirEntry) bool {
	base := filepath.Base(rel)
	if !ws.opts.Hidden && IsHidden(base) {
		return true
	}
	if ws.exclude[base] {
		return true
	}
	if ws.opts.UseGitignore && matchGitignore(ws.patterns, rel, d.IsDir()) {
		return true
	}
	return false
}

func (ws *walkState) handleFile(path, rel string, d fs.DirEntry) error {
	if isSymlink(d) {
		return nil
	}
	info, err := d.Info()
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if len(ws.exts) > 0 && !ws.exts[ext] {
		return nil
	}
	if ws.opts.Keep != nil && !ws.opts.Keep(rel) {
		return nil
	}
	sumHex, err := SHA256File(path)
	if err != nil {
		return err
	}
	ws.files = append(ws.files, File{
		RelPath:   rel,
		AbsPath:   path,
		Size:      info.Size(),
		SHA256Hex: sumHex,
		Ext:       ext,
	})
	return nil
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}

// SHA256File computes a hex-encoded sha256 for the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ---------------- .gitignore support ----------------

type gitPattern struct {
	neg     bool           // pattern starts with '!'
	dirOnly bool           // pattern ends with '/'
	rx      *regexp.Regexp // compiled matcher
}

// parseGitignore reads a .gitignore file and compiles patterns. Minimal support:
//   - '#' comments, blank lines ignored
//   - '!' negation
//   - leading '/' anchors to the source root
//   - trailing '/' restricts to directories
//   - '**' matches across directories
//   - '*' and '?' behave like shell globs (not crossing '/')
func parseGitignore(path string) ([]gitPattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var res []gitPattern
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		neg := strings.HasPrefix(line, "!")
		if neg {
			line = strings.TrimSpace(line[1:])
			if line == "" {
				continue
			}
		}
		dirOnly := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		anchored := strings.HasPrefix(line, "/")
		line = strings.TrimPrefix(line, "/")
		res = append(res, gitPattern{neg: neg, dirOnly: dirOnly, rx: compileGitGlob(line, anchored)})
	}
	return res, s.Err()
}

func compileGitGlob(glob string, anchored bool) *regexp.Regexp {
	esc := regexp.QuoteMeta(glob)
	esc = strings.ReplaceAll(esc, `\*\*`, "\x00")
	esc = strings.ReplaceAll(esc, `\*`, "[^/]*")
	esc = strings.ReplaceAll(esc, `\?`, "[^/]")
	esc = strings.ReplaceAll(esc, "\x00", ".*")
	if anchored {
		return regexp.MustCompile("^" + esc + "$")
	}
	return regexp.MustCompile("(^|.*/)" + esc + "$")
}

func matchGitignore(pats []gitPattern, rel string, isDir bool) bool {
	ignored := false
	for _, p := range pats {
		if p.dirOnly && !isDir {
			continue
		}
		if p.rx.MatchString(rel) {
			ignored = !p.neg
		}
	}
	return ignored
}
