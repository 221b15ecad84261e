// Package i18n loads per-language translation tables for the language files.
//
// A table maps a source string (as written in the addon sources) to its
// translation. Tables live in the language directory as <tag>.json or
// <tag>.yaml; a missing table is an empty table. Loaded tables are cached by
// path, size and modification time so dev rebuilds pick up edits.
package i18n

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"c3addon-builder/internal/sortutil"
)

// DefaultTag is used when a build declares no languages.
const DefaultTag = "en-US"

// Table maps source strings to translations.
type Table map[string]string

// Lookup returns the translation of s, or s itself.
func (t Table) Lookup(s string) string {
	if v, ok := t[s]; ok && v != "" {
		return v
	}
	return s
}

// Canonical validates tag and returns its canonical BCP 47 form.
func Canonical(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("language tag %q: %w", tag, err)
	}
	return t.String(), nil
}

// Canonicalize validates every tag, drops duplicates and keeps order.
// An empty input yields the default tag.
func Canonicalize(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{DefaultTag}, nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		tag, err := Canonical(raw)
		if err != nil {
			return nil, err
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out, nil
}

// Loader reads tables from one directory.
type Loader struct {
	dir   string
	cache *lru.Cache[string, Table]
}

// NewLoader returns a loader for dir. size bounds the number of cached tables.
func NewLoader(dir string, size int) (*Loader, error) {
	if size <= 0 {
		size = 32
	}
	c, err := lru.New[string, Table](size)
	if err != nil {
		return nil, fmt.Errorf("create table cache: %w", err)
	}
	return &Loader{dir: dir, cache: c}, nil
}

// LoadTable returns the table for tag. A missing file yields an empty table.
func (l *Loader) LoadTable(tag string) (Table, error) {
	if l == nil || l.dir == "" {
		return Table{}, nil
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.dir, tag+ext)
		fi, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%s|%d|%d", path, fi.Size(), fi.ModTime().UnixNano())
		if t, ok := l.cache.Get(key); ok {
			return t, nil
		}
		t, err := readTable(path)
		if err != nil {
			return nil, err
		}
		l.cache.Add(key, t)
		return t, nil
	}
	return Table{}, nil
}

// Available lists the tags that have a table file, sorted.
func (l *Loader) Available() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		switch ext {
		case ".json", ".yaml", ".yml":
			tags = append(tags, strings.TrimSuffix(name, ext))
		}
	}
	return sortutil.StablePathSort(tags), nil
}

func readTable(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if filepath.Ext(path) == ".json" {
		dec := json.NewDecoder(bytes.NewReader(b))
		err = dec.Decode(&raw)
	} else {
		err = yaml.Unmarshal(b, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	t := make(Table, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("read table %s: value of %q must be a string", path, k)
		}
		t[k] = s
	}
	return t, nil
}
