// Package validate performs structural validation of the assembled descriptor
// documents before anything is written. It is not a JSON-Schema validator;
// it checks the constraints the host editor relies on when it loads an addon.
//
// Goals:
//   - Aggregate multiple issues into a single error for better UX
//   - Check cross-references: every catalogue entry has a language entry and
//     a dispatch binding, every file-list path is well formed
//   - Deterministic messages (documents are walked in their own order)
package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/descriptor"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/sortutil"
)

// Documents validates every document of a build and their cross-references.
func Documents(d *descriptor.Documents) error {
	var errs errlist
	manifest(&errs, d.Manifest, d.Localization)
	ids := catalogue(&errs, d.Catalogue)
	dispatch(&errs, d.Manifest.Dispatch, ids)
	for _, tag := range sortedTags(d.Localization) {
		localization(&errs, tag, d.Localization[tag], ids)
	}
	return errs.err()
}

// Manifest validates addon.json on its own:
//
//   - id, name, version and type must be non-empty.
//   - Each file-list path must be relative, use forward slashes and contain
//     no ".." segments.
//   - No duplicate paths; the catalogue, the manifest and one language file
//     per language must be listed.
func Manifest(m *descriptor.Manifest, langs []string) error {
	var errs errlist
	tags := make(map[string]*descriptor.Localization, len(langs))
	for _, t := range langs {
		tags[t] = nil
	}
	manifest(&errs, m, tags)
	return errs.err()
}

func manifest(errs *errlist, m *descriptor.Manifest, langs map[string]*descriptor.Localization) {
	for _, f := range []struct{ name, v string }{
		{"id", m.ID}, {"name", m.Name}, {"version", m.Version}, {"type", string(m.Type)},
	} {
		if strings.TrimSpace(f.v) == "" {
			errs.add("addon.json: %s must be non-empty", f.name)
		}
	}

	seen := make(map[string]struct{}, len(m.FileList))
	for i, p := range m.FileList {
		prefix := fmt.Sprintf("addon.json: file-list[%d] (%s)", i, p)
		if p == "" {
			errs.add("%s: path must be non-empty", prefix)
			continue
		}
		if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
			errs.add("%s: path must be relative", prefix)
		}
		if strings.Contains(p, `\`) {
			errs.add("%s: path must use forward slashes ('/'), found backslash", prefix)
		}
		if hasDotDot(p) {
			errs.add("%s: path must not contain '..' segments", prefix)
		}
		if _, dup := seen[p]; dup {
			errs.add("%s: duplicate file path", prefix)
		}
		seen[p] = struct{}{}
	}

	required := []string{descriptor.CatalogueFile, descriptor.ManifestFile}
	for _, tag := range sortedTags(langs) {
		required = append(required, descriptor.LangFile(tag))
	}
	for _, r := range required {
		if _, ok := seen[r]; !ok {
			errs.add("addon.json: file-list must include %q", r)
		}
	}
}

// catalogue checks every entry of aces.json and returns kind -> id -> entry.
func catalogue(errs *errlist, doc *eval.Object) map[ace.Kind]map[string]*eval.Object {
	ids := make(map[ace.Kind]map[string]*eval.Object, len(ace.Kinds))
	for _, k := range ace.Kinds {
		ids[k] = make(map[string]*eval.Object)
	}
	for _, cat := range doc.Keys() {
		v, _ := doc.Get(cat)
		group, ok := v.(*eval.Object)
		if !ok {
			errs.add("aces.json: category %q must be an object", cat)
			continue
		}
		for _, k := range ace.Kinds {
			raw, _ := group.Get(string(k))
			list, ok := raw.([]any)
			if !ok {
				errs.add("aces.json: %s.%s must be a list", cat, k)
				continue
			}
			for i, e := range list {
				entry, _ := e.(*eval.Object)
				prefix := fmt.Sprintf("aces.json: %s.%s[%d]", cat, k, i)
				if entry == nil {
					errs.add("%s: entry must be an object", prefix)
					continue
				}
				id, _ := entry.GetString("id")
				if id == "" {
					errs.add("%s: id must be non-empty", prefix)
					continue
				}
				if s, _ := entry.GetString("scriptName"); s != id {
					errs.add("%s (%s): scriptName must equal id, got %q", prefix, id, s)
				}
				if _, dup := ids[k][id]; dup {
					errs.add("%s (%s): duplicate id in %s", prefix, id, k)
				}
				ids[k][id] = entry
				params(errs, prefix+" ("+id+")", entry)
			}
		}
	}
	return ids
}

func params(errs *errlist, prefix string, entry *eval.Object) {
	raw, _ := entry.Get("params")
	list, ok := raw.([]any)
	if !ok {
		errs.add("%s: params must be a list", prefix)
		return
	}
	seen := make(map[string]bool, len(list))
	for j, e := range list {
		p, _ := e.(*eval.Object)
		if p == nil {
			errs.add("%s.params[%d]: must be an object", prefix, j)
			continue
		}
		id, _ := p.GetString("id")
		if id == "" {
			errs.add("%s.params[%d]: id must be non-empty", prefix, j)
		} else if seen[id] {
			errs.add("%s.params[%d]: duplicate parameter id %q", prefix, j, id)
		}
		seen[id] = true
		if t, _ := p.GetString("type"); t == "" {
			errs.add("%s.params[%d] (%s): type must be non-empty", prefix, j, id)
		}
	}
}

func dispatch(errs *errlist, d *ace.DispatchTable, ids map[ace.Kind]map[string]*eval.Object) {
	if d == nil {
		errs.add("addon.json: ace-dispatch is missing")
		return
	}
	for _, k := range ace.Kinds {
		bound := make(map[string]bool)
		for _, e := range d.Entries(k) {
			bound[e.ID] = true
			if _, ok := ids[k][e.ID]; !ok {
				errs.add("addon.json: ace-dispatch.%s.%s has no catalogue entry", k, e.ID)
			}
			if e.Method == "" {
				errs.add("addon.json: ace-dispatch.%s.%s: method must be non-empty", k, e.ID)
			}
		}
		for _, id := range sortedKeys(ids[k]) {
			if !bound[id] {
				errs.add("aces.json: %s.%s has no dispatch binding", k, id)
			}
		}
	}
}

func localization(errs *errlist, tag string, loc *descriptor.Localization, ids map[ace.Kind]map[string]*eval.Object) {
	file := descriptor.LangFile(tag)
	if loc == nil || loc.Text == nil {
		errs.add("%s: text is missing", file)
		return
	}
	if loc.LanguageTag != tag {
		errs.add("%s: languageTag must be %q, got %q", file, tag, loc.LanguageTag)
	}
	root := addonRoot(loc.Text)
	if root == nil {
		errs.add("%s: text must hold exactly one addon", file)
		return
	}
	for _, k := range ace.Kinds {
		raw, _ := root.Get(string(k))
		section, _ := raw.(*eval.Object)
		if section == nil {
			errs.add("%s: %s section is missing", file, k)
			continue
		}
		for _, id := range sortedKeys(ids[k]) {
			v, _ := section.Get(id)
			entry, _ := v.(*eval.Object)
			if entry == nil {
				errs.add("%s: %s.%s is missing", file, k, id)
				continue
			}
			langParams(errs, fmt.Sprintf("%s: %s.%s", file, k, id), ids[k][id], entry)
		}
	}
}

func langParams(errs *errlist, prefix string, cat, lang *eval.Object) {
	raw, _ := lang.Get("params")
	lp, _ := raw.(*eval.Object)
	list, _ := cat.Get("params")
	ps, _ := list.([]any)
	for _, e := range ps {
		p, _ := e.(*eval.Object)
		if p == nil {
			continue
		}
		id, _ := p.GetString("id")
		if lp == nil || !lp.Has(id) {
			errs.add("%s.params.%s is missing", prefix, id)
		}
	}
}

// addonRoot descends text.<type>s.<id>.
func addonRoot(text *eval.Object) *eval.Object {
	if text.Len() != 1 {
		return nil
	}
	v, _ := text.Get(text.Keys()[0])
	byID, _ := v.(*eval.Object)
	if byID == nil || byID.Len() != 1 {
		return nil
	}
	v, _ = byID.Get(byID.Keys()[0])
	root, _ := v.(*eval.Object)
	return root
}

// --- helpers -----------------------------------------------------------------

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	// Join with newline for readability.
	return errors.New(strings.Join(e.msgs, "\n"))
}

func sortedTags(m map[string]*descriptor.Localization) []string { return sortutil.Keys(m) }

func sortedKeys(m map[string]*eval.Object) []string { return sortutil.Keys(m) }
