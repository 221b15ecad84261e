package descriptor

import (
	"encoding/json"
	"path"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/eval"
)

// SDKVersion is the addon SDK generation the manifest targets.
const SDKVersion = 2

// Fixed output names relative to the export directory.
const (
	CatalogueFile = "aces.json"
	ManifestFile  = "addon.json"
	LangDir       = "lang"
	RuntimeDir    = "c3runtime"
)

// PlaceholderRuntimeFiles ship empty; the bundled runtime script carries the
// implementation.
var PlaceholderRuntimeFiles = []string{"actions.js", "conditions.js", "expressions.js", "instance.js", "type.js"}

// Layout describes the files a build produces.
type Layout struct {
	Languages     []string
	EditorScripts []string
	Icon          string
}

// LangFile is the path of the language file for tag.
func LangFile(tag string) string { return path.Join(LangDir, tag+".json") }

// Manifest is the addon.json document.
type Manifest struct {
	IsAddon       bool               `json:"is-addon"`
	IsC3Addon     bool               `json:"is-c3-addon"`
	SDKVersion    int                `json:"sdk-version"`
	Type          addon.Type         `json:"type"`
	Name          string             `json:"name"`
	ID            string             `json:"id"`
	Version       string             `json:"version"`
	Author        string             `json:"author"`
	Website       string             `json:"website"`
	Documentation string             `json:"documentation"`
	Description   string             `json:"description"`
	EditorScripts []string           `json:"editor-scripts"`
	FileList      []string           `json:"file-list"`
	Dispatch      *ace.DispatchTable `json:"ace-dispatch,omitempty"`
}

// FileList returns the artifact list in the order the host expects: runtime
// scripts, language files, catalogue, manifest, icon, editor scripts, then
// declared dependencies.
func FileList(cfg *addon.Config, l Layout) []string {
	files := []string{
		path.Join(RuntimeDir, "actions.js"),
		path.Join(RuntimeDir, "conditions.js"),
		path.Join(RuntimeDir, "expressions.js"),
		path.Join(RuntimeDir, "instance.js"),
		path.Join(RuntimeDir, cfg.Type.RuntimeFile()),
		path.Join(RuntimeDir, "type.js"),
	}
	for _, tag := range l.Languages {
		files = append(files, LangFile(tag))
	}
	files = append(files, CatalogueFile, ManifestFile)
	icon := l.Icon
	if icon == "" {
		icon = cfg.Icon
	}
	files = append(files, icon)
	files = append(files, l.EditorScripts...)
	for _, d := range cfg.FileDependencies {
		files = append(files, path.Join(RuntimeDir, d.OutputName()))
	}
	return dedupe(files)
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, s := range list {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// BuildManifest merges the addon identity with the file list and embeds the
// dispatch table.
func BuildManifest(cfg *addon.Config, l Layout, dispatch *ace.DispatchTable) *Manifest {
	editor := l.EditorScripts
	if editor == nil {
		editor = []string{}
	}
	return &Manifest{
		IsAddon:       true,
		IsC3Addon:     true,
		SDKVersion:    SDKVersion,
		Type:          cfg.Type,
		Name:          cfg.Name,
		ID:            cfg.ID,
		Version:       cfg.Version,
		Author:        cfg.Author,
		Website:       cfg.Website,
		Documentation: cfg.Documentation,
		Description:   cfg.Description,
		EditorScripts: editor,
		FileList:      FileList(cfg, l),
		Dispatch:      dispatch,
	}
}

// Documents is every descriptor of one build, ready to be written.
type Documents struct {
	Catalogue    *eval.Object
	Localization map[string]*Localization
	Manifest     *Manifest
	// Undeclared lists categories used by records but absent from the addon.
	Undeclared []string
}

// Files renders the documents keyed by their path in the export directory.
func (d *Documents) Files() (map[string][]byte, error) {
	out := make(map[string][]byte, len(d.Localization)+2)
	put := func(name string, v any) error {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		out[name] = append(b, '\n')
		return nil
	}
	if err := put(CatalogueFile, d.Catalogue); err != nil {
		return nil, err
	}
	if err := put(ManifestFile, d.Manifest); err != nil {
		return nil, err
	}
	for tag, loc := range d.Localization {
		if err := put(LangFile(tag), loc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Assemble builds all documents for one build.
func Assemble(cfg *addon.Config, m *ace.Model, dispatch *ace.DispatchTable, l Layout, loader TableLoader, title func(string) string) (*Documents, error) {
	cats, undeclared := Categories(cfg, m, title)
	loc, err := BuildLocalization(cfg, m, cats, l.Languages, loader)
	if err != nil {
		return nil, err
	}
	return &Documents{
		Catalogue:    BuildCatalogue(m),
		Localization: loc,
		Manifest:     BuildManifest(cfg, l, dispatch),
		Undeclared:   undeclared,
	}, nil
}
