// Package addon reads the addon's static configuration: identity, version,
// editor properties, category labels and file dependencies.
//
// The configuration can live in the addon script itself (the object that
// addon.ts exports by default, reduced at build time without running it) or
// in a plain addon.json / addon.yaml file.
package addon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/extract"
)

// Type is the addon family.
type Type string

const (
	Behavior Type = "behavior"
	Plugin   Type = "plugin"
	Effect   Type = "effect"
)

// TextKey is the key the addon's strings live under in a language file.
func (t Type) TextKey() (string, error) {
	switch t {
	case Behavior, Plugin, Effect:
		return string(t) + "s", nil
	}
	return "", fmt.Errorf("invalid addon type %q", t)
}

// RuntimeFile is the name of the compiled runtime script inside c3runtime/.
func (t Type) RuntimeFile() string { return string(t) + ".js" }

// Property is one editor property of the addon.
type Property struct {
	ID       string
	Type     string
	Name     string
	Desc     string
	LinkText string
	Items    []ace.Item
	Raw      *eval.Object
}

// FileDependency is a file shipped next to the runtime script.
type FileDependency struct {
	Filename string
	Type     string
}

// OutputName is the file name inside c3runtime/. TypeScript dependencies are
// compiled, so they ship as .js.
func (d FileDependency) OutputName() string {
	ext := filepath.Ext(d.Filename)
	switch strings.ToLower(ext) {
	case ".ts", ".mts":
		return strings.TrimSuffix(d.Filename, ext) + ".js"
	}
	return d.Filename
}

// NeedsCompile reports whether the dependency is TypeScript.
func (d FileDependency) NeedsCompile() bool { return d.OutputName() != d.Filename }

// Config is the addon configuration.
type Config struct {
	Type          Type
	ID            string
	Name          string
	Version       string
	Author        string
	Website       string
	Documentation string
	Description   string
	Category      string
	Icon          string
	EditorScripts []string
	// AceCategories maps category id to label, in declaration order.
	AceCategories    *eval.Object
	Properties       []Property
	FileDependencies []FileDependency
	// Raw is the whole configuration object without the injected ACE tables.
	Raw *eval.Object
}

// Load reads the configuration from path. The format follows the extension:
// .json, .yaml/.yml, or a script (.ts/.js) whose default export is evaluated.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read addon config: %w", err)
	}
	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v, err = eval.DecodeJSON(bytes.NewReader(data))
	case ".yaml", ".yml":
		var n yaml.Node
		if err = yaml.Unmarshal(data, &n); err == nil {
			v, err = eval.FromYAML(&n)
		}
	default:
		v, err = fromScript(ctx, path, data)
	}
	if err != nil {
		return nil, fmt.Errorf("addon config %s: %w", path, err)
	}
	obj, ok := v.(*eval.Object)
	if !ok {
		return nil, fmt.Errorf("addon config %s: expected an object, got %T", path, v)
	}
	cfg, err := FromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("addon config %s: %w", path, err)
	}
	return cfg, nil
}

func fromScript(ctx context.Context, path string, src []byte) (any, error) {
	mod, err := extract.ParseModule(ctx, path, src)
	if err != nil {
		return nil, err
	}
	_, value, ok := extract.DefaultExport(mod)
	if !ok {
		return nil, fmt.Errorf("no default export")
	}
	v, err := mod.Scope.Eval(value)
	if err != nil {
		return nil, fmt.Errorf("default export is not a static value (execute libraries from the runtime script instead): %w", err)
	}
	return v, nil
}

// FromObject maps a decoded configuration object onto Config.
func FromObject(obj *eval.Object) (*Config, error) {
	raw := obj.Clone()
	for _, k := range ace.Kinds {
		raw.Delete(string(k))
	}
	raw.Delete("Aces")

	str := func(key string) string {
		s, _ := raw.GetString(key)
		return s
	}
	cfg := &Config{
		Type:          Type(str("addonType")),
		ID:            str("id"),
		Name:          str("name"),
		Version:       str("version"),
		Author:        str("author"),
		Website:       str("website"),
		Documentation: str("documentation"),
		Description:   str("description"),
		Category:      str("category"),
		Icon:          str("icon"),
		Raw:           raw,
	}
	if cfg.Icon == "" {
		cfg.Icon = "icon.svg"
	}

	if v, ok := raw.Get("editorScripts"); ok {
		list, err := stringList(v)
		if err != nil {
			return nil, fmt.Errorf("editorScripts: %w", err)
		}
		cfg.EditorScripts = list
	}

	cfg.AceCategories = eval.NewObject()
	if v, ok := raw.Get("aceCategories"); ok && v != nil {
		cats, ok := v.(*eval.Object)
		if !ok {
			return nil, fmt.Errorf("aceCategories: expected an object")
		}
		for _, k := range cats.Keys() {
			label, _ := cats.GetString(k)
			cfg.AceCategories.Set(k, label)
		}
	}

	if v, ok := raw.Get("properties"); ok && v != nil {
		props, err := properties(v)
		if err != nil {
			return nil, err
		}
		cfg.Properties = props
	}

	if v, ok := raw.Get("fileDependencies"); ok && v != nil {
		deps, err := fileDependencies(v)
		if err != nil {
			return nil, err
		}
		cfg.FileDependencies = deps
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every descriptor depends on.
func (c *Config) Validate() error {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"id", c.ID}, {"name", c.Name}, {"version", c.Version}, {"addonType", string(c.Type)},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	if _, err := c.Type.TextKey(); err != nil {
		return err
	}
	return nil
}

func stringList(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings")
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func properties(v any) ([]Property, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("properties: expected a list")
	}
	out := make([]Property, 0, len(list))
	for i, e := range list {
		obj, ok := e.(*eval.Object)
		if !ok {
			return nil, fmt.Errorf("properties[%d]: expected an object", i)
		}
		p := Property{Raw: obj}
		p.ID, _ = obj.GetString("id")
		p.Type, _ = obj.GetString("type")
		p.Name, _ = obj.GetString("name")
		p.Desc, _ = obj.GetString("desc")
		p.LinkText, _ = obj.GetString("linkText")
		if p.ID == "" {
			return nil, fmt.Errorf("properties[%d]: missing id", i)
		}
		if opts, ok := obj.Get("options"); ok {
			if o, ok := opts.(*eval.Object); ok {
				if items, ok := o.Get("items"); ok {
					parsed, err := ace.ParseItems(items)
					if err != nil {
						return nil, fmt.Errorf("properties[%d] (%s).options.items: %w", i, p.ID, err)
					}
					p.Items = parsed
				}
			}
		}
		out = append(out, p)
	}
	return out, nil
}


// fileDependencies accepts the list form [{filename, type}] and the map form
// {"lib.js": "copy-to-output"}.
func fileDependencies(v any) ([]FileDependency, error) {
	switch t := v.(type) {
	case []any:
		out := make([]FileDependency, 0, len(t))
		for i, e := range t {
			obj, ok := e.(*eval.Object)
			if !ok {
				return nil, fmt.Errorf("fileDependencies[%d]: expected an object", i)
			}
			name, _ := obj.GetString("filename")
			typ, _ := obj.GetString("type")
			if name == "" {
				return nil, fmt.Errorf("fileDependencies[%d]: missing filename", i)
			}
			out = append(out, FileDependency{Filename: name, Type: typ})
		}
		return out, nil
	case *eval.Object:
		out := make([]FileDependency, 0, t.Len())
		for _, k := range t.Keys() {
			typ, _ := t.GetString(k)
			out = append(out, FileDependency{Filename: k, Type: typ})
		}
		return out, nil
	}
	return nil, fmt.Errorf("fileDependencies: expected a list or an object")
}
