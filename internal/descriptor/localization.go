package descriptor

import (
	"fmt"
	"strings"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/i18n"
)

// TableLoader supplies the translation table of one language.
type TableLoader interface {
	LoadTable(tag string) (i18n.Table, error)
}

// Localization is one lang/<tag>.json document.
type Localization struct {
	LanguageTag     string       `json:"languageTag"`
	FileDescription string       `json:"fileDescription"`
	Text            *eval.Object `json:"text"`
}

// Categories returns the category labels for the language files: the ones the
// addon declares, in declaration order, then any category used by a record
// but not declared, labelled with its title-cased id.
func Categories(cfg *addon.Config, m *ace.Model, title func(string) string) (labels *eval.Object, undeclared []string) {
	labels = cfg.AceCategories.Clone()
	for _, c := range m.Categories() {
		if !labels.Has(c.ID) {
			labels.Set(c.ID, title(c.ID))
			undeclared = append(undeclared, c.ID)
		}
	}
	return labels, undeclared
}

// BuildLocalization returns one document per language tag. Every leaf string
// goes through the language's table and falls back to itself.
func BuildLocalization(cfg *addon.Config, m *ace.Model, categories *eval.Object, tags []string, loader TableLoader) (map[string]*Localization, error) {
	textKey, err := cfg.Type.TextKey()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Localization, len(tags))
	for _, tag := range tags {
		var table i18n.Table
		if loader != nil {
			if table, err = loader.LoadTable(tag); err != nil {
				return nil, fmt.Errorf("load %s table: %w", tag, err)
			}
		}
		tr := table.Lookup
		id := strings.ToLower(cfg.ID)

		root := eval.NewObject()
		root.Set("name", tr(cfg.Name))
		root.Set("description", tr(cfg.Description))
		root.Set("help-url", tr(cfg.Documentation))

		cats := eval.NewObject()
		for _, k := range categories.Keys() {
			label, _ := categories.GetString(k)
			cats.Set(k, tr(label))
		}
		root.Set("aceCategories", cats)

		props := eval.NewObject()
		for _, p := range cfg.Properties {
			entry := eval.NewObject()
			entry.Set("name", tr(p.Name))
			entry.Set("desc", tr(p.Desc))
			switch {
			case len(p.Items) > 0:
				entry.Set("items", itemLabels(p.Items, tr))
			case p.Type == "link":
				entry.Set("link-text", tr(p.LinkText))
			}
			props.Set(p.ID, entry)
		}
		root.Set("properties", props)

		for _, k := range ace.Kinds {
			recs := eval.NewObject()
			for _, r := range m.Records(k) {
				recs.Set(r.ID, localizedRecord(r, tr))
			}
			root.Set(string(k), recs)
		}

		addonText := eval.NewObject()
		addonText.Set(id, root)
		text := eval.NewObject()
		text.Set(textKey, addonText)

		out[tag] = &Localization{
			LanguageTag:     tag,
			FileDescription: fmt.Sprintf("Strings for %s.", id),
			Text:            text,
		}
	}
	return out, nil
}

func localizedRecord(r *ace.Record, tr func(string) string) *eval.Object {
	e := eval.NewObject()
	if r.Kind == ace.KindExpression {
		e.Set("translated-name", tr(r.ID))
	} else {
		e.Set("list-name", tr(r.ListName))
		e.Set("display-text", tr(r.DisplayText))
	}
	e.Set("description", tr(r.Description))
	params := eval.NewObject()
	for _, p := range r.Params {
		pe := eval.NewObject()
		pe.Set("name", tr(p.Name))
		pe.Set("desc", tr(p.Desc))
		if p.HasItems {
			pe.Set("items", itemLabels(p.Items, tr))
		}
		params.Set(p.ID, pe)
	}
	e.Set("params", params)
	return e
}

func itemLabels(items []ace.Item, tr func(string) string) *eval.Object {
	out := eval.NewObject()
	for _, it := range items {
		out.Set(it.Key, tr(it.Label))
	}
	return out
}
