// Package descriptor assembles the documents the host editor loads from the
// model of one build:
//
//   - aces.json: records grouped by category and kind (BuildCatalogue)
//   - lang/<tag>.json: every user-facing string, per language (BuildLocalization)
//   - addon.json: identity, file list and dispatch table (BuildManifest)
//
// All three walk categories in the model's first-use order so that documents
// built from the same inputs agree with each other and are byte-stable.
package descriptor

import (
	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/eval"
)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BuildCatalogue returns the aces.json document:
// {category: {actions: [Entry], conditions: [Entry], expressions: [Entry]}}.
func BuildCatalogue(m *ace.Model) *eval.Object {
	doc := eval.NewObject()
	for _, cat := range m.Categories() {
		group := eval.NewObject()
		for _, k := range ace.Kinds {
			entries := make([]any, 0, len(cat.List(k)))
			for _, r := range cat.List(k) {
				entries = append(entries, CatalogueEntry(r))
			}
			group.Set(string(k), entries)
		}
		doc.Set(cat.ID, group)
	}
	return doc
}

// CatalogueEntry keeps the structural fields of r: id, script name, the
// caller's options minus the display-only ones, return type and the reduced
// parameter list.
func CatalogueEntry(r *ace.Record) *eval.Object {
	e := eval.NewObject()
	e.Set("id", r.ID)
	e.Set("scriptName", r.ID)
	if r.Kind == ace.KindExpression {
		e.Set("expressionName", r.ID)
	}
	for _, k := range r.Options.Keys() {
		if k == "id" || contains(ace.DisplayOnlyRecordKeys, k) {
			continue
		}
		v, _ := r.Options.Get(k)
		e.Set(k, v)
	}
	if r.ReturnType != "" {
		e.Set("returnType", r.ReturnType)
	}
	params := make([]any, 0, len(r.Params))
	for _, p := range r.Params {
		params = append(params, catalogueParam(p))
	}
	e.Set("params", params)
	return e
}

func catalogueParam(p ace.Parameter) *eval.Object {
	out := eval.NewObject()
	resolved := map[string]func(){
		"id":   func() { out.Set("id", p.ID) },
		"type": func() { out.Set("type", p.Type) },
		"initialValue": func() {
			if p.HasInitial {
				out.Set("initialValue", p.InitialValue)
			}
		},
	}
	for _, k := range p.Options.Keys() {
		if contains(ace.DisplayOnlyParamKeys, k) {
			continue
		}
		if set, ok := resolved[k]; ok {
			set()
			continue
		}
		v, _ := p.Options.Get(k)
		out.Set(k, v)
	}
	if !out.Has("id") {
		out.Set("id", p.ID)
	}
	if !out.Has("type") {
		out.Set("type", p.Type)
	}
	if p.HasInitial && !out.Has("initialValue") {
		out.Set("initialValue", p.InitialValue)
	}
	if p.HasItems {
		keys := make([]any, 0, len(p.Items))
		for _, it := range p.Items {
			keys = append(keys, it.Key)
		}
		out.Set("items", keys)
	}
	return out
}
