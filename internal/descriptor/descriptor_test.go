package descriptor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/extract"
	"c3addon-builder/internal/i18n"
)

const instanceSrc = `@AceClass
class Instance {
  @Action("Move {0} at {1}", { category: "movement", highlight: true, forward: "x" })
  move(distance: number, @Param({ items: [{ slow: "Slow" }, { fast: "Fast" }], desc: "How fast", autocompleteId: "s" }) speed: combo = "slow") {}

  @Trigger("On landed", { category: "movement" })
  onLanded() { return true; }

  @Expression({ description: "Current speed" })
  currentSpeed(): number { return 0; }

  @Action("Hide")
  hide() {}
}
`

type tables map[string]i18n.Table

func (t tables) LoadTable(tag string) (i18n.Table, error) { return t[tag], nil }

func fixture(t *testing.T) (*addon.Config, *ace.BuildContext) {
	t.Helper()
	bc := ace.NewBuildContext("test")
	_, err := extract.Extract(context.Background(), bc, "src/instance.ts", []byte(instanceSrc))
	require.NoError(t, err)

	cats := eval.NewObject()
	cats.Set("general", "General")
	cfg := &addon.Config{
		Type:          addon.Behavior,
		ID:            "MyAddon",
		Name:          "My Addon",
		Version:       "1.0.0.0",
		Description:   "Does things",
		Documentation: "https://example.com",
		Icon:          "icon.svg",
		AceCategories: cats,
		Properties: []addon.Property{
			{ID: "mode", Type: "combo", Name: "Mode", Items: []ace.Item{{Key: "a", Label: "Mode A"}}},
			{ID: "docs", Type: "link", Name: "Docs", LinkText: "Open"},
		},
		FileDependencies: []addon.FileDependency{{Filename: "lib.ts", Type: "external-dom-script"}},
	}
	return cfg, bc
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestBuildCatalogue(t *testing.T) {
	_, bc := fixture(t)
	doc := marshal(t, BuildCatalogue(bc.Model))

	assert.Equal(t, []string{"movement", "general"}, keys(gjson.Parse(doc)))

	move := gjson.Get(doc, "movement.actions.0")
	assert.Equal(t, "move", move.Get("id").String())
	assert.Equal(t, "move", move.Get("scriptName").String())
	assert.True(t, move.Get("highlight").Bool())
	for _, dropped := range []string{"category", "forward", "displayText", "listName", "description"} {
		assert.False(t, move.Get(dropped).Exists(), dropped)
	}

	speed := move.Get("params.1")
	assert.Equal(t, `{"autocompleteId":"s","id":"speed","type":"combo","initialValue":"slow","items":["slow","fast"]}`, speed.Raw)
	assert.Equal(t, `{"id":"distance","type":"number"}`, move.Get("params.0").Raw)

	landed := gjson.Get(doc, "movement.conditions.0")
	assert.True(t, landed.Get("isTrigger").Bool())

	expr := gjson.Get(doc, "general.expressions.0")
	assert.Equal(t, "currentSpeed", expr.Get("expressionName").String())
	assert.Equal(t, "number", expr.Get("returnType").String())
	assert.Equal(t, "[]", expr.Get("params").Raw)
	assert.Equal(t, "[]", gjson.Get(doc, "general.conditions").Raw)
}

func keys(r gjson.Result) []string {
	var out []string
	r.ForEach(func(k, _ gjson.Result) bool {
		out = append(out, k.String())
		return true
	})
	return out
}

func TestBuildLocalization(t *testing.T) {
	cfg, bc := fixture(t)
	cats, undeclared := Categories(cfg, bc.Model, extract.TitleCase)
	assert.Equal(t, []string{"movement"}, undeclared)
	assert.Equal(t, []string{"general", "movement"}, cats.Keys())

	loader := tables{"fr-FR": {"Hide": "Cacher", "Slow": "Lent", "Movement": "Mouvement"}}
	docs, err := BuildLocalization(cfg, bc.Model, cats, []string{"en-US", "fr-FR"}, loader)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	en := marshal(t, docs["en-US"])
	assert.Equal(t, "en-US", gjson.Get(en, "languageTag").String())
	assert.Equal(t, "Strings for myaddon.", gjson.Get(en, "fileDescription").String())
	root := gjson.Get(en, "text.behaviors.myaddon")
	assert.Equal(t, "My Addon", root.Get("name").String())
	assert.Equal(t, "https://example.com", root.Get("help-url").String())
	assert.Equal(t, "Mode A", root.Get("properties.mode.items.a").String())
	assert.Equal(t, "Open", root.Get("properties.docs.link-text").String())
	assert.Equal(t, "Move {0} at {1}", root.Get("actions.move.display-text").String())
	assert.Equal(t, "Move", root.Get("actions.move.list-name").String())
	assert.Equal(t, "How fast", root.Get("actions.move.params.speed.desc").String())
	assert.Equal(t, "currentSpeed", root.Get("expressions.currentSpeed.translated-name").String())
	assert.False(t, root.Get("expressions.currentSpeed.display-text").Exists())
	assert.Equal(t, "On landed", root.Get("conditions.onLanded.display-text").String())

	fr := gjson.Get(marshal(t, docs["fr-FR"]), "text.behaviors.myaddon")
	assert.Equal(t, "Cacher", fr.Get("actions.hide.display-text").String())
	assert.Equal(t, "Lent", fr.Get("actions.move.params.speed.items.slow").String())
	assert.Equal(t, "Fast", fr.Get("actions.move.params.speed.items.fast").String())
	assert.Equal(t, "Mouvement", fr.Get("aceCategories.movement").String())
}

func TestBuildLocalizationRejectsBadType(t *testing.T) {
	cfg, bc := fixture(t)
	cfg.Type = "widget"
	_, err := BuildLocalization(cfg, bc.Model, cfg.AceCategories, []string{"en-US"}, nil)
	require.Error(t, err)
}

func TestBuildManifest(t *testing.T) {
	cfg, bc := fixture(t)
	m := BuildManifest(cfg, Layout{Languages: []string{"en-US", "fr-FR"}, EditorScripts: []string{"editor.js"}}, bc.Dispatch)

	want := []string{
		"c3runtime/actions.js",
		"c3runtime/conditions.js",
		"c3runtime/expressions.js",
		"c3runtime/instance.js",
		"c3runtime/behavior.js",
		"c3runtime/type.js",
		"lang/en-US.json",
		"lang/fr-FR.json",
		"aces.json",
		"addon.json",
		"icon.svg",
		"editor.js",
		"c3runtime/lib.js",
	}
	if diff := cmp.Diff(want, m.FileList); diff != "" {
		t.Fatalf("file list mismatch (-want +got):\n%s", diff)
	}

	doc := marshal(t, m)
	assert.True(t, gjson.Get(doc, "is-addon").Bool())
	assert.True(t, gjson.Get(doc, "is-c3-addon").Bool())
	assert.Equal(t, int64(2), gjson.Get(doc, "sdk-version").Int())
	assert.Equal(t, "behavior", gjson.Get(doc, "type").String())
	assert.Equal(t, "move", gjson.Get(doc, "ace-dispatch.actions.move").String())
	assert.Equal(t, "currentSpeed", gjson.Get(doc, "ace-dispatch.expressions.currentSpeed").String())
}

func TestAssembleCrossReferences(t *testing.T) {
	cfg, bc := fixture(t)
	docs, err := Assemble(cfg, bc.Model, bc.Dispatch, Layout{Languages: []string{"en-US"}}, nil, extract.TitleCase)
	require.NoError(t, err)
	assert.Equal(t, []string{"movement"}, docs.Undeclared)
	assert.Equal(t, "[]", marshal(t, docs.Manifest.EditorScripts))

	files, err := docs.Files()
	require.NoError(t, err)
	require.Contains(t, files, "aces.json")
	require.Contains(t, files, "addon.json")
	require.Contains(t, files, "lang/en-US.json")

	catalogue := string(files["aces.json"])
	lang := gjson.GetBytes(files["lang/en-US.json"], "text.behaviors.myaddon")
	for _, k := range ace.Kinds {
		for _, r := range bc.Model.Records(k) {
			path := r.Category + "." + string(k) + `.#(id=="` + r.ID + `").scriptName`
			assert.Equal(t, r.ID, gjson.Get(catalogue, path).String(), path)
			assert.True(t, lang.Get(string(k)+"."+r.ID).Exists(), r.ID)
			assert.True(t, gjson.GetBytes(files["addon.json"], "ace-dispatch."+string(k)+"."+r.ID).Exists())
		}
	}
}
