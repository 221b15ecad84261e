package addon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"c3addon-builder/internal/ace"
)

const addonTS = `import { AddonConfig } from "../c3ide.types";

const ID = "ExampleAddon";

// @ts-ignore
const Config = {
  addonType: "behavior",
  id: ID,
  name: "Example Addon",
  version: "1.0.0.0",
  category: "general",
  author: "someone",
  website: "https://www.construct.net",
  documentation: "https://www.construct.net",
  description: "Description",
  editorScripts: ['editor.js'],
  fileDependencies: {
    "anotherLib.ts": 'copy-to-output'
  },
  properties: [
    {
      type: "combo",
      id: "mode",
      options: { initialValue: "a", items: [{ a: "Mode A" }, { b: "Mode B" }] },
      name: "Mode",
      desc: "Mode description",
    },
    { type: "link", id: "docs", name: "Docs", desc: "Open docs", linkText: "Open" },
  ],
  aceCategories: {
    general: "General",
    movement: "Movement",
  }
} as AddonConfig;

export default Config;
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFromScript(t *testing.T) {
	cfg, err := Load(context.Background(), write(t, "addon.ts", addonTS))
	require.NoError(t, err)

	assert.Equal(t, Behavior, cfg.Type)
	assert.Equal(t, "ExampleAddon", cfg.ID)
	assert.Equal(t, "1.0.0.0", cfg.Version)
	assert.Equal(t, "icon.svg", cfg.Icon)
	assert.Equal(t, []string{"editor.js"}, cfg.EditorScripts)
	assert.Equal(t, []string{"general", "movement"}, cfg.AceCategories.Keys())

	require.Len(t, cfg.Properties, 2)
	assert.Equal(t, []ace.Item{{Key: "a", Label: "Mode A"}, {Key: "b", Label: "Mode B"}}, cfg.Properties[0].Items)
	assert.Equal(t, "Open", cfg.Properties[1].LinkText)

	require.Len(t, cfg.FileDependencies, 1)
	dep := cfg.FileDependencies[0]
	assert.Equal(t, "anotherLib.ts", dep.Filename)
	assert.Equal(t, "anotherLib.js", dep.OutputName())
	assert.True(t, dep.NeedsCompile())
}

func TestLoadRejectsRuntimeCode(t *testing.T) {
	src := "const Config = { id: makeId(), name: \"n\", version: \"1\", addonType: \"plugin\" };\nexport default Config;\n"
	_, err := Load(context.Background(), write(t, "addon.ts", src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a static value")
}

func TestLoadJSONAndYAML(t *testing.T) {
	js := `{"addonType":"plugin","id":"P","name":"Plug","version":"2.0.0.0",
"fileDependencies":[{"filename":"lib.js","type":"external-runtime-script"}],
"actions":{"stale":{}}}`
	cfg, err := Load(context.Background(), write(t, "addon.json", js))
	require.NoError(t, err)
	assert.Equal(t, Plugin, cfg.Type)
	assert.False(t, cfg.Raw.Has("actions"), "injected ACE tables are dropped")
	assert.Equal(t, []FileDependency{{Filename: "lib.js", Type: "external-runtime-script"}}, cfg.FileDependencies)
	assert.False(t, cfg.FileDependencies[0].NeedsCompile())

	yml := "addonType: effect\nid: E\nname: Eff\nversion: 1.0.0.0\naceCategories:\n  z: Zed\n  a: Ay\n"
	cfg, err = Load(context.Background(), write(t, "addon.yaml", yml))
	require.NoError(t, err)
	assert.Equal(t, Effect, cfg.Type)
	assert.Equal(t, []string{"z", "a"}, cfg.AceCategories.Keys())
}

func TestValidate(t *testing.T) {
	_, err := Load(context.Background(), write(t, "addon.json", `{"addonType":"widget","id":"x","name":"x","version":"1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid addon type "widget"`)

	_, err = Load(context.Background(), write(t, "addon.json", `{"addonType":"plugin"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field(s): id, name, version")
}

func TestTypeKeys(t *testing.T) {
	k, err := Behavior.TextKey()
	require.NoError(t, err)
	assert.Equal(t, "behaviors", k)
	assert.Equal(t, "plugin.js", Plugin.RuntimeFile())
}
