package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, []string{"en-US"}, cfg.Languages)
	assert.Equal(t, filepath.Join(root, "src", "addon.ts"), cfg.SourceFile(cfg.AddonScript))
	assert.Equal(t, filepath.Join(root, "export"), cfg.Path(cfg.ExportPath))
}

func TestLoadFileThenEnv(t *testing.T) {
	root := t.TempDir()
	yml := "minify: true\nport: 4000\nsourcePath: lib\nlanguages: [en-us, fr-FR]\npublish:\n  bucket: addons\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(yml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("C3_EXPORT_PATH=out\nC3_PORT=5000\n"), 0o644))
	t.Setenv("C3_PORT", "6000")
	t.Cleanup(func() { os.Unsetenv("C3_EXPORT_PATH") })

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.True(t, cfg.Minify)
	assert.Equal(t, 6000, cfg.Port, "real environment wins over .env")
	assert.Equal(t, "lib", cfg.SourcePath)
	assert.Equal(t, "out", cfg.ExportPath)
	assert.Equal(t, []string{"en-US", "fr-FR"}, cfg.Languages)
	assert.Equal(t, "addons", cfg.Publish.Bucket)
	assert.Equal(t, "us-east-1", cfg.Publish.Region)
}

func TestLoadRejectsBadValues(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("port: 70000\n"), 0o644))
	_, err := Load(root)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("languages: ['not a tag!']\n"), 0o644))
	_, err = Load(root)
	require.Error(t, err)
}
