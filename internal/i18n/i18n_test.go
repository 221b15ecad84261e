package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTableFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fr-FR.json"), []byte(`{"Jump":"Sauter"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de-DE.yaml"), []byte("Jump: Springen\n"), 0o644))

	l, err := NewLoader(dir, 4)
	require.NoError(t, err)

	fr, err := l.LoadTable("fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "Sauter", fr.Lookup("Jump"))
	assert.Equal(t, "Run", fr.Lookup("Run"))

	de, err := l.LoadTable("de-DE")
	require.NoError(t, err)
	assert.Equal(t, "Springen", de.Lookup("Jump"))

	none, err := l.LoadTable("ja-JP")
	require.NoError(t, err)
	assert.Equal(t, "Jump", none.Lookup("Jump"))

	tags, err := l.Available()
	require.NoError(t, err)
	assert.Equal(t, []string{"de-DE", "fr-FR"}, tags)
}

func TestLoadTableSeesEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "en-US.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":"1"}`), 0o644))
	l, err := NewLoader(dir, 4)
	require.NoError(t, err)
	tb, err := l.LoadTable("en-US")
	require.NoError(t, err)
	assert.Equal(t, "1", tb.Lookup("a"))

	require.NoError(t, os.WriteFile(path, []byte(`{"a":"22"}`), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
	tb, err = l.LoadTable("en-US")
	require.NoError(t, err)
	assert.Equal(t, "22", tb.Lookup("a"))
}

func TestLoadTableRejectsNonStrings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en-US.json"), []byte(`{"a":1}`), 0o644))
	l, err := NewLoader(dir, 0)
	require.NoError(t, err)
	_, err = l.LoadTable("en-US")
	require.Error(t, err)
}

func TestCanonicalize(t *testing.T) {
	tags, err := Canonicalize([]string{"en-us", "fr", "en-US"})
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US", "fr"}, tags)

	tags, err = Canonicalize(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultTag}, tags)

	_, err = Canonicalize([]string{"not a tag!"})
	require.Error(t, err)
}

func TestNilLoader(t *testing.T) {
	var l *Loader
	tb, err := l.LoadTable("en-US")
	require.NoError(t, err)
	assert.Empty(t, tb)
}
