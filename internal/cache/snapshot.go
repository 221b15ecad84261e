// Package cache persists what the last successful build consumed so that dev
// rebuilds triggered by unrelated file events can be skipped.
//
// It offers:
//   - Per-project cache directory derivation (PathKey, Dir)
//   - Snapshot load/save with atomic writes (Load, Save)
//   - Change detection between snapshots (Compare)
//
// Conventions:
//   - The cache root defaults to "<project>/.c3cache" unless overridden.
//   - A per-project cache lives at: <root>/<pathKey>/
//   - The snapshot is stored at:    <root>/<pathKey>/snapshot.json
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	// DirName is the default cache root inside a project.
	DirName = ".c3cache"

	snapshotFileName = "snapshot.json"
	formatVersion    = "1"
)

// PathKey returns a short, stable identifier for an absolute project path.
func PathKey(abs string) string {
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}

// Dir resolves the cache directory for the project at projectAbs. If root is
// empty the cache lives in the project itself.
func Dir(root, projectAbs string) string {
	if root == "" {
		root = filepath.Join(projectAbs, DirName)
	}
	return filepath.Join(root, PathKey(projectAbs))
}

// Load reads the snapshot from <dir>/snapshot.json.
// If the file does not exist, it returns (nil, nil) so callers can treat it
// as "no previous snapshot" without branching on errors.
func Load(dir string) (*Snapshot, error) {
	b, err := os.ReadFile(filepath.Join(dir, snapshotFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if s.FormatVersion != formatVersion {
		return nil, nil
	}
	return &s, nil
}

// Save writes the snapshot atomically to <dir>/snapshot.json.
// The write goes to a temporary file within the same directory which is then
// renamed, so readers never observe a partially-written file.
func Save(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.FormatVersion = formatVersion
	f, err := os.CreateTemp(dir, ".tmp-"+snapshotFileName+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, snapshotFileName))
}

// Clear removes the entire cache directory for the project.
// Safe to call even if the directory does not exist.
func Clear(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.RemoveAll(dir)
}
