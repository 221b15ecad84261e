// Package cache defines the snapshot of build inputs recorded after every
// successful build, and the change set between two snapshots.
package cache

// SnapFile represents a single input file in a snapshot.
// Path is relative to the project root with forward slashes, Hash is the
// lowercase hex sha256 of the contents.
type SnapFile struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Snapshot captures the inputs of one successful build.
// Addon is the addon id, Build the build id, Created an RFC 3339 timestamp
// (UTC). FormatVersion versions the snapshot schema.
type Snapshot struct {
	Addon         string     `json:"addon"`
	Build         string     `json:"build"`
	Created       string     `json:"created"`
	FormatVersion string     `json:"formatVersion,omitempty"`
	Files         []SnapFile `json:"files"`
}

// Changes lists the paths that differ between two snapshots, each sorted.
//
//   - Added: present now, absent before
//   - Removed: present before, absent now
//   - Changed: same path, different hash
type Changes struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Count is the number of changed paths.
func (c Changes) Count() int { return len(c.Added) + len(c.Removed) + len(c.Changed) }
