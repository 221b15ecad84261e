// Package meta reports build metadata: the tool's own version and the
// npm package the addon project is described by, when there is one.
//
// Goals:
//   - Best-effort parsing: tolerate partial or absent files
//   - No side effects; callers decide what to log
package meta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// version is set with -ldflags "-X c3addon-builder/internal/meta.version=...".
var version = ""

// Version returns the tool version: the linker-provided one, else the module
// version recorded by the Go toolchain, else "dev".
func Version() string {
	if version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			return v
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return "dev-" + s.Value[:7]
			}
		}
	}
	return "dev"
}

// Project is what package.json says about the addon project.
type Project struct {
	Name    string
	Version string
	// Entrypoint is "module" (ESM) when present, else "main".
	Entrypoint string
}

// DetectProject reads root/package.json. ok is false when there is none or
// it cannot be parsed.
func DetectProject(root string) (Project, bool) {
	b, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return Project{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return Project{}, false
	}
	return Project{
		Name:       strField(obj, "name"),
		Version:    strField(obj, "version"),
		Entrypoint: firstNonEmpty(strField(obj, "module"), strField(obj, "main")),
	}, true
}

// VersionDrift reports whether the package version and the addon version
// disagree. Addon versions have four parts, npm versions three, so
// "1.2.3" matches "1.2.3.0".
func VersionDrift(pkg, addon string) bool {
	if pkg == "" || addon == "" {
		return false
	}
	norm := func(v string) string {
		v = strings.TrimPrefix(strings.TrimSpace(v), "v")
		parts := strings.Split(v, ".")
		for len(parts) < 4 {
			parts = append(parts, "0")
		}
		return strings.Join(parts, ".")
	}
	return norm(pkg) != norm(addon)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func strField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
