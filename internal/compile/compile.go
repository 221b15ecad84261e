// Package compile turns the rewritten sources into the scripts the host loads.
//
// The pipeline never hands annotated sources to the compiler: it passes the
// rewritten text of every module it processed as Overrides, and the compiler
// serves those instead of reading the files from disk. Modules that were not
// rewritten (plain helpers, libraries) are read as usual.
package compile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Request describes one output script.
type Request struct {
	// Entry is the absolute path of the entry module.
	Entry string
	// Overrides maps absolute module paths to the text to compile instead of
	// the file contents.
	Overrides map[string][]byte
	// Bundle inlines every import reachable from Entry.
	Bundle bool
	Minify bool
}

// Compiler produces a single script from a Request.
type Compiler interface {
	Compile(ctx context.Context, req Request) ([]byte, error)
}

// Esbuild compiles with the in-process esbuild API.
type Esbuild struct {
	// Target is the JavaScript target, "es2021" when empty.
	Target api.Target
}

// NewEsbuild returns the default compiler.
func NewEsbuild() *Esbuild { return &Esbuild{Target: api.ES2021} }

func (e *Esbuild) Compile(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := e.Target
	if target == api.DefaultTarget {
		target = api.ES2021
	}
	res := api.Build(api.BuildOptions{
		EntryPoints: []string{req.Entry},
		Bundle:      req.Bundle,
		Write:       false,
		Target:      target,
		Format:      api.FormatIIFE,
		Platform:    api.PlatformBrowser,
		LogLevel:    api.LogLevelSilent,

		MinifyWhitespace:  req.Minify,
		MinifyIdentifiers: req.Minify,
		MinifySyntax:      req.Minify,

		Plugins: []api.Plugin{overridePlugin(req.Overrides)},
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("compile %s: %s", filepath.Base(req.Entry), formatMessages(res.Errors))
	}
	if len(res.OutputFiles) == 0 {
		return nil, fmt.Errorf("compile %s: no output", filepath.Base(req.Entry))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.OutputFiles[0].Contents, nil
}

// overridePlugin serves rewritten module text. Paths it does not know fall
// through to the default file loader.
func overridePlugin(overrides map[string][]byte) api.Plugin {
	return api.Plugin{
		Name: "c3-rewritten-sources",
		Setup: func(b api.PluginBuild) {
			b.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				src, ok := overrides[filepath.Clean(args.Path)]
				if !ok {
					return api.OnLoadResult{}, nil
				}
				contents := string(src)
				dir := filepath.Dir(args.Path)
				return api.OnLoadResult{
					Contents:   &contents,
					Loader:     LoaderFor(args.Path),
					ResolveDir: dir,
				}, nil
			})
		},
	}
}

// LoaderFor picks the esbuild loader from the file extension.
func LoaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".json":
		return api.LoaderJSON
	}
	return api.LoaderJS
}

func formatMessages(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		lines = append(lines, m.Text)
	}
	return strings.Join(lines, "; ")
}
