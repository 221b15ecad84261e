// Package pipeline drives one build from sources to the export directory.
//
// A build:
//   - loads the addon configuration
//   - walks the source tree in sorted order, extracting and rewriting every
//     module into a fresh ace.BuildContext
//   - injects the dispatch table into the addon script's default export
//   - compiles the runtime, editor and library scripts
//   - assembles and validates aces.json, lang/<tag>.json and addon.json
//   - stages every output file, then swaps the staged directory into place
//
// Nothing is written to the export directory unless every step succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/cache"
	"c3addon-builder/internal/compile"
	"c3addon-builder/internal/config"
	"c3addon-builder/internal/descriptor"
	"c3addon-builder/internal/extract"
	"c3addon-builder/internal/i18n"
	"c3addon-builder/internal/logging"
	"c3addon-builder/internal/sortutil"
	"c3addon-builder/internal/telemetry"
	"c3addon-builder/internal/validate"
	"c3addon-builder/internal/walkwalk"
)

// DispatchKey is the key the dispatch table is injected under in the addon
// script's default export.
const DispatchKey = "Aces"

// State is the phase a build is in.
type State int

const (
	Idle State = iota
	Parsing
	Extracting
	Rewriting
	Compiling
	Assembling
	Writing
	Done
	Failed
)

var stateNames = [...]string{"idle", "parsing", "extracting", "rewriting", "compiling", "assembling", "writing", "done", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configure a Builder.
type Options struct {
	Config   *config.Config
	Compiler compile.Compiler
	Logger   *zap.Logger
	// SkipUnchanged returns early when no input changed since the last
	// successful build and the export directory still exists.
	SkipUnchanged bool
	// OnState is called on every transition. It must not block.
	OnState func(State)
}

// Builder runs builds for one project. Builds must be serialized by the
// caller (see Scheduler); Builder itself only guards its state.
type Builder struct {
	opts   Options
	log    *zap.Logger
	tables *i18n.Loader

	mu    sync.Mutex
	state State
}

// Result describes a finished build.
type Result struct {
	ID        string
	Addon     *addon.Config
	Documents *descriptor.Documents
	Model     *ace.Model
	// Sources are the extracted modules in walk order.
	Sources []*extract.Result
	// Files are the written paths relative to the export directory, sorted.
	Files    []string
	Changes  cache.Changes
	Skipped  bool
	Duration time.Duration
}

// New returns a Builder for opts.
func New(opts Options) (*Builder, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if opts.Compiler == nil {
		opts.Compiler = compile.NewEsbuild()
	}
	tables, err := i18n.NewLoader(opts.Config.Path(opts.Config.LangPath), 0)
	if err != nil {
		return nil, err
	}
	return &Builder{opts: opts, log: logging.OrNop(opts.Logger), tables: tables}, nil
}

// State returns the phase of the current or last build.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Builder) set(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	if b.opts.OnState != nil {
		b.opts.OnState(s)
	}
}

// ExportDir is the absolute export directory.
func (b *Builder) ExportDir() string { return b.opts.Config.Path(b.opts.Config.ExportPath) }

func (b *Builder) cacheDir() string {
	root, _ := filepath.Abs(b.opts.Config.Root)
	return cache.Dir("", root)
}

// ClearCache forgets the inputs of the last build so the next dev build runs
// even when nothing changed.
func (b *Builder) ClearCache() error { return cache.Clear(b.cacheDir()) }

// Build runs one full build.
func (b *Builder) Build(ctx context.Context) (res *Result, err error) {
	started := time.Now()
	id := uuid.NewString()
	log := b.log.With(zap.String("build", id))

	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "build")
	span.SetAttributes(attribute.String("build.id", id))
	defer func() {
		if err != nil {
			b.set(Failed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("build failed", zap.Error(err), zap.Duration("took", time.Since(started)))
		}
		span.End()
	}()

	b.set(Parsing)
	snap, err := b.snapshot(id)
	if err != nil {
		return nil, err
	}
	prev, err := cache.Load(b.cacheDir())
	if err != nil {
		log.Warn("ignoring unreadable build cache", zap.Error(err))
		prev = nil
	}
	changes := cache.Compare(prev, snap)
	if b.opts.SkipUnchanged && prev != nil && changes.Empty() && dirExists(b.ExportDir()) {
		b.set(Done)
		log.Info("inputs unchanged, build skipped")
		return &Result{ID: id, Skipped: true, Duration: time.Since(started)}, nil
	}

	an, err := b.analyze(ctx, id, log)
	if err != nil {
		return nil, err
	}
	ad, bc, overrides := an.Addon, an.Context, an.Overrides
	span.SetAttributes(attribute.String("addon.id", ad.ID), attribute.String("addon.version", ad.Version))
	cfg := b.opts.Config

	b.set(Compiling)
	files := make(map[string][]byte)
	runtime, err := b.opts.Compiler.Compile(ctx, compile.Request{
		Entry:     cfg.SourceFile(cfg.RuntimeScript),
		Overrides: overrides,
		Bundle:    true,
		Minify:    cfg.Minify,
	})
	if err != nil {
		return nil, err
	}
	files[path.Join(descriptor.RuntimeDir, ad.Type.RuntimeFile())] = runtime

	editors, err := b.editorScripts(ctx, ad, overrides, files, log)
	if err != nil {
		return nil, err
	}
	if err := b.libraries(ctx, ad, overrides, files); err != nil {
		return nil, err
	}
	icon, err := os.ReadFile(cfg.SourceFile(ad.Icon))
	if err != nil {
		return nil, fmt.Errorf("icon: %w", err)
	}
	files[ad.Icon] = icon
	for _, name := range descriptor.PlaceholderRuntimeFiles {
		files[path.Join(descriptor.RuntimeDir, name)] = []byte{}
	}

	b.set(Assembling)
	layout := descriptor.Layout{Languages: cfg.Languages, EditorScripts: editors, Icon: ad.Icon}
	docs, err := descriptor.Assemble(ad, bc.Model, bc.Dispatch, layout, b.tables, extract.TitleCase)
	if err != nil {
		return nil, err
	}
	for _, c := range docs.Undeclared {
		log.Warn("category is not declared in aceCategories, using its id as label", zap.String("category", c))
	}
	b.warnUnlistedTables(cfg.Languages, log)
	if err := validate.Documents(docs); err != nil {
		return nil, fmt.Errorf("invalid descriptors:\n%w", err)
	}
	rendered, err := docs.Files()
	if err != nil {
		return nil, err
	}
	for name, data := range rendered {
		files[name] = data
	}

	b.set(Writing)
	written, err := b.write(id, files)
	if err != nil {
		return nil, err
	}
	snap.Addon = ad.ID
	if err := cache.Save(b.cacheDir(), snap); err != nil {
		log.Warn("could not save build cache", zap.Error(err))
	}

	b.set(Done)
	res = &Result{
		ID:        id,
		Addon:     ad,
		Documents: docs,
		Model:     bc.Model,
		Sources:   an.Sources,
		Files:     written,
		Changes:   changes,
		Duration:  time.Since(started),
	}
	span.SetAttributes(attribute.Int("ace.records", bc.Model.Len()))
	log.Info("build finished",
		zap.String("addon", ad.ID),
		zap.Int("records", bc.Model.Len()),
		zap.Int("files", len(written)),
		zap.Duration("took", res.Duration))
	return res, nil
}

// Analysis is the front half of a build: the addon configuration and every
// extracted module. Nothing is compiled or written.
type Analysis struct {
	Addon   *addon.Config
	Context *ace.BuildContext
	Sources []*extract.Result
	// Overrides maps absolute source paths to the text the compiler must see:
	// rewritten modules and the addon script with the dispatch table injected.
	Overrides map[string][]byte
}

// Analyze extracts every module into a fresh build context without
// compiling or writing anything.
func (b *Builder) Analyze(ctx context.Context) (*Analysis, error) {
	id := uuid.NewString()
	an, err := b.analyze(ctx, id, b.log.With(zap.String("build", id)))
	if err != nil {
		b.set(Failed)
		return nil, err
	}
	b.set(Done)
	return an, nil
}

func (b *Builder) analyze(ctx context.Context, id string, log *zap.Logger) (*Analysis, error) {
	cfg := b.opts.Config
	addonPath := cfg.SourceFile(cfg.AddonScript)
	ad, err := addon.Load(ctx, addonPath)
	if err != nil {
		return nil, err
	}
	sources, err := b.sources()
	if err != nil {
		return nil, err
	}

	b.set(Extracting)
	bc := ace.NewBuildContext(id)
	overrides := make(map[string][]byte)
	results := make([]*extract.Result, 0, len(sources))
	for _, f := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.RelPath, err)
		}
		r, err := extract.Extract(ctx, bc, f.AbsPath, src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.RelPath, err)
		}
		results = append(results, r)
		if len(r.Spans) > 0 {
			overrides[filepath.Clean(f.AbsPath)] = r.Rewritten
		}
		log.Debug("extracted", zap.String("file", f.RelPath), zap.Int("records", len(r.Records)))
	}

	b.set(Rewriting)
	if extract.IsSource(addonPath) {
		src, ok := overrides[filepath.Clean(addonPath)]
		if !ok {
			if src, err = os.ReadFile(addonPath); err != nil {
				return nil, err
			}
		}
		injected, err := extract.InjectDefault(ctx, addonPath, src, DispatchKey, bc.Dispatch.Script())
		if err != nil {
			return nil, err
		}
		overrides[filepath.Clean(addonPath)] = injected
	}
	return &Analysis{Addon: ad, Context: bc, Sources: results, Overrides: overrides}, nil
}

// warnUnlistedTables reports translation tables that no configured language
// uses. They are not shipped.
func (b *Builder) warnUnlistedTables(languages []string, log *zap.Logger) {
	tags, err := b.tables.Available()
	if err != nil {
		log.Warn("could not list translation tables", zap.Error(err))
		return
	}
	for _, tag := range tags {
		if !slices.Contains(languages, tag) {
			log.Warn("translation table is not listed in languages", zap.String("language", tag))
		}
	}
}

// sources lists the modules to extract: every script under the source path
// except the library directory.
func (b *Builder) sources() ([]walkwalk.File, error) {
	cfg := b.opts.Config
	libRel := relTo(cfg.Path(cfg.SourcePath), cfg.Path(cfg.LibPath))
	return walkwalk.Walk(cfg.Path(cfg.SourcePath), walkwalk.Options{
		Exts:         extract.SourceExts,
		Exclude:      []string{"node_modules"},
		UseGitignore: true,
		Keep: func(rel string) bool {
			if libRel != "" && (rel == libRel || strings.HasPrefix(rel, libRel+"/")) {
				return false
			}
			return extract.IsSource(rel)
		},
	})
}

func (b *Builder) editorScripts(ctx context.Context, ad *addon.Config, overrides map[string][]byte, files map[string][]byte, log *zap.Logger) ([]string, error) {
	cfg := b.opts.Config
	var out []string
	for _, name := range cfg.EditorScripts {
		entry := cfg.SourceFile(name)
		if _, err := os.Stat(entry); errors.Is(err, os.ErrNotExist) {
			log.Debug("editor script not found, skipped", zap.String("file", name))
			continue
		}
		js, err := b.opts.Compiler.Compile(ctx, compile.Request{Entry: entry, Overrides: overrides, Bundle: true, Minify: cfg.Minify})
		if err != nil {
			return nil, err
		}
		outName := addon.FileDependency{Filename: filepath.ToSlash(name)}.OutputName()
		files[outName] = js
		out = append(out, outName)
	}
	if len(out) == 0 {
		// Fall back to scripts the addon ships prebuilt.
		for _, name := range ad.EditorScripts {
			data, err := os.ReadFile(cfg.SourceFile(name))
			if err != nil {
				return nil, fmt.Errorf("editor script %s: %w", name, err)
			}
			files[name] = data
			out = append(out, name)
		}
	}
	return out, nil
}

func (b *Builder) libraries(ctx context.Context, ad *addon.Config, overrides map[string][]byte, files map[string][]byte) error {
	cfg := b.opts.Config
	for _, dep := range ad.FileDependencies {
		src := cfg.Path(cfg.LibPath, filepath.FromSlash(dep.Filename))
		var data []byte
		var err error
		if dep.NeedsCompile() {
			data, err = b.opts.Compiler.Compile(ctx, compile.Request{Entry: src, Overrides: overrides, Bundle: true, Minify: cfg.Minify})
		} else {
			data, err = os.ReadFile(src)
		}
		if err != nil {
			return fmt.Errorf("file dependency %s: %w", dep.Filename, err)
		}
		files[path.Join(descriptor.RuntimeDir, dep.OutputName())] = data
	}
	return nil
}

// write stages files in a sibling temp directory and swaps it into place.
func (b *Builder) write(id string, files map[string][]byte) ([]string, error) {
	dest := b.ExportDir()
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	staged, err := os.MkdirTemp(parent, ".stage-"+filepath.Base(dest)+"-")
	if err != nil {
		return nil, err
	}
	cleanup := func() { _ = os.RemoveAll(staged) }

	names := make([]string, 0, len(files))
	for name, data := range files {
		p := filepath.Join(staged, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			cleanup()
			return nil, err
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			cleanup()
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		names = append(names, name)
	}

	old := dest + ".old-" + id
	hadPrev := dirExists(dest)
	if hadPrev {
		if err := os.Rename(dest, old); err != nil {
			cleanup()
			return nil, fmt.Errorf("swap export directory: %w", err)
		}
	}
	if err := os.Rename(staged, dest); err != nil {
		if hadPrev {
			_ = os.Rename(old, dest)
		}
		cleanup()
		return nil, fmt.Errorf("swap export directory: %w", err)
	}
	if hadPrev {
		_ = os.RemoveAll(old)
	}
	return sortutil.StablePathSort(names), nil
}

// snapshot hashes every input of the build: the source tree, the language
// and library directories and the build configuration file.
func (b *Builder) snapshot(id string) (*cache.Snapshot, error) {
	cfg := b.opts.Config
	roots := []string{cfg.SourcePath}
	for _, p := range []string{cfg.LangPath, cfg.LibPath} {
		if relTo(cfg.Path(cfg.SourcePath), cfg.Path(p)) == "" {
			roots = append(roots, p)
		}
	}
	s := &cache.Snapshot{Build: id, Created: time.Now().UTC().Format(time.RFC3339)}
	seen := make(map[string]bool)
	for _, r := range roots {
		files, err := walkwalk.Walk(cfg.Path(r), walkwalk.Options{
			Exclude:      []string{"node_modules", cache.DirName},
			UseGitignore: true,
		})
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			rel := path.Join(filepath.ToSlash(filepath.Clean(r)), f.RelPath)
			if seen[rel] {
				continue
			}
			seen[rel] = true
			s.Files = append(s.Files, cache.SnapFile{Path: rel, Hash: f.SHA256Hex, Size: f.Size})
		}
	}
	if sum, err := walkwalk.SHA256File(cfg.Path(config.FileName)); err == nil {
		s.Files = append(s.Files, cache.SnapFile{Path: config.FileName, Hash: sum})
	}
	return s, nil
}

// relTo returns target relative to base with forward slashes, or "" when
// target is not inside base.
func relTo(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return ""
	}
	return rel
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
