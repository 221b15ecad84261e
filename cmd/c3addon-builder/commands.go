package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/bundle"
	"c3addon-builder/internal/compile"
	"c3addon-builder/internal/descriptor"
	"c3addon-builder/internal/devserver"
	"c3addon-builder/internal/diff"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/extract"
	"c3addon-builder/internal/meta"
	"c3addon-builder/internal/pipeline"
	"c3addon-builder/internal/publish"
	"c3addon-builder/internal/textutil"
)

func (a *app) builder(skipUnchanged bool) (*pipeline.Builder, error) {
	return pipeline.New(pipeline.Options{
		Config:        a.cfg,
		Compiler:      compile.NewEsbuild(),
		Logger:        a.log,
		SkipUnchanged: skipUnchanged,
	})
}

func (a *app) archivePath(ad *addon.Config) string {
	return a.cfg.Path(a.cfg.DistPath, bundle.ArchiveName(ad.ID, ad.Version))
}

func (a *app) loadAddon(cmd *cobra.Command) (*addon.Config, error) {
	return addon.Load(cmd.Context(), a.cfg.SourceFile(a.cfg.AddonScript))
}

func (a *app) pack(cmd *cobra.Command, ad *addon.Config) (bundle.Info, error) {
	info, err := bundle.Pack(cmd.Context(), a.cfg.Path(a.cfg.ExportPath), a.archivePath(ad))
	if err != nil {
		return bundle.Info{}, err
	}
	a.log.Info("packaged", zap.String("archive", info.Path), zap.Int("entries", len(info.Entries)), zap.Int64("bytes", info.Bytes))
	return info, nil
}

// checkVersion warns when package.json and the addon disagree on the version.
func (a *app) checkVersion(ad *addon.Config) {
	if p, ok := meta.DetectProject(a.cfg.Root); ok && meta.VersionDrift(p.Version, ad.Version) {
		a.log.Warn("package.json version differs from the addon version",
			zap.String("package", p.Version), zap.String("addon", ad.Version))
	}
}

func newBuildCmd(a *app) *cobra.Command {
	var dev, minify, clean bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the addon into the export directory and package it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("minify") {
				a.cfg.Minify = minify
			}
			b, err := a.builder(dev)
			if err != nil {
				return err
			}
			if clean {
				if err := b.ClearCache(); err != nil {
					return err
				}
			}
			res, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "inputs unchanged, nothing to do")
				return nil
			}
			a.checkVersion(res.Addon)
			fmt.Fprintf(out, "built %s %s: %d ACEs, %d files in %s\n",
				res.Addon.ID, res.Addon.Version, res.Model.Len(), len(res.Files), b.ExportDir())
			if dev {
				return nil
			}
			info, err := a.pack(cmd, res.Addon)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "packaged %s\n", info.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "skip packaging and skip the build when no input changed")
	cmd.Flags().BoolVar(&minify, "minify", false, "minify compiled scripts (overrides the config)")
	cmd.Flags().BoolVar(&clean, "clean", false, "drop the build cache first")
	return cmd
}

func newPackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pack",
		Short: "Package the export directory into a .c3addon archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ad, err := a.loadAddon(cmd)
			if err != nil {
				return err
			}
			info, err := a.pack(cmd, ad)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packaged %s (%d entries)\n", info.Path, len(info.Entries))
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the export directory and rebuild on every source change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			b, err := a.builder(true)
			if err != nil {
				return err
			}
			srv, err := devserver.New(devserver.Options{
				Config:  a.cfg,
				Builder: b,
				Logger:  a.log,
				Out:     cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "first port to try (overrides the config)")
	return cmd
}

type inspectRecord struct {
	Kind  string       `json:"kind"`
	Entry *eval.Object `json:"entry"`
}

type inspectReport struct {
	File    string          `json:"file"`
	Records []inspectRecord `json:"records"`
	Removed int             `json:"removedSpans"`
}

func newInspectCmd(a *app) *cobra.Command {
	var contextLines int
	var noDiff bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the records a source file declares and how it is rewritten",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd, args[0], contextLines, noDiff)
		},
	}
	cmd.Flags().IntVar(&contextLines, "context", 3, "diff context lines")
	cmd.Flags().BoolVar(&noDiff, "no-diff", false, "print the records only")
	return cmd
}

func inspect(cmd *cobra.Command, file string, contextLines int, noDiff bool) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	res, err := extract.Scan(cmd.Context(), file, src)
	if err != nil {
		return err
	}
	report := inspectReport{File: filepath.ToSlash(file), Records: []inspectRecord{}, Removed: len(res.Spans)}
	for _, r := range res.Records {
		report.Records = append(report.Records, inspectRecord{Kind: string(r.Kind), Entry: descriptor.CatalogueEntry(r)})
	}
	out := cmd.OutOrStdout()
	if err := writeJSON(out, report); err != nil {
		return err
	}
	if noDiff {
		return nil
	}
	name := filepath.ToSlash(file)
	before, after := textutil.NormalizeUTF8LF(src), textutil.NormalizeUTF8LF(res.Rewritten)
	patch, _, err := diff.Unified(name, name, before, after, diff.Options{Context: contextLines})
	if err != nil {
		return err
	}
	if patch == "" {
		fmt.Fprintln(out, "no rewrite")
		return nil
	}
	_, err = io.WriteString(out, patch)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDocsCmd(a *app) *cobra.Command {
	var stdout bool
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Render a Markdown reference of every ACE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.builder(false)
			if err != nil {
				return err
			}
			an, err := b.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			cats, _ := descriptor.Categories(an.Addon, an.Context.Model, extract.TitleCase)
			md, err := bundle.GenerateDocs(bundle.DocsOptions{Addon: an.Addon, Model: an.Context.Model, Categories: cats})
			if err != nil {
				return err
			}
			if stdout {
				_, err = cmd.OutOrStdout().Write(md)
				return err
			}
			dest := a.cfg.Path(a.cfg.DocsPath)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(dest, md, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print instead of writing the docs file")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the packaged addon to S3-compatible storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ad, err := a.loadAddon(cmd)
			if err != nil {
				return err
			}
			if rebuild {
				b, err := a.builder(false)
				if err != nil {
					return err
				}
				res, err := b.Build(cmd.Context())
				if err != nil {
					return err
				}
				ad = res.Addon
				if _, err := a.pack(cmd, ad); err != nil {
					return err
				}
			}
			p, err := publish.New(a.cfg.Publish, a.log)
			if err != nil {
				return err
			}
			up, err := p.Publish(cmd.Context(), a.archivePath(ad), map[string]string{
				"addon-id":      ad.ID,
				"addon-version": ad.Version,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published s3://%s/%s (%d bytes)\n", up.Bucket, up.Key, up.Size)
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "build", false, "build and package before uploading")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), meta.Version())
		},
	}
}
