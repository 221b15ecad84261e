// Package main provides the c3addon-builder CLI. It compiles an annotated
// TypeScript addon project into an installable Construct 3 addon.
//
// Commands:
//   - build   : full pipeline into the export directory, then the .c3addon archive
//   - pack    : archive the current export directory
//   - serve   : dev server with rebuild-on-change and live reload
//   - inspect : records and rewrite diff of one source file
//   - docs    : Markdown reference of every ACE
//   - publish : upload the archive to S3-compatible storage
//   - version : tool version
//
// Settings come from c3build.yaml, .env and C3_* variables (see internal/config).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"c3addon-builder/internal/config"
	"c3addon-builder/internal/logging"
	"c3addon-builder/internal/meta"
	"c3addon-builder/internal/telemetry"
)

// app carries what every command needs once the root pre-run has executed.
type app struct {
	dir      string
	debug    bool
	jsonLogs bool

	log      *zap.Logger
	cfg      *config.Config
	shutdown func(context.Context) error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "c3addon-builder",
		Short:         "Build Construct 3 addons from annotated TypeScript",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a.log, err = logging.New(logging.Options{Debug: a.debug, JSON: a.jsonLogs})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if cmd.Name() == "version" {
				return nil
			}
			a.cfg, err = config.Load(a.dir)
			if err != nil {
				return err
			}
			a.shutdown, err = telemetry.Setup(cmd.Context(), a.cfg.Telemetry, meta.Version())
			if err != nil {
				a.log.Warn("tracing disabled", zap.Error(err))
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown != nil {
				if err := a.shutdown(context.Background()); err != nil {
					a.log.Debug("telemetry shutdown", zap.Error(err))
				}
			}
			if a.log != nil {
				_ = a.log.Sync()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "project directory")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonLogs, "json", false, "log as JSON")

	root.AddCommand(
		newBuildCmd(a),
		newPackCmd(a),
		newServeCmd(a),
		newInspectCmd(a),
		newDocsCmd(a),
		newPublishCmd(a),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		stop()
		os.Exit(1)
	}
}
