package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pdatrace/internal/api"
	"github.com/roach88/pdatrace/internal/batch"
	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/metrics"
)

// Version is reported by --version and /health. Set at link time.
var Version = ir.AnalyzerVersion

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen      string
	Database    string
	PatternsDir string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve the analysis API until interrupted.

Every analysis is recorded in the SQLite database given by --db, or
store.path from the config. Pass --db "" to run without a store; the
history endpoints then answer 503.

Example:
  pdatrace serve --listen 127.0.0.1:8080 --db ./pdatrace.db
  pdatrace serve --config ./pdatrace.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.PatternsDir, "patterns", "", "directory of extra CUE pattern definitions")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	listen := opts.Listen
	if listen == "" {
		listen = cfg.Server.Listen
	}
	dbPath := cfg.Store.Path
	if cmd.Flags().Changed("db") {
		dbPath = opts.Database
	}

	analyzer, err := newAnalyzer(cfg, opts.PatternsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build pattern library", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverOpts := []api.Option{
		api.WithMetrics(metrics.New()),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst),
		api.WithBatchOptions(
			batch.WithConcurrency(cfg.Batch.Concurrency),
			batch.WithMaxItems(cfg.Batch.MaxItems)),
		api.WithLogger(slog.Default()),
		api.WithVersion(Version),
	}

	if dbPath != "" {
		// Startup reads must finish even if shutdown was already requested.
		rec, st, err := openRecorder(context.WithoutCancel(ctx), dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		slog.Info("database ready", "path", dbPath, "seq", rec.Sequence().Current())
		serverOpts = append(serverOpts, api.WithRecorder(rec))
	} else {
		slog.Warn("running without a store; history endpoints are disabled")
	}

	srv := api.New(analyzer, serverOpts...)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", listen)

	if err := srv.ListenAndServe(ctx, listen); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
