package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vuvuzela92/waregouse-project/internal/config"
	"github.com/vuvuzela92/waregouse-project/internal/jobs"
	"github.com/vuvuzela92/waregouse-project/internal/marketplace"
	"github.com/vuvuzela92/waregouse-project/internal/metrics"
	"github.com/vuvuzela92/waregouse-project/internal/metrics/datadog"
	"github.com/vuvuzela92/waregouse-project/internal/metrics/prompush"
	"github.com/vuvuzela92/waregouse-project/internal/scheduler"
	"github.com/vuvuzela92/waregouse-project/internal/storage"
	_ "github.com/vuvuzela92/waregouse-project/internal/storage/all"
)

// Deps holds the side effects of the command so tests can replace them.
type Deps struct {
	Getenv     func(string) string
	Stdout     io.Writer
	Stderr     io.Writer
	NewBackend func(ctx context.Context, cfg storage.Config) (storage.Backend, error)
	NewAPI     func(opts marketplace.Options) jobs.API
}

func defaultDeps() Deps {
	return Deps{
		Getenv:     os.Getenv,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		NewBackend: storage.New,
		NewAPI:     func(o marketplace.Options) jobs.API { return marketplace.New(o) },
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute(deps Deps, args []string) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		return 1
	}
	root := newRootCmd(deps)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "warehouse",
		Short:         "Load marketplace seller data into the warehouse database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	cfg := config.Bind(root.PersistentFlags(), deps.Getenv)

	for _, name := range jobs.Names() {
		root.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Run the " + name + " job once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				app, err := setup(ctx, cfg, deps)
				if err != nil {
					return err
				}
				defer app.close()
				return app.runner.Run(ctx, name)
			},
		})
	}
	root.AddCommand(newScheduleCmd(cfg, deps), newValidateCmd(cfg, deps))
	return root
}

func newScheduleCmd(cfg *config.Config, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run jobs on their cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := scheduler.LoadFile(cfg.ScheduleFile)
			if err != nil {
				return err
			}
			if err := sched.Validate(jobs.Names()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app, err := setup(ctx, cfg, deps)
			if err != nil {
				return err
			}
			defer app.close()

			s := scheduler.New(app.runner, app.logger, 0)
			if err := s.Add(sched); err != nil {
				return err
			}
			s.Run(ctx)
			return nil
		},
	}
}

func newValidateCmd(cfg *config.Config, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Check flags and environment without connecting anywhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.Validate(cfg)
			for _, is := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), is.Error())
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("configuration has errors")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}
}

// app is everything a job run needs.
type app struct {
	runner       *jobs.Runner
	logger       *slog.Logger
	backend      storage.Backend
	closeMetrics func() error
}

func (a *app) close() {
	if err := metrics.Flush(); err != nil {
		a.logger.Warn("metrics flush failed", "err", err)
	}
	if err := a.closeMetrics(); err != nil {
		a.logger.Warn("metrics close failed", "err", err)
	}
	a.backend.Close()
}

func setup(ctx context.Context, cfg *config.Config, deps Deps) (*app, error) {
	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		msgs := make([]string, 0, len(issues))
		for _, is := range issues {
			msgs = append(msgs, is.Error())
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}

	logger := newLogger(deps.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	for _, is := range issues {
		logger.Warn("config", "path", is.Path, "msg", is.Message)
	}
	closeMetrics := setupMetrics(cfg, logger)

	tokens, err := config.LoadTokens(cfg.TokensFile)
	if err != nil {
		_ = closeMetrics()
		return nil, err
	}
	accounts := make([]marketplace.Account, 0, len(tokens))
	for _, name := range tokens.Accounts() {
		accounts = append(accounts, marketplace.Account{Name: name, Token: tokens[name]})
	}

	backend, err := deps.NewBackend(ctx, cfg.Storage())
	if err != nil {
		_ = closeMetrics()
		return nil, err
	}
	logger.Info("storage ready", "kind", backend.Kind(), "destination", backend.Destination())

	api := deps.NewAPI(marketplace.Options{
		DocumentsURL:   cfg.DocumentsURL,
		MarketplaceURL: cfg.MarketplaceURL,
		StockURL:       cfg.StockURL,
		Timeout:        cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		Logger:         logger,
	})
	loader := storage.NewLoader(backend, storage.WithLogger(logger))
	runner := jobs.New(api, loader, jobs.Options{
		Accounts:     accounts,
		Workers:      cfg.Workers,
		ActsDaysBack: cfg.ActsDaysBack,
		Logger:       logger,
	})
	return &app{runner: runner, logger: logger, backend: backend, closeMetrics: closeMetrics}, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// setupMetrics installs the configured backend and returns its closer. A
// backend that fails to initialise leaves metrics disabled.
func setupMetrics(cfg *config.Config, logger *slog.Logger) func() error {
	nop := func() error { return nil }
	switch strings.ToLower(cfg.MetricsBackend) {
	case "pushgateway":
		b, err := prompush.NewBackend("warehouse", cfg.PushgatewayURL)
		if err != nil {
			logger.Warn("metrics: pushgateway init failed; disabled", "err", err)
			return nop
		}
		metrics.SetBackend(b)
		logger.Info("metrics: pushgateway", "url", cfg.PushgatewayURL)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.DatadogAddr})
		if err != nil {
			logger.Warn("metrics: datadog init failed; disabled", "err", err)
			return nop
		}
		metrics.SetBackend(b)
		logger.Info("metrics: datadog", "addr", cfg.DatadogAddr)
		return b.Close
	case "", "none":
	default:
		logger.Warn("metrics: unknown backend; disabled", "backend", cfg.MetricsBackend)
	}
	return nop
}
