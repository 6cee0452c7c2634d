package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"kaggleelt/internal/config"
	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/elt"
	"kaggleelt/internal/kaggle"
	"kaggleelt/internal/logging"
	"kaggleelt/internal/metrics"
	"kaggleelt/internal/metrics/datadog"
	"kaggleelt/internal/metrics/prompush"
	"kaggleelt/internal/storage"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfgPath string
	verbose bool

	cfg      *config.Config
	closers  []func() error
	sources  map[string]*dbtsource.Source
	parseErr error
}

// Test seams. Production values point at the real implementations.
var (
	newLoaderFn = func(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
		return storage.New(ctx, cfg)
	}
	newFetcherFn = func(cfg kaggle.Config) elt.Downloader {
		return kaggle.NewFetcher(cfg)
	}
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kaggle-elt",
		Short:         "Load Kaggle datasets into the warehouse and run their dbt models",
		Long:          `Download the files of Kaggle datasets declared as dbt sources, bulk load the selected columns into the warehouse and run the dataset's dbt models.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default ./config.yaml if present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newValidateCmd(a),
		newSanitizeCmd(a),
		newDownloadCmd(a),
		newLoadCmd(a),
		newMigrateCmd(a),
		newHistoryCmd(a),
		newScaffoldCmd(a),
	)
	return root
}

// setup loads configuration and installs logging and metrics.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	closeLog, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.closers = append(a.closers, closeLog)
	a.setupMetrics()
	return nil
}

func (a *app) setupMetrics() {
	mc := a.cfg.Metrics
	switch mc.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(mc.Job, mc.PushgatewayURL)
		if err != nil {
			slog.Warn("metrics: failed to init prom push backend; using nop", "err", err)
			return
		}
		slog.Debug("metrics enabled", "backend", mc.Backend, "url", mc.PushgatewayURL, "job", mc.Job)
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       mc.DatadogAddr,
			Namespace:  "kaggle_elt.",
			GlobalTags: []string{"job:" + mc.Job},
		})
		if err != nil {
			slog.Warn("metrics: failed to init datadog backend; using nop", "err", err)
			return
		}
		slog.Debug("metrics enabled", "backend", mc.Backend, "addr", mc.DatadogAddr)
		metrics.SetBackend(b)
		a.closers = append(a.closers, b.Close)
	default:
		slog.Debug("metrics disabled", "backend", mc.Backend)
	}
}

// shutdown flushes metrics and releases what setup acquired, last first.
func (a *app) shutdown() {
	if a.cfg == nil {
		return
	}
	if err := metrics.Flush(); err != nil {
		slog.Warn("metrics: flush error", "err", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// project reads the dbt project once. Sources that failed to parse are
// reported by parseErr while the others stay usable.
func (a *app) project() (map[string]*dbtsource.Source, error) {
	if a.sources != nil {
		return a.sources, nil
	}
	sources, err := dbtsource.ReadProject(a.cfg.DBT.Path, a.cfg.DBT.Project)
	if sources == nil {
		return nil, err
	}
	if err != nil {
		slog.Warn("some dbt sources could not be parsed", "err", err)
	}
	a.sources, a.parseErr = sources, err
	return sources, nil
}

// source returns the dataset named name.
func (a *app) source(name string) (*dbtsource.Source, error) {
	sources, err := a.project()
	if err != nil {
		return nil, err
	}
	src, ok := sources[name]
	if !ok {
		if a.parseErr != nil {
			return nil, fmt.Errorf("unknown dataset %q (some sources failed to parse: %w)", name, a.parseErr)
		}
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
	return src, nil
}

func (a *app) openLoader(ctx context.Context) (storage.Loader, error) {
	return newLoaderFn(ctx, storage.Config{Kind: a.cfg.Storage.Kind, DSN: a.cfg.Storage.DSN})
}

func (a *app) fetcher() elt.Downloader {
	return newFetcherFn(kaggle.Config{
		BaseURL: a.cfg.Kaggle.BaseURL,
		Credentials: kaggle.Credentials{
			Username: a.cfg.Kaggle.Username,
			Key:      a.cfg.Kaggle.Key,
		},
	})
}
