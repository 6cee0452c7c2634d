package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"kaggleelt/internal/dag"
	"kaggleelt/internal/dbt"
	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/elt"
	"kaggleelt/internal/runlog"
	"kaggleelt/internal/storage"
)

type runOptions struct {
	force       bool
	skipDBT     bool
	parallelism int
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [dataset...]",
		Short: "Download, load and transform datasets (all when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.force, "force", false, "download files even when they already exist")
	cmd.Flags().BoolVar(&opts.skipDBT, "skip-dbt", false, "do not run the dbt models after loading")
	cmd.Flags().IntVarP(&opts.parallelism, "parallelism", "p", 0, "max concurrent tasks per dataset (default runtime.parallelism)")
	return cmd
}

// pooler is implemented by loaders backed by a pgx pool.
type pooler interface {
	Pool() *pgxpool.Pool
}

func (a *app) run(ctx context.Context, out io.Writer, names []string, opts runOptions) error {
	sources, err := a.project()
	if err != nil {
		return err
	}
	all := len(names) == 0
	if all {
		names = dbtsource.SortedNames(sources)
	}
	selected := make([]*dbtsource.Source, 0, len(names))
	for _, name := range names {
		src, err := a.source(name)
		if err != nil {
			return err
		}
		selected = append(selected, src)
	}
	if len(selected) == 0 {
		return errors.New("no datasets found in the dbt project")
	}

	loader, err := a.openLoader(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()

	runs, err := a.runLog(ctx, loader)
	if err != nil {
		return err
	}

	parallelism := opts.parallelism
	if parallelism <= 0 {
		parallelism = a.cfg.Runtime.Parallelism
	}
	force := opts.force || a.cfg.Kaggle.Force
	fetcher := a.fetcher()

	var errs *multierror.Error
	if all && a.parseErr != nil {
		errs = multierror.Append(errs, a.parseErr)
	}
	for _, src := range selected {
		steps := dag.Steps{
			Extract: func(ctx context.Context, tbl *dbtsource.Table) error {
				_, err := elt.Extract(ctx, fetcher, src, tbl, a.cfg.DownloadDir, force)
				return err
			},
			Load: func(ctx context.Context, tbl *dbtsource.Table) error {
				return a.loadTable(ctx, loader, runs, src, tbl)
			},
		}
		if !opts.skipDBT {
			runner := a.dbtRunner()
			steps.Transform = func(ctx context.Context) error { return runner.Run(ctx, src.Name) }
		}

		g, err := dag.Build(src, steps)
		if err != nil {
			return fmt.Errorf("dataset %s: %w", src.Name, err)
		}
		rep, err := dag.Run(ctx, g, dag.Options{Parallelism: parallelism})
		if err != nil {
			return fmt.Errorf("dataset %s: %w", src.Name, err)
		}
		printReport(out, rep)
		if err := rep.Err(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// loadTable runs one table load and records it in runs when enabled.
func (a *app) loadTable(ctx context.Context, l storage.Loader, runs *runlog.Store, src *dbtsource.Source, tbl *dbtsource.Table) error {
	tl, err := elt.NewTableLoader(src, tbl.Name, a.cfg.DownloadDir, l)
	if err != nil {
		return err
	}
	if runs == nil {
		_, err := tl.Run(ctx)
		return err
	}

	id, err := runs.Start(ctx, src.Name, tbl.Name)
	if err != nil {
		slog.Warn("run log unavailable", "err", err)
		_, err := tl.Run(ctx)
		return err
	}
	n, loadErr := tl.Run(ctx)
	if err := runs.Finish(context.WithoutCancel(ctx), id, n, loadErr); err != nil {
		slog.Warn("run log update failed", "run_id", id, "err", err)
	}
	return loadErr
}

// runLog returns the load history store when runlog.enabled is set and the
// loader is Postgres, migrating the table first.
func (a *app) runLog(ctx context.Context, l storage.Loader) (*runlog.Store, error) {
	if !a.cfg.RunLog.Enabled {
		return nil, nil
	}
	p, ok := l.(pooler)
	if !ok {
		slog.Warn("run log needs the postgres storage kind; disabled", "storage_kind", a.cfg.Storage.Kind)
		return nil, nil
	}
	if err := runlog.RunMigrationsUp(ctx, p.Pool()); err != nil {
		return nil, err
	}
	return runlog.NewStore(p.Pool()), nil
}

func (a *app) dbtRunner() *dbt.Runner {
	c := a.cfg.DBT
	var dsn string
	if a.cfg.Storage.Kind == "postgres" {
		dsn = a.cfg.Storage.DSN
	}
	return dbt.NewRunner(c.Bin, c.Command, c.Path, c.Project, c.ProfilesDir, c.Schema, dsn)
}

func printReport(out io.Writer, rep dag.Report) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, res := range rep.Results {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", rep.Graph, res.ID, res.Status, res.Duration.Truncate(time.Millisecond))
		if res.Err != nil {
			line += "\t" + res.Err.Error()
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}
