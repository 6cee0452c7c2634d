package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/runlog"
	"kaggleelt/internal/storage/postgres"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the datasets declared in the dbt project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := a.project()
			if err != nil {
				return err
			}
			listSources(cmd.OutOrStdout(), sources)
			return a.parseErr
		},
	}
}

func listSources(out io.Writer, sources map[string]*dbtsource.Source) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tKAGGLE\tSCHEMA\tTABLES")
	for _, name := range dbtsource.SortedNames(sources) {
		src := sources[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", src.Name, src.KaggleFullName(), src.Schema, strings.Join(src.TableNames(), ","))
	}
	_ = tw.Flush()
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dataset...]",
		Short: "Check dbt source definitions for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := a.project()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = dbtsource.SortedNames(sources)
			}
			out := cmd.OutOrStdout()
			invalid := 0
			for _, name := range args {
				src, err := a.source(name)
				if err != nil {
					return err
				}
				issues := dbtsource.Validate(src)
				for _, iss := range issues {
					fmt.Fprintf(out, "%s: %s: %s: %s\n", name, iss.Severity, iss.Path, iss.Message)
				}
				if dbtsource.HasErrors(issues) {
					invalid++
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d datasets are invalid", invalid, len(args))
			}
			if a.parseErr != nil {
				return a.parseErr
			}
			fmt.Fprintf(out, "%d datasets ok\n", len(args))
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the load history table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPostgres(cmd.Context(), func(l *postgres.Loader) error {
				if err := runlog.RunMigrationsUp(cmd.Context(), l.Pool()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "run log is up to date")
				return nil
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [dataset]",
		Short: "Show recent table loads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dataset string
			if len(args) == 1 {
				dataset = args[0]
			}
			return a.withPostgres(cmd.Context(), func(l *postgres.Loader) error {
				runs, err := runlog.NewStore(l.Pool()).Recent(cmd.Context(), dataset, limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

// withPostgres opens the configured Postgres warehouse for fn.
func (a *app) withPostgres(ctx context.Context, fn func(*postgres.Loader) error) error {
	if a.cfg.Storage.Kind != "postgres" {
		return fmt.Errorf("the run log needs storage.kind=postgres, got %q", a.cfg.Storage.Kind)
	}
	if a.cfg.Storage.DSN == "" {
		return errors.New("storage.dsn is not set")
	}
	l, err := postgres.Open(ctx, a.cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(l)
}

func printRuns(out io.Writer, runs []runlog.Run) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDATASET\tTABLE\tSTATUS\tROWS\tDURATION\tERROR")
	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Dataset, r.Table, r.Status, r.Rows, took, r.Error)
	}
	_ = tw.Flush()
}
