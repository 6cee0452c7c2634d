package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/elt"
)

func newDownloadCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "download DATASET TABLE",
		Short: "Download the Kaggle file of one table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, tbl, err := a.table(args[0], args[1])
			if err != nil {
				return err
			}
			res, err := elt.Extract(cmd.Context(), a.fetcher(), src, tbl, a.cfg.DownloadDir, force || a.cfg.Kaggle.Force)
			if err != nil {
				return err
			}
			state := "downloaded"
			if res.Skipped {
				state = "exists"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d bytes, xxh3 %016x)\n", state, res.Path, res.Size, res.Digest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "download even when the file already exists")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load DATASET TABLE",
		Short: "Recreate one table and load its downloaded file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, tbl, err := a.table(args[0], args[1])
			if err != nil {
				return err
			}
			l, err := a.openLoader(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			tl, err := elt.NewTableLoader(src, tbl.Name, a.cfg.DownloadDir, l)
			if err != nil {
				return err
			}
			n, err := tl.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", n, tbl.QualifiedName())
			return nil
		},
	}
}

func (a *app) table(dataset, table string) (*dbtsource.Source, *dbtsource.Table, error) {
	src, err := a.source(dataset)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := src.Table(table)
	if err != nil {
		return nil, nil, err
	}
	return src, tbl, nil
}
