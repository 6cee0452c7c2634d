package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/scaffold"
)

func newScaffoldCmd(a *app) *cobra.Command {
	var (
		opts  scaffold.Options
		sep   string
		quote string
		write bool
	)
	cmd := &cobra.Command{
		Use:   "scaffold --dataset OWNER/NAME FILE...",
		Short: "Draft a dbt source definition from downloaded files",
		Long: `Sample the given CSV files and print a dbt sources file declaring one table
per file, with column names normalized from the headers and types inferred
from the data. With --write the file is created in the dbt project instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.Sep, err = singleRune("sep", sep); err != nil {
				return err
			}
			if opts.Quote, err = singleRune("quote", quote); err != nil {
				return err
			}
			src, err := scaffold.Draft(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			if issues := dbtsource.Validate(src); dbtsource.HasErrors(issues) {
				return fmt.Errorf("drafted source is invalid: %v", issues)
			}

			var buf bytes.Buffer
			if err := dbtsource.Encode(&buf, src); err != nil {
				return err
			}
			if !write {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}

			path := dbtsource.SourceFilePath(a.cfg.DBT.Path, a.cfg.DBT.Project, src.Name)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Dataset, "dataset", "", "Kaggle dataset as OWNER/NAME")
	_ = cmd.MarkFlagRequired("dataset")
	f.StringVar(&opts.Name, "name", "", "dbt source name (default derived from the dataset name)")
	f.StringVar(&opts.Schema, "schema", "kaggle_raw", "schema the tables are loaded into")
	f.StringVar(&opts.Encoding, "encoding", "utf-8", "character encoding of the files")
	f.StringVar(&sep, "sep", ",", "field delimiter of the files")
	f.StringVar(&quote, "quote", `"`, "quote character of the files")
	f.StringVar(&opts.NullValue, "null", "NA", "token that marks a missing value")
	f.IntVar(&opts.MaxRows, "max-rows", scaffold.DefaultMaxRows, "rows sampled per file")
	f.BoolVar(&write, "write", false, "create the sources file in the dbt project")
	return cmd
}
