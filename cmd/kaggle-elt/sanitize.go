package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"kaggleelt/internal/datasource/file"
	"kaggleelt/internal/sanitizer"
)

type sanitizeOptions struct {
	mappings []string
	dataset  string
	table    string
	encoding string
	sep      string
	outSep   string
	quote    string
}

func newSanitizeCmd(a *app) *cobra.Command {
	var opts sanitizeOptions
	cmd := &cobra.Command{
		Use:   "sanitize FILE",
		Short: "Write the filtered and renamed columns of a CSV file to stdout",
		Long: `Filter and rename the columns of a CSV file the way a load does and write the
result to stdout. Columns come from repeated --mapping ORIGINAL=TARGET flags or
from a declared table (--dataset and --table), which also supplies the
delimiters, quote and encoding unless they are given explicitly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sanitize(cmd.Context(), cmd.OutOrStdout(), args[0], opts, cmd.Flags().Changed)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&opts.mappings, "mapping", "m", nil, "ORIGINAL=TARGET column mapping (repeatable)")
	f.StringVar(&opts.dataset, "dataset", "", "take the mapping from this dataset")
	f.StringVar(&opts.table, "table", "", "table of --dataset")
	f.StringVar(&opts.encoding, "encoding", "utf-8", "input character encoding")
	f.StringVar(&opts.sep, "sep", ",", "input field delimiter")
	f.StringVar(&opts.outSep, "out-sep", "|", "output field delimiter")
	f.StringVar(&opts.quote, "quote", `"`, "input quote character")
	return cmd
}

func (a *app) sanitize(ctx context.Context, out io.Writer, path string, opts sanitizeOptions, changed func(string) bool) error {
	mapping, err := parseMappings(opts.mappings)
	if err != nil {
		return err
	}
	sanOpts := sanitizer.Options{}
	encoding := opts.encoding

	switch {
	case opts.dataset != "" || opts.table != "":
		if opts.dataset == "" || opts.table == "" {
			return errors.New("--dataset and --table must be given together")
		}
		if len(mapping) > 0 {
			return errors.New("--mapping cannot be combined with --dataset")
		}
		src, err := a.source(opts.dataset)
		if err != nil {
			return err
		}
		tbl, err := src.Table(opts.table)
		if err != nil {
			return err
		}
		mapping = tbl.KaggleToDBTMapping()
		sanOpts = src.SanitizerOptions()
		if !changed("encoding") {
			encoding = src.Encoding
		}
	case len(mapping) == 0:
		return errors.New("no columns selected: use --mapping or --dataset/--table")
	}

	if changed("sep") || opts.dataset == "" {
		if sanOpts.Sep, err = singleRune("sep", opts.sep); err != nil {
			return err
		}
	}
	if changed("quote") || opts.dataset == "" {
		if sanOpts.Quote, err = singleRune("quote", opts.quote); err != nil {
			return err
		}
	}
	if changed("out-sep") || opts.dataset == "" {
		sanOpts.ReplacementSep = opts.outSep
	}

	ds, err := file.NewLocal(path, encoding)
	if err != nil {
		return err
	}
	rc, err := ds.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	san, err := sanitizer.NewReader(rc, mapping, sanOpts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	_, err = san.WriteTo(out)
	return err
}

func parseMappings(pairs []string) (sanitizer.Mapping, error) {
	m := make(sanitizer.Mapping, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid --mapping %q, want ORIGINAL=TARGET", p)
		}
		if _, dup := m[from]; dup {
			return nil, fmt.Errorf("column %q mapped twice", from)
		}
		m[from] = to
	}
	return m, nil
}

func singleRune(flag, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("--%s must be a single character, got %q", flag, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
