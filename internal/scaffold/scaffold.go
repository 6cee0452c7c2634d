// Package scaffold drafts a dbt source definition from downloaded dataset
// files. Each file becomes a table; each header becomes a column whose name is
// normalized to a SQL identifier and whose type is inferred from sampled rows.
//
// The result is a starting point to be reviewed and committed as
// models/<dataset>/sources/src_<dataset>.yml.
package scaffold

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"kaggleelt/internal/datasource/file"
	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/sanitizer"
)

// DefaultMaxRows bounds the rows sampled per file.
const DefaultMaxRows = 10000

// Options describe the source being drafted.
type Options struct {
	// Name is the dbt source name, also the dataset name on the command line.
	Name   string
	Schema string
	// Dataset is the Kaggle "owner/name".
	Dataset string

	// Encoding, Sep and Quote describe the input files.
	Encoding string
	Sep      rune
	Quote    rune
	// NullValue is treated as an empty cell during inference and recorded as
	// the source's null token.
	NullValue string

	MaxRows int
}

func (o Options) withDefaults() Options {
	if o.Encoding == "" {
		o.Encoding = "utf-8"
	}
	if o.Sep == 0 {
		o.Sep = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	return o
}

// Draft samples every file in paths and returns the source they describe.
func Draft(ctx context.Context, paths []string, opts Options) (*dbtsource.Source, error) {
	opts = opts.withDefaults()
	owner, name, ok := strings.Cut(opts.Dataset, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("scaffold: dataset %q is not owner/name", opts.Dataset)
	}
	if opts.Name == "" {
		opts.Name = NormalizeName(name)
	}
	if len(paths) == 0 {
		return nil, errors.New("scaffold: no files given")
	}

	src := &dbtsource.Source{
		Name:            opts.Name,
		Schema:          opts.Schema,
		KaggleOwner:     owner,
		KaggleName:      name,
		Delimiter:       "|",
		NullValue:       opts.NullValue,
		Encoding:        opts.Encoding,
		SourceDelimiter: string(opts.Sep),
		Quote:           string(opts.Quote),
	}
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		tbl, err := draftTable(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[tbl.Name]; dup {
			return nil, fmt.Errorf("scaffold: %s and %s both map to table %q", prev, p, tbl.Name)
		}
		seen[tbl.Name] = p
		src.Tables = append(src.Tables, tbl)
	}
	return src, nil
}

func draftTable(ctx context.Context, path string, opts Options) (*dbtsource.Table, error) {
	ds, err := file.NewLocal(path, opts.Encoding)
	if err != nil {
		return nil, err
	}
	rc, err := ds.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	headers, rows, err := readSample(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("scaffold: %s: %w", path, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("scaffold: %s: no header row", path)
	}

	base := filepath.Base(path)
	tbl := &dbtsource.Table{
		Name:           NormalizeName(strings.TrimSuffix(base, filepath.Ext(base))),
		Schema:         opts.Schema,
		KaggleFileName: base,
	}
	types := inferTypes(headers, rows)
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		col := uniqueName(NormalizeName(h), used)
		used[col] = true
		tbl.Columns = append(tbl.Columns, dbtsource.Column{
			Name:             col,
			DataType:         types[i],
			KaggleColumnName: h,
		})
	}
	return tbl, nil
}

// uniqueName returns base, or base with the first numeric suffix not in used
// when headers normalize alike.
func uniqueName(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for n := 2; ; n++ {
		if c := fmt.Sprintf("%s_%d", base, n); !used[c] {
			return c
		}
	}
}

// readSample reads the header and up to opts.MaxRows data rows. Malformed rows
// and rows whose width differs from the header are skipped so that they do
// not skew inference. The null token is blanked.
func readSample(r io.Reader, opts Options) ([]string, [][]string, error) {
	cr, err := sanitizer.NewRecordReader(r, sanitizer.Options{Sep: opts.Sep, Quote: opts.Quote, LazyQuotes: true})
	if err != nil {
		return nil, nil, err
	}

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	headers = append([]string(nil), headers...)

	var rows [][]string
	for len(rows) < opts.MaxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) != len(headers) {
			continue
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			if v != opts.NullValue {
				row[i] = v
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
