// Package elt implements the per-table extract and load steps of a dataset
// run: downloading a Kaggle file and bulk loading it, column-filtered and
// renamed, into the warehouse.
package elt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"kaggleelt/internal/datasource/file"
	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/metrics"
	"kaggleelt/internal/sanitizer"
	"kaggleelt/internal/storage"
)

// DatasetDir is where the files of src are downloaded: <downloadDir>/<source>.
func DatasetDir(downloadDir string, src *dbtsource.Source) string {
	return filepath.Join(downloadDir, src.Name)
}

// FilePath is the local path of tbl's Kaggle file.
func FilePath(downloadDir string, src *dbtsource.Source, tbl *dbtsource.Table) string {
	return filepath.Join(DatasetDir(downloadDir, src), tbl.KaggleFileName)
}

// TableLoader recreates one source table and fills it from the downloaded
// file.
type TableLoader struct {
	Source      *dbtsource.Source
	Table       *dbtsource.Table
	DownloadDir string
	Loader      storage.Loader
}

// NewTableLoader returns a loader for the named table of src.
func NewTableLoader(src *dbtsource.Source, table, downloadDir string, l storage.Loader) (*TableLoader, error) {
	tbl, err := src.Table(table)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errors.New("elt: nil storage loader")
	}
	return &TableLoader{Source: src, Table: tbl, DownloadDir: downloadDir, Loader: l}, nil
}

// Run drops and recreates the table, then streams the sanitized file into it.
// It returns the number of rows loaded.
func (tl *TableLoader) Run(ctx context.Context) (int64, error) {
	src, tbl := tl.Source, tl.Table
	log := slog.With("dataset", src.Name, "table", tbl.QualifiedName())
	def := tableDef(tbl)

	log.Info("dropping table")
	if err := tl.Loader.DropTable(ctx, tbl.Schema, tbl.Name); err != nil {
		return 0, err
	}
	log.Info("creating schema", "schema", tbl.Schema)
	if err := tl.Loader.CreateSchema(ctx, tbl.Schema); err != nil {
		return 0, err
	}
	log.Info("creating table")
	if err := tl.Loader.CreateTable(ctx, def); err != nil {
		return 0, err
	}

	path := FilePath(tl.DownloadDir, src, tbl)
	ds, err := file.NewLocal(path, src.Encoding)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", src.Name, err)
	}
	rc, err := ds.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	san, err := sanitizer.NewReader(rc, tbl.KaggleToDBTMapping(), src.SanitizerOptions())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	start := time.Now()
	log.Info("loading data", "path", path, "columns", san.Columns())
	n, err := tl.Loader.CopyFrom(ctx, streamDef(def, san.Columns()), storage.CopySpec{
		Delimiter: src.Delimiter,
		Null:      src.NullValue,
		Header:    true,
	}, san)
	if err != nil {
		return 0, fmt.Errorf("load %s from %s: %w", tbl.QualifiedName(), path, err)
	}
	metrics.RecordRows(src.Name, tbl.Name, n)
	log.Info("load complete", "rows", n, "elapsed", time.Since(start).Truncate(time.Millisecond))
	return n, nil
}

// tableDef is the destination table in declaration order.
func tableDef(tbl *dbtsource.Table) storage.Table {
	cols := make([]storage.ColumnDef, len(tbl.Columns))
	for i, c := range tbl.Columns {
		cols[i] = storage.ColumnDef{Name: c.Name, SQLType: c.DataType}
	}
	return storage.Table{Schema: tbl.Schema, Name: tbl.Name, Columns: cols}
}

// streamDef reorders def's columns to the order they appear in the sanitized
// stream. Declared columns absent from the file are left out and load as
// NULL.
func streamDef(def storage.Table, order []string) storage.Table {
	byName := make(map[string]storage.ColumnDef, len(def.Columns))
	for _, c := range def.Columns {
		byName[c.Name] = c
	}
	cols := make([]storage.ColumnDef, 0, len(order))
	for _, name := range order {
		cols = append(cols, byName[name])
	}
	return storage.Table{Schema: def.Schema, Name: def.Name, Columns: cols}
}
