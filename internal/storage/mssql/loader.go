// Package mssql implements storage.Loader for Microsoft SQL Server using the
// go-mssqldb bulk copy API. The delimited stream is parsed row by row and fed
// to a single bulk copy inside a transaction.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"kaggleelt/internal/ddl"
	"kaggleelt/internal/storage"
)

// Loader is an MSSQL-backed storage.Loader.
type Loader struct {
	storage.DDL
	db *sql.DB
}

var _ storage.Loader = (*Loader)(nil)

// Open validates dsn, connects and pings. The handle is closed on any error.
func Open(ctx context.Context, dsn string) (*Loader, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an open database. Close closes it.
func New(db *sql.DB) *Loader {
	l := &Loader{db: db}
	l.DDL = storage.DDL{Dialect: ddl.SQLServer, ExecFn: l.Exec}
	return l
}

// Exec implements storage.Loader.
func (l *Loader) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

// CopyFrom implements storage.Loader with a bulk copy into t.
func (l *Loader) CopyFrom(ctx context.Context, t storage.Table, spec storage.CopySpec, r io.Reader) (int64, error) {
	cols := t.ColumnNames()
	if len(cols) == 0 {
		return 0, errors.New("mssql: CopyFrom: columns must not be empty")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(bulkTableName(t), mssql.BulkOptions{Tablock: true}, cols...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: prepare bulk: %w", err)
	}

	if _, err := storage.ReadRecords(r, spec, len(cols), func(row []any) error {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("mssql: bulk row: %w", err)
		}
		return nil
	}); err != nil {
		_ = stmt.Close()
		rollback()
		return 0, err
	}

	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

// Close implements storage.Loader.
func (l *Loader) Close() { _ = l.db.Close() }

// bulkTableName is the bracket-quoted name passed to CopyIn.
func bulkTableName(t storage.Table) string {
	return ddl.SQLServer.QualifiedName(t.Schema, t.Name)
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
		return Open(ctx, cfg.DSN)
	})
}
