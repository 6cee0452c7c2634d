// Package sqlite implements storage.Loader on modernc.org/sqlite.
//
// SQLite has no streaming bulk-load protocol, so the delimited stream is
// parsed and inserted row by row through a prepared statement inside a single
// transaction. Memory use stays bounded by one row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kaggleelt/internal/ddl"
	"kaggleelt/internal/storage"
)

// Loader is a SQLite-backed storage.Loader. Schemas are folded into table
// names (schema_table).
type Loader struct {
	storage.DDL
	db *sql.DB
}

var _ storage.Loader = (*Loader)(nil)

// Open opens dsn, e.g. "file:warehouse.db" or ":memory:".
func Open(ctx context.Context, dsn string) (*Loader, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an open database. Close closes it.
func New(db *sql.DB) *Loader {
	l := &Loader{db: db}
	l.DDL = storage.DDL{Dialect: ddl.SQLite, ExecFn: l.Exec}
	return l
}

// DB exposes the underlying handle.
func (l *Loader) DB() *sql.DB { return l.db }

// Exec implements storage.Loader.
func (l *Loader) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// CopyFrom implements storage.Loader. Either every row of r is committed or
// none is.
func (l *Loader) CopyFrom(ctx context.Context, t storage.Table, spec storage.CopySpec, r io.Reader) (int64, error) {
	cols := t.ColumnNames()
	if len(cols) == 0 {
		return 0, errors.New("sqlite: CopyFrom: columns must not be empty")
	}
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ddl.SQLite.Ident(c)
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ddl.SQLite.QualifiedName(t.Schema, t.Name),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	n, err := storage.ReadRecords(r, spec, len(cols), func(row []any) error {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("sqlite: insert: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Close implements storage.Loader.
func (l *Loader) Close() { _ = l.db.Close() }

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
		return Open(ctx, cfg.DSN)
	})
}
