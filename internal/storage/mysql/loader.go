// Package mysql implements storage.Loader for MySQL using LOAD DATA LOCAL
// INFILE. The delimited stream is registered with the driver as a reader
// handler, so rows flow to the server without being parsed client side. The
// server must allow local_infile.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"kaggleelt/internal/ddl"
	"kaggleelt/internal/storage"
)

// Loader is a MySQL-backed storage.Loader. Schemas map to MySQL databases.
type Loader struct {
	storage.DDL
	db *sql.DB
}

var _ storage.Loader = (*Loader)(nil)

// Open validates dsn, e.g. "user:pass@tcp(host:3306)/warehouse", connects
// and pings. The handle is closed on any error.
func Open(ctx context.Context, dsn string) (*Loader, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("mysql: DSN must not be empty")
	}
	if _, err := gomysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("mysql: dsn: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an open database. Close closes it.
func New(db *sql.DB) *Loader {
	l := &Loader{db: db}
	l.DDL = storage.DDL{Dialect: ddl.MySQL, ExecFn: l.Exec}
	return l
}

// Exec implements storage.Loader.
func (l *Loader) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// CopyFrom implements storage.Loader with LOAD DATA LOCAL INFILE.
func (l *Loader) CopyFrom(ctx context.Context, t storage.Table, spec storage.CopySpec, r io.Reader) (int64, error) {
	handler := handlerName()
	stmt, err := ddl.BuildLoadDataSQL(t.Schema, t.Name, t.ColumnNames(), handler, spec)
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}

	gomysql.RegisterReaderHandler(handler, func() io.Reader { return r })
	defer gomysql.DeregisterReaderHandler(handler)

	res, err := l.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("mysql: load data into %s: %w", ddl.MySQL.QualifiedName(t.Schema, t.Name), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

// Close implements storage.Loader.
func (l *Loader) Close() { _ = l.db.Close() }

// handlerName is unique per load so concurrent loads do not share a reader.
func handlerName() string {
	return "kaggleelt-" + uuid.NewString()
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
		return Open(ctx, cfg.DSN)
	})
}
