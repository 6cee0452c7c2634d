// Package storage defines the backend-agnostic bulk-load contract and a
// registry of backend factories.
//
// Backends register themselves from init; importing
// kaggleelt/internal/storage/all makes every built-in kind available to New.
package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"kaggleelt/internal/ddl"
)

// Table is a destination table. Column order must match the stream order fed
// to CopyFrom.
type Table = ddl.TableDef

// ColumnDef is a destination column.
type ColumnDef = ddl.ColumnDef

// CopySpec describes the delimited stream passed to CopyFrom.
type CopySpec = ddl.CopyOptions

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Loader prepares destination tables and bulk loads delimited text streams.
type Loader interface {
	// Exec runs an arbitrary statement.
	Exec(ctx context.Context, sql string) error
	// DropTable drops schema.name if it exists, including dependents where the
	// backend supports it.
	DropTable(ctx context.Context, schema, name string) error
	// CreateSchema creates schema if it does not exist.
	CreateSchema(ctx context.Context, schema string) error
	// CreateTable creates t if it does not exist.
	CreateTable(ctx context.Context, t Table) error
	// CopyFrom streams r into t and returns the number of rows loaded. r is
	// read until EOF; errors from r abort the load.
	CopyFrom(ctx context.Context, t Table, spec CopySpec, r io.Reader) (int64, error)
	Close()
}

// Factory opens a Loader for cfg.
type Factory func(ctx context.Context, cfg Config) (Loader, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Loader of cfg.Kind.
func New(ctx context.Context, cfg Config) (Loader, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DDL implements the schema-management methods of Loader for one dialect on
// top of an Exec function. Backends embed it.
type DDL struct {
	Dialect ddl.Dialect
	ExecFn  func(ctx context.Context, sql string) error
}

// DropTable implements Loader.DropTable.
func (d DDL) DropTable(ctx context.Context, schema, name string) error {
	stmt, err := ddl.BuildDropTableSQL(d.Dialect, schema, name)
	if err != nil {
		return err
	}
	if err := d.ExecFn(ctx, stmt); err != nil {
		return fmt.Errorf("drop table %s: %w", d.Dialect.QualifiedName(schema, name), err)
	}
	return nil
}

// CreateSchema implements Loader.CreateSchema.
func (d DDL) CreateSchema(ctx context.Context, schema string) error {
	stmt := ddl.BuildCreateSchemaSQL(d.Dialect, schema)
	if stmt == "" {
		return nil
	}
	if err := d.ExecFn(ctx, stmt); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	return nil
}

// CreateTable implements Loader.CreateTable.
func (d DDL) CreateTable(ctx context.Context, t Table) error {
	stmt, err := ddl.BuildCreateTableSQL(d.Dialect, t)
	if err != nil {
		return err
	}
	if err := d.ExecFn(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", d.Dialect.QualifiedName(t.Schema, t.Name), err)
	}
	return nil
}
