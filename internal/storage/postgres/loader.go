// Package postgres implements storage.Loader with pgx v5. Streams are loaded
// with COPY ... FROM STDIN so memory stays bounded regardless of file size.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kaggleelt/internal/ddl"
	"kaggleelt/internal/storage"
)

// Loader is a Postgres-backed storage.Loader.
type Loader struct {
	storage.DDL
	pool *pgxpool.Pool
}

var _ storage.Loader = (*Loader)(nil)

// Open connects to dsn and verifies the connection. The pool is closed on
// any error.
func Open(ctx context.Context, dsn string) (*Loader, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool. Close closes the pool.
func New(pool *pgxpool.Pool) *Loader {
	l := &Loader{pool: pool}
	l.DDL = storage.DDL{Dialect: ddl.Postgres, ExecFn: l.Exec}
	return l
}

// Pool exposes the underlying pool for callers sharing the connection, such
// as the run log.
func (l *Loader) Pool() *pgxpool.Pool { return l.pool }

// Exec implements storage.Loader.
func (l *Loader) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := l.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", pgDetail(err))
	}
	return nil
}

// CopyFrom implements storage.Loader using the COPY protocol. r is consumed
// incrementally by pgconn.
func (l *Loader) CopyFrom(ctx context.Context, t storage.Table, spec storage.CopySpec, r io.Reader) (int64, error) {
	stmt, err := ddl.BuildCopySQL(t.Schema, t.Name, t.ColumnNames(), spec)
	if err != nil {
		return 0, err
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	src := &sourceReader{r: r}
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, src, stmt)
	if err != nil {
		target := ddl.Postgres.QualifiedName(t.Schema, t.Name)
		// pgconn reports a failed read to the server and returns only the
		// server's reply, so the stream's own error is recovered here.
		if srcErr := src.Err(); srcErr != nil {
			return 0, fmt.Errorf("postgres: copy into %s: %w (server: %v)", target, srcErr, err)
		}
		return 0, fmt.Errorf("postgres: copy into %s: %w", target, pgDetail(err))
	}
	return tag.RowsAffected(), nil
}

// sourceReader records the first non-EOF error returned by r. pgconn reads
// from its own goroutine, hence the lock.
type sourceReader struct {
	r io.Reader

	mu  sync.Mutex
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
	return n, err
}

// Err returns the first read error, if any.
func (s *sourceReader) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements storage.Loader.
func (l *Loader) Close() { l.pool.Close() }

// pgDetail appends the server-side detail to a *pgconn.PgError, keeping the
// original error in the chain.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s, SQLSTATE %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// open is a test hook.
var open = Open

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
		return open(ctx, cfg.DSN)
	})
}
