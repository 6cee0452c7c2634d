package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is one table load.
type Run struct {
	ID         uuid.UUID
	Dataset    string
	Table      string
	Status     string
	Rows       int64
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store reads and writes elt_load_runs.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore returns a Store on pool. The table must exist; see RunMigrationsUp.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Start records a running load of dataset.table and returns its id.
func (s *Store) Start(ctx context.Context, dataset, table string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO elt_load_runs (id, dataset, table_name, status, started_at)
		 VALUES ($1::uuid, $2, $3, $4, $5)`,
		id.String(), dataset, table, StatusRunning, s.now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("runlog: start %s.%s: %w", dataset, table, err)
	}
	return id, nil
}

// Finish closes run id with the loaded row count and outcome.
func (s *Store) Finish(ctx context.Context, id uuid.UUID, rows int64, runErr error) error {
	status, msg := outcome(runErr)
	tag, err := s.pool.Exec(ctx,
		`UPDATE elt_load_runs
		    SET status = $2, rows_loaded = $3, error = NULLIF($4, ''), finished_at = $5
		  WHERE id = $1::uuid`,
		id.String(), status, rows, msg, s.now().UTC())
	if err != nil {
		return fmt.Errorf("runlog: finish %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("runlog: finish %s: no such run", id)
	}
	return nil
}

// Recent returns up to limit runs of dataset, newest first. An empty dataset
// matches all datasets.
func (s *Store) Recent(ctx context.Context, dataset string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, dataset, table_name, status, COALESCE(rows_loaded, 0),
		        COALESCE(error, ''), started_at, finished_at
		   FROM elt_load_runs
		  WHERE $1 = '' OR dataset = $1
		  ORDER BY started_at DESC
		  LIMIT $2`,
		dataset, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var (
			r  Run
			id string
		)
		if err := row.Scan(&id, &r.Dataset, &r.Table, &r.Status, &r.Rows, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return r, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return r, err
		}
		r.ID = parsed
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("runlog: scan: %w", err)
	}
	return runs, nil
}

func outcome(err error) (status, msg string) {
	if err != nil {
		return StatusFailed, err.Error()
	}
	return StatusSuccess, ""
}
