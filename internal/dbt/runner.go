// Package dbt runs the dbt CLI for a dataset's models.
package dbt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// Runner invokes dbt as
//
//	<Bin> --partial-parse <Command> --project-dir <ProjectDir> -m <dataset>
//
// with warehouse credentials exported the way the dbt profile expects them.
type Runner struct {
	Bin         string
	Command     string
	ProjectDir  string
	ProfilesDir string
	// Schema is exported as DBT_SCHEMA.
	Schema string
	// DSN is a Postgres connection string; its parts become DBT_DB_HOST,
	// DBT_DB_USER, DBT_DB_PASSWORD, DWH_PORT and DBT_DWH_DBNAME.
	DSN string
	// ExtraArgs are appended after the model selector.
	ExtraArgs []string
}

// NewRunner returns a Runner for the project <dbtPath>/<project>. Profiles
// are read from profilesDir, or from dbtPath when it is empty.
func NewRunner(bin, command, dbtPath, project, profilesDir, schema, dsn string) *Runner {
	if profilesDir == "" {
		profilesDir = dbtPath
	}
	return &Runner{
		Bin:         bin,
		Command:     command,
		ProjectDir:  filepath.Join(dbtPath, project),
		ProfilesDir: profilesDir,
		Schema:      schema,
		DSN:         dsn,
	}
}

// Args returns the dbt arguments for dataset.
func (r *Runner) Args(dataset string) []string {
	args := []string{"--partial-parse", r.Command, "--project-dir", r.ProjectDir, "-m", dataset}
	return append(args, r.ExtraArgs...)
}

// Env returns the variables added to the process environment.
func (r *Runner) Env() ([]string, error) {
	env := []string{
		"DBT_PROFILES_DIR=" + r.ProfilesDir,
		"DBT_SCHEMA=" + r.Schema,
	}
	if r.DSN == "" {
		return env, nil
	}
	cfg, err := pgconn.ParseConfig(r.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbt: parse DSN: %w", err)
	}
	return append(env,
		"DBT_DB_HOST="+cfg.Host,
		"DBT_DB_USER="+cfg.User,
		"DBT_DB_PASSWORD="+cfg.Password,
		"DWH_PORT="+strconv.Itoa(int(cfg.Port)),
		"DBT_DWH_DBNAME="+cfg.Database,
	), nil
}

// Run runs dbt for dataset and waits for it to exit. Output lines are logged.
func (r *Runner) Run(ctx context.Context, dataset string) error {
	if r.Bin == "" || r.Command == "" {
		return errors.New("dbt: binary and command must be set")
	}
	env, err := r.Env()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, r.Bin, r.Args(dataset)...)
	cmd.Env = append(os.Environ(), env...)

	log := slog.With("dataset", dataset, "dbt_command", r.Command)
	stdout := &lineLogger{log: log, level: slog.LevelInfo}
	stderr := &lineLogger{log: log, level: slog.LevelWarn, keep: 20}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Info("running dbt", "bin", r.Bin, "args", r.Args(dataset))
	err = cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Dataset: dataset, Code: exitErr.ExitCode(), Tail: stderr.Tail()}
		}
		return fmt.Errorf("dbt: run %s: %w", dataset, err)
	}
	return nil
}

// ExitError reports a non-zero dbt exit.
type ExitError struct {
	Dataset string
	Code    int
	// Tail holds the last stderr lines.
	Tail []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("dbt: %s exited with code %d", e.Dataset, e.Code)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

// lineLogger turns process output into one log record per line, keeping the
// last keep lines.
type lineLogger struct {
	mu    sync.Mutex
	log   *slog.Logger
	level slog.Level
	buf   bytes.Buffer
	keep  int
	tail  []string
}

var _ io.Writer = (*lineLogger)(nil)

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; put it back for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			return len(p), nil
		}
		l.emit(line[:len(line)-1])
	}
}

// Flush logs a trailing line without newline.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(l.buf.String())
	l.buf.Reset()
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	l.log.Log(context.Background(), l.level, line)
	if l.keep > 0 {
		l.tail = append(l.tail, line)
		if len(l.tail) > l.keep {
			l.tail = l.tail[len(l.tail)-l.keep:]
		}
	}
}

// Tail returns the retained lines.
func (l *lineLogger) Tail() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tail...)
}
