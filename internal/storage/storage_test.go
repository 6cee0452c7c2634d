package storage

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"kaggleelt/internal/ddl"
)

type fakeLoader struct {
	DDL
	stmts  []string
	closed bool
}

func newFake() *fakeLoader {
	f := &fakeLoader{}
	f.DDL = DDL{Dialect: ddl.Postgres, ExecFn: f.Exec}
	return f
}

func (f *fakeLoader) Exec(ctx context.Context, sql string) error {
	f.stmts = append(f.stmts, sql)
	return nil
}

func (f *fakeLoader) CopyFrom(ctx context.Context, t Table, spec CopySpec, r io.Reader) (int64, error) {
	return 0, nil
}

func (f *fakeLoader) Close() { f.closed = true }

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	Register("fake", func(ctx context.Context, cfg Config) (Loader, error) {
		return newFake(), nil
	})

	l, err := New(context.Background(), Config{Kind: "fake"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if l == nil {
		t.Fatalf("New returned nil loader")
	}
	if !slices.Contains(ListKinds(), "fake") {
		t.Fatalf("registered kind missing from ListKinds: %v", ListKinds())
	}
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

func TestNew_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connect refused")
	Register("broken", func(ctx context.Context, cfg Config) (Loader, error) { return nil, boom })
	if _, err := New(context.Background(), Config{Kind: "broken"}); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestDDLStatements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFake()
	tbl := Table{Schema: "raw", Name: "t", Columns: []ColumnDef{{Name: "a", SQLType: "text"}}}

	if err := f.DropTable(ctx, "raw", "t"); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateSchema(ctx, "raw"); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateSchema(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateTable(ctx, tbl); err != nil {
		t.Fatal(err)
	}

	want := []string{
		`DROP TABLE IF EXISTS "raw"."t" CASCADE;`,
		`CREATE SCHEMA IF NOT EXISTS "raw";`,
		"CREATE TABLE IF NOT EXISTS \"raw\".\"t\" (\n  \"a\" text\n);",
	}
	if !slices.Equal(f.stmts, want) {
		t.Fatalf("statements = %q\nwant %q", f.stmts, want)
	}

	if err := f.CreateTable(ctx, Table{Name: "empty"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

func TestDDLWrapsExecErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("permission denied")
	d := DDL{Dialect: ddl.Postgres, ExecFn: func(context.Context, string) error { return boom }}
	err := d.DropTable(context.Background(), "raw", "t")
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), `"raw"."t"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadRecords(t *testing.T) {
	t.Parallel()

	var rows [][]any
	n, err := ReadRecords(strings.NewReader("a|b\n1|NA\n|x\n"), CopySpec{Delimiter: "|", Null: "NA", Header: true}, 2,
		func(row []any) error {
			rows = append(rows, slices.Clone(row))
			return nil
		})
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if rows[0][0] != "1" || rows[0][1] != nil {
		t.Fatalf("row 0 = %#v", rows[0])
	}
	if rows[1][0] != "" || rows[1][1] != "x" {
		t.Fatalf("row 1 = %#v", rows[1])
	}
}

func TestReadRecordsErrors(t *testing.T) {
	t.Parallel()

	noop := func([]any) error { return nil }
	if _, err := ReadRecords(strings.NewReader("a\n"), CopySpec{Delimiter: "||"}, 1, noop); err == nil {
		t.Fatalf("expected delimiter error")
	}
	if _, err := ReadRecords(strings.NewReader("a,b\n1\n"), CopySpec{Delimiter: ",", Header: true}, 2, noop); err == nil {
		t.Fatalf("expected field count error")
	}

	stop := errors.New("stop")
	n, err := ReadRecords(strings.NewReader("1\n2\n"), CopySpec{Delimiter: ","}, 1, func([]any) error { return stop })
	if !errors.Is(err, stop) || n != 0 {
		t.Fatalf("expected callback error after 0 rows, got n=%d err=%v", n, err)
	}

	n, err = ReadRecords(strings.NewReader(""), CopySpec{Delimiter: ",", Header: true}, 1, noop)
	if err != nil || n != 0 {
		t.Fatalf("empty stream: n=%d err=%v", n, err)
	}
}
