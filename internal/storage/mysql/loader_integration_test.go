//go:build integration

package mysql

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"kaggleelt/internal/storage"
)

// getTestDSN reads MYSQL_TEST_DSN and skips the test when it is unset. The
// server must run with local_infile=ON.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set; skipping MySQL integration tests")
	}
	return dsn
}

func TestLoaderIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	tbl := storage.Table{
		Schema: "kaggle_raw",
		Name:   "loader_integration",
		Columns: []storage.ColumnDef{
			{Name: "vehicle_id", SQLType: "INT"},
			{Name: "make", SQLType: "VARCHAR(64)"},
		},
	}
	for _, step := range []func() error{
		func() error { return l.DropTable(ctx, tbl.Schema, tbl.Name) },
		func() error { return l.CreateSchema(ctx, tbl.Schema) },
		func() error { return l.CreateTable(ctx, tbl) },
	} {
		if err := step(); err != nil {
			t.Fatalf("prepare table: %v", err)
		}
	}

	n, err := l.CopyFrom(ctx, tbl, storage.CopySpec{Delimiter: "|", Null: "NA", Header: true},
		strings.NewReader("vehicle_id|make\n1|Volvo\n2|NA\n"))
	if err != nil {
		t.Fatalf("CopyFrom() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("CopyFrom() = %d rows, want 2", n)
	}

	var nulls int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `kaggle_raw`.`loader_integration` WHERE make IS NULL").Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 1 {
		t.Fatalf("null makes = %d, want 1", nulls)
	}
}
