package mssql

import (
	"context"
	"testing"

	"kaggleelt/internal/storage"
)

func TestBulkTableName(t *testing.T) {
	cases := []struct {
		schema, name, want string
	}{
		{"", "vehicles", "[vehicles]"},
		{"dbo", "vehicles", "[dbo].[vehicles]"},
		{"raw", "brack]et", "[raw].[brack]]et]"},
	}
	for _, tc := range cases {
		got := bulkTableName(storage.Table{Schema: tc.schema, Name: tc.name})
		if got != tc.want {
			t.Fatalf("bulkTableName(%q, %q) = %q; want %q", tc.schema, tc.name, got, tc.want)
		}
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), "sqlserver://%zz"); err == nil {
		t.Fatalf("expected DSN parse error")
	}
}

func TestRegistered(t *testing.T) {
	found := false
	for _, k := range storage.ListKinds() {
		if k == "mssql" {
			found = true
		}
	}
	if !found {
		t.Fatalf("mssql not registered: %v", storage.ListKinds())
	}
}
