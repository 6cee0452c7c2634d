package ddl

import (
	"strings"
	"testing"
)

var vehicles = TableDef{
	Schema: "kaggle_raw",
	Name:   "vehicles",
	Columns: []ColumnDef{
		{Name: "vehicle_id", SQLType: "integer"},
		{Name: "make", SQLType: "varchar(64)"},
	},
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		dialect     Dialect
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:    "postgres",
			dialect: Postgres,
			def:     vehicles,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"kaggle_raw\".\"vehicles\" (\n  \"vehicle_id\" integer,\n  \"make\" varchar(64)\n);",
		},
		{
			name:    "sqlite folds schema into the name",
			dialect: SQLite,
			def:     vehicles,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"kaggle_raw_vehicles\" (\n  \"vehicle_id\" integer,\n  \"make\" varchar(64)\n);",
		},
		{
			name:    "sql server guards with OBJECT_ID",
			dialect: SQLServer,
			def:     vehicles,
			wantSQL: "IF OBJECT_ID(N'[kaggle_raw].[vehicles]', N'U') IS NULL\nCREATE TABLE [kaggle_raw].[vehicles] (\n  [vehicle_id] integer,\n  [make] varchar(64)\n);",
		},
		{
			name:    "mysql quotes with backticks",
			dialect: MySQL,
			def:     vehicles,
			wantSQL: "CREATE TABLE IF NOT EXISTS `kaggle_raw`.`vehicles` (\n  `vehicle_id` integer,\n  `make` varchar(64)\n);",
		},
		{
			name:        "empty name",
			def:         TableDef{Columns: vehicles.Columns},
			errContains: "table name must not be empty",
		},
		{
			name:        "no columns",
			def:         TableDef{Name: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column without type",
			def:         TableDef{Name: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:        "column without name",
			def:         TableDef{Name: "t", Columns: []ColumnDef{{SQLType: "int"}}},
			errContains: "column with empty name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tc.dialect, tc.def)
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("expected error containing %q, got %v", tc.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tc.wantSQL)
			}
		})
	}
}

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	if got := Postgres.Ident(`we"ird`); got != `"we""ird"` {
		t.Fatalf("postgres ident = %s", got)
	}
	if got := SQLServer.Ident("we]ird"); got != "[we]]ird]" {
		t.Fatalf("mssql ident = %s", got)
	}
	if got := Postgres.QualifiedName("", "t"); got != `"t"` {
		t.Fatalf("unqualified = %s", got)
	}
	if got := Literal("it's"); got != "'it''s'" {
		t.Fatalf("literal = %s", got)
	}
}

func TestBuildDropTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildDropTableSQL(Postgres, "kaggle_raw", "vehicles")
	if err != nil || got != `DROP TABLE IF EXISTS "kaggle_raw"."vehicles" CASCADE;` {
		t.Fatalf("postgres drop = %q, %v", got, err)
	}
	got, err = BuildDropTableSQL(SQLServer, "dbo", "vehicles")
	if err != nil || got != "DROP TABLE IF EXISTS [dbo].[vehicles];" {
		t.Fatalf("mssql drop = %q, %v", got, err)
	}
	got, err = BuildDropTableSQL(MySQL, "raw", "vehicles")
	if err != nil || got != "DROP TABLE IF EXISTS `raw`.`vehicles`;" {
		t.Fatalf("mysql drop = %q, %v", got, err)
	}
	if _, err := BuildDropTableSQL(SQLite, "", " "); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestBuildCreateSchemaSQL(t *testing.T) {
	t.Parallel()

	if got := BuildCreateSchemaSQL(Postgres, "kaggle_raw"); got != `CREATE SCHEMA IF NOT EXISTS "kaggle_raw";` {
		t.Fatalf("postgres = %q", got)
	}
	if got := BuildCreateSchemaSQL(SQLServer, "raw"); got != `IF SCHEMA_ID(N'raw') IS NULL EXEC('CREATE SCHEMA [raw]');` {
		t.Fatalf("mssql = %q", got)
	}
	if got := BuildCreateSchemaSQL(MySQL, "raw"); got != "CREATE SCHEMA IF NOT EXISTS `raw`;" {
		t.Fatalf("mysql = %q", got)
	}
	if got := BuildCreateSchemaSQL(SQLite, "raw"); got != "" {
		t.Fatalf("sqlite = %q", got)
	}
	if got := BuildCreateSchemaSQL(Postgres, ""); got != "" {
		t.Fatalf("empty schema = %q", got)
	}
}

func TestBuildCopySQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCopySQL("kaggle_raw", "vehicles", []string{"make", "vehicle_id"},
		CopyOptions{Delimiter: "|", Null: "NA", Header: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `COPY "kaggle_raw"."vehicles" ("make", "vehicle_id") FROM STDIN WITH (FORMAT csv, HEADER true, DELIMITER '|', NULL 'NA')`
	if got != want {
		t.Fatalf("COPY mismatch\n got: %s\nwant: %s", got, want)
	}

	if _, err := BuildCopySQL("s", "t", []string{"a"}, CopyOptions{Delimiter: "||"}); err == nil {
		t.Fatalf("expected error for multi-character delimiter")
	}
	if _, err := BuildCopySQL("s", "t", nil, CopyOptions{Delimiter: "|"}); err == nil {
		t.Fatalf("expected error for no columns")
	}
}

func TestBuildLoadDataSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildLoadDataSQL("kaggle_raw", "vehicles", []string{"make", "vehicle_id"}, "load-1",
		CopyOptions{Delimiter: "|", Null: "NA", Header: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "LOAD DATA LOCAL INFILE 'Reader::load-1' INTO TABLE `kaggle_raw`.`vehicles` CHARACTER SET utf8mb4" +
		" FIELDS TERMINATED BY '|' ESCAPED BY '' IGNORE 1 LINES" +
		" (@v1, @v2) SET `make` = NULLIF(@v1, 'NA'), `vehicle_id` = NULLIF(@v2, 'NA')"
	if got != want {
		t.Fatalf("LOAD DATA mismatch\n got: %s\nwant: %s", got, want)
	}

	if _, err := BuildLoadDataSQL("s", "t", []string{"a"}, "h", CopyOptions{Delimiter: ""}); err == nil {
		t.Fatalf("expected error for empty delimiter")
	}
	if _, err := BuildLoadDataSQL("s", "", []string{"a"}, "h", CopyOptions{Delimiter: "|"}); err == nil {
		t.Fatalf("expected error for empty table name")
	}
}

func TestColumnNames(t *testing.T) {
	t.Parallel()

	got := vehicles.ColumnNames()
	if strings.Join(got, ",") != "vehicle_id,make" {
		t.Fatalf("ColumnNames = %v", got)
	}
}
