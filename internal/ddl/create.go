// Package ddl renders the small set of SQL statements a table load needs:
// schema and table creation, table drop and the bulk load commands (Postgres
// COPY and MySQL LOAD DATA).
//
// Identifiers are always quoted for the target dialect. Column types are raw
// SQL and are emitted as given.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect selects identifier quoting and statement forms.
type Dialect int

const (
	Postgres Dialect = iota
	SQLServer
	SQLite
	MySQL
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLServer:
		return "mssql"
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// Ident quotes a single identifier.
func (d Dialect) Ident(id string) string {
	switch d {
	case SQLServer:
		return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]`
	case MySQL:
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QualifiedName quotes schema.name. SQLite has no schemas in the Postgres
// sense, so the schema is folded into the table name as schema_name.
func (d Dialect) QualifiedName(schema, name string) string {
	switch {
	case schema == "":
		return d.Ident(name)
	case d == SQLite:
		return d.Ident(schema + "_" + name)
	default:
		return d.Ident(schema) + "." + d.Ident(name)
	}
}

// Literal quotes s as a SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func validateTable(t TableDef) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("ddl: at least one column is required")
	}
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("ddl: column with empty name in table %s", t.Name)
		}
		if strings.TrimSpace(c.SQLType) == "" {
			return fmt.Errorf("ddl: column %s missing SQLType", c.Name)
		}
	}
	return nil
}

// BuildCreateTableSQL renders a CREATE TABLE that is a no-op when the table
// already exists:
//
//	CREATE TABLE IF NOT EXISTS "schema"."table" (
//	  "col1" type1,
//	  "col2" type2
//	);
//
// SQL Server lacks IF NOT EXISTS for tables and gets an OBJECT_ID guard instead.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	if err := validateTable(t); err != nil {
		return "", err
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.Ident(c.Name) + " " + strings.TrimSpace(c.SQLType)
	}
	fqn := d.QualifiedName(t.Schema, t.Name)
	body := fmt.Sprintf("(\n  %s\n)", strings.Join(cols, ",\n  "))

	if d == SQLServer {
		return fmt.Sprintf("IF OBJECT_ID(N%s, N'U') IS NULL\nCREATE TABLE %s %s;",
			Literal(fqn), fqn, body), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", fqn, body), nil
}

// BuildDropTableSQL renders a DROP TABLE IF EXISTS. On Postgres dependent
// views are dropped along with the table.
func BuildDropTableSQL(d Dialect, schema, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	stmt := "DROP TABLE IF EXISTS " + d.QualifiedName(schema, name)
	if d == Postgres {
		stmt += " CASCADE"
	}
	return stmt + ";", nil
}

// BuildCreateSchemaSQL renders an idempotent CREATE SCHEMA. It returns "" for
// SQLite and for an empty schema, meaning there is nothing to execute.
func BuildCreateSchemaSQL(d Dialect, schema string) string {
	if schema == "" || d == SQLite {
		return ""
	}
	if d == SQLServer {
		return fmt.Sprintf("IF SCHEMA_ID(N%s) IS NULL EXEC(%s);",
			Literal(schema), Literal("CREATE SCHEMA "+d.Ident(schema)))
	}
	return "CREATE SCHEMA IF NOT EXISTS " + d.Ident(schema) + ";"
}

// BuildLoadDataSQL renders the MySQL LOAD DATA LOCAL INFILE statement that
// reads a delimited stream from the driver reader handler named handler. The
// first line is skipped when opts.Header is set and fields equal to opts.Null
// load as NULL.
func BuildLoadDataSQL(schema, name string, cols []string, handler string, opts CopyOptions) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	if len([]rune(opts.Delimiter)) != 1 {
		return "", fmt.Errorf("ddl: delimiter must be a single character, got %q", opts.Delimiter)
	}
	vars := make([]string, len(cols))
	sets := make([]string, len(cols))
	for i, c := range cols {
		vars[i] = fmt.Sprintf("@v%d", i+1)
		sets[i] = fmt.Sprintf("%s = NULLIF(%s, %s)", MySQL.Ident(c), vars[i], Literal(opts.Null))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "LOAD DATA LOCAL INFILE %s INTO TABLE %s CHARACTER SET utf8mb4", Literal("Reader::"+handler), MySQL.QualifiedName(schema, name))
	fmt.Fprintf(&b, " FIELDS TERMINATED BY %s ESCAPED BY ''", Literal(opts.Delimiter))
	if opts.Header {
		b.WriteString(" IGNORE 1 LINES")
	}
	fmt.Fprintf(&b, " (%s) SET %s", strings.Join(vars, ", "), strings.Join(sets, ", "))
	return b.String(), nil
}

// BuildCopySQL renders the Postgres COPY ... FROM STDIN command for a CSV
// stream whose columns are cols, in stream order.
func BuildCopySQL(schema, name string, cols []string, opts CopyOptions) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	if len([]rune(opts.Delimiter)) != 1 {
		return "", fmt.Errorf("ddl: delimiter must be a single character, got %q", opts.Delimiter)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = Postgres.Ident(c)
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER %t, DELIMITER %s, NULL %s)",
		Postgres.QualifiedName(schema, name),
		strings.Join(quoted, ", "),
		opts.Header,
		Literal(opts.Delimiter),
		Literal(opts.Null),
	), nil
}
