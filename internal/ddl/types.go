package ddl

// ColumnDef describes a single destination column.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type, emitted verbatim (e.g., integer, varchar(64))
type ColumnDef struct {
	Name    string
	SQLType string
}

// TableDef holds the schema, table name and ordered columns of a destination
// table. Schema may be empty, in which case the dialect's default applies.
type TableDef struct {
	Schema  string
	Name    string
	Columns []ColumnDef
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// CopyOptions describes the delimited text stream fed to a bulk load.
type CopyOptions struct {
	Delimiter string
	// Null is the token that loads as SQL NULL. Empty means the empty string.
	Null string
	// Header reports whether the first line of the stream is a header row.
	Header bool
}
