package dbtsource

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a source definition issue.
type IssueSeverity string

const (
	// SeverityError blocks loading the source.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block loading.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the source
// definition, e.g. "tables[vehicles].columns[2].data_type".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over a parsed Source.
func Validate(s *Source) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.Name) == "" {
		add(SeverityError, "name", "source name must not be empty")
	}
	if strings.TrimSpace(s.Schema) == "" {
		add(SeverityError, "schema", "schema must not be empty")
	}
	if utf8.RuneCountInString(s.Delimiter) != 1 {
		add(SeverityError, "meta.delimiter", "delimiter must be a single character, got %q", s.Delimiter)
	}
	if utf8.RuneCountInString(s.SourceDelimiter) != 1 {
		add(SeverityError, "meta.source_delimiter", "source_delimiter must be a single character, got %q", s.SourceDelimiter)
	}
	if utf8.RuneCountInString(s.Quote) != 1 {
		add(SeverityError, "meta.quote", "quote must be a single character, got %q", s.Quote)
	} else if s.Quote == s.SourceDelimiter {
		add(SeverityError, "meta.quote", "quote and source_delimiter must differ")
	}
	if strings.Contains(s.NullValue, s.Delimiter) && s.Delimiter != "" {
		add(SeverityError, "meta.null_value", "null_value %q contains the delimiter", s.NullValue)
	}
	if len(s.Tables) == 0 {
		add(SeverityWarning, "tables", "source declares no tables")
	}

	seenTables := map[string]bool{}
	for i, t := range s.Tables {
		tp := fmt.Sprintf("tables[%d]", i)
		if t.Name == "" {
			add(SeverityError, tp+".name", "table name must not be empty")
		} else {
			tp = fmt.Sprintf("tables[%s]", t.Name)
			if seenTables[t.Name] {
				add(SeverityError, tp+".name", "duplicate table name")
			}
			seenTables[t.Name] = true
		}
		if t.KaggleFileName == "" {
			add(SeverityError, tp+".meta.kaggle_file_name", "kaggle_file_name must not be empty")
		}
		if len(t.Columns) == 0 {
			add(SeverityError, tp+".columns", "table declares no columns")
		}

		seenCols := map[string]bool{}
		seenKaggle := map[string]bool{}
		for j, c := range t.Columns {
			cp := fmt.Sprintf("%s.columns[%d]", tp, j)
			if c.Name == "" {
				add(SeverityError, cp+".name", "column name must not be empty")
			} else if seenCols[c.Name] {
				add(SeverityError, cp+".name", "duplicate column name %q", c.Name)
			}
			seenCols[c.Name] = true
			if strings.TrimSpace(c.DataType) == "" {
				add(SeverityError, cp+".data_type", "data_type must not be empty")
			}
			if c.KaggleColumnName == "" {
				add(SeverityError, cp+".meta.kaggle_column_name", "kaggle_column_name must not be empty")
			} else if seenKaggle[c.KaggleColumnName] {
				add(SeverityError, cp+".meta.kaggle_column_name", "kaggle column %q mapped twice", c.KaggleColumnName)
			}
			seenKaggle[c.KaggleColumnName] = true
		}
	}
	return issues
}
