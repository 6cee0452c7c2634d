package sanitizer

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord wraps a quoting or syntax error reported by the
	// underlying parser. The original *csv.ParseError stays reachable through
	// errors.As.
	ErrMalformedRecord = errors.New("sanitizer: malformed record")

	// ErrEmptyInput is returned by New when the source has no header record.
	ErrEmptyInput = errors.New("sanitizer: empty input, no header record")

	// ErrNoColumns is returned by New when no header column is named in the
	// mapping.
	ErrNoColumns = errors.New("sanitizer: mapping selects no header column")

	// ErrDuplicateColumn is returned by New when two selected header columns
	// would produce the same output column.
	ErrDuplicateColumn = errors.New("sanitizer: duplicate output column")
)

// FieldCountMismatchError reports a data record whose width differs from the
// header's. Record is 1-based and counts the header as record 1.
type FieldCountMismatchError struct {
	Record int
	Want   int
	Got    int
}

func (e *FieldCountMismatchError) Error() string {
	return fmt.Sprintf("sanitizer: record %d has %d fields, header has %d", e.Record, e.Got, e.Want)
}
