package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ReadRecords parses a delimited stream described by spec and calls fn once
// per data row, in order. Fields equal to spec.Null become nil; others are
// passed as strings. Every row must have exactly want fields.
//
// Backends without a native text bulk-load protocol use it to turn the stream
// into rows for their batch insert APIs.
func ReadRecords(r io.Reader, spec CopySpec, want int, fn func(row []any) error) (int64, error) {
	sep, size := utf8.DecodeRuneInString(spec.Delimiter)
	if size == 0 || size != len(spec.Delimiter) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", spec.Delimiter)
	}

	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.LazyQuotes = true
	cr.FieldsPerRecord = want
	cr.ReuseRecord = true

	if spec.Header {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, fmt.Errorf("read header: %w", err)
		}
	}

	var n int64
	row := make([]any, want)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		for i, v := range rec {
			if v == spec.Null {
				row[i] = nil
			} else {
				row[i] = v
			}
		}
		if err := fn(row); err != nil {
			return n, err
		}
		n++
	}
}
