// Package sanitizer implements a streaming CSV column filter and renamer that
// sits between a downloaded file and a bulk-load call.
//
// A Sanitizer consumes parsed records from an underlying RecordReader, keeps
// only the columns named in a Mapping (in header order), renames them, strips
// the quote character from every value and re-joins the values with a
// replacement delimiter. The result is exposed as an io.Reader so it can be
// handed directly to a COPY FROM STDIN style API.
//
// Memory is bounded by the width of a single record: the next record is only
// parsed once the previous output line has been fully drained.
//
// Example:
//
//	in := strings.NewReader("id,name,age\n\"1\",\"Alice\",30\n")
//	s, err := sanitizer.NewReader(in, sanitizer.Mapping{"id": "id", "name": "name"}, sanitizer.Options{})
//	if err != nil { ... }
//	out, err := s.ReadString(-1) // "id|name\n1|Alice\n"
package sanitizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Mapping maps an original (remote) column name to its target name. Columns
// absent from the mapping are dropped.
type Mapping map[string]string

// RecordReader yields one parsed record per call and io.EOF once exhausted.
// *csv.Reader satisfies it.
type RecordReader interface {
	Read() ([]string, error)
}

// Options configures the delimiters and quoting. Zero values select the
// defaults: Sep ',', ReplacementSep "|", Quote '"'.
type Options struct {
	// Sep is the input field delimiter.
	Sep rune

	// ReplacementSep is written between retained fields in the output.
	ReplacementSep string

	// Quote is the input quote character. It is also the character removed
	// from every output value.
	Quote rune

	// LazyQuotes tolerates a quote appearing in an unquoted field.
	LazyQuotes bool
}

const (
	defaultSep            = ','
	defaultReplacementSep = "|"
	defaultQuote          = '"'
)

func (o Options) withDefaults() Options {
	if o.Sep == 0 {
		o.Sep = defaultSep
	}
	if o.ReplacementSep == "" {
		o.ReplacementSep = defaultReplacementSep
	}
	if o.Quote == 0 {
		o.Quote = defaultQuote
	}
	return o
}

// Sanitizer is a pull-based rewriter over a RecordReader. It is not safe for
// concurrent use; each table load owns its own instance.
type Sanitizer struct {
	rr      RecordReader
	include []bool
	columns []string
	repl    string
	quote   string

	buf []byte // current output record
	off int    // read position in buf

	record int // records consumed so far, header included
	done   bool
	err    error // sticky
}

// New consumes the header record from rr and returns a Sanitizer whose first
// output line is the renamed, sanitized header.
func New(rr RecordReader, m Mapping, opts Options) (*Sanitizer, error) {
	opts = opts.withDefaults()
	s := &Sanitizer{
		rr:    rr,
		repl:  opts.ReplacementSep,
		quote: string(opts.Quote),
	}

	hdr, err := s.next()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	s.include = make([]bool, len(hdr))
	seen := make(map[string]string, len(m))
	for i, name := range hdr {
		target, ok := m[name]
		s.include[i] = ok
		if !ok {
			continue
		}
		if prev, dup := seen[target]; dup {
			return nil, fmt.Errorf("%w: header columns %q and %q both map to %q", ErrDuplicateColumn, prev, name, target)
		}
		seen[target] = name
		s.columns = append(s.columns, target)
	}
	if len(s.columns) == 0 {
		return nil, fmt.Errorf("%w: header %q", ErrNoColumns, hdr)
	}

	s.buf = s.appendLine(s.buf, s.columns, nil)
	return s, nil
}

// NewReader parses r as delimited text according to opts and wraps the
// resulting record reader in a Sanitizer.
func NewReader(r io.Reader, m Mapping, opts Options) (*Sanitizer, error) {
	opts = opts.withDefaults()
	rr, err := NewRecordReader(r, opts)
	if err != nil {
		return nil, err
	}
	return New(rr, m, opts)
}

// Columns returns the target column names in output order.
func (s *Sanitizer) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Readable reports that the Sanitizer can be read from.
func (s *Sanitizer) Readable() bool { return true }

// Writable reports that the Sanitizer cannot be written to.
func (s *Sanitizer) Writable() bool { return false }

// Read implements io.Reader. It never returns more than len(p) bytes; any
// surplus of the current output line stays pending for the next call. Once
// the source is exhausted and everything has been drained, Read returns
// 0, io.EOF on every call.
//
// Parse failures and field-count mismatches are sticky: bytes already copied
// into p are returned first, and the error is reported by the next call.
func (s *Sanitizer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if s.off == len(s.buf) {
			if err := s.fill(); err != nil {
				if n > 0 {
					return n, nil
				}
				return 0, err
			}
		}
		c := copy(p[n:], s.buf[s.off:])
		s.off += c
		n += c
	}
	return n, nil
}

// ReadString returns at most n bytes of output. A negative n drains the
// stream to exhaustion. After exhaustion it returns "" and a nil error.
func (s *Sanitizer) ReadString(n int) (string, error) {
	if n < 0 {
		var sb strings.Builder
		_, err := s.WriteTo(&sb)
		return sb.String(), err
	}
	p := make([]byte, n)
	got, err := s.Read(p)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return string(p[:got]), err
}

// WriteTo drains the remaining output into w one line at a time.
func (s *Sanitizer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		if s.off < len(s.buf) {
			m, err := w.Write(s.buf[s.off:])
			s.off += m
			total += int64(m)
			if err != nil {
				return total, err
			}
		}
		if err := s.fill(); err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

// fill replaces the drained output buffer with the next data record.
func (s *Sanitizer) fill() error {
	if s.err != nil {
		return s.err
	}
	if s.done {
		return io.EOF
	}

	rec, err := s.next()
	if errors.Is(err, io.EOF) {
		s.done = true
		s.buf, s.off = s.buf[:0], 0
		return io.EOF
	}
	if err != nil {
		s.err = err
		return err
	}
	if len(rec) != len(s.include) {
		s.err = &FieldCountMismatchError{Record: s.record, Want: len(s.include), Got: len(rec)}
		return s.err
	}

	s.buf, s.off = s.appendLine(s.buf[:0], rec, s.include), 0
	return nil
}

// next reads one record from the underlying reader and classifies errors.
func (s *Sanitizer) next() ([]string, error) {
	rec, err := s.rr.Read()
	if err == nil {
		s.record++
		return rec, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}

	s.record++
	if errors.Is(err, csv.ErrFieldCount) && s.include != nil {
		return nil, &FieldCountMismatchError{Record: s.record, Want: len(s.include), Got: len(rec)}
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return nil, fmt.Errorf("%w: record %d: %w", ErrMalformedRecord, s.record, err)
	}
	return nil, fmt.Errorf("read record %d: %w", s.record, err)
}

// appendLine appends the retained, sanitized fields of rec joined by the
// replacement delimiter and a trailing newline. A nil mask keeps every field.
func (s *Sanitizer) appendLine(dst []byte, rec []string, mask []bool) []byte {
	first := true
	for i, v := range rec {
		if mask != nil && !mask[i] {
			continue
		}
		if !first {
			dst = append(dst, s.repl...)
		}
		first = false
		dst = append(dst, strings.ReplaceAll(v, s.quote, "")...)
	}
	return append(dst, '\n')
}
