package sanitizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// NewRecordReader returns a quote-aware RecordReader over r configured by
// opts. Records may share storage between calls.
//
// encoding/csv only understands '"' as the quote character. For any other
// quote rune the byte stream is passed through a transformer that swaps the
// configured quote with '"' (and vice versa), and every parsed field is
// swapped back. The swap is an involution, so literal '"' characters in the
// input survive unchanged.
func NewRecordReader(r io.Reader, opts Options) (RecordReader, error) {
	if opts.Sep == opts.Quote {
		return nil, fmt.Errorf("sanitizer: delimiter and quote must differ (both %q)", opts.Sep)
	}
	if opts.Quote == '\r' || opts.Quote == '\n' {
		return nil, fmt.Errorf("sanitizer: invalid quote character %q", opts.Quote)
	}

	if opts.Quote == defaultQuote {
		return newCSVReader(r, opts.Sep, opts.LazyQuotes), nil
	}

	// The delimiter itself must not be swapped.
	if opts.Sep == defaultQuote {
		return nil, fmt.Errorf("sanitizer: delimiter %q is reserved when quote is %q", opts.Sep, opts.Quote)
	}

	if opts.Quote < utf8.RuneSelf {
		q := byte(opts.Quote)
		tr := transform.NewReader(r, byteSwapper{q: q})
		return &swappedReader{
			cr:   newCSVReader(tr, opts.Sep, opts.LazyQuotes),
			swap: func(v string) string { return swapBytes(v, q) },
		}, nil
	}

	swap := quoteSwapper(opts.Quote)
	tr := transform.NewReader(r, runes.Map(swap))
	return &swappedReader{
		cr:   newCSVReader(tr, opts.Sep, opts.LazyQuotes),
		swap: func(v string) string { return strings.Map(swap, v) },
	}, nil
}

func newCSVReader(r io.Reader, sep rune, lazy bool) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.LazyQuotes = lazy
	cr.ReuseRecord = true
	// Width is enforced by the Sanitizer against the header.
	cr.FieldsPerRecord = -1
	return cr
}

func quoteSwapper(q rune) func(rune) rune {
	return func(r rune) rune {
		switch r {
		case q:
			return defaultQuote
		case defaultQuote:
			return q
		}
		return r
	}
}

// byteSwapper exchanges an ASCII quote byte with '"'. Both are below 0x80,
// so multi-byte sequences, valid or not, pass through as is.
type byteSwapper struct {
	transform.NopResetter
	q byte
}

func (b byteSwapper) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := copy(dst, src)
	for i, c := range dst[:n] {
		switch c {
		case b.q:
			dst[i] = defaultQuote
		case defaultQuote:
			dst[i] = b.q
		}
	}
	if n < len(src) {
		err = transform.ErrShortDst
	}
	return n, n, err
}

func swapBytes(v string, q byte) string {
	if strings.IndexByte(v, q) < 0 && strings.IndexByte(v, defaultQuote) < 0 {
		return v
	}
	b := []byte(v)
	for i, c := range b {
		switch c {
		case q:
			b[i] = defaultQuote
		case defaultQuote:
			b[i] = q
		}
	}
	return string(b)
}

// swappedReader undoes the quote swap on every parsed field.
type swappedReader struct {
	cr   *csv.Reader
	swap func(string) string
}

func (s *swappedReader) Read() ([]string, error) {
	rec, err := s.cr.Read()
	for i, v := range rec {
		rec[i] = s.swap(v)
	}
	return rec, err
}
