// Package file implements a local filesystem-backed data source that decodes
// the file's character encoding to UTF-8.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Local opens a file from the local disk. Content is decoded from the
// configured encoding to UTF-8 and a leading byte order mark is dropped.
type Local struct {
	path string
	enc  encoding.Encoding
}

// NewLocal returns a Local for path that decodes encodingName. An empty name
// means UTF-8.
func NewLocal(path, encodingName string) (*Local, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Local{path: path, enc: enc}, nil
}

// Path returns the file path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading.
//
// If ctx is already done, Open returns its error without touching the
// filesystem. Filesystem errors are wrapped with the path and still satisfy
// errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	dec := unicode.BOMOverride(l.enc.NewDecoder())
	return &decodedFile{Reader: transform.NewReader(f, dec), f: f}, nil
}

type decodedFile struct {
	io.Reader
	f *os.File
}

func (d *decodedFile) Close() error { return d.f.Close() }

// LookupEncoding resolves an encoding name as written in dbt source metadata.
// IANA names and aliases are tried first, then WHATWG labels. Names such as
// "latin-1" or "utf8" are also accepted with the punctuation removed.
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return unicode.UTF8, nil
	}
	candidates := []string{name}
	if squashed := strings.NewReplacer("-", "", "_", "").Replace(name); squashed != name {
		candidates = append(candidates, squashed)
	}
	for _, c := range candidates {
		if enc, err := ianaindex.IANA.Encoding(c); err == nil && enc != nil {
			return enc, nil
		}
		if enc, err := htmlindex.Get(c); err == nil {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}
