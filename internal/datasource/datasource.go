// Package datasource defines where raw dataset bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a stream of raw dataset bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
