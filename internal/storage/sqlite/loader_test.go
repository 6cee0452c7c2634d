package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaggleelt/internal/storage"
)

func newLoader(tb testing.TB) *Loader {
	tb.Helper()
	l, err := Open(context.Background(), ":memory:")
	require.NoError(tb, err)
	tb.Cleanup(l.Close)
	return l
}

var vehicles = storage.Table{
	Schema: "kaggle_raw",
	Name:   "vehicles",
	Columns: []storage.ColumnDef{
		{Name: "vehicle_id", SQLType: "INTEGER"},
		{Name: "make", SQLType: "TEXT"},
	},
}

func TestCopyFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLoader(t)
	require.NoError(t, l.CreateSchema(ctx, vehicles.Schema))
	require.NoError(t, l.CreateTable(ctx, vehicles))

	stream := "vehicle_id|make\n1|Volvo\n2|NA\n3|Saab\n"
	n, err := l.CopyFrom(ctx, vehicles, storage.CopySpec{Delimiter: "|", Null: "NA", Header: true}, strings.NewReader(stream))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	rows, err := l.DB().QueryContext(ctx, `SELECT vehicle_id, make FROM kaggle_raw_vehicles ORDER BY vehicle_id`)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id int
		var make sql.NullString
		require.NoError(t, rows.Scan(&id, &make))
		if make.Valid {
			got = append(got, make.String)
		} else {
			got = append(got, "<null>")
		}
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Volvo", "<null>", "Saab"}, got)
}

func TestCopyFromHeaderOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLoader(t)
	require.NoError(t, l.CreateTable(ctx, vehicles))

	n, err := l.CopyFrom(ctx, vehicles, storage.CopySpec{Delimiter: "|", Header: true}, strings.NewReader("vehicle_id|make\n"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingReader struct {
	data string
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.data == "" {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestCopyFromRollsBackOnStreamError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLoader(t)
	require.NoError(t, l.CreateTable(ctx, vehicles))

	boom := errors.New("field count mismatch")
	_, err := l.CopyFrom(ctx, vehicles, storage.CopySpec{Delimiter: "|", Header: true},
		&failingReader{data: "vehicle_id|make\n1|Volvo\n", err: boom})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, l.DB().QueryRowContext(ctx, `SELECT count(*) FROM kaggle_raw_vehicles`).Scan(&count))
	assert.Zero(t, count, "partial load must be rolled back")
}

func TestCopyFromRejectsWrongWidth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLoader(t)
	require.NoError(t, l.CreateTable(ctx, vehicles))

	_, err := l.CopyFrom(ctx, vehicles, storage.CopySpec{Delimiter: "|", Header: true}, strings.NewReader("vehicle_id|make\n1|Volvo|extra\n"))
	require.Error(t, err)
}

func TestDropAndRecreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLoader(t)
	require.NoError(t, l.CreateTable(ctx, vehicles))
	_, err := l.CopyFrom(ctx, vehicles, storage.CopySpec{Delimiter: ",", Header: false}, strings.NewReader("1,Volvo\n"))
	require.NoError(t, err)

	require.NoError(t, l.DropTable(ctx, vehicles.Schema, vehicles.Name))
	require.NoError(t, l.DropTable(ctx, vehicles.Schema, vehicles.Name), "drop is idempotent")
	require.NoError(t, l.CreateTable(ctx, vehicles))

	var count int
	require.NoError(t, l.DB().QueryRowContext(ctx, `SELECT count(*) FROM kaggle_raw_vehicles`).Scan(&count))
	assert.Zero(t, count)
}

func TestRegistered(t *testing.T) {
	t.Parallel()

	l, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	l.Close()

	_, err = storage.New(context.Background(), storage.Config{Kind: "sqlite"})
	require.ErrorContains(t, err, "DSN must not be empty")
}
