package repository

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFn func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

// valuesRow returns a row that scans values positionally into dest.
func valuesRow(values ...any) *mockRow {
	return &mockRow{scanFn: func(dest ...any) error {
		assign(dest, values)
		return nil
	}}
}

func errRow(err error) *mockRow {
	return &mockRow{scanFn: func(dest ...any) error { return err }}
}

func assign(dest []any, values []any) {
	for i := range dest {
		target := reflect.ValueOf(dest[i]).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
}

// mockRows implements pgx.Rows over fixed value tuples.
type mockRows struct {
	data      [][]any
	index     int
	errOnScan error
	errOnRows error
	closed    bool
}

func (m *mockRows) Close() { m.closed = true }

func (m *mockRows) Err() error {
	return m.errOnRows
}

func (m *mockRows) Next() bool {
	if m.index < len(m.data) {
		m.index++
		return true
	}
	return false
}

func (m *mockRows) Scan(dest ...any) error {
	if m.errOnScan != nil {
		return m.errOnScan
	}
	assign(dest, m.data[m.index-1])
	return nil
}

func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// mockPool implements PoolInterface and database.TxQuerier for testing.
type mockPool struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

// capture records the last statement and its arguments.
type capture struct {
	sql  string
	args []any
}

func (c *capture) exec(tag string) func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
		c.sql = sql
		c.args = arguments
		return pgconn.NewCommandTag(tag), nil
	}
}

func (c *capture) queryRow(row pgx.Row) func(ctx context.Context, sql string, args ...any) pgx.Row {
	return func(ctx context.Context, sql string, args ...any) pgx.Row {
		c.sql = sql
		c.args = args
		return row
	}
}

func (c *capture) query(rows pgx.Rows) func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		c.sql = sql
		c.args = args
		return rows, nil
	}
}
