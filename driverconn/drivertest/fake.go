// Package drivertest provides in-memory fakes for driverconn.Conn and
// driverconn.Dialer so callers (topologyquery, monitor, limitless)
// can unit test against synthetic query results instead of
// a live cluster.
package drivertest

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/auroralink/wrapper-core/driverconn"
)

// FakeRow is an in-memory Row for tests, modeled on the teacher's
// errorRow (a minimal pgx.Row implementation for synthetic results).
type FakeRow struct {
	Values []interface{}
	Err    error
}

func (r *FakeRow) Scan(dest ...interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	for i, d := range dest {
		if i >= len(r.Values) {
			continue
		}
		switch v := d.(type) {
		case *string:
			*v, _ = r.Values[i].(string)
		case *int:
			*v, _ = r.Values[i].(int)
		case *int64:
			*v, _ = r.Values[i].(int64)
		case *float64:
			*v, _ = r.Values[i].(float64)
		case *bool:
			*v, _ = r.Values[i].(bool)
		}
	}
	return nil
}

// FakeRows is an in-memory driverconn.Rows backed by a fixed slice of
// pre-scanned row values.
type FakeRows struct {
	Rows [][]interface{}
	idx  int
}

func (r *FakeRows) Next() bool {
	if r.idx >= len(r.Rows) {
		return false
	}
	r.idx++
	return true
}

func (r *FakeRows) Scan(dest ...interface{}) error {
	row := r.Rows[r.idx-1]
	return (&FakeRow{Values: row}).Scan(dest...)
}

func (r *FakeRows) Err() error { return nil }
func (r *FakeRows) Close()     {}

// FakeConn is an in-memory Conn for tests: QueryRowFunc/QueryFunc are
// invoked for every QueryRow/Query call.
type FakeConn struct {
	QueryRowFunc func(ctx context.Context, sql string, args ...interface{}) driverconn.Row
	QueryFunc    func(ctx context.Context, sql string, args ...interface{}) (driverconn.Rows, error)
	ExecFunc     func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	ClosedCh     chan struct{}
	SQLStateFunc func(err error) string
}

func (c *FakeConn) QueryRow(ctx context.Context, sql string, args ...interface{}) driverconn.Row {
	if c.QueryRowFunc != nil {
		return c.QueryRowFunc(ctx, sql, args...)
	}
	return &FakeRow{}
}

func (c *FakeConn) Query(ctx context.Context, sql string, args ...interface{}) (driverconn.Rows, error) {
	if c.QueryFunc != nil {
		return c.QueryFunc(ctx, sql, args...)
	}
	return &FakeRows{}, nil
}

func (c *FakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if c.ExecFunc != nil {
		return c.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (c *FakeConn) Close(ctx context.Context) error {
	if c.ClosedCh != nil {
		close(c.ClosedCh)
	}
	return nil
}

func (c *FakeConn) SQLState(err error) string {
	if c.SQLStateFunc != nil {
		return c.SQLStateFunc(err)
	}
	return ""
}

// FakeDialer returns a fixed Conn (or error) for every Dial call,
// recording the DSNs it was asked to dial.
type FakeDialer struct {
	Conn      driverconn.Conn
	Err       error
	DialedDSN []string
}

func (d *FakeDialer) Dial(ctx context.Context, dsn string) (driverconn.Conn, error) {
	d.DialedDSN = append(d.DialedDSN, dsn)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}
