// Package driverconn adapts the underlying pgx driver into the small
// capability surface the topology monitor, failover coordinator, and
// limitless router need: open a connection to one specific node,
// issue one of the dialect's fixed queries against it, and close it.
// Unlike an application connection pool, this package never pools —
// each Conn targets exactly one physical node and is short-lived,
// used for topology/health probing and for handing a fresh connection
// back to the caller after a successful failover.
package driverconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Row mirrors the single-row-scan surface callers need, so
// topologyquery can be tested against a fake without importing pgx.
type Row interface {
	Scan(dest ...interface{}) error
}

// Rows mirrors the multi-row iteration surface callers need, trimmed
// down from pgx.Rows so fakes don't have to implement its full set of
// metadata accessors.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

// Conn is the capability surface a dialect query runner needs against
// one physical host.
type Conn interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) Row
	Query(ctx context.Context, sql string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
	// SQLState extracts the SQLSTATE code from err if err originated
	// from this connection's driver, else returns "".
	SQLState(err error) string
}

// Dialer opens a Conn to a specific host/port using a DSN template;
// "?" in the template's host portion has already been substituted by
// the caller (see topologyquery.ResolveHost).
type Dialer interface {
	Dial(ctx context.Context, dsn string) (Conn, error)
}

// PGXDialer is the production Dialer, backed by pgx/v5.
type PGXDialer struct {
	// ConnectTimeout bounds how long a single Dial may take.
	ConnectTimeout time.Duration
}

func (d PGXDialer) Dial(ctx context.Context, dsn string) (Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("driverconn: parse dsn: %w", err)
	}
	conn, err := pgx.ConnectConfig(dialCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("driverconn: connect: %w", err)
	}
	return &PGXConn{conn: conn}, nil
}

// PGXConn wraps a single *pgx.Conn.
type PGXConn struct {
	conn *pgx.Conn
}

func (c *PGXConn) QueryRow(ctx context.Context, sql string, args ...interface{}) Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

func (c *PGXConn) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c *PGXConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *PGXConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// SQLState extracts the 5-character SQLSTATE from a pgconn.PgError,
// returning "" for errors that did not originate at the server (I/O
// timeouts, DNS failures, connection refused — these are classified
// as transient connection errors instead, never as a SQLSTATE class).
func (c *PGXConn) SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
