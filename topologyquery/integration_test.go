//go:build integration
// +build integration

package topologyquery

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
)

// stubAuroraCatalog installs plain-SQL stand-ins for the
// pg_catalog.aurora_* functions a real Aurora Postgres cluster
// provides, so the dialect's fixed queries can run unmodified against
// an ordinary postgres:16 container.
const stubAuroraCatalog = `
CREATE FUNCTION pg_catalog.aurora_db_instance_identifier() RETURNS text AS $$
	SELECT 'instance-1'::text
$$ LANGUAGE sql;

CREATE FUNCTION pg_catalog.aurora_replica_status() RETURNS TABLE (
	server_id text, session_id text, cpu double precision,
	replica_lag_in_msec double precision, last_update_timestamp timestamptz
) AS $$
	SELECT 'instance-1'::text, 'MASTER_SESSION_ID'::text, 5.0::double precision,
		0.0::double precision, now()
$$ LANGUAGE sql;
`

func setupAuroraLikePostgres(t *testing.T) (driverconn.Conn, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("auroracore_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	dialer := driverconn.PGXDialer{ConnectTimeout: 10 * time.Second}
	dsn := driverconn.BuildDSN(host, mappedPort.Int(), "test", "test", "auroracore_test", "disable")

	conn, err := dialer.Dial(ctx, dsn)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("dial: %v", err)
	}

	if _, err := conn.Exec(ctx, stubAuroraCatalog); err != nil {
		conn.Close(ctx)
		container.Terminate(ctx)
		t.Fatalf("install aurora catalog stubs: %v", err)
	}

	cleanup := func() {
		conn.Close(ctx)
		container.Terminate(ctx)
	}
	return conn, cleanup
}

func TestQueryTopologyAgainstRealPostgres(t *testing.T) {
	conn, cleanup := setupAuroraLikePostgres(t)
	defer cleanup()

	d, _ := dialect.For(dialect.AuroraPostgres)
	topo, err := QueryTopology(context.Background(), conn, d, "?.cluster-it.rds.amazonaws.com", 5432)
	if err != nil {
		t.Fatalf("QueryTopology: %v", err)
	}
	writer, ok := topo.Writer()
	if !ok {
		t.Fatalf("expected a writer in %+v", topo)
	}
	if writer.HostID != "instance-1" {
		t.Fatalf("expected instance-1, got %q", writer.HostID)
	}
	if writer.Host != "instance-1.cluster-it.rds.amazonaws.com" {
		t.Fatalf("expected endpoint template substitution, got %q", writer.Host)
	}
}

func TestGetNodeIDAgainstRealPostgres(t *testing.T) {
	conn, cleanup := setupAuroraLikePostgres(t)
	defer cleanup()

	d, _ := dialect.For(dialect.AuroraPostgres)
	id, err := GetNodeID(context.Background(), conn, d)
	if err != nil {
		t.Fatalf("GetNodeID: %v", err)
	}
	if id != "instance-1" {
		t.Fatalf("expected instance-1, got %q", id)
	}
}

func TestGetConnectionRoleAgainstRealPostgres(t *testing.T) {
	conn, cleanup := setupAuroraLikePostgres(t)
	defer cleanup()

	d, _ := dialect.For(dialect.AuroraPostgres)
	role, err := GetConnectionRole(context.Background(), conn, d)
	if err != nil {
		t.Fatalf("GetConnectionRole: %v", err)
	}
	// pg_is_in_recovery() is false on a freshly started primary, so
	// this connection reports as the writer.
	if role.String() != "WRITER" {
		t.Fatalf("expected WRITER role on a fresh primary, got %v", role)
	}
}
