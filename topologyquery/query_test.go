package topologyquery

import (
	"context"
	"testing"

	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/driverconn/drivertest"
	"github.com/auroralink/wrapper-core/hostinfo"
)

func TestResolveHost(t *testing.T) {
	if got := ResolveHost("?.cluster-abc.us-east-1.rds.amazonaws.com", "instance-1"); got != "instance-1.cluster-abc.us-east-1.rds.amazonaws.com" {
		t.Fatalf("got %q", got)
	}
	if got := ResolveHost("fixed-endpoint.example.com", "instance-1"); got != "fixed-endpoint.example.com" {
		t.Fatalf("expected template with no placeholder to be used unchanged, got %q", got)
	}
}

func TestQueryTopology(t *testing.T) {
	d, _ := dialect.For(dialect.AuroraPostgres)
	conn := &drivertest.FakeConn{
		QueryFunc: func(ctx context.Context, sql string, args ...interface{}) (driverconn.Rows, error) {
			return &drivertest.FakeRows{Rows: [][]interface{}{
				{"instance-1", true, 10.0, 0.0},
				{"instance-2", false, 20.0, 5.0},
			}}, nil
		},
	}

	topo, err := QueryTopology(context.Background(), conn, d, "?.cluster-abc.rds.amazonaws.com", 5432)
	if err != nil {
		t.Fatal(err)
	}
	if len(topo) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(topo))
	}
	writer, ok := topo.Writer()
	if !ok || writer.HostID != "instance-1" {
		t.Fatalf("expected instance-1 as writer, got %+v ok=%v", writer, ok)
	}
	if writer.Host != "instance-1.cluster-abc.rds.amazonaws.com" {
		t.Fatalf("expected endpoint template substitution, got %q", writer.Host)
	}
}

func TestGetNodeID(t *testing.T) {
	conn := &drivertest.FakeConn{
		QueryRowFunc: func(ctx context.Context, sql string, args ...interface{}) driverconn.Row {
			return &drivertest.FakeRow{Values: []interface{}{"instance-1"}}
		},
	}
	d, _ := dialect.For(dialect.AuroraPostgres)
	id, err := GetNodeID(context.Background(), conn, d)
	if err != nil || id != "instance-1" {
		t.Fatalf("got %q %v", id, err)
	}
}

func TestGetConnectionRole(t *testing.T) {
	conn := &drivertest.FakeConn{
		QueryRowFunc: func(ctx context.Context, sql string, args ...interface{}) driverconn.Row {
			return &drivertest.FakeRow{Values: []interface{}{true}}
		},
	}
	d, _ := dialect.For(dialect.AuroraPostgres)
	role, err := GetConnectionRole(context.Background(), conn, d)
	if err != nil || role != hostinfo.RoleReader {
		t.Fatalf("got %v %v", role, err)
	}
}
