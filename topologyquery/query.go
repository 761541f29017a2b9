// Package topologyquery runs a dialect's fixed topology/writer-id/
// node-id/is-reader queries against an open driverconn.Conn and turns
// the raw rows into hostinfo values.
package topologyquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
)

// ReplaceChar is the placeholder substituted with a node id inside an
// endpoint template, e.g. "?.cluster-custom-abc123.us-east-1.rds.
// amazonaws.com" -> "instance-1.cluster-custom-abc123...".
const ReplaceChar = "?"

// ResolveHost substitutes nodeID into template. If template contains
// no ReplaceChar, the template is returned unchanged for every node
// (a fixed custom endpoint that fronts the whole cluster).
func ResolveHost(template, nodeID string) string {
	if !strings.Contains(template, ReplaceChar) {
		return template
	}
	return strings.Replace(template, ReplaceChar, nodeID, 1)
}

// QueryTopology runs d's topology query over conn and builds a
// Topology, deriving each row's HostInfo.Host by substituting the
// row's node id into endpointTemplate and using d's default port
// unless overridden by port.
func QueryTopology(ctx context.Context, conn driverconn.Conn, d dialect.Dialect, endpointTemplate string, port int) (hostinfo.Topology, error) {
	if port <= 0 {
		port = d.DefaultPort()
	}
	rows, err := conn.Query(ctx, d.TopologyQuery())
	if err != nil {
		return nil, fmt.Errorf("topologyquery: query topology: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var out hostinfo.Topology
	for rows.Next() {
		var nodeID string
		var isWriter bool
		var cpu float64
		var lagMs float64
		if err := rows.Scan(&nodeID, &isWriter, &cpu, &lagMs); err != nil {
			return nil, fmt.Errorf("topologyquery: scan topology row: %w", err)
		}
		role := hostinfo.RoleReader
		if isWriter {
			role = hostinfo.RoleWriter
		}
		weight := hostinfo.AuroraWeight(lagMs, cpu)
		h := hostinfo.New(ResolveHost(endpointTemplate, nodeID), port, role, weight)
		h.LastUpdate = now
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topologyquery: iterate topology rows: %w", err)
	}
	return out, nil
}

// GetWriterID runs d's writer-id query, returning "" if the connected
// node is not currently the writer (no matching row).
func GetWriterID(ctx context.Context, conn driverconn.Conn, d dialect.Dialect) (string, error) {
	var writerID string
	row := conn.QueryRow(ctx, d.WriterIDQuery())
	if err := row.Scan(&writerID); err != nil {
		return "", nil
	}
	return writerID, nil
}

// GetNodeID runs d's node-id query against conn, identifying which
// physical node conn is attached to.
func GetNodeID(ctx context.Context, conn driverconn.Conn, d dialect.Dialect) (string, error) {
	var nodeID string
	row := conn.QueryRow(ctx, d.NodeIDQuery())
	if err := row.Scan(&nodeID); err != nil {
		return "", fmt.Errorf("topologyquery: get node id: %w", err)
	}
	return nodeID, nil
}

// GetConnectionRole runs d's is-reader query against conn.
func GetConnectionRole(ctx context.Context, conn driverconn.Conn, d dialect.Dialect) (hostinfo.Role, error) {
	var isReader bool
	row := conn.QueryRow(ctx, d.IsReaderQuery())
	if err := row.Scan(&isReader); err != nil {
		return hostinfo.RoleUnknown, fmt.Errorf("topologyquery: get connection role: %w", err)
	}
	if isReader {
		return hostinfo.RoleReader, nil
	}
	return hostinfo.RoleWriter, nil
}
