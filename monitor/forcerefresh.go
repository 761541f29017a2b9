package monitor

import (
	"context"
	"time"

	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/topologyquery"
)

// ForceRefresh implements both overloads the original driver exposes:
// force_refresh(verify_writer) is ForceRefresh(ctx, verifyWriter, 0),
// a fire-and-forget nudge; force_refresh(verify_writer, timeout) is
// the blocking variant that waits up to timeout for a newer topology
// to be published. Calls inside the ignore window started by the most
// recent failover return the currently cached topology unchanged and
// do not perturb the main loop, so a caller that reacts to a
// connection error immediately after a failover doesn't cause a
// second, redundant one.
func (m *ClusterTopologyMonitor) ForceRefresh(ctx context.Context, verifyWriter bool, timeout time.Duration) (hostinfo.Topology, error) {
	m.mu.Lock()
	if time.Now().Before(m.ignoreTopologyRequestEnd) {
		m.mu.Unlock()
		return m.CachedTopology(), nil
	}

	var staleConn driverconn.Conn
	if verifyWriter {
		staleConn = m.writerConn
		m.writerConn = nil
		m.isWriterConnection = false
		m.mode = ModePanic
	}
	m.mu.Unlock()

	if staleConn != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		staleConn.Close(closeCtx)
		cancel()
	}

	snapshot := m.CachedTopology()
	m.requestUpdateNow()

	if timeout <= 0 {
		return m.CachedTopology(), nil
	}
	return m.waitForTopologyChange(ctx, snapshot, timeout)
}

// ForceRefreshWithConn is the overload used when the caller already
// holds a live connection to some node (e.g. right after reconnecting
// post-failover): if the monitor has no writer connection of its own
// yet, it runs the topology query directly over the caller's
// connection instead of tearing anything down and waiting on node
// monitors.
func (m *ClusterTopologyMonitor) ForceRefreshWithConn(ctx context.Context, conn driverconn.Conn, timeout time.Duration) (hostinfo.Topology, error) {
	m.mu.Lock()
	hasWriter := m.isWriterConnection
	m.mu.Unlock()

	if hasWriter {
		return m.ForceRefresh(ctx, true, timeout)
	}

	topo, err := topologyquery.QueryTopology(ctx, conn, m.cfg.Dialect, m.endpointTemplateOrHost(), m.cfg.Port)
	if err != nil {
		return nil, err
	}
	canon := hostinfo.VerifyWriter(topo)
	if len(canon) == 0 {
		return nil, nil
	}
	m.publish(canon)
	return canon, nil
}

func (m *ClusterTopologyMonitor) requestUpdateNow() {
	select {
	case m.requestUpdate <- struct{}{}:
	default:
	}
}

// waitForTopologyChange blocks until a topology unequal to snapshot is
// published, timeout elapses, or ctx is done — whichever comes first.
func (m *ClusterTopologyMonitor) waitForTopologyChange(ctx context.Context, snapshot hostinfo.Topology, timeout time.Duration) (hostinfo.Topology, error) {
	deadline := time.Now().Add(timeout)
	for {
		cur := m.CachedTopology()
		if !cur.Equal(snapshot) {
			return cur, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return cur, nil
		}
		wait := remaining
		if wait > TopologyUpdateWait {
			wait = TopologyUpdateWait
		}

		select {
		case <-ctx.Done():
			return m.CachedTopology(), ctx.Err()
		case <-m.topologyUpdated.wait():
		case <-time.After(wait):
		}
	}
}
