package monitor

import (
	"context"
	"time"

	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/topologyquery"
)

// dial opens a fresh connection to host using the monitor's configured
// Dialer and DSN builder.
func (m *ClusterTopologyMonitor) dial(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error) {
	port := host.Port
	if port <= 0 || port == hostinfo.NoPort {
		port = m.cfg.Port
	}
	dsn := m.cfg.DSN(host.Host, port)
	return m.cfg.Dialer.Dial(ctx, dsn)
}

// nodeMonitorLoop is the per-host goroutine spawned while the CTM is
// in Panic mode. It repeatedly asks its host "are you the writer?";
// the first to get a yes hands its live connection to the main loop
// through writerElected and returns without closing it. Every other
// node settles into the reader role, with exactly one of them (the
// first to claim it via readerWorkerTaken) also keeping the
// latestKnownTopology it discovers current so the eventual writer election
// can be merged with a fresh reader list instead of a stale one.
func (m *ClusterTopologyMonitor) nodeMonitorLoop(ctx context.Context, host hostinfo.HostInfo) {
	var conn driverconn.Conn
	defer func() {
		if conn != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			conn.Close(closeCtx)
			cancel()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if conn == nil {
			c, err := m.dial(ctx, host)
			if err != nil {
				if !sleepOrDone(ctx, ThreadSleep) {
					return
				}
				continue
			}
			conn = c
		}

		writerID, err := topologyquery.GetWriterID(ctx, conn, m.cfg.Dialect)
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			conn.Close(closeCtx)
			cancel()
			conn = nil
			if !sleepOrDone(ctx, ThreadSleep) {
				return
			}
			continue
		}

		if writerID != "" {
			elected := conn
			conn = nil // ownership transferred below, defer must not close it
			select {
			case m.writerElected <- electedWriter{conn: elected, host: withRole(host, hostinfo.RoleWriter)}:
			default:
				// another node monitor already won the election.
				closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				elected.Close(closeCtx)
				cancel()
			}
			return
		}

		if m.readerWorkerTaken.CompareAndSwap(false, true) {
			m.readerThreadFetchTopology(ctx, conn)
			conn = nil
			return
		}

		if !sleepOrDone(ctx, ThreadSleep) {
			return
		}
	}
}

// readerThreadFetchTopology is run by exactly one node monitor per
// panic episode: it keeps the reader-side topology current so the
// writer election has a fresh list of readers to merge against.
func (m *ClusterTopologyMonitor) readerThreadFetchTopology(ctx context.Context, conn driverconn.Conn) {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		conn.Close(closeCtx)
		cancel()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		topo, err := topologyquery.QueryTopology(ctx, conn, m.cfg.Dialect, m.endpointTemplateOrHost(), m.cfg.Port)
		if err == nil && len(topo) > 0 {
			w, hasWriter := topo.Writer()

			m.mu.Lock()
			// Corrected from the source driver's ReaderThreadFetchTopology,
			// which set writer_changed_ on an *equality* check against the
			// previously observed writer id — the inverse of "changed".
			// This tracks an actual transition instead.
			writerChanged := hasWriter && w.HostID != m.lastKnownWriterHostID
			m.latestKnownTopology = topo.Clone()
			if hasWriter {
				m.lastKnownWriterHostID = w.HostID
			}
			m.mu.Unlock()

			if writerChanged {
				m.publish(hostinfo.VerifyWriter(topo))
			}
		}

		if !sleepOrDone(ctx, ThreadSleep) {
			return
		}
	}
}

func withRole(h hostinfo.HostInfo, role hostinfo.Role) hostinfo.HostInfo {
	h.Role = role
	return h
}

// sleepOrDone waits for d or ctx cancellation, reporting false if the
// context ended first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
