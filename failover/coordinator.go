// Package failover implements the request-path Failover Coordinator:
// on a network-classified SQLSTATE it refreshes the cluster topology,
// builds a mode-filtered candidate list, and reconnects to the
// highest-weight (least loaded) candidate still standing.
package failover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/auroralink/wrapper-core/auroraerrors"
	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/selector"
)

// Mode selects which role the coordinator targets after a failover.
type Mode string

const (
	ModeStrictWriter   Mode = "STRICT_WRITER"
	ModeStrictReader   Mode = "STRICT_READER"
	ModeReaderOrWriter Mode = "READER_OR_WRITER"
)

// DefaultTimeout is failover_timeout_ms's default.
const DefaultTimeout = 30 * time.Second

// TopologyRefresher is the subset of *monitor.ClusterTopologyMonitor
// the coordinator needs, kept as an interface so it can be driven by
// a fake in tests without importing the monitor package.
type TopologyRefresher interface {
	ForceRefresh(ctx context.Context, verifyWriter bool, timeout time.Duration) (hostinfo.Topology, error)
}

// Connector is the next link in the plugin chain: the coordinator
// never opens a connection itself, it always hands the chosen host to
// the next plugin's Connect.
type Connector interface {
	Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error)
}

// Coordinator implements the Failover Coordinator plugin.
type Coordinator struct {
	Mode        Mode
	Timeout     time.Duration
	Monitor     TopologyRefresher
	Next        Connector
	Selector    selector.Strategy
	DownTracker *DownHostTracker
	Logger      *slog.Logger

	mu          sync.Mutex
	currentHost hostinfo.HostInfo
}

// New builds a Coordinator, applying the default timeout, a
// highest-weight candidate selector, and a fresh DownHostTracker if
// unset.
func New(mode Mode, monitorSrc TopologyRefresher, next Connector) *Coordinator {
	return &Coordinator{
		Mode:        mode,
		Timeout:     DefaultTimeout,
		Monitor:     monitorSrc,
		Next:        next,
		Selector:    selector.HighestWeight{},
		DownTracker: NewDownHostTracker(DefaultDownHostCacheSize, DefaultDownHostTTL),
		Logger:      slog.Default(),
	}
}

// ShouldFailover reports whether a SQLSTATE returned by the downstream
// Execute call warrants entering the failover algorithm, per spec.md
// §4.6: any SQLSTATE the dialect classifies as a network error.
func ShouldFailover(d dialect.Dialect, sqlState string) bool {
	return sqlState != "" && d.IsNetworkError(sqlState)
}

// Connect makes the Coordinator itself a chain link: a normal connect
// simply passes through to the next plugin and records the resulting
// host, since failover only triggers reactively, on a subsequently
// observed network-classified SQLSTATE (via Failover).
func (c *Coordinator) Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error) {
	conn, err := c.Next.Connect(ctx, host)
	if err != nil {
		c.DownTracker.MarkDown(host.HostID)
		return nil, err
	}
	c.DownTracker.ClearDown(host.HostID)
	c.mu.Lock()
	c.currentHost = host
	c.mu.Unlock()
	return conn, nil
}

// CurrentHost reports the host this coordinator most recently
// connected (or failed over) to.
func (c *Coordinator) CurrentHost() hostinfo.HostInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentHost
}

// Failover runs the bounded candidate-iteration algorithm: force a
// verified topology refresh, filter it by Mode, and try each
// candidate in highest-weight order until one connects or the budget
// is exhausted.
func (c *Coordinator) Failover(ctx context.Context) (driverconn.Conn, hostinfo.HostInfo, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	topo, err := c.Monitor.ForceRefresh(ctx, true, time.Until(deadline))
	if err != nil {
		return nil, hostinfo.HostInfo{}, &auroraerrors.FailoverError{Mode: string(c.Mode), Attempts: 0, LastErr: err}
	}

	working := c.candidates(topo)
	if len(working) == 0 {
		return nil, hostinfo.HostInfo{}, &auroraerrors.FailoverError{Mode: string(c.Mode), Attempts: 0, LastErr: auroraerrors.ErrNoCandidate}
	}

	attempts := 0
	var lastErr error
	for len(working) > 0 && time.Now().Before(deadline) {
		// Readers go first: a writer in the list is picked only once no
		// reader candidate is left.
		pool := working
		if readers := hostinfo.Topology(working).Readers(); len(readers) > 0 {
			pool = readers
		}
		host, err := c.Selector.Select(pool)
		if err != nil {
			lastErr = err
			break
		}
		attempts++

		connCtx, cancel := context.WithDeadline(ctx, deadline)
		conn, err := c.Next.Connect(connCtx, host)
		cancel()
		if err == nil {
			c.Logger.Info("failover succeeded", "mode", c.Mode, "host", host.HostPortPair(), "attempts", attempts)
			c.DownTracker.ClearDown(host.HostID)
			c.mu.Lock()
			c.currentHost = host
			c.mu.Unlock()
			return conn, host, nil
		}

		c.Logger.Warn("failover candidate unreachable, marking down", "mode", c.Mode, "host", host.HostPortPair(), "error", err)
		c.DownTracker.MarkDown(host.HostID)
		lastErr = err
		working = removeHost(working, host)
	}

	return nil, hostinfo.HostInfo{}, &auroraerrors.FailoverError{Mode: string(c.Mode), Attempts: attempts, LastErr: lastErr}
}

// candidates builds the mode-filtered candidate list from a fresh
// topology: STRICT_WRITER keeps only the writer, STRICT_READER keeps
// only readers, READER_OR_WRITER prefers readers with the writer
// appended as a fallback.
func (c *Coordinator) candidates(topo hostinfo.Topology) []hostinfo.HostInfo {
	var out []hostinfo.HostInfo
	switch c.Mode {
	case ModeStrictWriter:
		if w, ok := topo.Writer(); ok {
			out = []hostinfo.HostInfo{w}
		}
	case ModeStrictReader:
		out = topo.Readers()
	default: // ModeReaderOrWriter
		out = topo.Readers()
		if w, ok := topo.Writer(); ok {
			out = append(out, w)
		}
	}
	return c.excludeRecentlyDown(out)
}

// excludeRecentlyDown drops any candidate this coordinator marked down
// within DownTracker's TTL, unless doing so would leave zero
// candidates — a topology with only just-failed hosts is still worth
// retrying rather than failing outright.
func (c *Coordinator) excludeRecentlyDown(candidates []hostinfo.HostInfo) []hostinfo.HostInfo {
	if c.DownTracker == nil || len(candidates) == 0 {
		return candidates
	}
	out := make([]hostinfo.HostInfo, 0, len(candidates))
	for _, h := range candidates {
		if !c.DownTracker.IsDown(h.HostID) {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}

// removeHost returns candidates with host (by HostID) removed, the
// local-copy equivalent of "mark DOWN" since a downed host is never
// selected again within this failover attempt.
func removeHost(candidates []hostinfo.HostInfo, host hostinfo.HostInfo) []hostinfo.HostInfo {
	out := make([]hostinfo.HostInfo, 0, len(candidates))
	for _, h := range candidates {
		if h.HostID == host.HostID {
			continue
		}
		out = append(out, h)
	}
	return out
}
