// Package limitless implements the Limitless Router Service: a
// background RouterMonitor that keeps a per-service pool of Aurora
// Limitless router endpoints fresh, and a RouterService that
// establishes connections through that pool, falling back to a direct
// query and a highest-weight retry loop when the pool is empty or
// round robin can't place the connection.
package limitless

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/selector"
)

// DefaultInterval is interval_ms's default: how often the monitor
// re-queries the router endpoint list, and how long establish_connection
// sleeps between direct-query retries.
const DefaultInterval = 7500 * time.Millisecond

// Mode controls when the monitor's first router-list query happens
// relative to the caller's first connect.
type Mode int

const (
	// ModeImmediate blocks the first connect until the monitor's
	// initial router query completes.
	ModeImmediate Mode = iota
	// ModeLazy starts the monitor without an initial query; the first
	// connect pays for it synchronously on its own side connection.
	ModeLazy
)

var errNoRouters = errors.New("limitless: no routers")

// Config parameterizes a RouterMonitor/RouterService pair.
type Config struct {
	ServiceKey string
	Dialect    dialect.Limitless
	Dialer     driverconn.Dialer
	DSN        func(host string, port int) string
	Port       int

	Mode             Mode
	Interval         time.Duration
	MaxRouterRetries int
	MaxConnectRetries int

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxRouterRetries <= 0 {
		c.MaxRouterRetries = 3
	}
	if c.MaxConnectRetries <= 0 {
		c.MaxConnectRetries = 3
	}
	if c.Port <= 0 && c.Dialect != nil {
		c.Port = c.Dialect.DefaultPort()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RouterMonitor owns a dedicated connection to the cluster and keeps
// the shared router list current. It implements monitor.Monitorable
// so it can be kept alive in a monitor.Registry keyed by ServiceKey.
type RouterMonitor struct {
	cfg Config

	listMu    sync.RWMutex
	list      hostinfo.Topology
	lastQuery time.Time

	readyOnce sync.Once
	ready     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRouterMonitor constructs a monitor for cfg. Immediate mode
// callers should call WaitReady after StartMonitor to block until the
// first list query has landed (or failed).
func NewRouterMonitor(cfg Config) *RouterMonitor {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &RouterMonitor{
		cfg:    cfg,
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// StartMonitor launches the background refresh loop.
func (m *RouterMonitor) StartMonitor() {
	go m.run()
}

// Stop implements monitor.Monitorable.
func (m *RouterMonitor) Stop() {
	m.cancel()
	<-m.done
}

// WaitReady blocks until the first router-list query has completed
// (successfully or not) or ctx is done. Only meaningful in Immediate
// mode; in Lazy mode it returns immediately once the monitor goroutine
// has started at all.
func (m *RouterMonitor) WaitReady(ctx context.Context) {
	select {
	case <-m.ready:
	case <-ctx.Done():
	}
}

// Snapshot returns the current router list.
func (m *RouterMonitor) Snapshot() hostinfo.Topology {
	m.listMu.RLock()
	defer m.listMu.RUnlock()
	return m.list.Clone()
}

func (m *RouterMonitor) run() {
	defer close(m.done)
	defer m.readyOnce.Do(func() { close(m.ready) })

	var conn driverconn.Conn
	if m.cfg.Mode == ModeImmediate {
		if c, err := m.dialSideConnection(); err == nil {
			conn = c
			if topo, qerr := m.queryRouters(conn); qerr == nil {
				m.warnIfEmpty(topo)
				m.replaceList(topo)
			}
		}
	}
	m.readyOnce.Do(func() { close(m.ready) })

	for {
		select {
		case <-m.ctx.Done():
			if conn != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				conn.Close(closeCtx)
				cancel()
			}
			return
		case <-time.After(m.cfg.Interval):
		}

		if conn == nil {
			c, err := m.dialSideConnection()
			if err != nil {
				continue
			}
			conn = c
		}

		topo, err := m.queryRouters(conn)
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			conn.Close(closeCtx)
			cancel()
			conn = nil
			continue
		}
		m.warnIfEmpty(topo)
		m.replaceList(topo)
	}
}

// warnIfEmpty logs the periodic-refresh "no routers" warning when a
// query succeeded but returned zero rows. Corrected from the source
// driver's monitoring thread, which logged this warning on every
// iteration regardless of whether the query actually came back empty —
// the inverse of the intended condition.
func (m *RouterMonitor) warnIfEmpty(topo hostinfo.Topology) {
	if len(topo) == 0 {
		m.cfg.Logger.Warn("limitless router monitor: query returned no routers", "service", m.cfg.ServiceKey)
	}
}

func (m *RouterMonitor) replaceList(topo hostinfo.Topology) {
	m.listMu.Lock()
	m.list = topo
	m.lastQuery = time.Now()
	m.listMu.Unlock()
}

// ServiceSnapshot is the read-only diagnostic projection adminapi
// serves for a router service: recomputed on each request, no
// independent lifecycle.
type ServiceSnapshot struct {
	ServiceKey string
	Routers    hostinfo.Topology
	LastQuery  time.Time
}

// ServiceSnapshot returns the current diagnostic projection of this
// router monitor.
func (m *RouterMonitor) ServiceSnapshot() ServiceSnapshot {
	m.listMu.RLock()
	defer m.listMu.RUnlock()
	return ServiceSnapshot{
		ServiceKey: m.cfg.ServiceKey,
		Routers:    m.list.Clone(),
		LastQuery:  m.lastQuery,
	}
}

func (m *RouterMonitor) dialSideConnection() (driverconn.Conn, error) {
	dsn := m.cfg.DSN("", m.cfg.Port)
	return m.cfg.Dialer.Dial(m.ctx, dsn)
}

// queryRouters runs the dialect's limitless router-endpoint query and
// turns (endpoint, load) rows into HostInfos using the limitless
// weight formula.
func (m *RouterMonitor) queryRouters(conn driverconn.Conn) (hostinfo.Topology, error) {
	rows, err := conn.Query(m.ctx, m.cfg.Dialect.LimitlessRouterEndpointQuery())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out hostinfo.Topology
	for rows.Next() {
		var endpoint string
		var load float64
		if err := rows.Scan(&endpoint, &load); err != nil {
			return nil, err
		}
		out = append(out, hostinfo.New(endpoint, m.cfg.Port, hostinfo.RoleReader, hostinfo.LimitlessWeight(load)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
