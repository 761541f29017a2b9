package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auroralink/wrapper-core/cache"
	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/topologyquery"
)

// Timing constants named directly after the original driver's,
// carried as spec.md §4.5/§5 requires.
const (
	ThreadSleep            = 100 * time.Millisecond
	TopologyUpdateWait      = time.Second
	DefaultRefreshRate      = 30 * time.Second
	DefaultHighRefreshRate  = 100 * time.Millisecond
	DefaultHighRefreshAfter = 30 * time.Second
	DefaultIgnoreWindow     = 30 * time.Second
)

// Mode is the CTM's two-state machine.
type Mode int

const (
	ModePanic Mode = iota
	ModeRegular
)

// Config parameterizes a single ClusterTopologyMonitor instance.
type Config struct {
	ClusterID        string
	Dialect          dialect.Dialect
	Dialer           driverconn.Dialer
	DSN              func(host string, port int) string
	EndpointTemplate string // HOST_PATTERN; "" means Seed.Host is used as the template
	Port             int    // 0 => Dialect.DefaultPort()
	Seed             hostinfo.HostInfo

	RefreshRate           time.Duration
	HighRefreshRate       time.Duration
	HighRefreshAfterPanic time.Duration
	IgnoreTopologyRequest time.Duration

	Logger *slog.Logger

	// OnPublish, if set, is called after every topology publish (both
	// the regular-mode refresh and a panic-mode writer election),
	// letting a caller (adminapi's websocket hub) push a change
	// notification without this package depending on adminapi.
	OnPublish func(hostinfo.Topology)
}

func (c *Config) applyDefaults() {
	if c.RefreshRate <= 0 {
		c.RefreshRate = DefaultRefreshRate
	}
	if c.HighRefreshRate <= 0 {
		c.HighRefreshRate = DefaultHighRefreshRate
	}
	if c.HighRefreshAfterPanic <= 0 {
		c.HighRefreshAfterPanic = DefaultHighRefreshAfter
	}
	if c.IgnoreTopologyRequest <= 0 {
		c.IgnoreTopologyRequest = DefaultIgnoreWindow
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Port <= 0 && c.Dialect != nil {
		c.Port = c.Dialect.DefaultPort()
	}
}

type electedWriter struct {
	conn driverconn.Conn
	host hostinfo.HostInfo
}

// ClusterTopologyMonitor is the long-lived per-ClusterId background
// engine described in spec.md §4.5: it alternates between Regular
// mode (polling a held writer connection) and Panic mode (racing
// per-host node monitors to discover a new writer), publishing every
// canonicalized topology into a shared sliding-TTL cache.
type ClusterTopologyMonitor struct {
	cfg   Config
	cache *cache.Cache[string, hostinfo.Topology]

	mu                       sync.Mutex
	mode                     Mode
	writerConn               driverconn.Conn
	writerHost               hostinfo.HostInfo
	isWriterConnection       bool
	ignoreTopologyRequestEnd time.Time
	highRefreshEndTime       time.Time
	latestKnownTopology      hostinfo.Topology
	lastKnownWriterHostID    string
	panicSince               time.Time

	requestUpdate   chan struct{}
	topologyUpdated *broadcaster

	ctx       context.Context
	cancel    context.CancelFunc
	doneCh    chan struct{}
	stopOnce  sync.Once

	nodeCtx    context.Context
	nodeCancel context.CancelFunc
	nodeWG     sync.WaitGroup

	readerWorkerTaken atomic.Bool
	writerElected     chan electedWriter
}

// New constructs a ClusterTopologyMonitor sharing topologyCache with
// every other CTM keyed by ClusterId in the same process.
func New(cfg Config, topologyCache *cache.Cache[string, hostinfo.Topology]) *ClusterTopologyMonitor {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &ClusterTopologyMonitor{
		cfg:             cfg,
		cache:           topologyCache,
		mode:            ModePanic,
		panicSince:      time.Now(),
		requestUpdate:   make(chan struct{}, 1),
		topologyUpdated: newBroadcaster(),
		ctx:             ctx,
		cancel:          cancel,
		doneCh:          make(chan struct{}),
		writerElected:   make(chan electedWriter, 1),
	}
}

// StartMonitor launches the background main loop goroutine. Safe to
// call once per CTM instance.
func (m *ClusterTopologyMonitor) StartMonitor() {
	go m.run()
}

// Stop implements monitor.Monitorable: it cooperatively shuts the
// main loop and any live node monitors down and waits for them to
// exit before closing the held writer connection.
func (m *ClusterTopologyMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		<-m.doneCh
		m.stopNodeMonitors()

		m.mu.Lock()
		conn := m.writerConn
		m.writerConn = nil
		m.mu.Unlock()
		if conn != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			conn.Close(closeCtx)
			cancel()
		}
	})
}

func (m *ClusterTopologyMonitor) run() {
	defer close(m.doneCh)
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}
		if m.inPanicMode() {
			m.handlePanicMode()
		} else {
			m.handleRegularMode()
		}
	}
}

func (m *ClusterTopologyMonitor) inPanicMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode == ModePanic
}

func (m *ClusterTopologyMonitor) getWriterConn() driverconn.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writerConn
}

// handleRegularMode runs one topology-query/publish/wait cycle while
// a verified writer connection is held, transitioning to Panic on any
// query failure or a topology with no discoverable writer.
func (m *ClusterTopologyMonitor) handleRegularMode() {
	conn := m.getWriterConn()
	if conn == nil {
		m.enterPanic()
		return
	}

	topo, err := topologyquery.QueryTopology(m.ctx, conn, m.cfg.Dialect, m.endpointTemplateOrHost(), m.cfg.Port)
	if err != nil || len(topo) == 0 {
		m.cfg.Logger.Warn("topology query failed or returned no rows, entering panic mode", "cluster_id", m.cfg.ClusterID, "error", err)
		m.closeWriterAndEnterPanic()
		return
	}

	canon := hostinfo.VerifyWriter(topo)
	if len(canon) == 0 {
		m.cfg.Logger.Warn("topology had no writer, entering panic mode", "cluster_id", m.cfg.ClusterID)
		m.closeWriterAndEnterPanic()
		return
	}

	m.publish(canon)
	m.delayMain(m.inHighRefreshWindow())
}

func (m *ClusterTopologyMonitor) closeWriterAndEnterPanic() {
	m.mu.Lock()
	conn := m.writerConn
	m.writerConn = nil
	m.isWriterConnection = false
	m.mode = ModePanic
	m.panicSince = time.Now()
	m.mu.Unlock()
	if conn != nil {
		conn.Close(m.ctx)
	}
}

func (m *ClusterTopologyMonitor) enterPanic() {
	m.mu.Lock()
	m.mode = ModePanic
	m.panicSince = time.Now()
	m.mu.Unlock()
}

// handlePanicMode spawns (or reuses) per-host node monitors and
// blocks until one of them elects a writer or the monitor is stopped.
func (m *ClusterTopologyMonitor) handlePanicMode() {
	m.initNodeMonitors()
	select {
	case <-m.ctx.Done():
		return
	case w := <-m.writerElected:
		m.onWriterElected(w)
	}
}

// candidateHosts returns the hosts node monitors should race against:
// the last known topology if one was ever published, else the seed.
func (m *ClusterTopologyMonitor) candidateHosts() []hostinfo.HostInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latestKnownTopology) > 0 {
		return m.latestKnownTopology.Clone()
	}
	return []hostinfo.HostInfo{m.cfg.Seed}
}

func (m *ClusterTopologyMonitor) initNodeMonitors() {
	m.nodeCtx, m.nodeCancel = context.WithCancel(m.ctx)
	m.readerWorkerTaken.Store(false)

	for _, h := range m.candidateHosts() {
		h := h
		m.nodeWG.Add(1)
		go func() {
			defer m.nodeWG.Done()
			m.nodeMonitorLoop(m.nodeCtx, h)
		}()
	}
}

func (m *ClusterTopologyMonitor) stopNodeMonitors() {
	if m.nodeCancel != nil {
		m.nodeCancel()
	}
	m.nodeWG.Wait()
}

func (m *ClusterTopologyMonitor) onWriterElected(w electedWriter) {
	m.stopNodeMonitors()

	now := time.Now()
	m.mu.Lock()
	m.writerConn = w.conn
	m.writerHost = w.host
	m.isWriterConnection = true
	m.mode = ModeRegular
	m.panicSince = time.Time{}
	m.ignoreTopologyRequestEnd = now.Add(m.cfg.IgnoreTopologyRequest)
	m.highRefreshEndTime = now.Add(m.cfg.HighRefreshAfterPanic)
	readers := m.latestKnownTopology.Readers()
	m.mu.Unlock()

	merged := mergeWriter(readers, w.host)
	m.publish(merged)
}

// mergeWriter builds a canonical topology from the readers discovered
// during panic mode and the newly elected writer, dropping any reader
// entry that happens to share the writer's host_id (a stale reading
// from just before the failover).
func mergeWriter(readers []hostinfo.HostInfo, writer hostinfo.HostInfo) hostinfo.Topology {
	out := make(hostinfo.Topology, 0, len(readers)+1)
	for _, r := range readers {
		if r.HostID == writer.HostID {
			continue
		}
		out = append(out, r)
	}
	out = append(out, writer)
	return out
}

func (m *ClusterTopologyMonitor) inHighRefreshWindow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Now().Before(m.highRefreshEndTime)
}

func (m *ClusterTopologyMonitor) endpointTemplateOrHost() string {
	if m.cfg.EndpointTemplate != "" {
		return m.cfg.EndpointTemplate
	}
	return m.cfg.Seed.Host
}

// delayMain waits for the next refresh tick, an explicit update
// request, or monitor shutdown — whichever comes first.
func (m *ClusterTopologyMonitor) delayMain(useHighRate bool) {
	rate := m.cfg.RefreshRate
	if useHighRate {
		rate = m.cfg.HighRefreshRate
	}
	select {
	case <-m.ctx.Done():
	case <-m.requestUpdate:
	case <-time.After(rate):
	}
}

// publish writes topo into the shared cache under this monitor's
// ClusterId and wakes every ForceRefresh waiter.
func (m *ClusterTopologyMonitor) publish(topo hostinfo.Topology) {
	m.mu.Lock()
	m.latestKnownTopology = topo.Clone()
	m.mu.Unlock()

	m.cache.Put(m.cfg.ClusterID, topo)
	m.topologyUpdated.broadcast()

	if m.cfg.OnPublish != nil {
		m.cfg.OnPublish(topo)
	}
}

// CachedTopology returns the last topology published for this
// monitor's cluster, or nil if none has been published yet.
func (m *ClusterTopologyMonitor) CachedTopology() hostinfo.Topology {
	topo, _ := m.cache.Get(m.cfg.ClusterID)
	return topo
}

// Snapshot is the read-only diagnostic projection adminapi serves: a
// DTO recomputed from the live monitor on every request, carrying no
// lifecycle of its own.
type Snapshot struct {
	ClusterID  string
	Mode       string
	Topology   hostinfo.Topology
	PanicSince time.Time
}

// Snapshot returns the current diagnostic projection of this monitor.
func (m *ClusterTopologyMonitor) Snapshot() Snapshot {
	m.mu.Lock()
	mode := m.mode
	panicSince := m.panicSince
	m.mu.Unlock()

	modeStr := "REGULAR"
	if mode == ModePanic {
		modeStr = "PANIC"
	}
	return Snapshot{
		ClusterID:  m.cfg.ClusterID,
		Mode:       modeStr,
		Topology:   m.CachedTopology(),
		PanicSince: panicSince,
	}
}
