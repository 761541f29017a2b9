package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/auroralink/wrapper-core/adminapi"
	"github.com/auroralink/wrapper-core/cache"
	"github.com/auroralink/wrapper-core/config"
	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/failover"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/limitless"
	"github.com/auroralink/wrapper-core/logger"
	"github.com/auroralink/wrapper-core/metrics"
	"github.com/auroralink/wrapper-core/monitor"
	"github.com/auroralink/wrapper-core/plugin"
	"github.com/auroralink/wrapper-core/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

var serveFlags struct {
	server       string
	port         int
	database     string
	username     string
	password     string
	sslMode      string
	clusterID    string
	dialectName  string
	adminAddr    string
	failoverMode string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connectivity wrapper and its diagnostics surface",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.server, "server", "", "cluster writer/custom endpoint host (SERVER)")
	f.IntVar(&serveFlags.port, "port", 0, "database port (0 = dialect default)")
	f.StringVar(&serveFlags.database, "database", "", "database name")
	f.StringVar(&serveFlags.username, "username", "", "database user")
	f.StringVar(&serveFlags.password, "password", "", "database password")
	f.StringVar(&serveFlags.sslMode, "ssl-mode", "require", "sslmode connection attribute")
	f.StringVar(&serveFlags.clusterID, "cluster-id", "", "explicit cluster id override (derived from SERVER if empty)")
	f.StringVar(&serveFlags.dialectName, "dialect", string(dialect.AuroraPostgres), "DATABASE_DIALECT")
	f.StringVar(&serveFlags.adminAddr, "admin-addr", ":8090", "diagnostics HTTP listen address")
	f.StringVar(&serveFlags.failoverMode, "failover-mode", string(failover.ModeReaderOrWriter), "FAILOVER_MODE")
}

func runServe(_ *cobra.Command, _ []string) error {
	opt, err := buildOptions()
	if err != nil {
		return fmt.Errorf("auroracore: %w", err)
	}
	if err := opt.Validate(); err != nil {
		return fmt.Errorf("auroracore: invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: "info", Format: "json", Output: "stdout"})
	log = logger.FromContext(logger.WithClusterID(context.Background(), opt.ClusterID), log)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	d, ok := dialect.For(opt.DatabaseDialect)
	if !ok {
		return fmt.Errorf("auroracore: unsupported dialect %q", opt.DatabaseDialect)
	}

	dialer := driverconn.PGXDialer{ConnectTimeout: 10 * time.Second}
	dsn := func(host string, port int) string {
		return driverconn.BuildDSN(host, port, opt.Username, opt.Password, opt.Database, opt.SSLMode)
	}

	topologyCache := cache.New[string, hostinfo.Topology]()
	monitors := monitor.NewRegistry[*monitor.ClusterTopologyMonitor]()

	adminSrv := adminapi.NewServer(log)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go adminSrv.Hub.Run(hubCtx)

	seed := hostinfo.New(opt.Server, opt.Port, hostinfo.RoleWriter, hostinfo.DefaultWeight)

	ctm := monitors.Acquire(opt.ClusterID, func() *monitor.ClusterTopologyMonitor {
		cfg := monitor.Config{
			ClusterID:             opt.ClusterID,
			Dialect:               d,
			Dialer:                dialer,
			DSN:                   dsn,
			EndpointTemplate:      opt.HostPattern,
			Port:                  opt.Port,
			Seed:                  seed,
			RefreshRate:           opt.TopologyRefreshRate(),
			HighRefreshRate:       opt.TopologyHighRefreshRate(),
			IgnoreTopologyRequest: opt.IgnoreTopologyRequest(),
			Logger:                log,
			OnPublish: func(topo hostinfo.Topology) {
				m.RecordTopologyPublished(opt.ClusterID, false)
				adminSrv.Hub.Broadcast(adminapi.TopologyEvent{
					Type:      "topology_changed",
					ClusterID: opt.ClusterID,
					Data:      topo,
				})
			},
		}
		ctm := monitor.New(cfg, topologyCache)
		ctm.StartMonitor()
		return ctm
	})
	defer monitors.Release(opt.ClusterID)
	adminSrv.Clusters[opt.ClusterID] = ctm

	terminal := plugin.TerminalConnector{
		Dialer:      dialer,
		DSN:         dsn,
		RetryPolicy: terminalDialRetryPolicy(m, log),
	}

	coordinator := failover.New(opt.FailoverMode, ctm, terminal)
	coordinator.Timeout = opt.FailoverTimeout()
	coordinator.Logger = log

	var head plugin.Connector = coordinator

	if opt.EnableLimitless {
		limitlessDialect, ok := d.(dialect.Limitless)
		if !ok {
			return fmt.Errorf("auroracore: dialect %q does not support limitless routing", opt.DatabaseDialect)
		}
		routerMonitor := limitless.NewRouterMonitor(limitless.Config{
			ServiceKey: opt.ClusterID,
			Dialect:    limitlessDialect,
			Dialer:     dialer,
			DSN:        dsn,
			Port:       opt.Port,
			Mode:       limitlessModeFor(opt.LimitlessMode),
			Interval:   opt.LimitlessMonitorInterval(),
			Logger:     log,
		})
		routerMonitor.StartMonitor()
		if limitlessModeFor(opt.LimitlessMode) == limitless.ModeImmediate {
			waitCtx, cancel := context.WithTimeout(context.Background(), opt.LimitlessMonitorInterval()*2)
			routerMonitor.WaitReady(waitCtx)
			cancel()
		}
		defer routerMonitor.Stop()
		adminSrv.Services[opt.ClusterID] = routerMonitor

		routerService := limitless.NewRouterService(routerMonitor, head)
		head = &plugin.LimitlessPlugin{Service: routerService}
	}

	// The assembled chain is this module's primary export: an embedding
	// application calls chain.Connect per logical connection attempt.
	// This binary's own job is narrower — supervise the background
	// monitors that back the chain and serve the diagnostics surface
	// over them — so the chain itself is built (proving the wiring is
	// valid) but never driven here.
	chain := plugin.Chain{Head: head}
	log.Info("plugin chain assembled", "cluster_id", opt.ClusterID, "limitless_enabled", opt.EnableLimitless)
	_ = chain

	router := adminapi.NewRouter(adminSrv)
	defer adminSrv.Close()
	httpServer := &http.Server{Addr: serveFlags.adminAddr, Handler: router}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("diagnostics server starting", "addr", serveFlags.adminAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("diagnostics server failed", "error", err)
		}
	}()

	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildOptions() (config.Options, error) {
	attrs := map[string]string{}
	if serveFlags.server != "" {
		attrs["SERVER"] = serveFlags.server
	}
	if serveFlags.port > 0 {
		attrs["PORT"] = strconv.Itoa(serveFlags.port)
	}
	if serveFlags.database != "" {
		attrs["DATABASE"] = serveFlags.database
	}
	if serveFlags.username != "" {
		attrs["UID"] = serveFlags.username
	}
	if serveFlags.password != "" {
		attrs["PWD"] = serveFlags.password
	}
	attrs["SSL_MODE"] = serveFlags.sslMode
	attrs["DATABASE_DIALECT"] = serveFlags.dialectName
	attrs["FAILOVER_MODE"] = serveFlags.failoverMode

	opt, err := config.FromAttributes(attrs)
	if err != nil {
		return config.Options{}, err
	}
	if opt.Port == 0 {
		if d, ok := dialect.For(opt.DatabaseDialect); ok {
			opt.Port = d.DefaultPort()
		}
	}
	if serveFlags.clusterID != "" {
		opt.ClusterID = serveFlags.clusterID
	} else {
		opt.ClusterID = hostinfo.DeriveClusterID("", opt.Server)
	}
	return opt, nil
}

func limitlessModeFor(m config.LimitlessMode) limitless.Mode {
	if m == config.LimitlessImmediate {
		return limitless.ModeImmediate
	}
	return limitless.ModeLazy
}

func terminalDialRetryPolicy(m *metrics.Metrics, log *slog.Logger) *resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	policy.OperationName = "terminal_dial"
	policy.Metrics = m
	policy.Logger = log
	return policy
}
