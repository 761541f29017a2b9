package adminapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auroralink/wrapper-core/limitless"
	"github.com/auroralink/wrapper-core/logger"
	"github.com/auroralink/wrapper-core/monitor"
)

// ClusterMonitor is the subset of *monitor.ClusterTopologyMonitor this
// surface reads, kept as an interface so it's testable without a real
// monitor goroutine running.
type ClusterMonitor interface {
	Snapshot() monitor.Snapshot
}

// RouterSource is the subset of *limitless.RouterMonitor this surface
// reads.
type RouterSource interface {
	ServiceSnapshot() limitless.ServiceSnapshot
}

// Server holds everything NewRouter needs to build the diagnostics
// surface: read-only references to every live cluster monitor and
// limitless router service this process is running.
type Server struct {
	Clusters map[string]ClusterMonitor
	Services map[string]RouterSource
	Hub      *Hub
	Logger   *slog.Logger

	// RateLimitPerMinute/RateLimitBurst bound NewRouter's per-client
	// request rate; zero means DefaultRateLimitPerMinute/DefaultRateLimitBurst.
	RateLimitPerMinute int
	RateLimitBurst     int

	stopRateLimiter func()
}

// NewServer constructs a Server with its own Hub. Call Hub.Run in a
// goroutine, then pass this Server to NewRouter.
func NewServer(base *slog.Logger) *Server {
	if base == nil {
		base = slog.Default()
	}
	return &Server{
		Clusters: make(map[string]ClusterMonitor),
		Services: make(map[string]RouterSource),
		Hub:      NewHub(base),
		Logger:   base,
	}
}

// NewRouter assembles the read-only diagnostics HTTP surface:
//
//	GET  /healthz                     liveness probe
//	GET  /metrics                      Prometheus scrape endpoint
//	GET  /api/v1/clusters              list monitored cluster ids
//	GET  /api/v1/clusters/{id}         monitor.Snapshot for one cluster
//	GET  /api/v1/services              list limitless service keys
//	GET  /api/v1/services/{id}         limitless.ServiceSnapshot for one service
//	GET  /ws/topology                  websocket push of TopologyEvents
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(logger.Middleware(s.Logger))

	rl, stop := rateLimitMiddleware(s.RateLimitPerMinute, s.RateLimitBurst)
	s.stopRateLimiter = stop
	r.Use(rl)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/clusters", s.handleListClusters).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/clusters/{id}", s.handleClusterSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/services", s.handleListServices).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/services/{id}", s.handleServiceSnapshot).Methods(http.MethodGet)

	r.HandleFunc("/ws/topology", s.Hub.HandleWebSocket).Methods(http.MethodGet)

	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   "auroracore",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0, len(s.Clusters))
	for id := range s.Clusters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleClusterSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cm, ok := s.Clusters[id]
	if !ok {
		http.Error(w, "cluster not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cm.Snapshot())
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	keys := make([]string, 0, len(s.Services))
	for k := range s.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleServiceSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rs, ok := s.Services[id]
	if !ok {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rs.ServiceSnapshot())
}

// Close stops the rate limiter's background cleanup goroutine started
// by NewRouter. Safe to call even if NewRouter was never called.
func (s *Server) Close() {
	if s.stopRateLimiter != nil {
		s.stopRateLimiter()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
