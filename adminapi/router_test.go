package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/limitless"
	"github.com/auroralink/wrapper-core/monitor"
)

type fakeClusterMonitor struct {
	snap monitor.Snapshot
}

func (f fakeClusterMonitor) Snapshot() monitor.Snapshot { return f.snap }

type fakeRouterSource struct {
	snap limitless.ServiceSnapshot
}

func (f fakeRouterSource) ServiceSnapshot() limitless.ServiceSnapshot { return f.snap }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(nil)
	t.Cleanup(s.Close)
	s.Clusters["cluster-a"] = fakeClusterMonitor{snap: monitor.Snapshot{
		ClusterID: "cluster-a",
		Mode:      "REGULAR",
		Topology: hostinfo.Topology{
			hostinfo.New("writer-1.cluster-a.rds.amazonaws.com", 5432, hostinfo.RoleWriter, 100),
		},
	}}
	s.Services["svc-a"] = fakeRouterSource{snap: limitless.ServiceSnapshot{
		ServiceKey: "svc-a",
		Routers: hostinfo.Topology{
			hostinfo.New("router-1.svc-a.rds.amazonaws.com", 5432, hostinfo.RoleReader, 80),
		},
		LastQuery: time.Now(),
	}}
	return s
}

func TestHealthEndpointReportsOK(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestClusterSnapshotReturnsKnownCluster(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clusters/cluster-a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got monitor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != "REGULAR" || len(got.Topology) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestClusterSnapshotUnknownClusterReturns404(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clusters/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListClustersAndServices(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var clusterIDs []string
	if err := json.Unmarshal(rec.Body.Bytes(), &clusterIDs); err != nil {
		t.Fatalf("decode clusters: %v", err)
	}
	if len(clusterIDs) != 1 || clusterIDs[0] != "cluster-a" {
		t.Fatalf("unexpected cluster list: %v", clusterIDs)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var serviceKeys []string
	if err := json.Unmarshal(rec.Body.Bytes(), &serviceKeys); err != nil {
		t.Fatalf("decode services: %v", err)
	}
	if len(serviceKeys) != 1 || serviceKeys[0] != "svc-a" {
		t.Fatalf("unexpected service list: %v", serviceKeys)
	}
}

func TestRateLimitRejectsBurstExceedingRequests(t *testing.T) {
	s := newTestServer(t)
	s.RateLimitPerMinute = 60
	s.RateLimitBurst = 2
	router := NewRouter(s)

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding burst, got %d", lastCode)
	}
}

func TestMetricsEndpointServesPrometheusExposition(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
