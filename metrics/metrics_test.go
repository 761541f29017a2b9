package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordAttemptIncrementsCounterAndObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordAttempt("failover_connect", "success", 0.02)
	m.RecordAttempt("failover_connect", "failure", 0.5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counter := findFamily(t, families, "auroracore_resilience_retry_attempts_total")
	if got := sumCounter(counter); got != 2 {
		t.Fatalf("expected 2 total attempts recorded, got %v", got)
	}
}

func TestRecordBackoffObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordBackoff("limitless_connect", 0.25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	findFamily(t, families, "auroracore_resilience_retry_backoff_seconds")
}

func TestRecordFailoverAndTopologyPublished(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFailover("READER_OR_WRITER", true)
	m.RecordFailover("READER_OR_WRITER", false)
	m.RecordTopologyPublished("cluster-x", false)
	m.RecordTopologyPublished("cluster-x", true)
	m.SetLimitlessRouterCount("svc-a", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	findFamily(t, families, "auroracore_failover_total")
	findFamily(t, families, "auroracore_monitor_topology_published_total")
	findFamily(t, families, "auroracore_monitor_mode")
	findFamily(t, families, "auroracore_limitless_router_count")
}

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

func sumCounter(f *dto.MetricFamily) float64 {
	var total float64
	for _, m := range f.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}
