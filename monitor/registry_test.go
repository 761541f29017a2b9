package monitor

import "testing"

type fakeMonitor struct {
	stopped chan struct{}
}

func (f *fakeMonitor) Stop() {
	close(f.stopped)
}

func TestRegistryAcquireCreatesOnce(t *testing.T) {
	r := NewRegistry[*fakeMonitor]()
	created := 0
	create := func() *fakeMonitor {
		created++
		return &fakeMonitor{stopped: make(chan struct{})}
	}

	m1 := r.Acquire("cluster-a", create)
	m2 := r.Acquire("cluster-a", create)
	if m1 != m2 {
		t.Fatal("expected the same monitor instance for repeated Acquire")
	}
	if created != 1 {
		t.Fatalf("expected exactly 1 creation, got %d", created)
	}
	if r.RefCount("cluster-a") != 2 {
		t.Fatalf("expected refcount 2, got %d", r.RefCount("cluster-a"))
	}
}

func TestRegistryReleaseStopsAtZero(t *testing.T) {
	r := NewRegistry[*fakeMonitor]()
	create := func() *fakeMonitor { return &fakeMonitor{stopped: make(chan struct{})} }

	m := r.Acquire("cluster-a", create)
	r.Acquire("cluster-a", create)

	r.Release("cluster-a")
	select {
	case <-m.stopped:
		t.Fatal("expected monitor to still be running with refcount 1")
	default:
	}

	r.Release("cluster-a")
	select {
	case <-m.stopped:
	default:
		t.Fatal("expected monitor to be stopped once refcount reaches 0")
	}
	if r.RefCount("cluster-a") != 0 {
		t.Fatal("expected entry to be erased")
	}
	if r.Len() != 0 {
		t.Fatal("expected registry to be empty")
	}
}

func TestRegistryReleaseUnknownKeyIsNoop(t *testing.T) {
	r := NewRegistry[*fakeMonitor]()
	r.Release("missing") // must not panic
}
