package hostinfo

import "testing"

func TestFilterAllowedWins(t *testing.T) {
	f := NewFilter([]string{"host-a"}, []string{"host-a"}, "")
	a := New("host-a", 5432, RoleReader, 0)
	b := New("host-b", 5432, RoleReader, 0)
	if !f.Allows(a) {
		t.Error("expected allowed host to pass despite also being blocked")
	}
	if f.Allows(b) {
		t.Error("expected non-allowed host to be rejected when Allowed is non-empty")
	}
}

func TestFilterBlockedExcludesWritersForReaderEndpoint(t *testing.T) {
	f := NewFilter(nil, []string{"host-b"}, "READER")
	writer := New("host-a", 5432, RoleWriter, 0)
	reader := New("host-c", 5432, RoleReader, 0)
	blocked := New("host-b", 5432, RoleReader, 0)

	got := f.Apply([]HostInfo{writer, reader, blocked})
	if len(got) != 1 || got[0].HostID != "host-c" {
		t.Fatalf("expected only host-c to pass, got %v", got)
	}
}

func TestFilterAllowAllWhenEmpty(t *testing.T) {
	f := NewFilter(nil, nil, "")
	h := New("host-a", 5432, RoleReader, 0)
	if !f.Allows(h) {
		t.Error("expected empty filter to allow everything")
	}
}
