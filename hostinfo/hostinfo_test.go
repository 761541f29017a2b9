package hostinfo

import "testing"

func TestHostIDDerivation(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"writer-a.cluster.example", "writer-a"},
		{"node-b", "node-b"},
		{"a.b.c.example.com", "a"},
	}
	for _, c := range cases {
		h := New(c.host, 5432, RoleReader, 0)
		if h.HostID != c.want {
			t.Errorf("hostID(%q) = %q, want %q", c.host, h.HostID, c.want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := New("host-a", 5432, RoleWriter, 10)
	b := New("host-a", 5432, RoleWriter, 10)
	if !a.Equal(b) {
		t.Fatal("expected equal hosts")
	}
	c := New("host-a", 5432, RoleWriter, 11)
	if a.Equal(c) {
		t.Fatal("expected unequal weight to break equality")
	}
}

func TestHostPortPairNoPort(t *testing.T) {
	h := New("router-1", NoPort, RoleUnknown, 0)
	if got := h.HostPortPair(); got != "router-1:?" {
		t.Fatalf("got %q", got)
	}
}

func TestNewHostIsUpByDefault(t *testing.T) {
	h := New("host-a", 5432, RoleReader, 0)
	if !h.IsUp() {
		t.Fatal("expected fresh host to be up")
	}
}
