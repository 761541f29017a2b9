package hostinfo

import "testing"

func TestDeriveClusterIDOverride(t *testing.T) {
	got := DeriveClusterID("my-override", "writer.cluster-abc123.us-east-1.rds.amazonaws.com")
	if got != "my-override" {
		t.Fatalf("got %q, want override to win", got)
	}
}

func TestDeriveClusterIDFromRDSPattern(t *testing.T) {
	got := DeriveClusterID("", "mydb.cluster-abc123.us-east-1.rds.amazonaws.com")
	if got != "mydb" {
		t.Fatalf("got %q, want %q", got, "mydb")
	}
	got = DeriveClusterID("", "mydb.cluster-ro-abc123.us-east-1.rds.amazonaws.com")
	if got != "mydb" {
		t.Fatalf("reader endpoint: got %q, want %q", got, "mydb")
	}
}

func TestDeriveClusterIDFallback(t *testing.T) {
	got := DeriveClusterID("", "some-custom-proxy.example.net")
	if got == "" {
		t.Fatal("expected a non-empty fallback cluster id")
	}
}
