package hostinfo

import (
	"testing"
	"time"
)

func TestVerifyWriterKeepsNewestWriter(t *testing.T) {
	now := time.Now()
	old := New("writer-old", 5432, RoleWriter, 0)
	old.LastUpdate = now.Add(-time.Minute)
	fresh := New("writer-new", 5432, RoleWriter, 0)
	fresh.LastUpdate = now
	reader := New("reader-a", 5432, RoleReader, 10)

	got := VerifyWriter(Topology{reader, old, fresh})
	writer, ok := got.Writer()
	if !ok {
		t.Fatal("expected a writer in canonicalized topology")
	}
	if writer.HostID != "writer-new" {
		t.Fatalf("expected newest writer to survive, got %q", writer.HostID)
	}
	if len(got.Readers()) != 1 {
		t.Fatalf("expected exactly one reader, got %d", len(got.Readers()))
	}
}

func TestVerifyWriterNoWriter(t *testing.T) {
	reader := New("reader-a", 5432, RoleReader, 10)
	got := VerifyWriter(Topology{reader})
	if len(got) != 0 {
		t.Fatalf("expected empty topology when no writer present, got %v", got)
	}
}

func TestVerifyWriterIdempotent(t *testing.T) {
	now := time.Now()
	writer := New("writer-a", 5432, RoleWriter, 0)
	writer.LastUpdate = now
	reader := New("reader-a", 5432, RoleReader, 10)

	once := VerifyWriter(Topology{reader, writer})
	twice := VerifyWriter(once)
	if !once.Equal(twice) {
		t.Fatalf("verify_writer not idempotent: %v != %v", once, twice)
	}
}
