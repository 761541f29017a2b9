package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupWriterDefaultsToStdoutWithoutFilename(t *testing.T) {
	w := SetupWriter(Config{Output: "file"})
	if w != os.Stdout {
		t.Fatal("expected os.Stdout when no filename is set")
	}
}

func TestWithClusterIDAndRequestIDAnnotateContext(t *testing.T) {
	ctx := WithClusterID(context.Background(), "cluster-x")
	ctx = WithRequestID(ctx, "req_1")
	if v, _ := ctx.Value(ClusterIDKey).(string); v != "cluster-x" {
		t.Fatalf("expected cluster id to round-trip, got %q", v)
	}
	if v, _ := ctx.Value(RequestIDKey).(string); v != "req_1" {
		t.Fatalf("expected request id to round-trip, got %q", v)
	}
}
