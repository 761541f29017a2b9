package config

import (
	"testing"

	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/failover"
)

func TestFromAttributesAppliesKnownKeysAndDefaults(t *testing.T) {
	opt, err := FromAttributes(map[string]string{
		"SERVER":        "writer.cluster-x.us-east-1.rds.amazonaws.com",
		"PORT":          "5432",
		"DATABASE":      "app",
		"UID":           "app_user",
		"PWD":           "secret",
		"FAILOVER_MODE": "STRICT_WRITER",
		"X_CUSTOM_FLAG": "1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Server != "writer.cluster-x.us-east-1.rds.amazonaws.com" || opt.Port != 5432 {
		t.Fatalf("unexpected server/port: %+v", opt)
	}
	if opt.FailoverMode != failover.ModeStrictWriter {
		t.Fatalf("expected STRICT_WRITER, got %v", opt.FailoverMode)
	}
	if opt.TopologyRefreshRateMs != 30_000 {
		t.Fatalf("expected default topology refresh rate to survive, got %d", opt.TopologyRefreshRateMs)
	}
	if opt.Passthrough["X_CUSTOM_FLAG"] != "1" {
		t.Fatalf("expected unknown key to be preserved in Passthrough, got %+v", opt.Passthrough)
	}
	if opt.DatabaseDialect != dialect.AuroraPostgres {
		t.Fatalf("expected default dialect, got %v", opt.DatabaseDialect)
	}
}

func TestFromAttributesRejectsMalformedInteger(t *testing.T) {
	_, err := FromAttributes(map[string]string{"PORT": "not-a-number"})
	if err == nil {
		t.Fatal("expected an error for a malformed PORT value")
	}
}

func TestValidateRejectsMissingServer(t *testing.T) {
	opt := Defaults()
	opt.Port = 5432
	opt.Database = "app"
	opt.Username = "app_user"
	if err := opt.Validate(); err == nil {
		t.Fatal("expected validation to fail without a SERVER value")
	}
}

func TestValidateAcceptsACompleteOptions(t *testing.T) {
	opt := Defaults()
	opt.Server = "writer.cluster-x.us-east-1.rds.amazonaws.com"
	opt.Port = 5432
	opt.Database = "app"
	opt.Username = "app_user"
	if err := opt.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
