package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
	if cfg.Settlement.FeeBps != 300 {
		t.Errorf("fee_bps = %d, want 300", cfg.Settlement.FeeBps)
	}
	if cfg.Token.ValidityWindow != 24*time.Hour {
		t.Errorf("validity window = %v", cfg.Token.ValidityWindow)
	}
	if cfg.Token.NotBeforeSkew != time.Minute {
		t.Errorf("not-before skew = %v", cfg.Token.NotBeforeSkew)
	}
	if _, ok := cfg.Chain.Networks["sepolia"]; !ok {
		t.Error("default sepolia network missing")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAYGATE_SERVER_PORT", "9090")
	t.Setenv("PAYGATE_SETTLEMENT_FEE_BPS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.Settlement.FeeBps != 0 {
		t.Errorf("fee_bps = %d, want 0", cfg.Settlement.FeeBps)
	}
}

func TestLoad_RejectsOutOfRangeFee(t *testing.T) {
	t.Setenv("PAYGATE_SETTLEMENT_FEE_BPS", "10001")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for fee_bps above 10000")
	}
}
