package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefaultsValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Addr == "" || cfg.Node.Name == "" {
		t.Fatalf("incomplete defaults: %+v", cfg)
	}
	if !cfg.Ledger.BoostPrice.Equal(decimal.NewFromInt(25)) {
		t.Errorf("boost price = %s", cfg.Ledger.BoostPrice)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[node]
name = "kitwe-1"
data_dir = "/tmp/amasampo-test"

[ledger]
commission_rate = "0.05"
withdrawal_fee = "3"

[outbox]
flush_interval = "30s"
max_attempts = 8

[mesh]
discovery_min = "10s"
discovery_max = "20s"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Node.Name != "kitwe-1" {
		t.Errorf("node name = %q", cfg.Node.Name)
	}
	if !cfg.Ledger.CommissionRate.Equal(decimal.NewFromFloat(0.05)) {
		t.Errorf("commission = %s", cfg.Ledger.CommissionRate)
	}
	if !cfg.Ledger.BoostPrice.Equal(decimal.NewFromInt(25)) {
		t.Errorf("boost price default lost: %s", cfg.Ledger.BoostPrice)
	}
	if cfg.Outbox.FlushInterval.Duration != 30*time.Second {
		t.Errorf("flush interval = %s", cfg.Outbox.FlushInterval)
	}
	if cfg.Outbox.MaxAttempts != 8 {
		t.Errorf("max attempts = %d", cfg.Outbox.MaxAttempts)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("AMASAMPO_ADDR", "0.0.0.0:9000")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestValidateRejectsBadCadence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[mesh]
discovery_min = "90s"
discovery_max = "45s"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Node.Name = "ndola-2"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Node.Name != "ndola-2" {
		t.Errorf("name = %q", loaded.Node.Name)
	}
}

func TestValidateRejectsZeroRetryBackoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[outbox]
retry_backoff = "0s"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for zero retry_backoff")
	}
}
