package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
initial_cash: 25000.50
fee:
  model: percentage
  rate: 0.001
slippage_bps: 5
allow_short: true

risk:
  window: 30
  rules:
    - name: deep-drawdown
      expr: "drawdown > 0.2"
      severity: critical
      for: 48h

server:
  host: "127.0.0.1"
  port: 9090

storage:
  type: localfs
  path: "/tmp/tradesim/archive"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Storage.Type)
	}
	if cfg.Risk.Window != 30 {
		t.Errorf("expected risk window 30, got %d", cfg.Risk.Window)
	}
	// Unset keys keep their defaults.
	if cfg.Risk.VolatilityCap != 0.05 {
		t.Errorf("expected default volatility cap, got %g", cfg.Risk.VolatilityCap)
	}
	if cfg.PeriodsPerYear != 252 {
		t.Errorf("expected default periods per year, got %g", cfg.PeriodsPerYear)
	}
	if len(cfg.Risk.Rules) != 1 || cfg.Risk.Rules[0].For != 48*time.Hour {
		t.Fatalf("unexpected rules: %+v", cfg.Risk.Rules)
	}

	lc, err := cfg.LedgerConfig()
	if err != nil {
		t.Fatalf("LedgerConfig() error = %v", err)
	}
	if !lc.InitialCash.Equal(decimal.RequireFromString("25000.5")) {
		t.Errorf("expected initial cash 25000.5, got %s", lc.InitialCash)
	}
	fee, ok := lc.Fee.(ledger.PercentageFee)
	if !ok || !fee.Rate.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("unexpected fee model %#v", lc.Fee)
	}
	if !lc.SlippageBps.Equal(decimal.NewFromInt(5)) || !lc.AllowShort {
		t.Errorf("unexpected execution settings %+v", lc)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_URL", "https://hooks.example.com/risk")
	path := writeConfig(t, `
notifiers:
  webhook:
    enabled: true
    url: "${TEST_WEBHOOK_URL}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if got := cfg.Notifiers["webhook"].URL; got != "https://hooks.example.com/risk" {
		t.Errorf("expected expanded url, got %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Risk.Window != 20 {
		t.Errorf("expected default risk window 20, got %d", cfg.Risk.Window)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	lc, err := cfg.LedgerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !lc.InitialCash.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected 10000 initial cash, got %s", lc.InitialCash)
	}
	if _, ok := lc.Fee.(ledger.NoFee); !ok {
		t.Errorf("expected no fee, got %#v", lc.Fee)
	}
}

func TestFeeConfig_Models(t *testing.T) {
	tests := []struct {
		name string
		fee  FeeConfig
		want string
	}{
		{"none", FeeConfig{}, "none"},
		{"flat", FeeConfig{Model: "flat", Flat: "1.5"}, "flat"},
		{"percentage", FeeConfig{Model: "percentage", Rate: "0.001"}, "percentage"},
		{"maker taker", FeeConfig{Model: "MAKER_TAKER", Maker: "0.0002", Taker: "0.0005"}, "maker_taker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.fee.model()
			if err != nil {
				t.Fatalf("model() error = %v", err)
			}
			if m.Name() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, m.Name())
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"invalid port - zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"invalid port - too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"non-positive cash", func(c *Config) { c.InitialCash = "0" }, true},
		{"cash not a number", func(c *Config) { c.InitialCash = "lots" }, true},
		{"unknown fee model", func(c *Config) { c.Fee.Model = "tiered" }, true},
		{"negative fee rate", func(c *Config) { c.Fee = FeeConfig{Model: "percentage", Rate: "-0.1"} }, true},
		{"leverage below one", func(c *Config) { c.Leverage = "0.5" }, true},
		{"risk window too small", func(c *Config) { c.Risk.Window = 1 }, true},
		{"negative periods", func(c *Config) { c.PeriodsPerYear = -1 }, true},
		{"unknown data format", func(c *Config) { c.Data.Format = "xlsx" }, true},
		{"yahoo data", func(c *Config) { c.Data.Format = "yahoo" }, false},
		{"localfs without path", func(c *Config) { c.Storage.Type = "localfs" }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, true},
		{"s3 with bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Bucket = "runs"
		}, false},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, true},
		{"journal without dsn", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.DSN = ""
		}, true},
		{"notifier without url", func(c *Config) {
			c.Notifiers = map[string]NotifierConfig{"webhook": {Enabled: true}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
