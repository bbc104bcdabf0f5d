// Package config loads the node's TOML configuration, layering file
// values and environment overrides on top of the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Duration wraps time.Duration so TOML values can be written as
// strings like "15s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Node   Node   `toml:"node"`
	Server Server `toml:"server"`
	Auth   Auth   `toml:"auth"`
	Ledger Ledger `toml:"ledger"`
	Outbox Outbox `toml:"outbox"`
	Mesh   Mesh   `toml:"mesh"`
}

type Node struct {
	Name    string `toml:"name"`
	DataDir string `toml:"data_dir"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Auth struct {
	JWTSecret string `toml:"jwt_secret"`
}

type Ledger struct {
	CommissionRate decimal.Decimal `toml:"commission_rate"`
	WithdrawalFee  decimal.Decimal `toml:"withdrawal_fee"`
	BoostPrice     decimal.Decimal `toml:"boost_price"`
}

type Outbox struct {
	FlushInterval Duration `toml:"flush_interval"`
	UploadTimeout Duration `toml:"upload_timeout"`
	RetryBackoff  Duration `toml:"retry_backoff"`
	MaxAttempts   int      `toml:"max_attempts"`
	UploadLatency Duration `toml:"upload_latency"`
}

type Mesh struct {
	Region            string   `toml:"region"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	DiscoveryMin      Duration `toml:"discovery_min"`
	DiscoveryMax      Duration `toml:"discovery_max"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Node: Node{
			Name:    "amasampo-node",
			DataDir: filepath.Join(home, ".amasampo"),
		},
		Server: Server{Addr: "127.0.0.1:7433"},
		Auth:   Auth{JWTSecret: "amasampo-dev-secret"},
		Ledger: Ledger{
			CommissionRate: decimal.NewFromFloat(0.02),
			WithdrawalFee:  decimal.NewFromInt(5),
			BoostPrice:     decimal.NewFromInt(25),
		},
		Outbox: Outbox{
			FlushInterval: Duration{15 * time.Second},
			UploadTimeout: Duration{10 * time.Second},
			RetryBackoff:  Duration{2 * time.Second},
			MaxAttempts:   5,
			UploadLatency: Duration{300 * time.Millisecond},
		},
		Mesh: Mesh{
			Region:            "Zambia Central",
			HeartbeatInterval: Duration{5 * time.Second},
			DiscoveryMin:      Duration{45 * time.Second},
			DiscoveryMax:      Duration{90 * time.Second},
		},
	}
}

// Load reads the config file at path, if it exists, over the defaults
// and then applies environment overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AMASAMPO_NODE_NAME"); v != "" {
		c.Node.Name = v
	}
	if v := os.Getenv("AMASAMPO_DATA_DIR"); v != "" {
		c.Node.DataDir = v
	}
	if v := os.Getenv("AMASAMPO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AMASAMPO_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

func (c *Config) validate() error {
	if c.Node.Name == "" {
		return fmt.Errorf("node.name must not be empty")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir must not be empty")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Ledger.CommissionRate.IsNegative() || c.Ledger.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("ledger.commission_rate must be between 0 and 1")
	}
	if c.Ledger.WithdrawalFee.IsNegative() || c.Ledger.BoostPrice.IsNegative() {
		return fmt.Errorf("ledger fees must not be negative")
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("outbox.max_attempts must be at least 1")
	}
	if c.Outbox.RetryBackoff.Duration <= 0 {
		return fmt.Errorf("outbox.retry_backoff must be positive")
	}
	if c.Mesh.DiscoveryMax.Duration < c.Mesh.DiscoveryMin.Duration {
		return fmt.Errorf("mesh.discovery_max must not be below mesh.discovery_min")
	}
	return nil
}

// DBPath returns the node database location under the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.Node.DataDir, "amasampo.db")
}

// LogPath returns the daemon log location under the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.Node.DataDir, "amasampod.log")
}

// Save writes the config to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
