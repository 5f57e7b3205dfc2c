package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// MetricsOff disables the metrics endpoint when used as metrics_addr.
const MetricsOff = "off"

// Config represents the global ~/.chatter/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	// ListenAddr adds a TCP listener next to the profile socket when set.
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"`

	Presence Presence `toml:"presence"`
	Sync     Sync     `toml:"sync"`
	Repair   Repair   `toml:"repair"`
}

// Presence tunes session bookkeeping.
type Presence struct {
	SessionTTL     time.Duration `toml:"session_ttl"`
	SweepInterval  time.Duration `toml:"sweep_interval"`
	HeartbeatRPS   float64       `toml:"heartbeat_rps"`
	HeartbeatBurst int           `toml:"heartbeat_burst"`
}

// Sync tunes view reconciliation.
type Sync struct {
	RetryAttempts  int           `toml:"retry_attempts"`
	RetryBaseDelay time.Duration `toml:"retry_base_delay"`
	BufferSize     int           `toml:"buffer_size"`
}

// Repair tunes the pending touch drain loop.
type Repair struct {
	Interval    time.Duration `toml:"interval"`
	MaxAttempts int           `toml:"max_attempts"`
}

// Default returns a config with every tunable set.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.MetricsAddr == "" {
		c.MetricsAddr = "127.0.0.1:9464"
	}
	if c.Presence.SessionTTL <= 0 {
		c.Presence.SessionTTL = 90 * time.Second
	}
	if c.Presence.SweepInterval <= 0 {
		c.Presence.SweepInterval = 15 * time.Second
	}
	if c.Presence.HeartbeatRPS <= 0 {
		c.Presence.HeartbeatRPS = 2
	}
	if c.Presence.HeartbeatBurst <= 0 {
		c.Presence.HeartbeatBurst = 5
	}
	if c.Sync.RetryAttempts <= 0 {
		c.Sync.RetryAttempts = 3
	}
	if c.Sync.RetryBaseDelay <= 0 {
		c.Sync.RetryBaseDelay = 50 * time.Millisecond
	}
	if c.Sync.BufferSize <= 0 {
		c.Sync.BufferSize = 64
	}
	if c.Repair.Interval <= 0 {
		c.Repair.Interval = 500 * time.Millisecond
	}
	if c.Repair.MaxAttempts <= 0 {
		c.Repair.MaxAttempts = 20
	}
}

// Load reads config from the given path and fills unset fields with defaults.
// Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
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
