// Package config loads quorum.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slyt3/Quorum/internal/assert"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "quorum.yaml"
	EnvPath     = "QUORUM_CONFIG"
	EnvLogLevel = "QUORUM_LOG_LEVEL"
	EnvBotToken = "QUORUM_BOT_TOKEN"
)

// Config represents the quorum.yaml structure
type Config struct {
	Version  string `yaml:"version"`
	Database struct {
		Path          string `yaml:"path"`
		BusyTimeoutMs int    `yaml:"busy_timeout_ms"`
	} `yaml:"database"`
	Ledger struct {
		KeyPath        string `yaml:"key_path"`
		MaxAttempts    int    `yaml:"max_attempts"`
		RetryBackoffMs int    `yaml:"retry_backoff_ms"`
	} `yaml:"ledger"`
	Funding struct {
		BatchSize int `yaml:"batch_size"`
	} `yaml:"funding"`
	Identity struct {
		Mode            string `yaml:"mode"` // "telegram" | "header"
		BotToken        string `yaml:"bot_token"`
		VerifySignature bool   `yaml:"verify_signature"`
		MaxAgeSeconds   int    `yaml:"max_age_s"`
		Header          string `yaml:"header"`
	} `yaml:"identity"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{Version: "1", LogLevel: "info"}
	c.Database.Path = "data/quorum.db"
	c.Database.BusyTimeoutMs = 5000
	c.Ledger.KeyPath = ".quorum_key"
	c.Ledger.MaxAttempts = 8
	c.Ledger.RetryBackoffMs = 5
	c.Funding.BatchSize = 50
	c.Identity.Mode = "telegram"
	c.Identity.VerifySignature = true
	c.Identity.MaxAgeSeconds = 86400
	c.Server.ListenAddr = ":8090"
	return c
}

// Load reads path (or $QUORUM_CONFIG, or quorum.yaml) over the defaults.
// A missing file at the default location is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err == nil {
			path = filepath.Join(wd, path)
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvBotToken); v != "" {
		cfg.Identity.BotToken = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required combinations.
func (c *Config) Validate() error {
	if err := assert.Check(c.Database.Path != "", "database.path must not be empty"); err != nil {
		return err
	}
	if err := assert.InRange(c.Database.BusyTimeoutMs, 0, 600000, "database.busy_timeout_ms"); err != nil {
		return err
	}
	if err := assert.Check(c.Ledger.KeyPath != "", "ledger.key_path must not be empty"); err != nil {
		return err
	}
	if err := assert.InRange(c.Ledger.MaxAttempts, 1, 1024, "ledger.max_attempts"); err != nil {
		return err
	}
	if err := assert.InRange(c.Ledger.RetryBackoffMs, 1, 10000, "ledger.retry_backoff_ms"); err != nil {
		return err
	}
	if err := assert.InRange(c.Funding.BatchSize, 1, 1<<20, "funding.batch_size"); err != nil {
		return err
	}
	switch c.Identity.Mode {
	case "header":
	case "telegram":
		if err := assert.Check(!c.Identity.VerifySignature || c.Identity.BotToken != "",
			"identity.bot_token (or %s) is required when verify_signature is on", EnvBotToken); err != nil {
			return err
		}
	default:
		return assert.Check(false, "identity.mode must be telegram or header, got %q", c.Identity.Mode)
	}
	if err := assert.InRange(c.Identity.MaxAgeSeconds, 0, 1<<30, "identity.max_age_s"); err != nil {
		return err
	}
	return assert.Check(c.Server.ListenAddr != "", "server.listen_addr must not be empty")
}

func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeoutMs) * time.Millisecond
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Ledger.RetryBackoffMs) * time.Millisecond
}

func (c *Config) IdentityMaxAge() time.Duration {
	return time.Duration(c.Identity.MaxAgeSeconds) * time.Second
}
