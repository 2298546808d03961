package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/cidrd/pkg/opdb"
	"github.com/veesix-networks/cidrd/pkg/pool"
)

const (
	defaultStorePath      = "/var/lib/cidrd/cidrd.db"
	defaultAPIAddress     = ":8080"
	defaultGatewayAddress = ":50051"
	defaultMetricsAddress = ":9090"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = opdb.BackendSQLite
	}
	if c.Store.Backend == opdb.BackendSQLite && c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Store.Retry.Attempts == 0 {
		c.Store.Retry.Attempts = 4
	}
	if c.Store.Retry.InitialInterval == 0 {
		c.Store.Retry.InitialInterval = 50 * time.Millisecond
	}
	if c.Store.Retry.Factor == 0 {
		c.Store.Retry.Factor = 2
	}

	// An absent api or gateway section means enabled on the default port;
	// metrics stay off unless asked for.
	if c.API == (Listener{}) {
		c.API.Enabled = true
	}
	if c.Gateway == (Listener{}) {
		c.Gateway.Enabled = true
	}
	if c.API.ListenAddress == "" {
		c.API.ListenAddress = defaultAPIAddress
	}
	if c.Gateway.ListenAddress == "" {
		c.Gateway.ListenAddress = defaultGatewayAddress
	}
	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = defaultMetricsAddress
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format)
	}

	if _, err := c.BuildPool(); err != nil {
		return err
	}

	if c.Allocator.NodePattern != "" {
		if _, err := regexp.Compile(c.Allocator.NodePattern); err != nil {
			return fmt.Errorf("allocator.node_pattern: %w", err)
		}
	}

	switch c.Store.Backend {
	case opdb.BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case opdb.BackendMemory:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}

	if c.Store.Retry.Attempts < 1 {
		return fmt.Errorf("store.retry.attempts must be at least 1")
	}
	if c.Store.Retry.InitialInterval < 0 {
		return fmt.Errorf("store.retry.initial_interval must not be negative")
	}

	if !c.API.Enabled && !c.Gateway.Enabled {
		return fmt.Errorf("at least one of api or gateway must be enabled")
	}

	return nil
}

// BuildPool partitions the configured range. Errors are *pool.ConfigError.
func (c *Config) BuildPool() (*pool.Pool, error) {
	return pool.New(c.Pool.Network, string(c.Pool.BlockSize))
}
