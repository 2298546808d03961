package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix namespaces the environment variables that back command line
	// flags, e.g. CIDRD_CONFIG_FILE for -config-file.
	EnvPrefix   = "CIDRD"
	DefaultPath = "/etc/cidrd/config.yaml"
)

type Config struct {
	Logging   Logging   `yaml:"logging,omitempty"`
	Pool      Pool      `yaml:"pool"`
	Allocator Allocator `yaml:"allocator,omitempty"`
	Store     Store     `yaml:"store,omitempty"`
	API       Listener  `yaml:"api,omitempty"`
	Gateway   Listener  `yaml:"gateway,omitempty"`
	Metrics   Listener  `yaml:"metrics,omitempty"`
}

type Logging struct {
	Format     string            `yaml:"format,omitempty"`
	Level      string            `yaml:"level,omitempty"`
	Components map[string]string `yaml:"components,omitempty"`
}

type Pool struct {
	Network   string    `yaml:"network"`
	BlockSize BlockSize `yaml:"block_size"`
}

// BlockSize is kept verbatim so both "/26" and 64 can be written unquoted.
type BlockSize string

func (b *BlockSize) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: block_size must be a scalar", n.Line)
	}
	*b = BlockSize(n.Value)
	return nil
}

type Allocator struct {
	NodePattern string `yaml:"node_pattern,omitempty"`
}

type Store struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Retry   Retry  `yaml:"retry,omitempty"`
}

type Retry struct {
	Attempts        int           `yaml:"attempts,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	Factor          float64       `yaml:"factor,omitempty"`
}

type Listener struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address,omitempty"`
}
