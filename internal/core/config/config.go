// Package config handles configuration loading and validation for parley.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/pool"
	"github.com/hay-kot/parley/internal/core/validate"
)

// SchemeLoopback is the only endpoint scheme this build can open.
const SchemeLoopback = "loopback"

// Config holds the application configuration.
type Config struct {
	Endpoints        []Endpoint              `yaml:"endpoints" toml:"endpoints"`
	IdleTimeout      time.Duration           `yaml:"idle_timeout" toml:"idle_timeout"`
	AcceptTimeout    time.Duration           `yaml:"accept_timeout" toml:"accept_timeout"`
	ComposingTimeout time.Duration           `yaml:"composing_timeout" toml:"composing_timeout"`
	SweepInterval    time.Duration           `yaml:"sweep_interval" toml:"sweep_interval"`
	ChunkSize        int                     `yaml:"chunk_size" toml:"chunk_size"`
	Capabilities     capability.Capabilities `yaml:"capabilities" toml:"capabilities"`
	HistoryLimit     int                     `yaml:"history_limit" toml:"history_limit"`
	DataDir          string                  `yaml:"-" toml:"-"` // set by caller, not from config file
}

// Endpoint is one transport access point of the pool.
type Endpoint struct {
	Name string `yaml:"name" toml:"name"`
	// URI locates the endpoint, e.g. loopback://primary.
	URI string `yaml:"uri" toml:"uri"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoints: []Endpoint{
			{Name: "primary", URI: SchemeLoopback + "://primary"},
		},
		IdleTimeout:      300 * time.Second,
		AcceptTimeout:    30 * time.Second,
		ComposingTimeout: 15 * time.Second,
		SweepInterval:    10 * time.Second,
		ChunkSize:        2048,
		Capabilities:     capability.Capabilities{Text: true, Data: true},
		HistoryLimit:     1000,
	}
}

// Load reads configuration from the given path and sets the data directory.
// Files ending in .toml are read as TOML, anything else as YAML. If
// configPath is empty or doesn't exist, returns defaults with the provided
// dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := decode(configPath, data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.AcceptTimeout == 0 {
		c.AcceptTimeout = defaults.AcceptTimeout
	}
	if c.ComposingTimeout == 0 {
		c.ComposingTimeout = defaults.ComposingTimeout
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaults.ChunkSize
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = defaults.HistoryLimit
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("data directory cannot be empty"))
	}

	if len(c.Endpoints) == 0 {
		errs = errs.Append("endpoints", pool.ErrNoEndpoints)
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)

		if err := validate.EndpointName(ep.Name); err != nil {
			errs = errs.Append(field+".name", err)
		} else if seen[ep.Name] {
			errs = errs.Append(field+".name", fmt.Errorf("duplicate name %q", ep.Name))
		}
		seen[ep.Name] = true

		if strings.TrimSpace(ep.URI) == "" {
			errs = errs.Append(field+".uri", fmt.Errorf("uri is required"))
		}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"idle_timeout", c.IdleTimeout},
		{"accept_timeout", c.AcceptTimeout},
		{"composing_timeout", c.ComposingTimeout},
		{"sweep_interval", c.SweepInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = errs.Append(d.field, fmt.Errorf("must be positive, got %s", d.value))
		}
	}

	if c.ChunkSize < 0 {
		errs = errs.Append("chunk_size", fmt.Errorf("must be positive, got %d", c.ChunkSize))
	}
	if c.HistoryLimit < 0 {
		errs = errs.Append("history_limit", fmt.Errorf("must not be negative, got %d", c.HistoryLimit))
	}

	return errs.ToError()
}

// HistoryDir returns the directory session history is stored in.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "history")
}

// EndpointNames returns the configured endpoint names in order.
func (c *Config) EndpointNames() []string {
	names := make([]string, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		names[i] = ep.Name
	}
	return names
}
