// Package config handles Muninn configuration via YAML files and
// environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --key-property, etc.)
//  2. Environment variables (MUNINN_*)
//  3. Config file (muninn.yaml)
//  4. Built-in defaults
//
// Environment Variables (all use the MUNINN_ prefix):
//
// Storage:
//   - MUNINN_STORAGE_ENGINE="badger" or "memory"
//   - MUNINN_DATA_DIR="./data"
//
// Acceleration engine:
//   - MUNINN_NODE_LABELS="Entity,Concept" (comma separated, empty=all)
//   - MUNINN_EDGE_TYPES="RELATES_TO,CONTAINS" (empty=all)
//   - MUNINN_KEY_PROPERTY="key"
//   - MUNINN_MAX_MEMORY="512MB" (0/unlimited=no cap)
//   - MUNINN_MAX_VISITED=1000000
//   - MUNINN_AUTO_RELOAD=true
//   - MUNINN_RELOAD_MODE="async" or "sync"
//   - MUNINN_RELOAD_DEBOUNCE="5s"
//   - MUNINN_PRELOAD=true
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/muninn/pkg/accel"
)

// Config holds all Muninn configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Accel   AccelConfig   `yaml:"accel"`
}

// StorageConfig selects and locates the source-of-truth store.
type StorageConfig struct {
	// Engine is "badger" (persistent) or "memory".
	Engine string `yaml:"engine"`
	// DataDir is the directory for Badger data files.
	DataDir string `yaml:"data_dir"`
}

// AccelConfig configures the in-memory acceleration engine.
//
// NodeLabels, EdgeTypes, and KeyProperty require a fresh load to take
// effect; the other options apply without one.
type AccelConfig struct {
	NodeLabels      []string      `yaml:"node_labels"`
	EdgeTypes       []string      `yaml:"edge_types"`
	KeyProperty     string        `yaml:"key_property"`
	MaxMemory       string        `yaml:"max_memory"` // human readable, e.g. "512MB"
	MaxVisitedNodes int           `yaml:"max_visited_nodes"`
	AutoReload      bool          `yaml:"auto_reload"`
	ReloadMode      string        `yaml:"reload_mode"` // "sync" or "async"
	ReloadDebounce  time.Duration `yaml:"reload_debounce"`
	// Preload triggers a load immediately at startup.
	Preload bool `yaml:"preload"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:  "badger",
			DataDir: "./data",
		},
		Accel: AccelConfig{
			KeyProperty:     "key",
			MaxVisitedNodes: 1_000_000,
			AutoReload:      true,
			ReloadMode:      string(accel.ReloadAsync),
			ReloadDebounce:  5 * time.Second,
			Preload:         true,
		},
	}
}

// LoadFromFile reads a YAML config file over the defaults, then applies
// environment overrides. A missing path uses defaults plus environment.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv returns defaults plus environment overrides.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MUNINN_STORAGE_ENGINE"); v != "" {
		c.Storage.Engine = v
	}
	if v := os.Getenv("MUNINN_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("MUNINN_NODE_LABELS"); v != "" {
		c.Accel.NodeLabels = splitCSV(v)
	}
	if v := os.Getenv("MUNINN_EDGE_TYPES"); v != "" {
		c.Accel.EdgeTypes = splitCSV(v)
	}
	if v := os.Getenv("MUNINN_KEY_PROPERTY"); v != "" {
		c.Accel.KeyProperty = v
	}
	if v := os.Getenv("MUNINN_MAX_MEMORY"); v != "" {
		c.Accel.MaxMemory = v
	}
	if v := os.Getenv("MUNINN_MAX_VISITED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Accel.MaxVisitedNodes = n
		}
	}
	if v := os.Getenv("MUNINN_AUTO_RELOAD"); v != "" {
		c.Accel.AutoReload = parseBool(v, c.Accel.AutoReload)
	}
	if v := os.Getenv("MUNINN_RELOAD_MODE"); v != "" {
		c.Accel.ReloadMode = v
	}
	if v := os.Getenv("MUNINN_RELOAD_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Accel.ReloadDebounce = d
		}
	}
	if v := os.Getenv("MUNINN_PRELOAD"); v != "" {
		c.Accel.Preload = parseBool(v, c.Accel.Preload)
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "badger", "memory":
	default:
		return fmt.Errorf("invalid storage engine %q (want badger or memory)", c.Storage.Engine)
	}
	switch c.Accel.ReloadMode {
	case string(accel.ReloadSync), string(accel.ReloadAsync):
	default:
		return fmt.Errorf("invalid reload mode %q (want sync or async)", c.Accel.ReloadMode)
	}
	if _, err := ParseMemorySize(c.Accel.MaxMemory); err != nil {
		return err
	}
	if c.Accel.ReloadDebounce < 0 {
		return fmt.Errorf("reload debounce must not be negative")
	}
	return nil
}

// Options converts the accel section into engine options.
func (c *AccelConfig) Options() accel.Options {
	maxMem, _ := ParseMemorySize(c.MaxMemory)
	return accel.Options{
		NodeLabels:      c.NodeLabels,
		EdgeTypes:       c.EdgeTypes,
		KeyProperty:     c.KeyProperty,
		MaxMemoryBytes:  maxMem,
		MaxVisitedNodes: c.MaxVisitedNodes,
		AutoReload:      c.AutoReload,
		ReloadMode:      accel.ReloadMode(c.ReloadMode),
		ReloadDebounce:  c.ReloadDebounce,
	}
}

// ParseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited", "".
func ParseMemorySize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0, nil
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	return val * multiplier, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}
