// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the ScribeFlow server.
// It handles loading and parsing YAML configuration files, environment-seeded
// feature flags, and structured access to application settings including the
// server port, MCP endpoint, circuit breaker tuning, and heartbeat monitoring.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for local-only access.
	Host string `yaml:"host" json:"-"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotating log files when LoggingToFile is set.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// MCP configures the MCP writing-analysis backend connection.
	MCP MCPConfig `yaml:"mcp" json:"mcp"`

	// CircuitBreaker holds per-service circuit breaker overrides.
	CircuitBreaker map[string]CircuitBreakerConfig `yaml:"circuit-breaker" json:"circuit-breaker"`

	// Heartbeat configures optional background health monitoring of the
	// backing services. Disabled by default: the selection manager already
	// probes MCP health on every operation call.
	Heartbeat HeartbeatConfig `yaml:"heartbeat" json:"heartbeat"`

	// Flags holds the initial feature flag set. Environment variables
	// override these values at process start.
	Flags FlagSet `yaml:"feature-flags" json:"feature-flags"`
}

// MCPConfig holds connection settings for the MCP analysis backend.
type MCPConfig struct {
	// Endpoint is the MCP server URL. HTTP endpoints use JSON-RPC over POST;
	// ws:// and wss:// endpoints use a WebSocket transport.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Transport selects "http" or "websocket". Inferred from the endpoint
	// scheme when empty.
	Transport string `yaml:"transport" json:"transport"`

	// RequestTimeout bounds a single MCP request. The circuit breaker applies
	// its own per-attempt timeout on top of this.
	RequestTimeout time.Duration `yaml:"request-timeout" json:"request-timeout"`
}

// CircuitBreakerConfig mirrors resilience.Config in YAML form so operators can
// tune thresholds per service without recompiling.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure-threshold" json:"failure-threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery-timeout" json:"recovery-timeout"`
	SuccessThreshold int           `yaml:"success-threshold" json:"success-threshold"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
}

// HeartbeatConfig contains configuration for the heartbeat monitor.
type HeartbeatConfig struct {
	// Enabled controls whether background heartbeat monitoring is active.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Interval is the time between heartbeat cycles.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// Timeout is the maximum time to wait for a single service check.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Port:   8317,
		LogDir: "logs",
		MCP: MCPConfig{
			Endpoint:       "http://127.0.0.1:3001/mcp",
			RequestTimeout: 10 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  false,
			Interval: time.Minute,
			Timeout:  5 * time.Second,
		},
		Flags: FlagSet{
			MCPWritingAnalysis:       true,
			MCPReflectionAnalysis:    true,
			MCPContentClassification: true,
			MCPAIBoundaries:          true,
			MCPAuditTrails:           true,
			AllowFallbackServices:    true,
			CircuitBreakerEnabled:    true,
		},
	}
}

// LoadConfig reads and parses the configuration file at the given path.
// Missing file is not an error; defaults are returned so the server can run
// with a bare environment. Environment variables are applied on top of the
// file's feature-flag section.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		}
	}

	cfg.Flags = FlagsFromEnv(cfg.Flags)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid port %d", cfg.Port)
	}
	if cfg.MCP.RequestTimeout <= 0 {
		cfg.MCP.RequestTimeout = 10 * time.Second
	}
	if cfg.Heartbeat.Interval <= 0 {
		cfg.Heartbeat.Interval = time.Minute
	}
	if cfg.Heartbeat.Timeout <= 0 {
		cfg.Heartbeat.Timeout = 5 * time.Second
	}

	return cfg, nil
}

// ReloadFlags re-reads only the feature-flag section from the config file.
// Used by the config watcher so a running server picks up flag edits without
// a restart. Environment overrides still win over file values.
func ReloadFlags(path string) (FlagSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FlagSet{}, fmt.Errorf("config: failed to re-read %s: %w", path, err)
	}

	var partial struct {
		Flags FlagSet `yaml:"feature-flags"`
	}
	partial.Flags = DefaultConfig().Flags
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return FlagSet{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return FlagsFromEnv(partial.Flags), nil
}
