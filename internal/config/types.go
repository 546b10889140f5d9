// Package config provides configuration loading for this client using Viper.
// Configuration is loaded from an optional YAML file with automatic
// environment variable binding.
//
// Environment variables use the DOIPUDS_ prefix and underscore-separated
// keys:
//   - DOIPUDS_TRANSPORT_TIMEOUT_MS -> transport.timeout_ms
//   - DOIPUDS_API_HOST -> api.host
//   - DOIPUDS_SECURITY_CONSTANT_2 -> security.constant.2
package config

import (
	"os"
	"strings"
)

// TransportConfig holds the configured default transport timeout. It is
// loaded, normalized and logged at startup; session.Manager does not read
// it, and a connect_ecu request that omits a timeout uses
// transport.DefaultTimeout (30 s) regardless of this value.
type TransportConfig struct {
	DefaultTimeoutMs int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// SecurityConfig holds the per-level seed/key constants used by the
// security-access sub-protocol, keyed by the even (key-submission) level.
// The source tooling hard-coded a single constant (0x1234) for every level;
// this repo makes it a per-session, per-level, overridable parameter.
type SecurityConfig struct {
	Constants map[uint8]uint32 `yaml:"constants" mapstructure:"constants"`
}

// LoggingConfig contains logging settings, same shape as the teacher's.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"             json:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"        json:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"       json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"      json:"extra_fields,omitempty"`
}

// APIConfig contains REST façade settings.
//
// Note: APIKey is intentionally treated as a secret and should not be
// returned by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// Config is the root configuration structure.
type Config struct {
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Security  SecurityConfig  `yaml:"security"  mapstructure:"security"`
	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	API       APIConfig       `yaml:"api"       mapstructure:"api"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("DOIPUDS_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable
// overrides. This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (DOIPUDS_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
