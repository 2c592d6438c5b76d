// config.go - configuration for the signer daemon
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the device-side settings that would, on real hardware, be
// baked into firmware rather than loaded from a file; here they drive the
// host-simulated device process (spec.md §5 "Memory", §4.5 "Wire frame").
type Config struct {
	// Transport
	DevicePort string `json:"device_port"`

	// Protocol
	MaxBodyBytes uint64 `json:"max_body_bytes"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// DefaultConfig returns the default device configuration.
func DefaultConfig() *Config {
	return &Config{
		DevicePort:   "/dev/ttyACM0",
		MaxBodyBytes: 1024,
		LogLevel:     "info",
		LogFile:      "",
	}
}

// LoadConfig loads configuration from file, or creates and persists the
// default configuration if none exists yet.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig writes config to configPath, creating parent directories as
// needed.
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(config)
}

// Validate checks the configuration for the invariants the dispatcher
// relies on.
func (c *Config) Validate() error {
	if c.MaxBodyBytes == 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	return nil
}
