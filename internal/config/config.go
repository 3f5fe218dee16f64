// Package config provides TOML configuration file loading and parsing for
// the bridge. The configuration file lives at ~/.keybridge/config.toml by
// default, but can be overridden with the --config flag. CLI flags always
// take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the bridge configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML
// files via struct tags.
type Config struct {
	// Addr is the host:port for the bridge HTTP server.
	// Default: 127.0.0.1:1646
	Addr string `toml:"addr"`

	// Store is the path to the SQLite database for paired services
	// and approved origins.
	// Default: ~/.keybridge/keybridge.db
	Store string `toml:"store"`

	// LogFile is the path for daemon log output.
	// Empty means log to stderr.
	LogFile string `toml:"log_file"`

	// MdnsEnabled enables mDNS/Bonjour advertisement of the bridge.
	// When true, wallet apps on the local network can discover the
	// bridge without typing its address. Discovery only reveals
	// presence; pairing still requires explicit user approval.
	// Default: false (disabled for security - must be explicitly enabled)
	MdnsEnabled bool `toml:"mdns_enabled"`

	// PairTimeoutSeconds bounds how long a pairing prompt may wait for
	// a user decision. 0 (the default) disables the timeout: a prompt
	// waits indefinitely and the caller applies its own client-side
	// timeout, which matches the base protocol.
	PairTimeoutSeconds int `toml:"pair_timeout_seconds"`

	// PairRatePerMinute limits how many pairing prompts may be opened
	// per minute across all callers. 0 uses the built-in default.
	// This protects the user from prompt spam by a misbehaving app.
	PairRatePerMinute int `toml:"pair_rate_per_minute"`
}

// DefaultConfigPath returns the default config file location: ~/.keybridge/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".keybridge", "config.toml"), nil
}

// DefaultStorePath returns the default database location: ~/.keybridge/keybridge.db.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".keybridge", "keybridge.db"), nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location
//     (~/.keybridge/config.toml). Returns an empty Config without error
//     if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		// No explicit path: try default location, but don't error if missing.
		// This allows the bridge to start without any config file.
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			// Can't determine home dir, return empty config
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			// Default config doesn't exist, that's fine
			return cfg, nil
		}
		path = defaultPath
	} else {
		// Explicit path provided: error if file doesn't exist.
		// This matches user expectation: if they specify a config file, it should exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	// Parse the TOML file. Any parse error is fatal since the user expects
	// the config to be applied.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
