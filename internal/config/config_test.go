package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathMissingDefault(t *testing.T) {
	// Point HOME at an empty temp dir so the default config is missing.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with missing default config should not error: %v", err)
	}
	if cfg.Addr != "" {
		t.Errorf("expected zero-value Addr, got %q", cfg.Addr)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_ParsesValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
addr = "127.0.0.1:9999"
store = "/tmp/bridge.db"
mdns_enabled = true
pair_timeout_seconds = 30
pair_rate_per_minute = 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want 127.0.0.1:9999", cfg.Addr)
	}
	if cfg.Store != "/tmp/bridge.db" {
		t.Errorf("Store = %q, want /tmp/bridge.db", cfg.Store)
	}
	if !cfg.MdnsEnabled {
		t.Error("MdnsEnabled should be true")
	}
	if cfg.PairTimeoutSeconds != 30 {
		t.Errorf("PairTimeoutSeconds = %d, want 30", cfg.PairTimeoutSeconds)
	}
	if cfg.PairRatePerMinute != 5 {
		t.Errorf("PairRatePerMinute = %d, want 5", cfg.PairRatePerMinute)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("addr = [broken"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for invalid TOML")
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("HOME", "/home/testuser")

	cfgPath, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if cfgPath != "/home/testuser/.keybridge/config.toml" {
		t.Errorf("unexpected config path %q", cfgPath)
	}

	storePath, err := DefaultStorePath()
	if err != nil {
		t.Fatalf("DefaultStorePath: %v", err)
	}
	if storePath != "/home/testuser/.keybridge/keybridge.db" {
		t.Errorf("unexpected store path %q", storePath)
	}
}
