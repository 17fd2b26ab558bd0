// Package config loads the application configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the vault directory.
const FileName = "config.yaml"

// HIBPConfig configures the breach check client.
type HIBPConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config is the on-disk application configuration.
type Config struct {
	VaultDir string     `yaml:"vault_dir"`
	LogLevel string     `yaml:"log_level"`
	HIBP     HIBPConfig `yaml:"hibp"`
}

// Default returns the configuration used when no file exists. The vault
// directory defaults to ~/.passvault.
func Default() *Config {
	dir := ".passvault"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".passvault")
	}
	return &Config{
		VaultDir: dir,
		LogLevel: "info",
		HIBP: HIBPConfig{
			BaseURL:        "https://api.pwnedpasswords.com",
			TimeoutSeconds: 10,
		},
	}
}

// Load reads the configuration at path, filling unset fields from Default.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	defaults := Default()
	if cfg.VaultDir == "" {
		cfg.VaultDir = defaults.VaultDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.HIBP.BaseURL == "" {
		cfg.HIBP.BaseURL = defaults.HIBP.BaseURL
	}
	if cfg.HIBP.TimeoutSeconds <= 0 {
		cfg.HIBP.TimeoutSeconds = defaults.HIBP.TimeoutSeconds
	}
	return cfg, nil
}

// HIBPTimeout returns the configured request timeout as a duration.
func (c *Config) HIBPTimeout() time.Duration {
	return time.Duration(c.HIBP.TimeoutSeconds) * time.Second
}

// DatabasePath returns the SQLite database path inside the vault directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.VaultDir, "vault.db")
}
