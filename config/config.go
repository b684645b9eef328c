package config

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds user-configurable defaults for the CLI.
type Config struct {
	// Database overrides the system-wide database path.
	Database string `yaml:"database"`
	// TimeFormat preselects a --time-format value
	// (notime|short|full|iso|compact). Empty keeps the classic default.
	TimeFormat string `yaml:"time_format"`
	// Legacy switches durations to minute precision by default.
	Legacy bool `yaml:"legacy"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{}
}

// Path returns ~/.config/lastdb/config.yaml (or XDG_CONFIG_HOME). Returns
// empty string if the home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "lastdb", "config.yaml")
}

// Load loads the config from disk; a missing or unreadable file yields the
// defaults.
func Load() Config {
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Printf("lastdb: warning: config parse error: %v", err)
		return Default()
	}
	return cfg
}

// Save writes the config to disk.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
