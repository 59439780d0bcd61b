package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration. All paths are explicit so the
// core can be tested against a temporary directory.
type Config struct {
	// DataDir holds profiles.json, the per-profile link files and their
	// backups.
	DataDir string `yaml:"data_dir"`
	// Browser overrides the platform URL launcher (e.g. "firefox").
	Browser string `yaml:"browser"`
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// NewConfig creates a configuration with defaults.
func NewConfig() *Config {
	return &Config{
		DataDir:  defaultDataDir(),
		LogLevel: "info",
	}
}

// WithDataDir sets a custom data directory.
func (c *Config) WithDataDir(dir string) *Config {
	c.DataDir = dir
	return c
}

// Load reads an optional YAML config file over the defaults. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// ProfilesPath returns the location of profiles.json.
func (c *Config) ProfilesPath() string {
	return filepath.Join(c.DataDir, "profiles.json")
}

// LogPath returns the location of the application log.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "linkmark.log")
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".linkmark"
	}
	return filepath.Join(homeDir, ".linkmark")
}
