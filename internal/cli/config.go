package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds per-user defaults loaded from a YAML file. Command-line
// flags take precedence over config values.
type Config struct {
	// Exes are default interpreter paths to scan.
	Exes []string `yaml:"exes"`
	// CacheDuration is the default cache TTL in seconds.
	CacheDuration *uint64 `yaml:"cache_duration"`
	// Bound is a default bound requirements source for validate.
	Bound string `yaml:"bound"`
	// BoundOptions are default optional dependency groups.
	BoundOptions []string `yaml:"bound_options"`
	// HistoryURI is a default MongoDB URI for report history.
	HistoryURI string `yaml:"history_uri"`
	// Redis is a redis address (host:port) used as the cache backend
	// instead of the cache directory. Keys are scoped under the app name
	// since the instance may be shared.
	Redis string `yaml:"redis"`
}

// LoadConfig reads a config file. A missing default config is not an
// error; an explicitly named file must exist.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &Config{}, nil
		}
		path = filepath.Join(home, ".config", appName, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyConfig loads the config file and fills in flags the user did not
// set on the command line.
func (c *CLI) applyConfig() error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if len(c.exes) == 0 && len(cfg.Exes) > 0 {
		c.exes = cfg.Exes
	}
	if c.cacheSecs == defaultCacheSeconds && cfg.CacheDuration != nil {
		c.cacheSecs = *cfg.CacheDuration
	}
	if c.historyURI == "" && cfg.HistoryURI != "" {
		c.historyURI = cfg.HistoryURI
	}
	c.config = cfg
	return nil
}
