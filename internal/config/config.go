// Package config loads and validates daemon configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mv82/webpool/internal/logger"
)

// Config holds every tunable of the daemon.
type Config struct {
	// ListenAddr is the address the request listener binds to.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// PoolSize is the number of worker goroutines serving connections.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// MaxAccept limits how many connections the listener accepts before
	// shutting down on its own. Zero means unlimited.
	MaxAccept int `yaml:"max_accept" json:"max_accept"`

	// SuccessPage is the file served for a matching request.
	SuccessPage string `yaml:"success_page" json:"success_page"`

	// NotFoundPage is the file served for any other request.
	NotFoundPage string `yaml:"not_found_page" json:"not_found_page"`

	// MonitorAddr is the address of the stats endpoint. Empty disables it.
	MonitorAddr string `yaml:"monitor_addr" json:"monitor_addr"`

	// LogLevel is the minimum level emitted: debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		ListenAddr:   "127.0.0.1:7878",
		PoolSize:     4,
		MaxAccept:    0,
		SuccessPage:  "hello.html",
		NotFoundPage: "404.html",
		MonitorAddr:  "",
		LogLevel:     "info",
	}
}

// LoadFile reads a YAML or JSON config file, chosen by extension, on top of
// the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.MaxAccept < 0 {
		return fmt.Errorf("max_accept must not be negative, got %d", c.MaxAccept)
	}
	if c.SuccessPage == "" {
		return fmt.Errorf("success_page must not be empty")
	}
	if c.NotFoundPage == "" {
		return fmt.Errorf("not_found_page must not be empty")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level. Call Validate first; unknown names
// fall back to info.
func (c *Config) Level() logger.Level {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}
