// Package config loads the insh configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/inshproject/insh/internal/paths"
)

// Defaults for the daemon.
const (
	// DefaultWorkers is the number of request workers the daemon starts.
	DefaultWorkers = 8
	// DefaultQueueSize bounds the scheduler's shared inbound queue. Client
	// handlers block when it is full, which backpressures only the client
	// that is flooding the daemon.
	DefaultQueueSize = 64
)

// Config represents the insh configuration
type Config struct {
	// Workers is the size of the daemon's request worker pool.
	Workers int `json:"workers,omitempty"`
	// QueueSize is the capacity of the scheduler's inbound request queue.
	QueueSize int `json:"queue_size,omitempty"`
	// SocketPath overrides the default Unix socket path.
	SocketPath string `json:"socket_path,omitempty"`
	// LogLevel is one of debug, info, warn, error, none.
	LogLevel string `json:"log_level,omitempty"`
	// LogPath overrides the default log file location.
	LogPath string `json:"log_path,omitempty"`
	// MetricsAddr, when set, serves Prometheus metrics on this address
	// (e.g. "127.0.0.1:9120").
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		Workers:   DefaultWorkers,
		QueueSize: DefaultQueueSize,
		LogLevel:  "info",
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. Environment variables INSH_LOG_LEVEL and INSH_LOG_PATH
// override the file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// LoadDefault loads the config from the per-user config file location.
func LoadDefault() (*Config, error) {
	path, err := paths.ConfigFile()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if level := strings.TrimSpace(os.Getenv("INSH_LOG_LEVEL")); level != "" {
		c.LogLevel = level
	}
	if path := strings.TrimSpace(os.Getenv("INSH_LOG_PATH")); path != "" {
		c.LogPath = path
	}
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Socket returns the socket path, honoring the config override.
func (c *Config) Socket() (string, error) {
	if c.SocketPath != "" {
		return c.SocketPath, nil
	}
	return paths.Socket()
}
