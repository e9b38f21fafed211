// Package config holds application configuration for the nble tools.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Technoculture/zephyr/gatt"
)

// Config holds application configuration
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"30s"`
	EventQueueDepth int           `yaml:"event_queue_depth" default:"128"`
	TraceDepth      uint32        `yaml:"trace_depth" default:"64"`

	// Device is the serial or pty path of the controller link; empty means
	// in-process loopback.
	Device string `yaml:"device"`

	// Scenario optionally points at an emulator scenario file.
	Scenario string `yaml:"scenario"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file, filling unset fields with
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level %q in %s", cfg.LogLevel, path)
	}
	return cfg, nil
}

// HostOptions maps the configuration onto host options.
func (c *Config) HostOptions() *gatt.Options {
	opts := gatt.DefaultOptions()
	opts.RequestTimeout = c.RequestTimeout
	opts.EventQueueDepth = c.EventQueueDepth
	opts.TraceDepth = c.TraceDepth
	return opts
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
