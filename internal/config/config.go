// Package config loads lircctl settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/omochice/lirc-bridge/internal/transport"
)

// Config holds the lircctl configuration.
type Config struct {
	LIRC   LIRC   `yaml:"lirc"`
	Bridge Bridge `yaml:"bridge"`
	Log    Log    `yaml:"log"`
}

// LIRC describes the daemon connection.
type LIRC struct {
	Address        string        `yaml:"address"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// Bridge describes the WebSocket bridge. An empty Listen disables it.
type Bridge struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Log describes the logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	def := transport.DefaultConfig()
	return &Config{
		LIRC: LIRC{
			Address:        "unix:/var/run/lirc/lircd",
			ReconnectDelay: def.ReconnectDelay,
			DialTimeout:    def.DialTimeout,
			WriteTimeout:   def.WriteTimeout,
		},
		Bridge: Bridge{Path: "/ws"},
		Log:    Log{Level: "info"},
	}
}

// DefaultPath returns the default config file path:
// $XDG_CONFIG_HOME/lirc-bridge/config.yaml, usually ~/.config.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "lirc-bridge", "config.yaml")
	}
	return filepath.Join(dir, "lirc-bridge", "config.yaml")
}

// Load reads the configuration from the given YAML file path on top of
// Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that yaml cannot.
func (c *Config) Validate() error {
	if _, err := transport.ParseAddress(c.LIRC.Address); err != nil {
		return fmt.Errorf("lirc.address: %w", err)
	}
	if c.LIRC.ReconnectDelay <= 0 {
		return fmt.Errorf("lirc.reconnect_delay must be positive, got %s", c.LIRC.ReconnectDelay)
	}
	if c.LIRC.DialTimeout <= 0 {
		return fmt.Errorf("lirc.dial_timeout must be positive, got %s", c.LIRC.DialTimeout)
	}
	if c.LIRC.WriteTimeout < 0 {
		return fmt.Errorf("lirc.write_timeout must not be negative, got %s", c.LIRC.WriteTimeout)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Address returns the parsed daemon address.
func (c *Config) Address() (transport.Address, error) {
	return transport.ParseAddress(c.LIRC.Address)
}

// Transport returns the transport settings.
func (c *Config) Transport() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.ReconnectDelay = c.LIRC.ReconnectDelay
	cfg.DialTimeout = c.LIRC.DialTimeout
	cfg.WriteTimeout = c.LIRC.WriteTimeout
	return cfg
}
