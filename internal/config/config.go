// Package config loads cdpctl settings from defaults, a TOML file and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds client configuration.
type Config struct {
	Host      string
	Port      int
	Timeout   time.Duration
	ReadLimit int64
	LogLevel  string
	LogFormat string
}

// Default returns the default configuration: the browser at localhost:9222.
func Default() Config {
	return Config{
		Host:      "localhost",
		Port:      9222,
		Timeout:   30 * time.Second,
		ReadLimit: 64 << 20,
		LogLevel:  "warn",
		LogFormat: "console",
	}
}

// DefaultPath returns the config file location, $XDG_CONFIG_HOME/cdpctl/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cdpctl", "config.toml")
}

type fileConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Timeout   string `toml:"timeout"`
	ReadLimit int64  `toml:"read_limit"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values. A missing file is not an error when optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		host := strings.TrimSpace(raw.Host)
		if host != "" {
			cfg.Host = host
		}
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("read_limit") {
		cfg.ReadLimit = raw.ReadLimit
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("read_limit must be positive, got %d", c.ReadLimit)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
