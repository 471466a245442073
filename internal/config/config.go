package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/gopop/internal/logging"
	"github.com/me/gopop/pkg/model"
)

// ServerConfig holds configuration for the GoPop server.
type ServerConfig struct {
	Addr      string         `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string         `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string         `yaml:"log_format"` // Log format: text, json
	DBPath    string         `yaml:"db_path"`    // SQLite journal path (default ~/.gopop/gopop.db, ":memory:" for testing)
	Retention time.Duration  `yaml:"retention"`  // Journal events older than this are pruned; 0 keeps everything
	Interval  model.Interval `yaml:"interval"`   // Delay between presentations, handed to presenters
	Rules     RulesConfig    `yaml:"rules"`
}

// RulesConfig configures show_if evaluation.
type RulesConfig struct {
	// DefaultShowIf applies to requests admitted without their own rule.
	// Empty means "always show".
	DefaultShowIf string `yaml:"default_show_if"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: logging.FormatText,
		Interval:  model.DefaultInterval(),
	}
}

// LoadFile reads a YAML config file on top of the defaults. Keys absent from
// the file keep their default values.
func LoadFile(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that have a closed set of values.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("retention must be >= 0, got %s", c.Retention))
	}
	if err := c.Interval.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
