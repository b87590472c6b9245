// Package config loads deskpin's YAML configuration. Everything has a
// sensible default; a missing config file is not an error.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the effective deskpin configuration.
//
// The sweep interval and sibling scan depth are empirical tunables: the
// defaults match observed shell behavior, but nothing depends on the exact
// values beyond "bounded and positive".
type Config struct {
	// SweepInterval is how often the consistency sweep runs while windows
	// are attached.
	SweepInterval Duration `yaml:"sweep_interval"`
	// SiblingScanDepth bounds the Z-order sibling walk when checking
	// whether the icon layer has intruded above attached windows.
	SiblingScanDepth int `yaml:"sibling_scan_depth"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SweepInterval:    Duration(2 * time.Second),
		SiblingScanDepth: 20,
		LogLevel:         "info",
	}
}

// Validate checks the tunables.
func (c *Config) Validate() error {
	if time.Duration(c.SweepInterval) <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", time.Duration(c.SweepInterval))
	}
	if c.SiblingScanDepth <= 0 {
		return fmt.Errorf("sibling_scan_depth must be positive, got %d", c.SiblingScanDepth)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts the configured level for use with log/slog.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
}
