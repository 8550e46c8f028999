package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SuppressionConfig controls which windows are hidden while a presentation
// session holds a token, and how long sessions may live.
type SuppressionConfig struct {
	// Enabled turns dock suppression on/off
	Enabled bool `yaml:"enabled"`
	// WindowTypes lists the _NET_WM_WINDOW_TYPE atoms to hide (default: dock)
	WindowTypes []string `yaml:"window_types,omitempty"`
	// MaxHoldSeconds force-releases sessions armed for longer (0 disables)
	MaxHoldSeconds int `yaml:"max_hold_seconds"`
	// SessionTTLSeconds prunes released sessions older than this
	SessionTTLSeconds int `yaml:"session_ttl_seconds"`
}

// HotkeyConfig holds xgbutil key sequences. Empty disables a binding.
type HotkeyConfig struct {
	Refresh string `yaml:"refresh"`
	Present string `yaml:"present"`
}

// Config represents the displayd configuration.
type Config struct {
	LogLevel               string            `yaml:"log_level"`
	RefreshIntervalSeconds int               `yaml:"refresh_interval_seconds"`
	AccurateOnStart        bool              `yaml:"accurate_on_start"`
	Suppression            SuppressionConfig `yaml:"suppression"`
	Hotkeys                HotkeyConfig      `yaml:"hotkeys"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:               "info",
		RefreshIntervalSeconds: 5,
		AccurateOnStart:        false,
		Suppression: SuppressionConfig{
			Enabled:           true,
			WindowTypes:       []string{"_NET_WM_WINDOW_TYPE_DOCK"},
			MaxHoldSeconds:    600,
			SessionTTLSeconds: 300,
		},
		Hotkeys: HotkeyConfig{
			Refresh: "Mod4-Mod1-r",
			Present: "Mod4-Mod1-p",
		},
	}
}

// RefreshInterval returns the reconciler period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// MaxHold returns the longest a session may stay armed; zero means no limit.
func (c *Config) MaxHold() time.Duration {
	return time.Duration(c.Suppression.MaxHoldSeconds) * time.Second
}

// SessionTTL returns how long released sessions are kept for listing.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Suppression.SessionTTLSeconds) * time.Second
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.RefreshIntervalSeconds <= 0 {
		return &ValidationError{Path: "refresh_interval_seconds", Err: fmt.Errorf("refresh_interval_seconds must be > 0")}
	}
	if c.Suppression.MaxHoldSeconds < 0 {
		return &ValidationError{Path: "suppression.max_hold_seconds", Err: fmt.Errorf("max_hold_seconds must be >= 0")}
	}
	if c.Suppression.SessionTTLSeconds < 0 {
		return &ValidationError{Path: "suppression.session_ttl_seconds", Err: fmt.Errorf("session_ttl_seconds must be >= 0")}
	}
	for i, wt := range c.Suppression.WindowTypes {
		if !strings.HasPrefix(wt, "_NET_WM_WINDOW_TYPE_") {
			return &ValidationError{
				Path: fmt.Sprintf("suppression.window_types[%d]", i),
				Err:  fmt.Errorf("%q is not a _NET_WM_WINDOW_TYPE_* atom", wt),
			}
		}
	}
	if c.Hotkeys.Refresh != "" && c.Hotkeys.Refresh == c.Hotkeys.Present {
		return &ValidationError{Path: "hotkeys", Err: fmt.Errorf("refresh and present hotkeys must differ")}
	}
	return nil
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments
// from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
