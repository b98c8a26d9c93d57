// Package config loads single-thread context settings from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Swind/go-thread-affinity/core"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Duration is a time.Duration written as a string ("250ms", "2s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds file-level settings for one context and its process.
//
//	name             = "ui"
//	grace_period     = "2s"
//	lock_os_thread   = true
//	history_capacity = 100
//	log_level        = "info"
//	metrics_addr     = ":2112"
type Config struct {
	Name            string   `toml:"name"`
	Grace           Duration `toml:"grace_period"`
	LockOSThread    bool     `toml:"lock_os_thread"`
	HistoryCapacity int      `toml:"history_capacity"`
	LogLevel        string   `toml:"log_level"`
	MetricsAddr     string   `toml:"metrics_addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Name:            "affinity-demo",
		Grace:           Duration{time.Second},
		HistoryCapacity: 100,
		LogLevel:        "info",
	}
}

// Load reads path over Default(). Unknown keys are an error so that typos
// do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Grace.Duration < 0 {
		return fmt.Errorf("%w: grace_period must not be negative, got %s", ErrInvalidConfig, c.Grace)
	}
	if c.HistoryCapacity < 0 {
		return fmt.Errorf("%w: history_capacity must not be negative, got %d", ErrInvalidConfig, c.HistoryCapacity)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// GracePeriod returns the shutdown grace period.
func (c Config) GracePeriod() time.Duration {
	return c.Grace.Duration
}

// ContextConfig builds a core.ContextConfig from the file settings. Logger,
// Metrics and DiagnosticSink are left for the caller to wire.
func (c Config) ContextConfig() *core.ContextConfig {
	return &core.ContextConfig{
		Name:            c.Name,
		LockOSThread:    c.LockOSThread,
		HistoryCapacity: c.HistoryCapacity,
	}
}
