// Package config loads keyecho settings from TOML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Source kinds
const (
	SourceStdin = "stdin"
	SourceTty   = "tty"
)

// Config holds keyecho settings
type Config struct {
	Source       string `toml:"source"`
	StartActive  bool   `toml:"start_active"`
	BeepOnReturn bool   `toml:"beep_on_return"`
	LogFile      string `toml:"log_file"`
	LogLevel     string `toml:"log_level"`

	// Audio feedback tuning
	SampleRate    int     `toml:"sample_rate"`
	BeepFrequency float64 `toml:"beep_frequency"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Source:        SourceStdin,
		StartActive:   true,
		LogLevel:      "info",
		SampleRate:    44100,
		BeepFrequency: 880,
	}
}

// Load reads path over the defaults, then applies RAWKEY_* environment overrides.
// An empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only
		case err != nil:
			return nil, fmt.Errorf("config %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment; malformed values are ignored
func applyEnv(cfg *Config) {
	if v := os.Getenv("RAWKEY_SOURCE"); v != "" {
		cfg.Source = strings.ToLower(v)
	}
	if v := os.Getenv("RAWKEY_START_ACTIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StartActive = b
		}
	}
	if v := os.Getenv("RAWKEY_BEEP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.BeepOnReturn = b
		}
	}
	if v := os.Getenv("RAWKEY_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("RAWKEY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

// Validate rejects unknown enumerations and non-positive audio settings
func (c *Config) Validate() error {
	switch c.Source {
	case SourceStdin, SourceTty:
	default:
		return fmt.Errorf("config: unknown source %q", c.Source)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BeepFrequency <= 0 {
		return fmt.Errorf("config: beep_frequency must be positive, got %g", c.BeepFrequency)
	}
	return nil
}

// Level returns the slog level for LogLevel, info when unset
func (c *Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log_level %q", s)
}
