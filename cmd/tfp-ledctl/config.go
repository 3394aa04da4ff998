package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// Config is the on-disk tfp-ledctl configuration.
type Config struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Timeout       time.Duration `yaml:"timeout"`
	AutoReconnect bool          `yaml:"auto_reconnect"`
	LogLevel      string        `yaml:"log_level"`
	ProtocolLog   string        `yaml:"protocol_log"`
	MetricsAddr   string        `yaml:"metrics_addr"`

	// Strips maps a short name to an LED strip bricklet.
	Strips map[string]StripConfig `yaml:"strips"`
}

// StripConfig describes one LED strip bricklet.
type StripConfig struct {
	UID           string        `yaml:"uid"`
	LEDs          int           `yaml:"leds"`
	ChipType      string        `yaml:"chip_type"`
	FrameDuration time.Duration `yaml:"frame_duration"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Host:          "localhost",
		Port:          4223,
		Timeout:       2500 * time.Millisecond,
		AutoReconnect: true,
		LogLevel:      "info",
	}
}

// DefaultConfigPath returns ~/.tfp/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tfp", "config.yaml")
	}
	return filepath.Join(home, ".tfp", "config.yaml")
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and strip entries.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	for name, s := range c.Strips {
		if _, err := wire.DecodeUID(s.UID); err != nil {
			return fmt.Errorf("strip %q: %w", name, err)
		}
		if s.LEDs < 0 || s.LEDs > ledstrip.MaxLEDs {
			return fmt.Errorf("strip %q: leds %d out of range 0-%d", name, s.LEDs, ledstrip.MaxLEDs)
		}
		if s.ChipType != "" {
			if _, err := ledstrip.ParseChipType(strings.ToUpper(s.ChipType)); err != nil {
				return fmt.Errorf("strip %q: %w", name, err)
			}
		}
	}
	return nil
}

// Strip resolves a strip name or a raw UID. A raw UID gets the full
// strip length.
func (c Config) Strip(ref string) (StripConfig, error) {
	if s, ok := c.Strips[ref]; ok {
		if s.LEDs == 0 {
			s.LEDs = ledstrip.MaxLEDs
		}
		return s, nil
	}
	if _, err := wire.DecodeUID(ref); err != nil {
		return StripConfig{}, fmt.Errorf("unknown strip %q (known: %s)", ref, strings.Join(c.StripNames(), ", "))
	}
	return StripConfig{UID: ref, LEDs: ledstrip.MaxLEDs}, nil
}

// StripNames returns the configured strip names in sorted order.
func (c Config) StripNames() []string {
	names := make([]string, 0, len(c.Strips))
	for name := range c.Strips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", s)
	}
}
