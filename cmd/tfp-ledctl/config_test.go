package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
host: brickd.local
port: 4280
timeout: 1s
auto_reconnect: false
log_level: debug
protocol_log: /tmp/session.tlog
strips:
  desk:
    uid: jGy
    leds: 60
    chip_type: ws2812
    frame_duration: 20ms
  shelf:
    uid: abc
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "brickd.local", cfg.Host)
	assert.Equal(t, 4280, cfg.Port)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.False(t, cfg.AutoReconnect)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/session.tlog", cfg.ProtocolLog)
	assert.Equal(t, []string{"desk", "shelf"}, cfg.StripNames())

	desk := cfg.Strips["desk"]
	assert.Equal(t, StripConfig{UID: "jGy", LEDs: 60, ChipType: "ws2812", FrameDuration: 20 * time.Millisecond}, desk)
}

func TestLoadConfigKeepsDefaultsForOmittedKeys(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "host: 10.0.0.2\n"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", cfg.Host)
	assert.Equal(t, 4223, cfg.Port)
	assert.True(t, cfg.AutoReconnect)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "host: [unterminated\n"},
		{"port", "port: 70000\n"},
		{"log level", "log_level: loud\n"},
		{"strip uid", "strips:\n  desk:\n    uid: \"0\"\n"},
		{"strip length", "strips:\n  desk:\n    uid: jGy\n    leds: 400\n"},
		{"chip type", "strips:\n  desk:\n    uid: jGy\n    chip_type: neopixel\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConfigStripResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strips = map[string]StripConfig{
		"desk":  {UID: "jGy", LEDs: 60},
		"shelf": {UID: "abc"},
	}

	s, err := cfg.Strip("desk")
	require.NoError(t, err)
	assert.Equal(t, 60, s.LEDs)

	s, err = cfg.Strip("shelf")
	require.NoError(t, err)
	assert.Equal(t, ledstrip.MaxLEDs, s.LEDs, "zero length means the whole strip")

	s, err = cfg.Strip("XYZ")
	require.NoError(t, err)
	assert.Equal(t, StripConfig{UID: "XYZ", LEDs: ledstrip.MaxLEDs}, s)

	_, err = cfg.Strip("no-such-strip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "desk, shelf")
}

func TestParseColor(t *testing.T) {
	c, err := parseColor([]string{"255", "0x10", "0"})
	require.NoError(t, err)
	assert.Equal(t, ledstrip.Color{R: 255, G: 16, B: 0}, c)

	_, err = parseColor([]string{"256", "0", "0"})
	assert.Error(t, err)
	_, err = parseColor([]string{"1", "2"})
	assert.Error(t, err)
}
