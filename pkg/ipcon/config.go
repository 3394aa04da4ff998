package ipcon

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tfp-protocol/tfp-go/pkg/connection"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/transport"
)

// Default timings.
const (
	// DefaultTimeout bounds the wait for a correlated response.
	DefaultTimeout = 2500 * time.Millisecond

	// DefaultDialTimeout bounds a single connect attempt.
	DefaultDialTimeout = 5 * time.Second
)

// Config configures a Connection.
type Config struct {
	// Timeout bounds the wait for a correlated response.
	Timeout time.Duration

	// HeartbeatInterval is the idle time after which a probe is sent.
	HeartbeatInterval time.Duration

	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration

	// AutoReconnect enables reconnecting after an unexpected disconnect.
	AutoReconnect bool

	// Reconnect paces reconnect attempts.
	Reconnect connection.BackoffConfig

	// Logger receives operational logs. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events. Optional.
	ProtocolLogger log.Logger

	// Registerer receives the connection's metrics. If nil, metrics are
	// kept in a private registry.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		HeartbeatInterval: transport.DefaultHeartbeatInterval,
		DialTimeout:       DefaultDialTimeout,
		AutoReconnect:     true,
		Reconnect:         connection.DefaultBackoffConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = transport.DefaultHeartbeatInterval
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}
