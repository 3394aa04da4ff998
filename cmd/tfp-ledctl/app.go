package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tfp-protocol/tfp-go/pkg/ipcon"
	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	cfg    Config
	out    io.Writer
	logger *slog.Logger

	conn     *ipcon.Connection
	registry *prometheus.Registry
	capture  *log.FileLogger
	metrics  *http.Server
	// metricsAt is the bound metrics address, set when MetricsAddr is used.
	metricsAt net.Addr

	mu     sync.Mutex
	found  []wire.EnumerateEvent
	strips map[string]*ledstrip.LEDStrip
}

func newApp(cfg Config, out io.Writer) (*app, error) {
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		out:    out,
		logger: slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})),
		strips: make(map[string]*ledstrip.LEDStrip),
	}, nil
}

// connect opens the protocol capture and metrics endpoint if configured,
// then connects to the daemon.
func (a *app) connect(ctx context.Context) error {
	var protocolLogger log.Logger
	if a.cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(a.cfg.ProtocolLog)
		if err != nil {
			return fmt.Errorf("failed to create protocol logger: %w", err)
		}
		a.capture = fl
		a.logger.Info("protocol logging enabled", "path", a.cfg.ProtocolLog)
		protocolLogger = fl
	}
	if a.logger.Enabled(ctx, slog.LevelDebug) {
		protocolLogger = log.NewMultiLogger(protocolLogger, log.NewSlogAdapter(a.logger))
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	if a.cfg.MetricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}

	config := ipcon.DefaultConfig()
	config.Timeout = a.cfg.Timeout
	config.AutoReconnect = a.cfg.AutoReconnect
	config.Logger = a.logger
	config.Registerer = a.registry
	// Only set the logger when non-nil to avoid a typed-nil interface.
	if protocolLogger != nil {
		config.ProtocolLogger = protocolLogger
	}

	a.conn = ipcon.NewConnection(config)
	a.conn.OnEnumerate(a.handleEnumerate)
	a.conn.OnConnected(func(r ipcon.ConnectReason) {
		a.logger.Debug("connected", "reason", r)
	})
	a.conn.OnDisconnected(func(r ipcon.DisconnectReason) {
		a.logger.Warn("disconnected", "reason", r)
	})

	if err := a.conn.Connect(ctx, a.cfg.Host, a.cfg.Port); err != nil {
		return fmt.Errorf("connect %s:%d: %w", a.cfg.Host, a.cfg.Port, err)
	}
	return nil
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.metricsAt = ln.Addr()
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// close tears down in reverse order of connect.
func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		a.metrics.Shutdown(ctx)
		cancel()
	}
	if a.capture != nil {
		a.capture.Close()
	}
}

func (a *app) handleEnumerate(ev wire.EnumerateEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ev.EnumerationType == wire.EnumerationDisconnected {
		a.logger.Info("device removed", "uid", ev.UID)
		return
	}
	for i, f := range a.found {
		if f.UID == ev.UID {
			a.found[i] = ev
			return
		}
	}
	a.found = append(a.found, ev)
}

// strip returns a cached LED strip handle for a name or UID, applying the
// configured chip type and frame duration on first use.
func (a *app) strip(ctx context.Context, ref string) (*ledstrip.LEDStrip, StripConfig, error) {
	sc, err := a.cfg.Strip(ref)
	if err != nil {
		return nil, sc, err
	}

	a.mu.Lock()
	s, ok := a.strips[sc.UID]
	a.mu.Unlock()
	if ok && !s.Device().Replaced() {
		return s, sc, nil
	}

	var chip ledstrip.ChipType
	if sc.ChipType != "" {
		if chip, err = ledstrip.ParseChipType(strings.ToUpper(sc.ChipType)); err != nil {
			return nil, sc, fmt.Errorf("strip %q: %w", ref, err)
		}
	}

	s, err = ledstrip.New(a.conn, sc.UID)
	if err != nil {
		return nil, sc, err
	}
	if sc.ChipType != "" {
		if err := s.SetChipType(ctx, chip); err != nil {
			s.Release()
			return nil, sc, fmt.Errorf("set chip type: %w", err)
		}
	}
	if sc.FrameDuration > 0 {
		if err := s.SetFrameDuration(ctx, sc.FrameDuration); err != nil {
			s.Release()
			return nil, sc, fmt.Errorf("set frame duration: %w", err)
		}
	}

	a.mu.Lock()
	a.strips[sc.UID] = s
	a.mu.Unlock()
	return s, sc, nil
}

// enumerate broadcasts an enumerate request and prints what answered
// within wait.
func (a *app) enumerate(ctx context.Context, wait time.Duration) error {
	a.mu.Lock()
	a.found = nil
	a.mu.Unlock()

	if err := a.conn.Enumerate(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	a.mu.Lock()
	found := append([]wire.EnumerateEvent(nil), a.found...)
	a.mu.Unlock()

	if len(found) == 0 {
		fmt.Fprintln(a.out, "No devices found")
		return nil
	}
	fmt.Fprintf(a.out, "Found %d device(s):\n", len(found))
	for _, ev := range found {
		fmt.Fprintf(a.out, "  %-8s %-14s parent=%s pos=%c fw=%s\n",
			ev.UID, deviceName(ev.DeviceIdentifier), ev.ConnectedUID, ev.Position, version(ev.FirmwareVersion))
	}
	return nil
}

// identity accepts a strip name or any device UID.
func (a *app) identity(ctx context.Context, ref string) error {
	sc, err := a.cfg.Strip(ref)
	if err != nil {
		return err
	}
	a.mu.Lock()
	s, cached := a.strips[sc.UID]
	a.mu.Unlock()

	var d *ipcon.Device
	if cached && !s.Device().Replaced() {
		d = s.Device()
	} else {
		d, err = ipcon.NewDevice(a.conn, sc.UID, 0)
		if err != nil {
			return err
		}
		defer d.Release()
	}

	id, err := d.GetIdentity(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "UID:         %s\n", id.UID)
	fmt.Fprintf(a.out, "Device:      %s\n", deviceName(id.DeviceIdentifier))
	fmt.Fprintf(a.out, "Parent:      %s (position %c)\n", id.ConnectedUID, id.Position)
	fmt.Fprintf(a.out, "Hardware:    %s\n", version(id.HardwareVersion))
	fmt.Fprintf(a.out, "Firmware:    %s\n", version(id.FirmwareVersion))
	return nil
}

func (a *app) fill(ctx context.Context, ref string, c ledstrip.Color) error {
	s, sc, err := a.strip(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.Fill(ctx, sc.LEDs, c); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d LEDs set to #%02x%02x%02x\n", ref, sc.LEDs, c.R, c.G, c.B)
	return nil
}

func (a *app) voltage(ctx context.Context, ref string) error {
	s, _, err := a.strip(ctx, ref)
	if err != nil {
		return err
	}
	mv, err := s.SupplyVoltage(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %.3f V\n", ref, float64(mv)/1000)
	return nil
}

func (a *app) status() {
	fmt.Fprintf(a.out, "Daemon:   %s:%d\n", a.cfg.Host, a.cfg.Port)
	fmt.Fprintf(a.out, "State:    %s\n", a.conn.State())
	fmt.Fprintf(a.out, "Devices:  %d bound\n", a.conn.Devices())
	fmt.Fprintf(a.out, "Timeout:  %s\n", a.conn.Timeout())
	if a.capture != nil {
		fmt.Fprintf(a.out, "Capture:  %s (%d events)\n", a.capture.Path(), a.capture.Count())
	}
}

func deviceName(id uint16) string {
	switch id {
	case ledstrip.DeviceIdentifier:
		return "LED Strip"
	default:
		return fmt.Sprintf("device %d", id)
	}
}

func version(v [3]uint8) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}
