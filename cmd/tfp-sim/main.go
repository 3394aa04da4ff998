// Command tfp-sim runs a simulated brick daemon with LED strip bricklets.
//
// It speaks the same TCP protocol as a real daemon, so tfp-ledctl and any
// pkg/ipcon application can be pointed at it.
//
// Usage:
//
//	tfp-sim [flags]
//
// Flags:
//
//	-listen string        Listen address (default "127.0.0.1:4223")
//	-strips int           Number of simulated LED strips (default 1)
//	-uids string          Comma-separated strip UIDs (generated if empty)
//	-render               Render frames and send frame-rendered callbacks (default true)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write a protocol capture (.tlog) to this file
//
// Examples:
//
//	# Three strips on the default port
//	tfp-sim -strips 3
//
//	# Fixed UIDs and a capture file
//	tfp-sim -uids jGy,abc -protocol-log sim.tlog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tfp-protocol/tfp-go/internal/simulator"
	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// Options holds the command-line configuration.
type Options struct {
	Listen      string
	Strips      int
	UIDs        string
	Render      bool
	LogLevel    string
	ProtocolLog string
}

// firstUID is the numeric UID of the first generated strip.
const firstUID = 100000

func main() {
	var opts Options
	flag.StringVar(&opts.Listen, "listen", "127.0.0.1:4223", "Listen address")
	flag.IntVar(&opts.Strips, "strips", 1, "Number of simulated LED strips")
	flag.StringVar(&opts.UIDs, "uids", "", "Comma-separated strip UIDs (generated if empty)")
	flag.BoolVar(&opts.Render, "render", true, "Render frames and send frame-rendered callbacks")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write a protocol capture (.tlog) to this file")
	flag.Parse()

	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

// run serves until ctx is cancelled.
func run(ctx context.Context, opts Options, logger *slog.Logger) error {
	d, err := start(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer d.stop()

	for _, uid := range d.uids {
		logger.Info("LED strip ready", "uid", uid, "addr", d.sim.Addr())
	}
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// daemon is a running simulator with its strips.
type daemon struct {
	sim     *simulator.Simulator
	strips  []*ledstrip.SimulatedStrip
	uids    []string
	capture *log.FileLogger
	cancel  context.CancelFunc
}

func start(ctx context.Context, opts Options, logger *slog.Logger) (*daemon, error) {
	uids, err := stripUIDs(opts)
	if err != nil {
		return nil, err
	}

	cfg := simulator.Config{Address: opts.Listen, Logger: logger}
	var capture *log.FileLogger
	if opts.ProtocolLog != "" {
		capture, err = log.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		cfg.ProtocolLogger = capture
		logger.Info("protocol logging enabled", "path", opts.ProtocolLog)
	}

	sim := simulator.New(cfg)
	strips := make([]*ledstrip.SimulatedStrip, 0, len(uids))
	for _, uid := range uids {
		s := ledstrip.NewSimulatedStrip()
		if _, err := sim.AddBehavior(uid, s); err != nil {
			if capture != nil {
				capture.Close()
			}
			return nil, err
		}
		strips = append(strips, s)
	}

	if err := sim.Start(ctx); err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if opts.Render {
		for _, s := range strips {
			go s.Run(runCtx)
		}
	}

	return &daemon{sim: sim, strips: strips, uids: uids, capture: capture, cancel: cancel}, nil
}

func (d *daemon) stop() {
	d.cancel()
	d.sim.Stop()
	if d.capture != nil {
		d.capture.Close()
	}
}

// stripUIDs returns the explicit UID list or opts.Strips generated ones.
func stripUIDs(opts Options) ([]string, error) {
	if opts.UIDs != "" {
		var uids []string
		for _, u := range strings.Split(opts.UIDs, ",") {
			u = strings.TrimSpace(u)
			if _, err := wire.DecodeUID(u); err != nil {
				return nil, fmt.Errorf("invalid uid %q: %w", u, err)
			}
			uids = append(uids, u)
		}
		return uids, nil
	}
	if opts.Strips < 1 {
		return nil, fmt.Errorf("strips must be at least 1, got %d", opts.Strips)
	}
	uids := make([]string, opts.Strips)
	for i := range uids {
		uids[i] = wire.EncodeUID(uint32(firstUID + i))
	}
	return uids, nil
}
