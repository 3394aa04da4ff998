// Command tfp-ledctl controls LED strip bricklets through a brick daemon.
//
// Usage:
//
//	tfp-ledctl [global flags] <command> [args]
//
// Examples:
//
//	# List devices attached to the daemon
//	tfp-ledctl enumerate
//
//	# Fill a configured strip with orange
//	tfp-ledctl fill desk 255 80 0
//
//	# Interactive shell with metrics exported on :9110
//	tfp-ledctl --metrics-addr :9110 shell
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
)

// globalFlags are bound to the root command's persistent flags.
type globalFlags struct {
	configFile  string
	host        string
	port        int
	timeout     time.Duration
	logLevel    string
	protocolLog string
	metricsAddr string
	noReconnect bool
}

// session is filled in by the root command before any subcommand runs.
type session struct {
	flags globalFlags
	app   *app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs one invocation and always releases what setup acquired.
func execute(ctx context.Context, out io.Writer, args []string) error {
	s := &session{}
	root := newRootCmd(s, out)
	root.SetArgs(args)
	defer func() {
		if s.app != nil {
			s.app.close()
		}
	}()
	return root.ExecuteContext(ctx)
}

func newRootCmd(s *session, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "tfp-ledctl",
		Short: "Control LED strip bricklets over TFP",
		Long: `tfp-ledctl talks to a brick daemon over TCP and drives LED strip
bricklets attached to it. Named strips and connection defaults are read
from ~/.tfp/config.yaml; flags override the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup(cmd, out)
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVar(&s.flags.configFile, "config", "", "config file (default is ~/.tfp/config.yaml)")
	pf.StringVar(&s.flags.host, "host", "", "brick daemon host")
	pf.IntVar(&s.flags.port, "port", 0, "brick daemon port")
	pf.DurationVar(&s.flags.timeout, "timeout", 0, "response timeout")
	pf.StringVar(&s.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&s.flags.protocolLog, "protocol-log", "", "write a protocol capture (.tlog) to this file")
	pf.StringVar(&s.flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.BoolVar(&s.flags.noReconnect, "no-reconnect", false, "disable auto-reconnect")

	root.AddCommand(
		enumerateCmd(s),
		identityCmd(s),
		fillCmd(s),
		offCmd(s),
		voltageCmd(s),
		shellCmd(s),
	)
	return root
}

// setup loads the config file, applies flag overrides and connects.
func (s *session) setup(cmd *cobra.Command, out io.Writer) error {
	path := s.flags.configFile
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = s.flags.host
	}
	if f.Changed("port") {
		cfg.Port = s.flags.port
	}
	if f.Changed("timeout") {
		cfg.Timeout = s.flags.timeout
	}
	if f.Changed("log-level") {
		cfg.LogLevel = s.flags.logLevel
	}
	if f.Changed("protocol-log") {
		cfg.ProtocolLog = s.flags.protocolLog
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = s.flags.metricsAddr
	}
	if s.flags.noReconnect {
		cfg.AutoReconnect = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	s.app = a
	return a.connect(cmd.Context())
}

func enumerateCmd(s *session) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "enumerate",
		Short: "List devices attached to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.enumerate(cmd.Context(), wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 500*time.Millisecond, "how long to collect replies")
	return cmd
}

func identityCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "identity <uid|strip>",
		Short: "Query a device's identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.identity(cmd.Context(), args[0])
		},
	}
}

func fillCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "fill <strip> <r> <g> <b>",
		Short: "Set every LED of a strip to one color",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseColor(args[1:])
			if err != nil {
				return err
			}
			return s.app.fill(cmd.Context(), args[0], c)
		},
	}
}

func offCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "off <strip>",
		Short: "Turn every LED of a strip off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.fill(cmd.Context(), args[0], ledstrip.Color{})
		},
	}
}

func voltageCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "voltage <strip>",
		Short: "Read a strip's supply voltage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.app.voltage(cmd.Context(), args[0])
		},
	}
}

func shellCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := newShell(s.app)
			if err != nil {
				return err
			}
			return sh.run(cmd.Context())
		},
	}
}

// parseColor parses three 0-255 components.
func parseColor(args []string) (ledstrip.Color, error) {
	if len(args) != 3 {
		return ledstrip.Color{}, fmt.Errorf("expected r g b, got %d values", len(args))
	}
	var v [3]uint8
	for i, a := range args {
		n, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return ledstrip.Color{}, fmt.Errorf("invalid color component %q (must be 0-255)", a)
		}
		v[i] = uint8(n)
	}
	return ledstrip.Color{R: v[0], G: v[1], B: v[2]}, nil
}
