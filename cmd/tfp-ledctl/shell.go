package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
)

// shell is the interactive command loop of tfp-ledctl shell.
type shell struct {
	app *app
	rl  *readline.Instance
}

func newShell(a *app) (*shell, error) {
	stripNames := func(string) []string { return a.cfg.StripNames() }
	completer := readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("enumerate"),
		readline.PcItem("identity", readline.PcItemDynamic(stripNames)),
		readline.PcItem("fill", readline.PcItemDynamic(stripNames)),
		readline.PcItem("off", readline.PcItemDynamic(stripNames)),
		readline.PcItem("voltage", readline.PcItemDynamic(stripNames)),
		readline.PcItem("strips"),
		readline.PcItem("status"),
		readline.PcItem("timeout"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tfp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	// Output goes through readline so it does not clobber the prompt.
	a.out = rl.Stdout()
	return &shell{app: a, rl: rl}, nil
}

func (s *shell) run(ctx context.Context) error {
	defer s.rl.Close()

	s.app.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(s.app.out, "Exiting...")
			return nil
		}

		if quit := s.app.dispatch(ctx, line); quit {
			fmt.Fprintln(s.app.out, "Exiting...")
			return nil
		}
	}
}

// dispatch runs one shell line and reports whether the shell should exit.
// Command errors are printed, not returned.
func (a *app) dispatch(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		a.printHelp()

	case "enumerate", "enum", "e":
		wait := 500 * time.Millisecond
		if len(args) > 0 {
			wait, err = time.ParseDuration(args[0])
			if err != nil {
				break
			}
		}
		err = a.enumerate(ctx, wait)

	case "identity", "id":
		if err = needArgs(args, 1, "identity <uid|strip>"); err == nil {
			err = a.identity(ctx, args[0])
		}

	case "fill", "f":
		if err = needArgs(args, 4, "fill <strip> <r> <g> <b>"); err == nil {
			c, perr := parseColor(args[1:])
			if perr != nil {
				err = perr
				break
			}
			err = a.fill(ctx, args[0], c)
		}

	case "off":
		if err = needArgs(args, 1, "off <strip>"); err == nil {
			err = a.fill(ctx, args[0], ledstrip.Color{})
		}

	case "voltage", "v":
		if err = needArgs(args, 1, "voltage <strip>"); err == nil {
			err = a.voltage(ctx, args[0])
		}

	case "strips", "ls":
		a.printStrips()

	case "status":
		a.status()

	case "timeout":
		if err = needArgs(args, 1, "timeout <duration>"); err == nil {
			var d time.Duration
			if d, err = time.ParseDuration(args[0]); err == nil {
				a.conn.SetTimeout(d)
				fmt.Fprintf(a.out, "Timeout set to %s\n", a.conn.Timeout())
			}
		}

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(a.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return false
}

func needArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (a *app) printStrips() {
	names := a.cfg.StripNames()
	if len(names) == 0 {
		fmt.Fprintln(a.out, "No strips configured")
		return
	}
	for _, name := range names {
		sc := a.cfg.Strips[name]
		chip := sc.ChipType
		if chip == "" {
			chip = "-"
		}
		fmt.Fprintf(a.out, "  %-12s uid=%-8s leds=%-3d chip=%s\n", name, sc.UID, sc.LEDs, chip)
	}
}

func (a *app) printHelp() {
	fmt.Fprintln(a.out, `
TFP LED Commands:
  Devices:
    enumerate [wait]           - List devices attached to the daemon
    identity <uid|strip>       - Query a device's identity

  LED Strips:
    strips                     - List configured strips
    fill <strip> <r> <g> <b>   - Set every LED to one color
    off <strip>                - Turn every LED off
    voltage <strip>            - Read supply voltage

  General:
    status                     - Show connection status
    timeout <duration>         - Change the response timeout
    help                       - Show this help
    quit                       - Exit shell`)
}
