package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

// DefaultPort is the brick daemon's TCP port.
const DefaultPort = 4223

// Dial errors.
var (
	// ErrHostUnresolvable indicates the host name could not be resolved.
	ErrHostUnresolvable = errors.New("host could not be resolved")

	// ErrSocketCreateFailed indicates the local socket could not be created.
	ErrSocketCreateFailed = errors.New("socket could not be created")

	// ErrConnectRefused indicates the peer did not accept the connection.
	ErrConnectRefused = errors.New("connection could not be established")
)

// Dial resolves host and opens a TCP connection to it. Addresses are tried
// in resolver order until one accepts. A zero timeout means no limit beyond
// ctx.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: %v", ErrHostUnresolvable, host, err)
	}

	d := net.Dialer{Timeout: timeout}
	var lastErr error
	for _, a := range addrs {
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(a, strconv.Itoa(port)))
		if err == nil {
			if tcp, ok := conn.(*net.TCPConn); ok {
				_ = tcp.SetNoDelay(true)
			}
			return conn, nil
		}
		lastErr = err
		if isSocketCreateError(err) {
			return nil, fmt.Errorf("%w: %v", ErrSocketCreateFailed, err)
		}
	}
	return nil, fmt.Errorf("%w: %s:%d: %v", ErrConnectRefused, host, port, lastErr)
}

func isSocketCreateError(err error) bool {
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) && sysErr.Syscall == "socket" {
		return true
	}
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}
