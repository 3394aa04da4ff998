package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tfp-protocol/tfp-go/pkg/log"
)

// ErrSessionClosed is returned by Send after Shutdown.
var ErrSessionClosed = errors.New("session closed")

// Session owns one connected socket. Send may be called from any number of
// goroutines; Receive is meant for a single reader.
type Session struct {
	conn    net.Conn
	capture *log.Capture

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps conn. capture may be nil.
func NewSession(conn net.Conn, capture *log.Capture) *Session {
	return &Session{conn: conn, capture: capture}
}

// Send writes b in full. Concurrent callers never interleave partial
// writes. Failures are reported, never retried.
func (s *Session) Send(b []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}

	s.writeMu.Lock()
	n, err := s.conn.Write(b)
	s.writeMu.Unlock()

	if err != nil {
		s.capture.Error(log.LayerTransport, err, "send")
		return n, fmt.Errorf("send: %w", err)
	}
	s.capture.Frame(log.DirectionOut, b)
	return n, nil
}

// Receive performs one blocking read into buf. It returns io.EOF once the
// peer has closed the stream.
func (s *Session) Receive(buf []byte) (int, error) {
	n, err := s.conn.Read(buf)
	if n > 0 {
		s.capture.Frame(log.DirectionIn, buf[:n])
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if s.closed.Load() {
			return n, ErrSessionClosed
		}
		return n, fmt.Errorf("receive: %w", err)
	}
	return n, err
}

// Shutdown closes the socket, unblocking a concurrent Receive. It is safe
// to call more than once.
func (s *Session) Shutdown() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if tcp, ok := s.conn.(*net.TCPConn); ok {
			_ = tcp.CloseRead()
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Closed reports whether Shutdown was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	if a := s.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrSessionClosed)
}
