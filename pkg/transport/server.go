package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// ServerConfig configures a packet server.
type ServerConfig struct {
	// Address to listen on (default: 127.0.0.1:4223).
	Address string

	// Logger receives protocol capture events. Optional.
	Logger log.Logger

	// OnConnect is called when a client connects.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a client disconnects.
	OnDisconnect func(conn *ServerConn)

	// OnPacket is called for every complete packet, in arrival order.
	OnPacket func(conn *ServerConn, p wire.Packet)

	// OnError is called on accept or stream errors.
	OnError func(conn *ServerConn, err error)
}

// Server accepts TCP clients and reassembles their packets.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf("127.0.0.1:%d", DefaultPort)
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}
}

// Start begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every client, then waits for all
// connection goroutines.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	s.listener.Close()

	s.CloseAll()
	s.wg.Wait()
	return nil
}

// CloseAll drops every connected client without stopping the listener.
func (s *Server) CloseAll() {
	s.connsMu.RLock()
	conns := make([]*ServerConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of connected clients.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// Connections returns a snapshot of connected clients.
func (s *Server) Connections() []*ServerConn {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	out := make([]*ServerConn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	capture := log.NewCapture(s.config.Logger, connID, log.RoleSimulator, conn.RemoteAddr().String())

	sconn := &ServerConn{
		session: NewSession(conn, capture),
		connID:  connID,
	}

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	capture.State(log.StateEntityConnection, "", "CONNECTED", "")
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	s.readLoop(sconn)

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	sconn.Close()
	capture.State(log.StateEntityConnection, "CONNECTED", "DISCONNECTED", "")
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) readLoop(c *ServerConn) {
	r := NewPacketReader()
	for {
		n, err := r.ReadFrom(c.session)
		if n == 0 && err == nil {
			continue
		}
		for {
			p, ok, perr := r.Next()
			if perr != nil {
				if s.config.OnError != nil {
					s.config.OnError(c, perr)
				}
				return
			}
			if !ok {
				break
			}
			if s.config.OnPacket != nil {
				s.config.OnPacket(c, p)
			}
		}
		if err != nil {
			if s.config.OnError != nil && !c.session.Closed() && s.running.Load() && !isEOF(err) {
				s.config.OnError(c, err)
			}
			return
		}
	}
}

// ServerConn is one accepted client.
type ServerConn struct {
	session *Session
	connID  string

	sendMu    sync.Mutex
	chunkSize atomic.Int32
}

// ConnID returns the connection's capture ID.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// RemoteAddr returns the client address.
func (c *ServerConn) RemoteAddr() string {
	return c.session.RemoteAddr()
}

// SetChunkSize makes Send split writes into n-byte pieces. Zero disables
// splitting.
func (c *ServerConn) SetChunkSize(n int) {
	c.chunkSize.Store(int32(n))
}

// Send writes a packet to the client.
func (c *ServerConn) Send(p wire.Packet) error {
	return c.SendBytes(p.Bytes())
}

// SendBytes writes raw bytes to the client, split like Send. It does not
// check that b holds well-formed packets.
func (c *ServerConn) SendBytes(b []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	chunk := int(c.chunkSize.Load())
	if chunk <= 0 || chunk >= len(b) {
		_, err := c.session.Send(b)
		return err
	}
	for len(b) > 0 {
		n := min(chunk, len(b))
		if _, err := c.session.Send(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Close disconnects the client.
func (c *ServerConn) Close() error {
	return c.session.Shutdown()
}
