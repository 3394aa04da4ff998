package ipcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/transport"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// generation is one live socket with its workers. Cancelling ctx is the
// shutdown signal for the receive loop and the heartbeat.
type generation struct {
	id        uint64
	session   *transport.Session
	capture   *log.Capture
	heartbeat *transport.Heartbeat

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lost is set once the generation has been reported as disconnected.
	lost atomic.Bool
	// detached is set under socketMu when Disconnect takes g down.
	detached bool
}

// stop shuts the socket and joins both workers. Callers must not hold
// socketMu.
func (g *generation) stop() {
	g.lost.Store(true)
	g.cancel()
	_ = g.session.Shutdown()
	g.wg.Wait()
}

// Connection manages the session to one brick daemon.
type Connection struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics

	seq        sequencer
	devices    *registry
	dispatcher *dispatcher

	timeout       atomic.Int64
	autoReconnect atomic.Bool

	// dispatchAllowed is cleared by an explicit disconnect so queued
	// packets of the old session are drained without being delivered. The
	// dispatcher sets it again when it dequeues the Connected event of the
	// current generation.
	dispatchAllowed atomic.Bool

	socketMu             sync.Mutex
	gen                  *generation
	genID                uint64
	host                 string
	port                 int
	autoReconnectAllowed bool
	reconnectPending     bool
	reconnectCancel      context.CancelFunc
	reconnectRound       uint64

	handlersMu     sync.RWMutex
	onEnumerate    func(wire.EnumerateEvent)
	onConnected    func(ConnectReason)
	onDisconnected func(DisconnectReason)

	closed atomic.Bool
}

// NewConnection creates a disconnected Connection.
func NewConnection(config Config) *Connection {
	config = config.withDefaults()

	c := &Connection{
		config:  config,
		logger:  config.Logger,
		metrics: newMetrics(config.Registerer),
		devices: newRegistry(),
	}
	c.dispatcher = newDispatcher(c.metrics.setQueueDepth)
	c.timeout.Store(int64(config.Timeout))
	c.autoReconnect.Store(config.AutoReconnect)
	return c
}

// SetTimeout sets how long correlated requests wait for a response.
func (c *Connection) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	c.timeout.Store(int64(d))
}

// Timeout returns the response timeout.
func (c *Connection) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// SetAutoReconnect enables or disables reconnecting after an unexpected
// disconnect. Disabling it also ends a reconnect already in progress.
func (c *Connection) SetAutoReconnect(enabled bool) {
	c.autoReconnect.Store(enabled)
	if !enabled {
		c.socketMu.Lock()
		c.cancelReconnectLocked()
		c.socketMu.Unlock()
	}
}

// AutoReconnect reports whether auto-reconnect is enabled.
func (c *Connection) AutoReconnect() bool {
	return c.autoReconnect.Load()
}

// OnEnumerate sets the handler for enumerate replies. Replies that arrive
// while no handler is set are dropped.
func (c *Connection) OnEnumerate(handler func(wire.EnumerateEvent)) {
	c.handlersMu.Lock()
	c.onEnumerate = handler
	c.handlersMu.Unlock()
}

// OnConnected sets the handler for Connected events.
func (c *Connection) OnConnected(handler func(ConnectReason)) {
	c.handlersMu.Lock()
	c.onConnected = handler
	c.handlersMu.Unlock()
}

// OnDisconnected sets the handler for Disconnected events.
func (c *Connection) OnDisconnected(handler func(DisconnectReason)) {
	c.handlersMu.Lock()
	c.onDisconnected = handler
	c.handlersMu.Unlock()
}

// State returns the connection state.
func (c *Connection) State() State {
	c.socketMu.Lock()
	defer c.socketMu.Unlock()
	switch {
	case c.gen != nil && !c.gen.lost.Load():
		return StateConnected
	case c.reconnectPending:
		return StateReconnectPending
	default:
		return StateDisconnected
	}
}

// Connect opens a session to host:port. It cancels a pending reconnect.
func (c *Connection) Connect(ctx context.Context, host string, port int) error {
	if c.closed.Load() {
		return fmt.Errorf("%w: connection closed", ErrWorkerStartFailed)
	}

	c.socketMu.Lock()
	if c.liveLocked() {
		c.socketMu.Unlock()
		return ErrAlreadyConnected
	}
	c.cancelReconnectLocked()
	c.host, c.port = host, port
	c.socketMu.Unlock()

	if err := c.dispatcher.start(c.handle); err != nil {
		return err
	}

	netConn, err := transport.Dial(ctx, host, port, c.config.DialTimeout)
	if err != nil {
		c.logger.Debug("connect failed", "host", host, "port", port, "error", err)
		return err
	}

	c.socketMu.Lock()
	defer c.socketMu.Unlock()
	if c.liveLocked() {
		netConn.Close()
		return ErrAlreadyConnected
	}
	c.installLocked(netConn, ConnectReasonRequest)
	return nil
}

// Disconnect closes the session, or cancels a pending reconnect.
func (c *Connection) Disconnect() error {
	c.socketMu.Lock()
	c.autoReconnectAllowed = false

	var g *generation
	switch {
	case c.reconnectPending:
		c.cancelReconnectLocked()
	case c.liveLocked():
		g = c.gen
		g.detached = true
		c.gen = nil
	default:
		c.socketMu.Unlock()
		return ErrNotConnected
	}
	c.dispatchAllowed.Store(false)
	c.socketMu.Unlock()

	if g != nil {
		g.capture.State(log.StateEntityConnection, "CONNECTED", "DISCONNECTED", DisconnectReasonRequest.String())
		g.stop()
	}
	c.logger.Info("disconnected", "reason", DisconnectReasonRequest)
	c.metrics.disconnects.WithLabelValues(DisconnectReasonRequest.String()).Inc()
	c.dispatcher.put(queueItem{kind: itemDisconnected, disconnectReason: DisconnectReasonRequest})
	return nil
}

// Close disconnects and stops the dispatcher after it has delivered every
// queued event. The Connection cannot be reused. Close must not be called
// from a handler.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if err := c.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	c.dispatcher.stop()
	return nil
}

// Enumerate asks every device behind the daemon to announce itself.
func (c *Connection) Enumerate() error {
	p, err := wire.NewPacket(wire.BroadcastUID, wire.FunctionEnumerate, c.seq.next(), false, nil)
	if err != nil {
		return err
	}
	g, err := c.current()
	if err != nil {
		return err
	}
	g.capture.Control(log.DirectionOut, log.ControlMsgEnumerate)
	return c.sendOn(g, p, "")
}

// Devices returns the number of registered device handles.
func (c *Connection) Devices() int {
	return c.devices.len()
}

func (c *Connection) liveLocked() bool {
	return c.gen != nil && !c.gen.lost.Load()
}

func (c *Connection) cancelReconnectLocked() {
	if c.reconnectCancel != nil {
		c.reconnectCancel()
		c.reconnectCancel = nil
	}
	c.reconnectPending = false
}

// installLocked starts a new socket generation. socketMu must be held.
func (c *Connection) installLocked(netConn net.Conn, reason ConnectReason) {
	c.genID++
	connID := uuid.New().String()
	capture := log.NewCapture(c.config.ProtocolLogger, connID, log.RoleClient, netConn.RemoteAddr().String())

	ctx, cancel := context.WithCancel(context.Background())
	g := &generation{
		id:      c.genID,
		session: transport.NewSession(netConn, capture),
		capture: capture,
		ctx:     ctx,
		cancel:  cancel,
	}
	g.heartbeat = transport.NewHeartbeat(c.config.HeartbeatInterval,
		func() error { return c.probe(g) },
		func(err error) { c.handleDisconnectByPeer(g, DisconnectReasonError, err) })

	c.gen = g
	c.autoReconnectAllowed = true
	c.reconnectPending = false

	capture.State(log.StateEntityConnection, "DISCONNECTED", "CONNECTED", reason.String())
	c.logger.Info("connected",
		"host", c.host,
		"port", c.port,
		"reason", reason,
		"generation", g.id,
		"conn_id", connID)
	c.metrics.connects.WithLabelValues(reason.String()).Inc()

	// Queued before the receive loop starts so every packet of g lands
	// behind it.
	c.dispatcher.put(queueItem{kind: itemConnected, connectReason: reason, gen: g})

	g.wg.Add(2)
	go c.receiveLoop(g)
	go func() {
		defer g.wg.Done()
		g.heartbeat.Run(ctx)
	}()
}

func (c *Connection) current() (*generation, error) {
	c.socketMu.Lock()
	defer c.socketMu.Unlock()
	if !c.liveLocked() {
		return nil, ErrNotConnected
	}
	return c.gen, nil
}

// send writes a device packet on the current session. A write failure
// disconnects the session before the error is returned.
func (c *Connection) send(p wire.Packet, uid string) error {
	g, err := c.current()
	if err != nil {
		return err
	}
	return c.sendOn(g, p, uid)
}

func (c *Connection) sendOn(g *generation, p wire.Packet, uid string) error {
	if _, err := g.session.Send(p.Bytes()); err != nil {
		c.handleDisconnectByPeer(g, DisconnectReasonError, err)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	g.heartbeat.MarkTraffic()
	if uid != "" {
		g.capture.Packet(log.DirectionOut, uid, log.PacketEvent{
			Kind:             log.PacketKindRequest,
			FunctionID:       p.FunctionID(),
			SequenceNumber:   p.SequenceNumber(),
			ResponseExpected: p.ResponseExpected(),
			Length:           p.Length(),
		})
	}
	return nil
}

func (c *Connection) probe(g *generation) error {
	p, err := wire.NewPacket(wire.BroadcastUID, wire.FunctionDisconnectProbe, c.seq.next(), false, nil)
	if err != nil {
		return err
	}
	g.capture.Control(log.DirectionOut, log.ControlMsgProbe)
	_, err = g.session.Send(p.Bytes())
	return err
}

func (c *Connection) captureResponse(p wire.Packet, uid string, rtt time.Duration) {
	c.socketMu.Lock()
	g := c.gen
	c.socketMu.Unlock()
	if g == nil {
		return
	}
	g.capture.Packet(log.DirectionIn, uid, log.PacketEvent{
		Kind:           log.PacketKindResponse,
		FunctionID:     p.FunctionID(),
		SequenceNumber: p.SequenceNumber(),
		ErrorCode:      uint8(p.ErrorCode()),
		Length:         p.Length(),
		RoundTrip:      &rtt,
	})
}

// handleDisconnectByPeer reports the loss of g once. Teardown of g is left
// to the dispatcher so neither worker has to join itself.
func (c *Connection) handleDisconnectByPeer(g *generation, reason DisconnectReason, cause error) {
	if g.lost.Swap(true) {
		return
	}
	g.cancel()
	_ = g.session.Shutdown()

	c.socketMu.Lock()
	if g.detached {
		// Disconnect reports the loss itself.
		c.socketMu.Unlock()
		return
	}
	if c.gen == g && reason != DisconnectReasonRequest && c.autoReconnect.Load() && c.autoReconnectAllowed {
		c.reconnectPending = true
	}
	c.socketMu.Unlock()

	g.capture.Error(log.LayerConnection, cause, "disconnect")
	g.capture.State(log.StateEntityConnection, "CONNECTED", "DISCONNECTED", reason.String())
	c.logger.Warn("connection lost", "reason", reason, "generation", g.id, "error", cause)
	c.metrics.disconnects.WithLabelValues(reason.String()).Inc()

	c.dispatcher.put(queueItem{kind: itemDisconnected, disconnectReason: reason, gen: g})
}
