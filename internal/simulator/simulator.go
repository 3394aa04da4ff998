// Package simulator is an in-process fake brick daemon. It accepts TFP
// clients over TCP, answers identity and enumerate requests for its
// registered devices and hands every other request to per-device handlers.
//
// It backs the end-to-end tests of pkg/ipcon and the tfp-sim command.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/transport"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

var (
	// ErrDuplicateDevice is returned when a UID is registered twice.
	ErrDuplicateDevice = errors.New("device already registered")

	// ErrNoClients is returned by the send helpers while no client is
	// connected.
	ErrNoClients = errors.New("no clients connected")
)

// Config configures a Simulator.
type Config struct {
	// Address to listen on. Empty picks a free port on 127.0.0.1.
	Address string

	// Logger receives operational logs. Optional.
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events. Optional.
	ProtocolLogger log.Logger
}

// Simulator is a fake brick daemon.
type Simulator struct {
	config Config
	logger *slog.Logger
	server *transport.Server

	mu      sync.RWMutex
	devices map[uint32]*Device
	order   []*Device

	requests  recorder
	chunkSize atomic.Int32
}

// New creates a simulator. It does not listen until Start.
func New(config Config) *Simulator {
	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Simulator{
		config:  config,
		logger:  config.Logger,
		devices: make(map[uint32]*Device),
	}
	s.server = transport.NewServer(transport.ServerConfig{
		Address:      config.Address,
		Logger:       config.ProtocolLogger,
		OnConnect:    s.onConnect,
		OnDisconnect: s.onDisconnect,
		OnPacket:     s.onPacket,
		OnError: func(conn *transport.ServerConn, err error) {
			s.logger.Debug("stream error", "error", err)
		},
	})
	return s
}

// AddDevice registers a device reporting deviceIdentifier. Its connected
// UID is "0" and its position 'a'.
func (s *Simulator) AddDevice(uid string, deviceIdentifier uint16) (*Device, error) {
	id, err := wire.DecodeUID(uid)
	if err != nil {
		return nil, err
	}

	d := newDevice(id, wire.Identity{
		UID:              uid,
		ConnectedUID:     "0",
		Position:         'a',
		HardwareVersion:  [3]uint8{1, 0, 0},
		FirmwareVersion:  [3]uint8{2, 0, 0},
		DeviceIdentifier: deviceIdentifier,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, uid)
	}
	s.devices[id] = d
	s.order = append(s.order, d)
	return d, nil
}

// AddBehavior registers a device whose requests are answered by b.
func (s *Simulator) AddBehavior(uid string, b Behavior) (*Device, error) {
	d, err := s.AddDevice(uid, b.DeviceIdentifier())
	if err != nil {
		return nil, err
	}
	d.setBehavior(b)
	if a, ok := b.(Attacher); ok {
		a.Attach(func(fid uint8, payload []byte) {
			if err := s.Push(uid, fid, payload); err != nil && !errors.Is(err, ErrNoClients) {
				s.logger.Debug("push failed", "uid", uid, "fid", fid, "error", err)
			}
		})
	}
	return d, nil
}

// Device returns the device registered for uid, or nil.
func (s *Simulator) Device(uid string) *Device {
	id, err := wire.DecodeUID(uid)
	if err != nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[id]
}

// Start begins accepting clients.
func (s *Simulator) Start(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("simulator listening", "addr", s.Addr())
	return nil
}

// Stop disconnects every client and stops listening.
func (s *Simulator) Stop() error {
	return s.server.Stop()
}

// Addr returns the listen address, for example "127.0.0.1:41234".
func (s *Simulator) Addr() string {
	if a := s.server.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// Host returns the listen host.
func (s *Simulator) Host() string {
	if a, ok := s.server.Addr().(*net.TCPAddr); ok {
		return a.IP.String()
	}
	return ""
}

// Port returns the listen port.
func (s *Simulator) Port() int {
	if a, ok := s.server.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// ConnectionCount returns the number of connected clients.
func (s *Simulator) ConnectionCount() int {
	return s.server.ConnectionCount()
}

// WaitForConnections polls until exactly n clients are connected.
func (s *Simulator) WaitForConnections(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if s.ConnectionCount() == n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// DropConnections closes every client socket. The listener stays open, so
// clients may reconnect.
func (s *Simulator) DropConnections() {
	s.server.CloseAll()
}

// SetChunkSize splits every write into n-byte pieces. Zero disables
// splitting.
func (s *Simulator) SetChunkSize(n int) {
	s.chunkSize.Store(int32(n))
	for _, c := range s.server.Connections() {
		c.SetChunkSize(n)
	}
}

// Push sends a callback packet for uid to every client.
func (s *Simulator) Push(uid string, functionID uint8, payload []byte) error {
	id, err := wire.DecodeUID(uid)
	if err != nil {
		return err
	}
	p, err := wire.NewPacket(id, functionID, 0, false, payload)
	if err != nil {
		return err
	}
	return s.Broadcast(p)
}

// Broadcast sends p unchanged to every client.
func (s *Simulator) Broadcast(p wire.Packet) error {
	return s.BroadcastBytes(p.Bytes())
}

// BroadcastBytes sends raw bytes to every client. Used to inject malformed
// traffic.
func (s *Simulator) BroadcastBytes(b []byte) error {
	conns := s.server.Connections()
	if len(conns) == 0 {
		return ErrNoClients
	}
	var errs []error
	for _, c := range conns {
		if err := c.SendBytes(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Requests returns every packet received so far, probes included.
func (s *Simulator) Requests() []wire.Packet {
	return s.requests.snapshot(nil)
}

// RequestsFor returns the packets addressed to uid with functionID.
func (s *Simulator) RequestsFor(uid string, functionID uint8) []wire.Packet {
	id, err := wire.DecodeUID(uid)
	if err != nil {
		return nil
	}
	return s.requests.snapshot(func(p wire.Packet) bool {
		return p.DeviceID() == id && p.FunctionID() == functionID
	})
}

// ResetRequests clears the request recorder.
func (s *Simulator) ResetRequests() {
	s.requests.reset()
}

func (s *Simulator) onConnect(conn *transport.ServerConn) {
	conn.SetChunkSize(int(s.chunkSize.Load()))
	s.logger.Debug("client connected", "remote", conn.RemoteAddr(), "conn_id", conn.ConnID())
}

func (s *Simulator) onDisconnect(conn *transport.ServerConn) {
	s.logger.Debug("client disconnected", "remote", conn.RemoteAddr(), "conn_id", conn.ConnID())
}

func (s *Simulator) onPacket(conn *transport.ServerConn, p wire.Packet) {
	s.requests.add(p)

	switch {
	case p.FunctionID() == wire.FunctionDisconnectProbe:
		return
	case p.FunctionID() == wire.FunctionEnumerate && p.DeviceID() == wire.BroadcastUID:
		s.enumerate(conn)
		return
	}

	s.mu.RLock()
	d := s.devices[p.DeviceID()]
	s.mu.RUnlock()
	if d == nil || d.silent.Load() {
		return
	}

	payload, code, handled := d.answer(p)
	if !handled {
		s.logger.Debug("unsupported function", "uid", d.UID(), "fid", p.FunctionID())
	}
	if !p.ResponseExpected() {
		return
	}

	if delay := time.Duration(d.delay.Load()); delay > 0 {
		time.Sleep(delay)
	}
	if code != wire.ErrorCodeOK {
		payload = nil
	}
	resp, err := wire.NewPacket(p.DeviceID(), p.FunctionID(), p.SequenceNumber(), true, payload)
	if err != nil {
		s.logger.Warn("response too large", "uid", d.UID(), "fid", p.FunctionID(), "error", err)
		return
	}
	resp.SetErrorCode(code)
	if err := conn.Send(resp); err != nil {
		s.logger.Debug("send response failed", "error", err)
	}
}

func (s *Simulator) enumerate(conn *transport.ServerConn) {
	s.mu.RLock()
	devices := append([]*Device(nil), s.order...)
	s.mu.RUnlock()

	for _, d := range devices {
		ev := wire.EnumerateEvent{Identity: d.identity, EnumerationType: wire.EnumerationAvailable}
		p, err := wire.NewPacket(d.id, wire.CallbackEnumerate, 0, false, wire.EncodeEnumerate(ev))
		if err != nil {
			continue
		}
		if err := conn.Send(p); err != nil {
			return
		}
	}
}
