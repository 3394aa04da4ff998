package ipcon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// CallbackHandler receives the payload of an unsolicited device packet.
type CallbackHandler func(payload []byte)

type identityState uint8

const (
	identityUnchecked identityState = iota
	identityVerified
	identityMismatch
)

// Device is a handle for one remote device on a Connection.
type Device struct {
	conn             *Connection
	uid              uint32
	uidString        string
	deviceIdentifier uint16

	// requestMu serializes correlated calls.
	requestMu sync.Mutex

	responseMu  sync.Mutex
	waiting     bool
	expectedFID uint8
	expectedSeq uint8
	responseCh  chan wire.Packet

	responses responseTable

	callbacksMu sync.RWMutex
	callbacks   map[uint8]CallbackHandler

	identityMu sync.Mutex
	identity   identityState

	released atomic.Bool
	replaced atomic.Bool
}

// NewDevice binds a handle for uid to conn. deviceIdentifier is the device
// type the application expects; zero skips identity verification. A
// previous handle with the same UID is marked replaced.
func NewDevice(conn *Connection, uid string, deviceIdentifier uint16) (*Device, error) {
	id, err := wire.DecodeUID(uid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}

	d := &Device{
		conn:             conn,
		uid:              id,
		uidString:        uid,
		deviceIdentifier: deviceIdentifier,
		responseCh:       make(chan wire.Packet, 1),
		callbacks:        make(map[uint8]CallbackHandler),
	}
	d.responses.define(wire.FunctionGetIdentity, ResponseExpectedAlwaysTrue)

	conn.devices.add(d)
	return d, nil
}

// UID returns the base-58 UID the handle was created with.
func (d *Device) UID() string { return d.uidString }

// ID returns the numeric device ID used on the wire.
func (d *Device) ID() uint32 { return d.uid }

// DeviceIdentifier returns the expected device type.
func (d *Device) DeviceIdentifier() uint16 { return d.deviceIdentifier }

// Connection returns the connection the device is bound to.
func (d *Device) Connection() *Connection { return d.conn }

// DefineFunction sets the fixed response policy of a function. Device
// packages call it once per function ID before use.
func (d *Device) DefineFunction(fid uint8, policy ResponseExpected) {
	d.responses.define(fid, policy)
}

// GetResponseExpected reports whether calls to fid wait for a response.
func (d *Device) GetResponseExpected(fid uint8) (bool, error) {
	r := d.responses.get(fid)
	if r == ResponseExpectedInvalid {
		return false, fmt.Errorf("%w: %d", ErrInvalidFunctionID, fid)
	}
	return r.expected(), nil
}

// SetResponseExpected changes the policy of a setter. Getters and
// callbacks have fixed policies and return ErrInvalidParameter.
func (d *Device) SetResponseExpected(fid uint8, expected bool) error {
	current, ok := d.responses.set(fid, expected)
	if ok {
		return nil
	}
	if current == ResponseExpectedInvalid {
		return fmt.Errorf("%w: %d", ErrInvalidFunctionID, fid)
	}
	return fmt.Errorf("%w: response expectation of function %d is fixed", ErrInvalidParameter, fid)
}

// SetResponseExpectedAll changes the policy of every setter.
func (d *Device) SetResponseExpectedAll(expected bool) {
	d.responses.setAll(expected)
}

// RegisterCallback installs handler for unsolicited packets with function
// ID fid. A nil handler removes it. Registration does not wait for an
// outstanding request on the device.
func (d *Device) RegisterCallback(fid uint8, handler CallbackHandler) {
	d.callbacksMu.Lock()
	defer d.callbacksMu.Unlock()
	if handler == nil {
		delete(d.callbacks, fid)
		return
	}
	d.callbacks[fid] = handler
}

func (d *Device) callback(fid uint8) CallbackHandler {
	d.callbacksMu.RLock()
	defer d.callbacksMu.RUnlock()
	return d.callbacks[fid]
}

// Release unbinds the handle. Callbacks still queued for it are discarded.
// A handler that is already running is not waited for, so Release may be
// called from one of the device's own handlers.
func (d *Device) Release() {
	if d.released.Swap(true) {
		return
	}
	d.conn.devices.remove(d)
}

// Released reports whether Release was called.
func (d *Device) Released() bool { return d.released.Load() }

// Replaced reports whether a newer handle took over the UID.
func (d *Device) Replaced() bool { return d.replaced.Load() }

// Invoke calls fid with the device's current response policy. The response
// payload is nil when no response was expected.
func (d *Device) Invoke(ctx context.Context, fid uint8, payload []byte) ([]byte, error) {
	expected, err := d.GetResponseExpected(fid)
	if err != nil {
		return nil, err
	}
	return d.SendRequest(ctx, fid, payload, expected)
}

// Get calls a getter and checks the response length.
func (d *Device) Get(ctx context.Context, fid uint8, payload []byte, responseLength int) ([]byte, error) {
	resp, err := d.SendRequest(ctx, fid, payload, true)
	if err != nil {
		return nil, err
	}
	if len(resp) != responseLength {
		return nil, fmt.Errorf("%w: function %d returned %d bytes, want %d",
			ErrWrongResponseLength, fid, len(resp), responseLength)
	}
	return resp, nil
}

// GetIdentity queries the device's identity. It is available on every
// device and never triggers identity verification.
func (d *Device) GetIdentity(ctx context.Context) (wire.Identity, error) {
	resp, err := d.Get(ctx, wire.FunctionGetIdentity, nil, wire.IdentityLength)
	if err != nil {
		return wire.Identity{}, err
	}
	return wire.DecodeIdentity(resp)
}

// SendRequest sends fid with payload. If responseExpected, it waits for the
// correlated response up to the connection timeout and returns its payload;
// otherwise it returns as soon as the packet is written.
func (d *Device) SendRequest(ctx context.Context, fid uint8, payload []byte, responseExpected bool) ([]byte, error) {
	if err := d.checkUsable(); err != nil {
		return nil, err
	}
	if fid != wire.FunctionGetIdentity {
		if err := d.verifyIdentity(ctx); err != nil {
			return nil, err
		}
	}
	return d.sendRequest(ctx, fid, payload, responseExpected)
}

func (d *Device) checkUsable() error {
	if d.replaced.Load() {
		return fmt.Errorf("%w: %s", ErrDeviceReplaced, d.uidString)
	}
	if d.released.Load() {
		return fmt.Errorf("%w: %s", ErrDeviceReleased, d.uidString)
	}
	return nil
}

// verifyIdentity runs at most one identity round trip at a time and caches
// a definite answer. Transport failures leave the state unchecked.
func (d *Device) verifyIdentity(ctx context.Context) error {
	if d.deviceIdentifier == 0 {
		return nil
	}

	d.identityMu.Lock()
	defer d.identityMu.Unlock()

	switch d.identity {
	case identityVerified:
		return nil
	case identityMismatch:
		return fmt.Errorf("%w: %s", ErrWrongDeviceType, d.uidString)
	}

	resp, err := d.sendRequest(ctx, wire.FunctionGetIdentity, nil, true)
	if err != nil {
		return fmt.Errorf("identity check: %w", err)
	}
	if len(resp) != wire.IdentityLength {
		return fmt.Errorf("identity check: %w: %d bytes", ErrWrongResponseLength, len(resp))
	}
	id, err := wire.DecodeIdentity(resp)
	if err != nil {
		return fmt.Errorf("identity check: %w", err)
	}

	if id.DeviceIdentifier != d.deviceIdentifier {
		d.identity = identityMismatch
		d.conn.logger.Warn("device type mismatch",
			"uid", d.uidString,
			"expected", d.deviceIdentifier,
			"reported", id.DeviceIdentifier)
		return fmt.Errorf("%w: %s is %d, want %d", ErrWrongDeviceType, d.uidString, id.DeviceIdentifier, d.deviceIdentifier)
	}
	d.identity = identityVerified
	return nil
}

func (d *Device) sendRequest(ctx context.Context, fid uint8, payload []byte, responseExpected bool) ([]byte, error) {
	if !responseExpected {
		p, err := wire.NewPacket(d.uid, fid, d.conn.seq.next(), false, payload)
		if err != nil {
			return nil, err
		}
		err = d.conn.send(p, d.uidString)
		d.conn.metrics.observeRequest(err, 0)
		return nil, err
	}

	d.requestMu.Lock()
	defer d.requestMu.Unlock()

	p, err := wire.NewPacket(d.uid, fid, d.conn.seq.next(), true, payload)
	if err != nil {
		return nil, err
	}

	d.expect(fid, p.SequenceNumber())
	defer d.clearExpected()

	start := time.Now()
	if err := d.conn.send(p, d.uidString); err != nil {
		d.conn.metrics.observeRequest(err, 0)
		return nil, err
	}

	timer := time.NewTimer(d.conn.Timeout())
	defer timer.Stop()

	var resp wire.Packet
	select {
	case resp = <-d.responseCh:
	case <-timer.C:
		d.conn.metrics.observeRequest(ErrTimeout, time.Since(start))
		return nil, fmt.Errorf("%w: %s function %d", ErrTimeout, d.uidString, fid)
	case <-ctx.Done():
		d.conn.metrics.observeRequest(ctx.Err(), time.Since(start))
		return nil, ctx.Err()
	}

	rtt := time.Since(start)
	if resp.FunctionID() != fid || resp.SequenceNumber() != p.SequenceNumber() {
		d.conn.metrics.observeRequest(ErrTimeout, rtt)
		return nil, fmt.Errorf("%w: %s function %d: unmatched response", ErrTimeout, d.uidString, fid)
	}
	d.conn.captureResponse(resp, d.uidString, rtt)

	if err := resp.ErrorCode().Err(); err != nil {
		d.conn.metrics.observeRequest(err, rtt)
		return nil, fmt.Errorf("%s function %d: %w", d.uidString, fid, err)
	}
	d.conn.metrics.observeRequest(nil, rtt)
	return resp.Payload(), nil
}

func (d *Device) expect(fid, seq uint8) {
	d.responseMu.Lock()
	d.waiting = true
	d.expectedFID = fid
	d.expectedSeq = seq
	select {
	case <-d.responseCh:
	default:
	}
	d.responseMu.Unlock()
}

func (d *Device) clearExpected() {
	d.responseMu.Lock()
	d.waiting = false
	d.responseMu.Unlock()
}

// deliverResponse hands a correlated reply to the waiting caller. Replies
// that don't match the outstanding {function, sequence} are ignored.
func (d *Device) deliverResponse(p wire.Packet) bool {
	d.responseMu.Lock()
	defer d.responseMu.Unlock()

	if !d.waiting || p.FunctionID() != d.expectedFID || p.SequenceNumber() != d.expectedSeq {
		return false
	}
	d.waiting = false
	select {
	case d.responseCh <- p:
	default:
	}
	return true
}
