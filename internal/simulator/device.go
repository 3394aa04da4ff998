package simulator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// HandlerFunc answers one request. The returned payload is sent back only
// if the request asked for a response.
type HandlerFunc func(req wire.Packet) (payload []byte, code wire.ErrorCode)

// Behavior models a device type. Handle is consulted for every function ID
// without an explicit handler.
type Behavior interface {
	DeviceIdentifier() uint16
	Handle(functionID uint8, payload []byte) ([]byte, wire.ErrorCode)
}

// Attacher is implemented by behaviors that emit callbacks. The simulator
// calls Attach once with a function that pushes a callback for the device.
type Attacher interface {
	Attach(push func(functionID uint8, payload []byte))
}

// Device is one simulated bricklet.
type Device struct {
	id       uint32
	identity wire.Identity

	mu       sync.RWMutex
	handlers map[uint8]HandlerFunc
	behavior Behavior

	delay  atomic.Int64
	silent atomic.Bool
}

func newDevice(id uint32, identity wire.Identity) *Device {
	return &Device{
		id:       id,
		identity: identity,
		handlers: make(map[uint8]HandlerFunc),
	}
}

// UID returns the device's base-58 UID.
func (d *Device) UID() string { return d.identity.UID }

// ID returns the numeric device ID.
func (d *Device) ID() uint32 { return d.id }

// Identity returns what the device reports for the identity query.
func (d *Device) Identity() wire.Identity { return d.identity }

// Handle sets the handler for functionID, replacing any previous one.
func (d *Device) Handle(functionID uint8, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, functionID)
		return
	}
	d.handlers[functionID] = h
}

// SetDelay holds every response of the device back by delay.
func (d *Device) SetDelay(delay time.Duration) {
	d.delay.Store(int64(delay))
}

// SetSilent makes the device swallow requests without answering.
func (d *Device) SetSilent(silent bool) {
	d.silent.Store(silent)
}

func (d *Device) setBehavior(b Behavior) {
	d.mu.Lock()
	d.behavior = b
	d.mu.Unlock()
}

// answer runs the handler for req. handled is false if the device does not
// implement the function.
func (d *Device) answer(req wire.Packet) (payload []byte, code wire.ErrorCode, handled bool) {
	if req.FunctionID() == wire.FunctionGetIdentity {
		return wire.EncodeIdentity(d.identity), wire.ErrorCodeOK, true
	}

	d.mu.RLock()
	h := d.handlers[req.FunctionID()]
	b := d.behavior
	d.mu.RUnlock()

	switch {
	case h != nil:
		payload, code = h(req)
		return payload, code, true
	case b != nil:
		payload, code = b.Handle(req.FunctionID(), req.Payload())
		return payload, code, true
	default:
		return nil, wire.ErrorCodeNotSupported, false
	}
}
