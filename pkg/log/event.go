package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one socket generation (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates packet flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is a client or a simulated daemon.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceUID is the base-58 UID of the addressed device, if any.
	DeviceUID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Packet      *PacketEvent      `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Probe/enumerate
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of packet flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming packet.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing packet.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the socket layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the packet layer (decoded header).
	LayerWire Layer = 1
	// LayerConnection is the connection manager layer.
	LayerConnection Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request, response or callback packet.
	CategoryMessage Category = 0
	// CategoryControl indicates a heartbeat probe or enumerate broadcast.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the session wrote the event.
type Role uint8

const (
	// RoleClient indicates the application-side connection.
	RoleClient Role = 0
	// RoleSimulator indicates the simulated brick daemon.
	RoleSimulator Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleSimulator:
		return "SIMULATOR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw packet bytes at the transport layer.
type FrameEvent struct {
	// Size is the packet size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw packet bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// PacketEvent captures a decoded packet header at the wire layer.
type PacketEvent struct {
	// Kind distinguishes request/response/callback.
	Kind PacketKind `cbor:"1,keyasint"`

	// FunctionID is the function or callback ID.
	FunctionID uint8 `cbor:"2,keyasint"`

	// SequenceNumber correlates request/response pairs (0 for callbacks).
	SequenceNumber uint8 `cbor:"3,keyasint"`

	// ResponseExpected is the request's response-expected flag.
	ResponseExpected bool `cbor:"4,keyasint,omitempty"`

	// ErrorCode is the device-reported error code (responses only).
	ErrorCode uint8 `cbor:"5,keyasint,omitempty"`

	// Length is the total packet length.
	Length int `cbor:"6,keyasint"`

	// RoundTrip is the time from request transmit to response (responses only).
	RoundTrip *time.Duration `cbor:"7,keyasint,omitempty"`
}

// PacketKind distinguishes request/response/callback.
type PacketKind uint8

const (
	// PacketKindRequest indicates an outgoing request.
	PacketKindRequest PacketKind = 0
	// PacketKindResponse indicates a correlated response.
	PacketKindResponse PacketKind = 1
	// PacketKindCallback indicates an unsolicited callback (sequence 0).
	PacketKindCallback PacketKind = 2
)

// String returns the packet kind name.
func (k PacketKind) String() string {
	switch k {
	case PacketKindRequest:
		return "REQUEST"
	case PacketKindResponse:
		return "RESPONSE"
	case PacketKindCallback:
		return "CALLBACK"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityDevice indicates a device handle state change.
	StateEntityDevice StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures control traffic.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgProbe indicates a heartbeat probe.
	ControlMsgProbe ControlMsgType = 0
	// ControlMsgEnumerate indicates an enumerate broadcast.
	ControlMsgEnumerate ControlMsgType = 1
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgProbe:
		return "PROBE"
	case ControlMsgEnumerate:
		return "ENUMERATE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the device error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
