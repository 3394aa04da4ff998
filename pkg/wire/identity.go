package wire

import "fmt"

// Identity payload sizes.
const (
	// IdentityLength is the payload length of a GetIdentity response.
	IdentityLength = 25

	// EnumerateLength is the payload length of an enumerate callback.
	EnumerateLength = 26

	uidFieldLength = 8
)

// Identity is the answer to FunctionGetIdentity.
type Identity struct {
	UID              string
	ConnectedUID     string
	Position         byte
	HardwareVersion  [3]uint8
	FirmwareVersion  [3]uint8
	DeviceIdentifier uint16
}

// EnumerationType tells why an enumerate callback was sent.
type EnumerationType uint8

const (
	// EnumerationAvailable answers an explicit enumerate request.
	EnumerationAvailable EnumerationType = 0

	// EnumerationConnected announces a newly connected device.
	EnumerationConnected EnumerationType = 1

	// EnumerationDisconnected announces a removed device.
	EnumerationDisconnected EnumerationType = 2
)

// String returns the enumeration type name.
func (e EnumerationType) String() string {
	switch e {
	case EnumerationAvailable:
		return "AVAILABLE"
	case EnumerationConnected:
		return "CONNECTED"
	case EnumerationDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// EnumerateEvent is the payload of a CallbackEnumerate packet.
type EnumerateEvent struct {
	Identity
	EnumerationType EnumerationType
}

func readIdentity(r *PayloadReader) Identity {
	var id Identity
	id.UID = r.String(uidFieldLength)
	id.ConnectedUID = r.String(uidFieldLength)
	id.Position = r.Uint8()
	copy(id.HardwareVersion[:], r.Bytes(3))
	copy(id.FirmwareVersion[:], r.Bytes(3))
	id.DeviceIdentifier = r.Uint16()
	return id
}

func writeIdentity(w *PayloadWriter, id Identity) {
	w.String(id.UID, uidFieldLength).
		String(id.ConnectedUID, uidFieldLength).
		Uint8(id.Position).
		Bytes(id.HardwareVersion[:]).
		Bytes(id.FirmwareVersion[:]).
		Uint16(id.DeviceIdentifier)
}

// DecodeIdentity parses a GetIdentity response payload.
func DecodeIdentity(payload []byte) (Identity, error) {
	if len(payload) != IdentityLength {
		return Identity{}, fmt.Errorf("%w: identity payload has %d bytes, want %d",
			ErrPayloadShort, len(payload), IdentityLength)
	}
	r := NewPayloadReader(payload)
	id := readIdentity(r)
	return id, r.Err()
}

// EncodeIdentity builds a GetIdentity response payload.
func EncodeIdentity(id Identity) []byte {
	w := NewPayloadWriter()
	writeIdentity(w, id)
	return w.Payload()
}

// DecodeEnumerate parses an enumerate callback payload.
func DecodeEnumerate(payload []byte) (EnumerateEvent, error) {
	if len(payload) != EnumerateLength {
		return EnumerateEvent{}, fmt.Errorf("%w: enumerate payload has %d bytes, want %d",
			ErrPayloadShort, len(payload), EnumerateLength)
	}
	r := NewPayloadReader(payload)
	ev := EnumerateEvent{Identity: readIdentity(r)}
	ev.EnumerationType = EnumerationType(r.Uint8())
	return ev, r.Err()
}

// EncodeEnumerate builds an enumerate callback payload.
func EncodeEnumerate(ev EnumerateEvent) []byte {
	w := NewPayloadWriter()
	writeIdentity(w, ev.Identity)
	w.Uint8(uint8(ev.EnumerationType))
	return w.Payload()
}
