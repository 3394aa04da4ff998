package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet size constants.
const (
	// HeaderSize is the size of the fixed packet header in bytes.
	HeaderSize = 8

	// MaxPayloadSize is the maximum payload size (64-byte fixed region
	// plus 8-byte optional region).
	MaxPayloadSize = 72

	// MaxPacketSize is the maximum total packet size.
	MaxPacketSize = HeaderSize + MaxPayloadSize

	// MaxSequenceNumber is the largest sequence number a request can carry.
	MaxSequenceNumber = 15
)

// Reserved function IDs.
const (
	// FunctionDisconnectProbe is the header-only heartbeat probe.
	FunctionDisconnectProbe uint8 = 128

	// CallbackEnumerate is the function ID carried by enumerate replies.
	CallbackEnumerate uint8 = 253

	// FunctionEnumerate is the broadcast enumerate request.
	FunctionEnumerate uint8 = 254

	// FunctionGetIdentity is the identity query every device implements.
	FunctionGetIdentity uint8 = 255
)

// BroadcastUID is the device ID used for broadcast requests.
const BroadcastUID uint32 = 0

// Codec errors.
var (
	// ErrPayloadTooLarge indicates a payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidLength indicates a header declares a length outside [8, 80].
	ErrInvalidLength = errors.New("invalid packet length")

	// ErrShortPacket indicates fewer bytes than the header declares.
	ErrShortPacket = errors.New("short packet")
)

// Header is the decoded form of the 8-byte packet header.
type Header struct {
	DeviceID         uint32
	Length           uint8
	FunctionID       uint8
	SequenceNumber   uint8
	ResponseExpected bool
	ErrorCode        ErrorCode
}

// EncodeHeader packs a request header. Inputs are expected to be in range:
// length in [8, 80] and sequence in [0, 15].
func EncodeHeader(length, functionID, sequence uint8, responseExpected bool, deviceID uint32) [HeaderSize]byte {
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], deviceID)
	h[4] = length
	h[5] = functionID
	h[6] = (sequence & 0x0F) << 4
	if responseExpected {
		h[6] |= 0x08
	}
	return h
}

// DecodeHeader unpacks the first HeaderSize bytes of b.
// b must hold at least HeaderSize bytes.
func DecodeHeader(b []byte) Header {
	return Header{
		DeviceID:         binary.LittleEndian.Uint32(b[0:4]),
		Length:           b[4],
		FunctionID:       b[5],
		SequenceNumber:   SequenceNumber(b[6]),
		ResponseExpected: ResponseExpected(b[6]),
		ErrorCode:        ErrorCodeOf(b[7]),
	}
}

// SequenceNumber extracts the sequence number from the options byte.
func SequenceNumber(sequenceNumberAndOptions uint8) uint8 {
	return (sequenceNumberAndOptions >> 4) & 0x0F
}

// ResponseExpected extracts the response-expected flag from the options byte.
func ResponseExpected(sequenceNumberAndOptions uint8) bool {
	return sequenceNumberAndOptions&0x08 != 0
}

// ErrorCodeOf extracts the error code from the error byte.
func ErrorCodeOf(errorCodeAndFutureUse uint8) ErrorCode {
	return ErrorCode((errorCodeAndFutureUse >> 6) & 0x03)
}

// PacketLength reports the total length declared by a buffered header.
// ok is false if fewer than HeaderSize bytes are available.
func PacketLength(b []byte) (length int, ok bool) {
	if len(b) < HeaderSize {
		return 0, false
	}
	return int(b[4]), true
}

// ValidLength reports whether a declared packet length is acceptable.
func ValidLength(length int) bool {
	return length >= HeaderSize && length <= MaxPacketSize
}

// Packet is a complete wire packet stored by value. Copying a Packet copies
// its bytes, so packets can cross goroutine boundaries without sharing.
type Packet struct {
	buf [MaxPacketSize]byte
}

// NewPacket builds a request packet.
func NewPacket(deviceID uint32, functionID, sequence uint8, responseExpected bool, payload []byte) (Packet, error) {
	var p Packet
	if len(payload) > MaxPayloadSize {
		return p, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	length := uint8(HeaderSize + len(payload))
	h := EncodeHeader(length, functionID, sequence, responseExpected, deviceID)
	copy(p.buf[:HeaderSize], h[:])
	copy(p.buf[HeaderSize:], payload)
	return p, nil
}

// ParsePacket copies one packet out of b. The header's declared length must
// be valid and fully present in b.
func ParsePacket(b []byte) (Packet, error) {
	var p Packet
	length, ok := PacketLength(b)
	if !ok {
		return p, ErrShortPacket
	}
	if !ValidLength(length) {
		return p, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if len(b) < length {
		return p, fmt.Errorf("%w: have %d, want %d", ErrShortPacket, len(b), length)
	}
	copy(p.buf[:], b[:length])
	return p, nil
}

// Header returns the decoded header.
func (p Packet) Header() Header {
	return DecodeHeader(p.buf[:HeaderSize])
}

// DeviceID returns the addressed device.
func (p Packet) DeviceID() uint32 {
	return binary.LittleEndian.Uint32(p.buf[0:4])
}

// Length returns the total packet length in bytes.
func (p Packet) Length() int {
	return int(p.buf[4])
}

// FunctionID returns the function ID.
func (p Packet) FunctionID() uint8 {
	return p.buf[5]
}

// SequenceNumber returns the sequence number (0 for unsolicited traffic).
func (p Packet) SequenceNumber() uint8 {
	return SequenceNumber(p.buf[6])
}

// ResponseExpected returns the response-expected flag.
func (p Packet) ResponseExpected() bool {
	return ResponseExpected(p.buf[6])
}

// ErrorCode returns the error code reported by the device.
func (p Packet) ErrorCode() ErrorCode {
	return ErrorCodeOf(p.buf[7])
}

// SetErrorCode stores an error code in the header. Used when answering
// requests (see the simulator).
func (p *Packet) SetErrorCode(code ErrorCode) {
	p.buf[7] = (p.buf[7] & 0x3F) | (uint8(code&0x03) << 6)
}

// Bytes returns the packet bytes (header plus payload).
func (p Packet) Bytes() []byte {
	n := p.Length()
	if n > MaxPacketSize {
		n = MaxPacketSize
	}
	out := make([]byte, n)
	copy(out, p.buf[:n])
	return out
}

// Payload returns a copy of the payload bytes.
func (p Packet) Payload() []byte {
	n := p.Length()
	if n <= HeaderSize {
		return nil
	}
	if n > MaxPacketSize {
		n = MaxPacketSize
	}
	out := make([]byte, n-HeaderSize)
	copy(out, p.buf[HeaderSize:n])
	return out
}

// IsUnsolicited reports whether the packet is a callback or enumerate reply.
func (p Packet) IsUnsolicited() bool {
	return p.SequenceNumber() == 0
}

// String renders the header for diagnostics.
func (p Packet) String() string {
	return fmt.Sprintf("packet{uid=%s fid=%d seq=%d len=%d re=%t err=%s}",
		EncodeUID(p.DeviceID()), p.FunctionID(), p.SequenceNumber(), p.Length(),
		p.ResponseExpected(), p.ErrorCode())
}
