package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	h := EncodeHeader(12, 3, 5, true, 0x04030201)

	want := [HeaderSize]byte{0x01, 0x02, 0x03, 0x04, 12, 3, 0x58, 0x00}
	if h != want {
		t.Errorf("EncodeHeader = % x, want % x", h, want)
	}

	h = EncodeHeader(8, 128, 15, false, 0)
	if h[6] != 0xF0 {
		t.Errorf("options byte = %#x, want 0xf0", h[6])
	}
}

func TestDecodeHeader(t *testing.T) {
	raw := []byte{0x78, 0x56, 0x34, 0x12, 20, 9, 0x38, 0x80}
	h := DecodeHeader(raw)

	if h.DeviceID != 0x12345678 {
		t.Errorf("DeviceID = %#x, want 0x12345678", h.DeviceID)
	}
	if h.Length != 20 {
		t.Errorf("Length = %d, want 20", h.Length)
	}
	if h.FunctionID != 9 {
		t.Errorf("FunctionID = %d, want 9", h.FunctionID)
	}
	if h.SequenceNumber != 3 {
		t.Errorf("SequenceNumber = %d, want 3", h.SequenceNumber)
	}
	if !h.ResponseExpected {
		t.Error("ResponseExpected = false, want true")
	}
	if h.ErrorCode != ErrorCodeNotSupported {
		t.Errorf("ErrorCode = %v, want NOT_SUPPORTED", h.ErrorCode)
	}
}

func TestHeaderFieldAccessors(t *testing.T) {
	for seq := uint8(0); seq <= MaxSequenceNumber; seq++ {
		for _, re := range []bool{false, true} {
			h := EncodeHeader(8, 1, seq, re, 1)
			if got := SequenceNumber(h[6]); got != seq {
				t.Errorf("SequenceNumber(%#x) = %d, want %d", h[6], got, seq)
			}
			if got := ResponseExpected(h[6]); got != re {
				t.Errorf("ResponseExpected(%#x) = %v, want %v", h[6], got, re)
			}
		}
	}

	tests := []struct {
		b    uint8
		want ErrorCode
	}{
		{0x00, ErrorCodeOK},
		{0x40, ErrorCodeInvalidParameter},
		{0x80, ErrorCodeNotSupported},
		{0xC0, ErrorCodeUnknown},
		{0x3F, ErrorCodeOK}, // future-use bits ignored
	}
	for _, tt := range tests {
		if got := ErrorCodeOf(tt.b); got != tt.want {
			t.Errorf("ErrorCodeOf(%#x) = %v, want %v", tt.b, got, tt.want)
		}
	}
}

func TestNewPacket(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	p, err := NewPacket(42, 7, 9, true, payload)
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}

	if p.Length() != HeaderSize+len(payload) {
		t.Errorf("Length = %d, want %d", p.Length(), HeaderSize+len(payload))
	}
	if p.DeviceID() != 42 || p.FunctionID() != 7 || p.SequenceNumber() != 9 || !p.ResponseExpected() {
		t.Errorf("header fields = %v", p)
	}
	if !bytes.Equal(p.Payload(), payload) {
		t.Errorf("Payload = %v, want %v", p.Payload(), payload)
	}
	if p.IsUnsolicited() {
		t.Error("IsUnsolicited = true for sequence 9")
	}
}

func TestNewPacketPayloadTooLarge(t *testing.T) {
	_, err := NewPacket(1, 1, 1, false, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}

	p, err := NewPacket(1, 1, 1, false, make([]byte, MaxPayloadSize))
	if err != nil {
		t.Fatalf("max payload: %v", err)
	}
	if p.Length() != MaxPacketSize {
		t.Errorf("Length = %d, want %d", p.Length(), MaxPacketSize)
	}
}

func TestPacketIsValueType(t *testing.T) {
	p, _ := NewPacket(1, 2, 3, true, []byte{9, 9})
	q := p
	q.SetErrorCode(ErrorCodeInvalidParameter)

	if p.ErrorCode() != ErrorCodeOK {
		t.Errorf("original ErrorCode = %v after modifying copy", p.ErrorCode())
	}
	if q.ErrorCode() != ErrorCodeInvalidParameter {
		t.Errorf("copy ErrorCode = %v, want INVALID_PARAMETER", q.ErrorCode())
	}

	b := p.Bytes()
	b[HeaderSize] = 0
	if p.Payload()[0] != 9 {
		t.Error("Bytes() returned storage shared with the packet")
	}
}

func TestParsePacket(t *testing.T) {
	orig, _ := NewPacket(0xCAFE, 17, 4, false, []byte("hello"))
	raw := append(orig.Bytes(), 0xEE, 0xEE) // trailing bytes belong to next packet

	p, err := ParsePacket(raw)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !bytes.Equal(p.Bytes(), orig.Bytes()) {
		t.Errorf("ParsePacket = % x, want % x", p.Bytes(), orig.Bytes())
	}

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"short header", []byte{1, 2, 3}, ErrShortPacket},
		{"length below header", []byte{1, 0, 0, 0, 7, 1, 0, 0}, ErrInvalidLength},
		{"length above max", []byte{1, 0, 0, 0, 81, 1, 0, 0}, ErrInvalidLength},
		{"truncated payload", []byte{1, 0, 0, 0, 10, 1, 0, 0, 1}, ErrShortPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePacket(tt.raw); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestErrorCodeErr(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want error
	}{
		{ErrorCodeOK, nil},
		{ErrorCodeInvalidParameter, ErrInvalidParameter},
		{ErrorCodeNotSupported, ErrNotSupported},
		{ErrorCodeUnknown, ErrUnknownErrorCode},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := tt.code.Err(); got != tt.want {
				t.Errorf("Err() = %v, want %v", got, tt.want)
			}
		})
	}
}
