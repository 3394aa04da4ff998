package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestPayloadWriterLittleEndian(t *testing.T) {
	got := NewPayloadWriter().
		Uint8(0xAB).
		Uint16(0x0102).
		Uint32(0x03040506).
		Bool(true).
		String("ab", 4).
		Payload()

	want := []byte{0xAB, 0x02, 0x01, 0x06, 0x05, 0x04, 0x03, 0x01, 'a', 'b', 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("payload = % x, want % x", got, want)
	}
}

func TestPayloadReader(t *testing.T) {
	r := NewPayloadReader([]byte{0xAB, 0x02, 0x01, 0x06, 0x05, 0x04, 0x03, 'h', 'i', 0, 'x'})

	if v := r.Uint8(); v != 0xAB {
		t.Errorf("Uint8 = %#x", v)
	}
	if v := r.Uint16(); v != 0x0102 {
		t.Errorf("Uint16 = %#x", v)
	}
	if v := r.Uint32(); v != 0x03040506 {
		t.Errorf("Uint32 = %#x", v)
	}
	if v := r.String(4); v != "hi" {
		t.Errorf("String = %q, want %q", v, "hi")
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", r.Remaining())
	}
	if r.Err() != nil {
		t.Errorf("Err = %v", r.Err())
	}

	if v := r.Uint16(); v != 0 {
		t.Errorf("read past end = %d, want 0", v)
	}
	if !errors.Is(r.Err(), ErrPayloadShort) {
		t.Errorf("Err = %v, want ErrPayloadShort", r.Err())
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	id := Identity{
		UID:              "wXyZ",
		ConnectedUID:     "6qxA7b",
		Position:         'c',
		HardwareVersion:  [3]uint8{1, 0, 0},
		FirmwareVersion:  [3]uint8{2, 0, 7},
		DeviceIdentifier: 231,
	}

	payload := EncodeIdentity(id)
	if len(payload) != IdentityLength {
		t.Fatalf("len = %d, want %d", len(payload), IdentityLength)
	}

	got, err := DecodeIdentity(payload)
	if err != nil {
		t.Fatalf("DecodeIdentity: %v", err)
	}
	if got != id {
		t.Errorf("DecodeIdentity = %+v, want %+v", got, id)
	}

	if _, err := DecodeIdentity(payload[:10]); !errors.Is(err, ErrPayloadShort) {
		t.Errorf("short payload err = %v, want ErrPayloadShort", err)
	}
}

func TestEnumerateRoundTrip(t *testing.T) {
	ev := EnumerateEvent{
		Identity: Identity{
			UID:              "abc",
			ConnectedUID:     "0",
			Position:         'a',
			DeviceIdentifier: 13,
		},
		EnumerationType: EnumerationConnected,
	}

	payload := EncodeEnumerate(ev)
	if len(payload) != EnumerateLength {
		t.Fatalf("len = %d, want %d", len(payload), EnumerateLength)
	}

	got, err := DecodeEnumerate(payload)
	if err != nil {
		t.Fatalf("DecodeEnumerate: %v", err)
	}
	if got != ev {
		t.Errorf("DecodeEnumerate = %+v, want %+v", got, ev)
	}
}

func TestEnumerationTypeString(t *testing.T) {
	tests := []struct {
		e    EnumerationType
		want string
	}{
		{EnumerationAvailable, "AVAILABLE"},
		{EnumerationConnected, "CONNECTED"},
		{EnumerationDisconnected, "DISCONNECTED"},
		{EnumerationType(9), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("EnumerationType(%d).String() = %q, want %q", tt.e, got, tt.want)
		}
	}
}
