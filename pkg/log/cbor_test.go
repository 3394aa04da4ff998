package log

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		LocalRole:    RoleSimulator,
		RemoteAddr:   "192.168.1.100:4223",
		DeviceUID:    "wXyZ",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.LocalRole != original.LocalRole {
		t.Errorf("LocalRole: got %v, want %v", decoded.LocalRole, original.LocalRole)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
	if decoded.DeviceUID != original.DeviceUID {
		t.Errorf("DeviceUID: got %q, want %q", decoded.DeviceUID, original.DeviceUID)
	}
}

func TestPacketEventCBORRoundTrip(t *testing.T) {
	rtt := 3 * time.Millisecond

	tests := []struct {
		name string
		pkt  *PacketEvent
	}{
		{
			name: "request",
			pkt: &PacketEvent{
				Kind:             PacketKindRequest,
				FunctionID:       1,
				SequenceNumber:   7,
				ResponseExpected: true,
				Length:           59,
			},
		},
		{
			name: "response with error",
			pkt: &PacketEvent{
				Kind:           PacketKindResponse,
				FunctionID:     5,
				SequenceNumber: 7,
				ErrorCode:      2,
				Length:         8,
				RoundTrip:      &rtt,
			},
		},
		{
			name: "callback",
			pkt: &PacketEvent{
				Kind:       PacketKindCallback,
				FunctionID: 253,
				Length:     34,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(Event{Timestamp: time.Now(), Packet: tt.pkt})
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			got := decoded.Packet
			if got == nil {
				t.Fatal("Packet is nil")
			}
			if got.Kind != tt.pkt.Kind || got.FunctionID != tt.pkt.FunctionID ||
				got.SequenceNumber != tt.pkt.SequenceNumber ||
				got.ResponseExpected != tt.pkt.ResponseExpected ||
				got.ErrorCode != tt.pkt.ErrorCode || got.Length != tt.pkt.Length {
				t.Errorf("Packet = %+v, want %+v", *got, *tt.pkt)
			}
			if (got.RoundTrip == nil) != (tt.pkt.RoundTrip == nil) {
				t.Fatalf("RoundTrip presence: got %v, want %v", got.RoundTrip, tt.pkt.RoundTrip)
			}
			if got.RoundTrip != nil && *got.RoundTrip != *tt.pkt.RoundTrip {
				t.Errorf("RoundTrip = %v, want %v", *got.RoundTrip, *tt.pkt.RoundTrip)
			}
		})
	}
}

func TestFrameEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerTransport,
		Frame: &FrameEvent{
			Size:      120,
			Data:      []byte{0x01, 0x02, 0x03},
			Truncated: true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if decoded.Frame.Size != 120 || !decoded.Frame.Truncated {
		t.Errorf("Frame = %+v", *decoded.Frame)
	}
	if !bytes.Equal(decoded.Frame.Data, original.Frame.Data) {
		t.Errorf("Frame.Data: got %v, want %v", decoded.Frame.Data, original.Frame.Data)
	}
}

func TestStateAndErrorCBORRoundTrip(t *testing.T) {
	code := 1
	events := []Event{
		{
			Category: CategoryState,
			StateChange: &StateChangeEvent{
				Entity:   StateEntityConnection,
				OldState: "CONNECTED",
				NewState: "DISCONNECTED",
				Reason:   "ERROR",
			},
		},
		{
			Category: CategoryError,
			Error: &ErrorEventData{
				Layer:   LayerWire,
				Message: "invalid packet length 3",
				Code:    &code,
				Context: "receive",
			},
		},
	}

	for _, e := range events {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		if e.StateChange != nil && *decoded.StateChange != *e.StateChange {
			t.Errorf("StateChange = %+v, want %+v", *decoded.StateChange, *e.StateChange)
		}
		if e.Error != nil {
			if decoded.Error == nil || decoded.Error.Message != e.Error.Message || *decoded.Error.Code != code {
				t.Errorf("Error = %+v, want %+v", decoded.Error, e.Error)
			}
		}
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := 0; i < 3; i++ {
		if err := enc.Encode(Event{ConnectionID: "c", Packet: &PacketEvent{SequenceNumber: uint8(i + 1)}}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i := 0; i < 3; i++ {
		var e Event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if e.Packet.SequenceNumber != uint8(i+1) {
			t.Errorf("event %d seq = %d", i, e.Packet.SequenceNumber)
		}
	}
	var e Event
	if err := dec.Decode(&e); err != io.EOF {
		t.Errorf("final Decode err = %v, want io.EOF", err)
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xFF, 0x00}); err == nil {
		t.Error("DecodeEvent accepted garbage")
	}
}
