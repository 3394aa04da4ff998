package log

import (
	"testing"
	"time"
)

func TestMultiLoggerCallsAll(t *testing.T) {
	rec1 := &Recorder{}
	rec2 := &Recorder{}
	rec3 := &Recorder{}

	multi := NewMultiLogger(rec1, rec2, rec3)

	multi.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
	})

	for i, rec := range []*Recorder{rec1, rec2, rec3} {
		events := rec.Events(Filter{})
		if len(events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(events))
			continue
		}
		if events[0].ConnectionID != "conn-123" {
			t.Errorf("logger %d: ConnectionID = %q, want %q", i, events[0].ConnectionID, "conn-123")
		}
	}
}

func TestMultiLoggerSkipsNil(t *testing.T) {
	rec := &Recorder{}
	multi := NewMultiLogger(nil, rec, nil)

	if multi.Len() != 1 {
		t.Errorf("Len() = %d, want 1", multi.Len())
	}
	multi.Log(Event{ConnectionID: "conn-456"})
	if got := len(rec.Events(Filter{})); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	NewMultiLogger().Log(Event{Timestamp: time.Now()})
}

func TestMultiLoggerFlattensNested(t *testing.T) {
	a, b, c := &Recorder{}, &Recorder{}, &Recorder{}
	inner := NewMultiLogger(a, b)
	outer := NewMultiLogger(inner, nil, c)

	if outer.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", outer.Len())
	}
	outer.Log(Event{DeviceUID: "jGy"})
	for i, rec := range []*Recorder{a, b, c} {
		if rec.Len() != 1 {
			t.Errorf("sink %d got %d events, want 1", i, rec.Len())
		}
	}
}
