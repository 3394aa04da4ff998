package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func connIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ConnectionID
	}
	return ids
}

func TestReaderIteratesEventsInOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []Event{
		{Timestamp: base, ConnectionID: "c1", Layer: LayerTransport},
		{Timestamp: base.Add(time.Millisecond), ConnectionID: "c2", Layer: LayerWire},
		{Timestamp: base.Add(2 * time.Millisecond), ConnectionID: "c3", Layer: LayerConnection},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var got []string
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, event.ConnectionID)
	}
	if len(got) != 3 || got[0] != "c1" || got[2] != "c3" {
		t.Errorf("events = %v, want [c1 c2 c3]", got)
	}

	// Exhausted readers keep returning EOF.
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Next after end = %v, want io.EOF", err)
	}
}

func TestReaderEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	events, err := ReadAll(path, Filter{})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events from empty capture", len(events))
	}
}

func TestReaderTruncatedRecord(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), ConnectionID: "c1", Packet: &PacketEvent{FunctionID: 1, Length: 8}},
		{Timestamp: time.Now(), ConnectionID: "c2", Packet: &PacketEvent{FunctionID: 2, Length: 8}},
	})
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Cut the second record short, as a crash mid-write would.
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatal(err)
	}

	events, err := ReadAll(path, Filter{})
	if !errors.Is(err, ErrCorruptCapture) {
		t.Fatalf("ReadAll error = %v, want ErrCorruptCapture", err)
	}
	if len(events) != 1 || events[0].ConnectionID != "c1" {
		t.Errorf("events before corruption = %v, want [c1]", connIDs(events))
	}
}

func TestFilterMatch(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base.Add(-time.Hour), ConnectionID: "A", Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage,
			DeviceUID: "jGy", Packet: &PacketEvent{Kind: PacketKindRequest, FunctionID: 1}},
		{Timestamp: base, ConnectionID: "B", Direction: DirectionIn, Layer: LayerWire, Category: CategoryMessage,
			DeviceUID: "jGy", Packet: &PacketEvent{Kind: PacketKindResponse, FunctionID: 1}},
		{Timestamp: base.Add(30 * time.Minute), ConnectionID: "C", Direction: DirectionIn, Layer: LayerConnection, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityConnection, OldState: "DISCONNECTED", NewState: "CONNECTED"}},
		{Timestamp: base.Add(2 * time.Hour), ConnectionID: "A", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryMessage,
			DeviceUID: "abc", Frame: &FrameEvent{Size: 8}},
		{Timestamp: base.Add(3 * time.Hour), ConnectionID: "A", Direction: DirectionIn, Layer: LayerWire, Category: CategoryMessage,
			DeviceUID: "abc", Packet: &PacketEvent{Kind: PacketKindCallback, FunctionID: 6}},
	}
	path := createTestLogFile(t, events)

	wire, in, state := LayerWire, DirectionIn, CategoryState
	start, end := base.Add(-5*time.Minute), base.Add(time.Hour)
	fid1, fid6 := uint8(1), uint8(6)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"none", Filter{}, []string{"A", "B", "C", "A", "A"}},
		{"connection", Filter{ConnectionID: "A"}, []string{"A", "A", "A"}},
		{"layer", Filter{Layer: &wire}, []string{"A", "B", "A"}},
		{"direction", Filter{Direction: &in}, []string{"B", "C", "A", "A"}},
		{"category", Filter{Category: &state}, []string{"C"}},
		{"time range", Filter{TimeStart: &start, TimeEnd: &end}, []string{"B", "C"}},
		{"device", Filter{DeviceUID: "jGy"}, []string{"A", "B"}},
		{"function skips non-packets", Filter{FunctionID: &fid6}, []string{"A"}},
		{"combined", Filter{ConnectionID: "A", Layer: &wire, Direction: &in}, []string{"A"}},
		{"device and function", Filter{DeviceUID: "abc", FunctionID: &fid1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAll(path, tt.filter)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			ids := connIDs(got)
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("got %v, want %v", ids, tt.want)
					break
				}
			}
			for _, e := range got {
				if !tt.filter.Match(e) {
					t.Errorf("ReadAll returned %+v which Match rejects", e)
				}
			}
		})
	}
}

func TestReaderEventsStopsEarly(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{ConnectionID: "c1"}, {ConnectionID: "c2"}, {ConnectionID: "c3"},
	})
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var seen int
	for range reader.Events() {
		seen++
		if seen == 2 {
			break
		}
	}
	// The iterator consumes records from the shared reader.
	event, err := reader.Next()
	if err != nil || event.ConnectionID != "c3" {
		t.Errorf("Next after break = %+v, %v; want c3", event, err)
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.tlog")); err == nil {
		t.Error("NewReader on missing file returned nil error")
	}
	if _, err := ReadAll(filepath.Join(t.TempDir(), "missing.tlog"), Filter{}); err == nil {
		t.Error("ReadAll on missing file returned nil error")
	}
}
