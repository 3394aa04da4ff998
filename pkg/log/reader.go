package log

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrCorruptCapture is returned when a capture file holds a record that
// cannot be decoded, including a record cut short by a crash.
var ErrCorruptCapture = errors.New("corrupt capture record")

// Filter selects capture events. Zero fields match everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// DeviceUID is the base-58 UID as written by the capture.
	DeviceUID string

	// FunctionID only matches events that carry a packet.
	FunctionID *uint8
}

// Match reports whether event passes every set criterion.
func (f Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.DeviceUID != "" && event.DeviceUID != f.DeviceUID:
		return false
	case f.FunctionID != nil && (event.Packet == nil || event.Packet.FunctionID != *f.FunctionID):
		return false
	}
	return true
}

// Reader streams events from a .tlog capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
	// record is the index of the next record in the file, matched or not.
	record int
}

// NewReader opens path for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and only yields events accepted by filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF after the last record.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.decoder.Decode(&event)
		if err == io.EOF {
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, fmt.Errorf("%w %d: %v", ErrCorruptCapture, r.record, err)
		}
		r.record++
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Events iterates the remaining matching events. Iteration stops after
// the first error, which is yielded with a zero Event.
func (r *Reader) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the capture file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll loads every event of path accepted by filter.
func ReadAll(path string, filter Filter) ([]Event, error) {
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []Event
	for event, err := range r.Events() {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}
