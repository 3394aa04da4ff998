package log

import "sync"

// Logger receives protocol events. Log is called from the connection's
// receive and send paths, so it must be safe for concurrent use and must
// not block. A nil Logger disables capture.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a plain function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// Recorder keeps events in memory, for tests and short diagnostic runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Log appends event.
func (r *Recorder) Log(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events accepted by filter.
func (r *Recorder) Events(filter Filter) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = (*Recorder)(nil)
)
