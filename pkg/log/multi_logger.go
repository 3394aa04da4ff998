package log

// MultiLogger fans every event out to several sinks in order, typically a
// FileLogger for the capture file and a SlogAdapter for the console.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger combines sinks. Nil sinks are skipped and nested
// MultiLoggers are flattened.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		switch s := s.(type) {
		case nil:
		case *MultiLogger:
			if s != nil {
				m.sinks = append(m.sinks, s.sinks...)
			}
		default:
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiLogger) Len() int { return len(m.sinks) }

// Log passes event to each sink.
func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
