package log

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a .tlog capture file. Records are
// buffered; Flush or Close makes them visible to readers.
type FileLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	count   int
	closed  bool
}

// NewFileLogger opens path for appending, creating the file and any
// missing parent directories.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileLogger{path: path, file: f, buf: buf, encoder: NewEncoder(buf)}, nil
}

// Log encodes event. Encoding failures are dropped so that a full disk
// never disturbs the connection being captured.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if l.encoder.Encode(event) == nil {
		l.count++
	}
}

// Flush writes buffered records to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Path returns the capture file path.
func (l *FileLogger) Path() string { return l.path }

// Count returns the number of records written, including buffered ones.
func (l *FileLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close flushes and closes the file. Later Log calls are ignored and
// repeated Close calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	ferr := l.buf.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return ferr
}

var _ Logger = (*FileLogger)(nil)
