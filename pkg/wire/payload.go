package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrPayloadShort indicates a payload ended before all fields were read.
var ErrPayloadShort = errors.New("payload too short")

// PayloadWriter appends little-endian fields to a request payload.
type PayloadWriter struct {
	buf []byte
}

// NewPayloadWriter creates a writer with capacity for a full payload.
func NewPayloadWriter() *PayloadWriter {
	return &PayloadWriter{buf: make([]byte, 0, MaxPayloadSize)}
}

// Uint8 appends a byte.
func (w *PayloadWriter) Uint8(v uint8) *PayloadWriter {
	w.buf = append(w.buf, v)
	return w
}

// Bool appends a boolean as one byte.
func (w *PayloadWriter) Bool(v bool) *PayloadWriter {
	if v {
		return w.Uint8(1)
	}
	return w.Uint8(0)
}

// Uint16 appends a little-endian uint16.
func (w *PayloadWriter) Uint16(v uint16) *PayloadWriter {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

// Uint32 appends a little-endian uint32.
func (w *PayloadWriter) Uint32(v uint32) *PayloadWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// Bytes appends raw bytes.
func (w *PayloadWriter) Bytes(b []byte) *PayloadWriter {
	w.buf = append(w.buf, b...)
	return w
}

// String appends s as a fixed-size, zero-padded field of n bytes.
func (w *PayloadWriter) String(s string, n int) *PayloadWriter {
	field := make([]byte, n)
	copy(field, s)
	w.buf = append(w.buf, field...)
	return w
}

// Payload returns the encoded payload.
func (w *PayloadWriter) Payload() []byte {
	return w.buf
}

// PayloadReader consumes little-endian fields from a response payload.
// The first short read is remembered and reported by Err; later reads
// return zero values.
type PayloadReader struct {
	buf []byte
	off int
	err error
}

// NewPayloadReader creates a reader over b.
func NewPayloadReader(b []byte) *PayloadReader {
	return &PayloadReader{buf: b}
}

func (r *PayloadReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrPayloadShort, n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads a byte.
func (r *PayloadReader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool reads a one-byte boolean.
func (r *PayloadReader) Bool() bool {
	return r.Uint8() != 0
}

// Uint16 reads a little-endian uint16.
func (r *PayloadReader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *PayloadReader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Bytes reads n raw bytes into a new slice.
func (r *PayloadReader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// String reads a fixed-size field of n bytes, trimmed at the first NUL.
func (r *PayloadReader) String(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s
}

// Remaining returns the number of unread bytes.
func (r *PayloadReader) Remaining() int {
	return len(r.buf) - r.off
}

// Err returns the first read error, if any.
func (r *PayloadReader) Err() error {
	return r.err
}
