package transport

import (
	"fmt"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// ReceiveBufferSize holds several max-length packets so one read can
// deliver a burst of callbacks.
const ReceiveBufferSize = 10 * wire.MaxPacketSize

// PacketReader reassembles packets from a byte stream regardless of how
// the stream was split across reads.
type PacketReader struct {
	buf [ReceiveBufferSize]byte
	n   int
}

// NewPacketReader returns an empty reader.
func NewPacketReader() *PacketReader {
	return &PacketReader{}
}

// ReadFrom performs one read from src into the free part of the buffer.
// Callers drain complete packets with Next between reads.
func (r *PacketReader) ReadFrom(src Receiver) (int, error) {
	if r.n == len(r.buf) {
		return 0, fmt.Errorf("%w: receive buffer full", wire.ErrInvalidLength)
	}
	n, err := src.Receive(r.buf[r.n:])
	r.n += n
	return n, err
}

// Feed appends b and reports how many bytes were accepted.
func (r *PacketReader) Feed(b []byte) int {
	n := copy(r.buf[r.n:], b)
	r.n += n
	return n
}

// Next extracts one complete packet. ok is false when more bytes are
// needed. A declared length outside [8, 80] returns wire.ErrInvalidLength;
// the buffered bytes are then unusable.
func (r *PacketReader) Next() (p wire.Packet, ok bool, err error) {
	if r.n < wire.HeaderSize {
		return p, false, nil
	}
	length, _ := wire.PacketLength(r.buf[:r.n])
	if !wire.ValidLength(length) {
		return p, false, fmt.Errorf("%w: declared %d", wire.ErrInvalidLength, r.buf[4])
	}
	if r.n < length {
		return p, false, nil
	}

	p, err = wire.ParsePacket(r.buf[:length])
	if err != nil {
		return p, false, err
	}
	copy(r.buf[:], r.buf[length:r.n])
	r.n -= length
	return p, true, nil
}

// Buffered returns the number of bytes waiting for the rest of a packet.
func (r *PacketReader) Buffered() int {
	return r.n
}

// Reset discards buffered bytes.
func (r *PacketReader) Reset() {
	r.n = 0
}
