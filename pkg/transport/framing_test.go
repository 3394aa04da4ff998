package transport

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

func mustPacket(t *testing.T, uid uint32, fid, seq uint8, payload []byte) wire.Packet {
	t.Helper()
	p, err := wire.NewPacket(uid, fid, seq, true, payload)
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}
	return p
}

func drain(t *testing.T, r *PacketReader) []wire.Packet {
	t.Helper()
	var out []wire.Packet
	for {
		p, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

func TestPacketReaderSingleFeed(t *testing.T) {
	p := mustPacket(t, 7, 2, 3, []byte{1, 2, 3})
	r := NewPacketReader()
	r.Feed(p.Bytes())

	got := drain(t, r)
	if len(got) != 1 {
		t.Fatalf("got %d packets, want 1", len(got))
	}
	if !bytes.Equal(got[0].Bytes(), p.Bytes()) {
		t.Errorf("packet = % x, want % x", got[0].Bytes(), p.Bytes())
	}
	if r.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", r.Buffered())
	}
}

func TestPacketReaderArbitrarySplits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var stream []byte
	var want []wire.Packet
	for i := 0; i < 50; i++ {
		payload := make([]byte, rng.Intn(wire.MaxPayloadSize+1))
		rng.Read(payload)
		p := mustPacket(t, rng.Uint32()|1, uint8(rng.Intn(256)), uint8(rng.Intn(16)), payload)
		want = append(want, p)
		stream = append(stream, p.Bytes()...)
	}

	for trial := 0; trial < 20; trial++ {
		r := NewPacketReader()
		var got []wire.Packet
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(min(len(rest), 2*wire.MaxPacketSize))
			if accepted := r.Feed(rest[:n]); accepted != n {
				t.Fatalf("Feed accepted %d of %d bytes", accepted, n)
			}
			rest = rest[n:]
			got = append(got, drain(t, r)...)
		}

		if len(got) != len(want) {
			t.Fatalf("trial %d: got %d packets, want %d", trial, len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i].Bytes(), want[i].Bytes()) {
				t.Fatalf("trial %d packet %d = % x, want % x", trial, i, got[i].Bytes(), want[i].Bytes())
			}
		}
	}
}

func TestPacketReaderByteAtATime(t *testing.T) {
	p := mustPacket(t, 0xABCDEF, 9, 15, bytes.Repeat([]byte{0x55}, wire.MaxPayloadSize))
	r := NewPacketReader()

	raw := p.Bytes()
	for i, b := range raw {
		r.Feed([]byte{b})
		got := drain(t, r)
		if i < len(raw)-1 && len(got) != 0 {
			t.Fatalf("packet completed after %d bytes", i+1)
		}
		if i == len(raw)-1 && (len(got) != 1 || !bytes.Equal(got[0].Bytes(), raw)) {
			t.Fatalf("final packet = %v", got)
		}
	}
}

func TestPacketReaderInvalidLength(t *testing.T) {
	tests := []struct {
		name   string
		length byte
	}{
		{"below header", 7},
		{"zero", 0},
		{"above max", 81},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPacketReader()
			r.Feed([]byte{1, 0, 0, 0, tt.length, 1, 0x10, 0})
			_, _, err := r.Next()
			if !errors.Is(err, wire.ErrInvalidLength) {
				t.Errorf("err = %v, want ErrInvalidLength", err)
			}
		})
	}
}

type chunkReceiver struct {
	chunks [][]byte
}

func (c *chunkReceiver) Receive(buf []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(buf, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func TestPacketReaderReadFrom(t *testing.T) {
	a := mustPacket(t, 1, 1, 1, []byte{1})
	b := mustPacket(t, 2, 2, 2, []byte{2, 2})
	joined := append(a.Bytes(), b.Bytes()...)

	src := &chunkReceiver{chunks: [][]byte{joined[:3], joined[3:12], joined[12:]}}
	r := NewPacketReader()

	var got []wire.Packet
	for {
		_, err := r.ReadFrom(src)
		got = append(got, drain(t, r)...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}
	}
	if len(got) != 2 || got[0].DeviceID() != 1 || got[1].DeviceID() != 2 {
		t.Errorf("got %v", got)
	}
}
