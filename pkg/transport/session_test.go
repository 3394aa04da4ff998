package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// outgoingFrames counts transport-layer frames sent through rec.
func outgoingFrames(rec *log.Recorder) int {
	out, layer := log.DirectionOut, log.LayerTransport
	return len(rec.Events(log.Filter{Direction: &out, Layer: &layer}))
}

func TestSessionSendReceive(t *testing.T) {
	a, b := net.Pipe()
	rec := &log.Recorder{}
	s := NewSession(a, log.NewCapture(rec, "c1", log.RoleClient, "pipe"))
	peer := NewSession(b, nil)
	defer s.Shutdown()
	defer peer.Shutdown()

	sent := make(chan error, 1)
	go func() {
		_, err := s.Send([]byte("hello"))
		sent <- err
	}()

	buf := make([]byte, 16)
	n, err := peer.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	// The frame is recorded once Write has returned.
	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Send did not return")
	}
	assert.Equal(t, 1, outgoingFrames(rec))
}

func TestSessionConcurrentSendsDoNotInterleave(t *testing.T) {
	a, b := net.Pipe()
	s := NewSession(a, nil)
	defer s.Shutdown()
	defer b.Close()

	const senders = 8
	const perSender = 20

	packets := make([][]byte, senders)
	for i := range packets {
		p, _ := wire.NewPacket(uint32(i+1), uint8(i), 1, true, bytes.Repeat([]byte{byte(i)}, 40))
		packets[i] = p.Bytes()
	}

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if _, err := s.Send(packets[i]); err != nil {
					t.Errorf("Send: %v", err)
					return
				}
			}
		}(i)
	}

	r := NewPacketReader()
	src := NewSession(b, nil)
	got := 0
	for got < senders*perSender {
		if _, err := r.ReadFrom(src); err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}
		for {
			p, ok, err := r.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			id := p.DeviceID()
			require.True(t, id >= 1 && id <= senders, "corrupt packet %v", p)
			require.Equal(t, packets[id-1], p.Bytes())
			got++
		}
	}
	wg.Wait()
}

func TestSessionShutdownUnblocksReceive(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	s := NewSession(a, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Receive(make([]byte, 8))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Shutdown())
	assert.NoError(t, s.Shutdown(), "second Shutdown")

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrSessionClosed) || errors.Is(err, io.EOF), "err = %v", err)
	case <-time.After(time.Second):
		t.Fatal("Receive still blocked after Shutdown")
	}

	_, err := s.Send([]byte{1})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.True(t, s.Closed())
}

func TestSessionReceiveEOF(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	conn, err := Dial(context.Background(), "127.0.0.1", port, time.Second)
	require.NoError(t, err)
	s := NewSession(conn, nil)
	defer s.Shutdown()

	_, err = s.Receive(make([]byte, 8))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDialErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial(context.Background(), "127.0.0.1", port, time.Second)
	assert.ErrorIs(t, err, ErrConnectRefused)

	_, err = Dial(context.Background(), "no-such-host.invalid", DefaultPort, time.Second)
	assert.ErrorIs(t, err, ErrHostUnresolvable)
}
