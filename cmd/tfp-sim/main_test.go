package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfp-protocol/tfp-go/pkg/ipcon"
	"github.com/tfp-protocol/tfp-go/pkg/ledstrip"
	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestStripUIDs(t *testing.T) {
	uids, err := stripUIDs(Options{Strips: 3})
	require.NoError(t, err)
	require.Len(t, uids, 3)
	for i, u := range uids {
		id, err := wire.DecodeUID(u)
		require.NoError(t, err)
		assert.Equal(t, uint32(firstUID+i), id)
	}

	uids, err = stripUIDs(Options{Strips: 5, UIDs: "jGy, abc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"jGy", "abc"}, uids)

	_, err = stripUIDs(Options{UIDs: "jGy,0"})
	assert.Error(t, err)

	_, err = stripUIDs(Options{Strips: 0})
	assert.Error(t, err)
}

func TestStartServesStrips(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "sim.tlog")
	d, err := start(context.Background(), Options{
		Listen:      "127.0.0.1:0",
		UIDs:        "jGy,abc",
		Render:      true,
		ProtocolLog: capture,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(d.stop)

	cfg := ipcon.DefaultConfig()
	cfg.AutoReconnect = false
	cfg.Timeout = time.Second
	conn := ipcon.NewConnection(cfg)
	defer conn.Close()

	found := make(chan wire.EnumerateEvent, 4)
	conn.OnEnumerate(func(ev wire.EnumerateEvent) { found <- ev })
	require.NoError(t, conn.Connect(context.Background(), d.sim.Host(), d.sim.Port()))
	require.NoError(t, conn.Enumerate())

	for _, want := range []string{"jGy", "abc"} {
		select {
		case ev := <-found:
			assert.Equal(t, want, ev.UID)
			assert.Equal(t, uint16(ledstrip.DeviceIdentifier), ev.DeviceIdentifier)
		case <-time.After(time.Second):
			t.Fatalf("no enumerate reply for %s", want)
		}
	}

	strip, err := ledstrip.New(conn, "abc")
	require.NoError(t, err)
	rendered := make(chan uint16, 8)
	strip.OnFrameRendered(func(n uint16) {
		select {
		case rendered <- n:
		default:
		}
	})
	require.NoError(t, strip.SetFrameDuration(context.Background(), 10*time.Millisecond))
	require.NoError(t, strip.WriteFrame(context.Background(), make([]ledstrip.Color, 5)))
	require.NoError(t, strip.EnableFrameRenderedCallback(context.Background()))

	// Frames rendered before the write report length 0.
	deadline := time.After(2 * time.Second)
	for got := false; !got; {
		select {
		case n := <-rendered:
			got = n == 5
		case <-deadline:
			t.Fatal("no frame-rendered callback for the written frame")
		}
	}
	assert.Positive(t, d.strips[1].Frames())
	assert.Equal(t, make([]ledstrip.Color, 5), d.strips[1].Colors(5))

	conn.Close()
	d.stop()

	events, err := log.ReadAll(capture, log.Filter{})
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestStartRejectsBadListenAddress(t *testing.T) {
	_, err := start(context.Background(), Options{Listen: "256.0.0.1:bad", Strips: 1}, quietLogger())
	assert.Error(t, err)
}
