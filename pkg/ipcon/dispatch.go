package ipcon

import (
	"context"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/connection"
	"github.com/tfp-protocol/tfp-go/pkg/transport"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// handle runs on the dispatcher goroutine. No lock is held while a user
// handler runs.
func (c *Connection) handle(item queueItem) {
	switch item.kind {
	case itemConnected:
		c.socketMu.Lock()
		if c.gen == item.gen {
			c.dispatchAllowed.Store(true)
		}
		c.socketMu.Unlock()
		c.handlersMu.RLock()
		h := c.onConnected
		c.handlersMu.RUnlock()
		if h != nil {
			h(item.connectReason)
		}

	case itemDisconnected:
		if item.gen != nil {
			c.teardown(item.gen)
		}
		c.handlersMu.RLock()
		h := c.onDisconnected
		c.handlersMu.RUnlock()
		if h != nil {
			h(item.disconnectReason)
		}
		if item.disconnectReason != DisconnectReasonRequest {
			c.reconnect()
		}

	case itemPacket:
		if !c.dispatchAllowed.Load() {
			return
		}
		c.dispatchPacket(item.packet)
	}
}

// teardown clears g if it is still the current generation and joins its
// workers outside socketMu.
func (c *Connection) teardown(g *generation) {
	c.socketMu.Lock()
	if c.gen == g {
		c.gen = nil
	}
	c.socketMu.Unlock()
	g.stop()
}

func (c *Connection) dispatchPacket(p wire.Packet) {
	if p.IsUnsolicited() && p.FunctionID() == wire.CallbackEnumerate {
		c.handlersMu.RLock()
		h := c.onEnumerate
		c.handlersMu.RUnlock()
		if h == nil {
			return
		}
		ev, err := wire.DecodeEnumerate(p.Payload())
		if err != nil {
			c.logger.Warn("malformed enumerate callback", "error", err)
			return
		}
		h(ev)
		return
	}

	d := c.devices.get(p.DeviceID())
	if d == nil || d.released.Load() {
		return
	}
	if h := d.callback(p.FunctionID()); h != nil {
		h(p.Payload())
	}
}

// reconnect retries the last host until it succeeds, auto-reconnect is
// disabled or Disconnect cancels it. It blocks the dispatcher, which has
// nothing to deliver while there is no socket.
func (c *Connection) reconnect() {
	c.socketMu.Lock()
	if !c.autoReconnect.Load() || !c.autoReconnectAllowed || c.liveLocked() || c.closed.Load() {
		c.reconnectPending = false
		c.socketMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.reconnectCancel = cancel
	c.reconnectPending = true
	c.reconnectRound++
	round := c.reconnectRound
	c.socketMu.Unlock()

	defer func() {
		c.socketMu.Lock()
		if c.reconnectRound == round {
			c.reconnectCancel = nil
			if c.gen == nil {
				c.reconnectPending = false
			}
		}
		c.socketMu.Unlock()
		cancel()
	}()

	b := connection.NewBackoffWithConfig(c.config.Reconnect)
	if !b.Wait(ctx) {
		return
	}

	err := connection.Retry(ctx, b, c.reconnectOnce, func(attempt int, err error, delay time.Duration) {
		c.logger.Debug("reconnect attempt failed", "attempt", attempt, "retry_in", delay, "error", err)
		c.metrics.reconnectFailures.Inc()
	})
	if err != nil {
		c.logger.Debug("reconnect cancelled")
	}
}

// reconnectOnce makes one attempt. It returns nil when there is nothing
// left to do, including when someone else connected in the meantime.
func (c *Connection) reconnectOnce(ctx context.Context) error {
	c.socketMu.Lock()
	if ctx.Err() != nil || !c.autoReconnect.Load() || !c.autoReconnectAllowed || c.liveLocked() {
		c.socketMu.Unlock()
		return nil
	}
	host, port := c.host, c.port
	c.socketMu.Unlock()

	netConn, err := transport.Dial(ctx, host, port, c.config.DialTimeout)
	if err != nil {
		return err
	}

	c.socketMu.Lock()
	defer c.socketMu.Unlock()
	if ctx.Err() != nil || !c.autoReconnect.Load() || !c.autoReconnectAllowed || c.liveLocked() {
		netConn.Close()
		return nil
	}
	c.installLocked(netConn, ConnectReasonAutoReconnect)
	return nil
}
