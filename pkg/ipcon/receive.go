package ipcon

import (
	"errors"
	"io"

	"github.com/tfp-protocol/tfp-go/pkg/log"
	"github.com/tfp-protocol/tfp-go/pkg/transport"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// receiveLoop reads packets for g until its socket fails or g is stopped.
func (c *Connection) receiveLoop(g *generation) {
	defer g.wg.Done()

	r := transport.NewPacketReader()
	for {
		n, err := r.ReadFrom(g.session)
		if g.ctx.Err() != nil {
			return
		}
		if n > 0 {
			g.heartbeat.MarkTraffic()
		}

		for {
			p, ok, perr := r.Next()
			if perr != nil {
				c.logger.Warn("protocol violation", "generation", g.id, "error", perr)
				c.metrics.dropped.WithLabelValues("invalid_length").Inc()
				c.handleDisconnectByPeer(g, DisconnectReasonError, perr)
				return
			}
			if !ok {
				break
			}
			c.route(g, p)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				c.handleDisconnectByPeer(g, DisconnectReasonShutdown, err)
			} else {
				c.handleDisconnectByPeer(g, DisconnectReasonError, err)
			}
			return
		}
	}
}

// route delivers one packet: enumerate replies and device callbacks go to
// the dispatcher, correlated replies to the waiting caller.
func (c *Connection) route(g *generation, p wire.Packet) {
	if p.IsUnsolicited() && p.FunctionID() == wire.CallbackEnumerate {
		c.metrics.received.WithLabelValues("enumerate").Inc()
		g.capture.Control(log.DirectionIn, log.ControlMsgEnumerate)
		if !c.hasEnumerateHandler() {
			c.drop("no_handler", p)
			return
		}
		c.dispatcher.put(queueItem{kind: itemPacket, packet: p})
		return
	}

	d := c.devices.get(p.DeviceID())
	if d == nil {
		c.metrics.received.WithLabelValues("unknown").Inc()
		c.drop("unknown_device", p)
		return
	}

	if p.IsUnsolicited() {
		c.metrics.received.WithLabelValues("callback").Inc()
		g.capture.Packet(log.DirectionIn, d.uidString, log.PacketEvent{
			Kind:       log.PacketKindCallback,
			FunctionID: p.FunctionID(),
			Length:     p.Length(),
		})
		if d.callback(p.FunctionID()) == nil {
			c.drop("no_handler", p)
			return
		}
		c.dispatcher.put(queueItem{kind: itemPacket, packet: p})
		return
	}

	c.metrics.received.WithLabelValues("response").Inc()
	if !d.deliverResponse(p) {
		c.drop("unmatched", p)
	}
}

func (c *Connection) drop(reason string, p wire.Packet) {
	c.metrics.dropped.WithLabelValues(reason).Inc()
	c.logger.Debug("dropped packet", "reason", reason, "packet", p)
}

func (c *Connection) hasEnumerateHandler() bool {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.onEnumerate != nil
}
