package transport

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultHeartbeatInterval is the idle time after which a probe is sent.
const DefaultHeartbeatInterval = 5 * time.Second

// Heartbeat probes an idle session. Each tick it checks whether any packet
// was sent or received since the previous tick; only if none was does it
// send a probe. A failed probe is reported through onFailure and ends the
// loop.
type Heartbeat struct {
	interval  time.Duration
	probe     func() error
	onFailure func(error)

	traffic atomic.Bool
	probes  atomic.Uint64
}

// NewHeartbeat creates a heartbeat. A zero interval uses
// DefaultHeartbeatInterval.
func NewHeartbeat(interval time.Duration, probe func() error, onFailure func(error)) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		interval:  interval,
		probe:     probe,
		onFailure: onFailure,
	}
}

// MarkTraffic records that a packet crossed the socket.
func (h *Heartbeat) MarkTraffic() {
	h.traffic.Store(true)
}

// Probes returns the number of probes sent.
func (h *Heartbeat) Probes() uint64 {
	return h.probes.Load()
}

// Run blocks until ctx is cancelled or a probe fails. The timed wait is
// also the cancellation point, so Run never holds a lock shared with the
// receive loop.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.traffic.Swap(false) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			h.probes.Add(1)
			if err := h.probe(); err != nil {
				if h.onFailure != nil && ctx.Err() == nil {
					h.onFailure(err)
				}
				return
			}
		}
	}
}
