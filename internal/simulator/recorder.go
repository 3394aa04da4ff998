package simulator

import (
	"sync"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// recorder keeps every packet the simulator received, in arrival order.
type recorder struct {
	mu      sync.Mutex
	packets []wire.Packet
}

func (r *recorder) add(p wire.Packet) {
	r.mu.Lock()
	r.packets = append(r.packets, p)
	r.mu.Unlock()
}

func (r *recorder) snapshot(match func(wire.Packet) bool) []wire.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Packet, 0, len(r.packets))
	for _, p := range r.packets {
		if match == nil || match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.packets = nil
	r.mu.Unlock()
}
