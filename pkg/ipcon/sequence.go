package ipcon

import (
	"sync"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// sequencer hands out request sequence numbers cycling through 1..15.
// Zero is reserved for unsolicited traffic and never allocated.
type sequencer struct {
	mu   sync.Mutex
	last uint8
}

func (s *sequencer) next() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = s.last%wire.MaxSequenceNumber + 1
	return s.last
}
