package ipcon

import (
	"sync"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

type itemKind uint8

const (
	itemExit itemKind = iota
	itemConnected
	itemDisconnected
	itemPacket
)

// queueItem is one entry of the dispatcher's FIFO. Packets are stored by
// value so nothing is shared with the receive loop once queued.
type queueItem struct {
	kind             itemKind
	connectReason    ConnectReason
	disconnectReason DisconnectReason
	gen              *generation
	packet           wire.Packet
}

// dispatcher is the single consumer that runs user handlers.
type dispatcher struct {
	mu      sync.Mutex
	items   []queueItem
	notify  chan struct{}
	started bool
	stopped bool
	done    chan struct{}

	onDepth func(int)
}

func newDispatcher(onDepth func(int)) *dispatcher {
	return &dispatcher{
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		onDepth: onDepth,
	}
}

// start launches the worker once. It fails after stop.
func (q *dispatcher) start(handle func(queueItem)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrWorkerStartFailed
	}
	if q.started {
		return nil
	}
	q.started = true
	go q.run(handle)
	return nil
}

func (q *dispatcher) put(item queueItem) {
	q.mu.Lock()
	if q.stopped && item.kind != itemExit {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	depth := len(q.items)
	q.mu.Unlock()

	if q.onDepth != nil {
		q.onDepth(depth)
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *dispatcher) pop() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	item := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]
	if q.onDepth != nil {
		q.onDepth(len(q.items))
	}
	return item, true
}

func (q *dispatcher) run(handle func(queueItem)) {
	defer close(q.done)
	for {
		item, ok := q.pop()
		if !ok {
			<-q.notify
			continue
		}
		if item.kind == itemExit {
			return
		}
		handle(item)
	}
}

// stop queues an exit marker behind pending items and waits for the worker.
// It must not be called from a handler.
func (q *dispatcher) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	started := q.started
	q.stopped = true
	q.mu.Unlock()

	if !started {
		return
	}
	q.put(queueItem{kind: itemExit})
	<-q.done
}
