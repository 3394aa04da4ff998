package ipcon

import "sync"

// registry maps device IDs to the handle currently bound to them.
// Handles are shared with in-flight dispatch and freed by the GC once the
// last reference is gone.
type registry struct {
	mu      sync.RWMutex
	devices map[uint32]*Device
}

func newRegistry() *registry {
	return &registry{devices: make(map[uint32]*Device)}
}

// add binds d to its ID. A previous handle for the same ID is marked
// replaced and fails every later call.
func (r *registry) add(d *Device) {
	r.mu.Lock()
	old := r.devices[d.uid]
	r.devices[d.uid] = d
	r.mu.Unlock()

	if old != nil && old != d {
		old.replaced.Store(true)
	}
}

// remove unbinds d if it is still the current handle for its ID.
func (r *registry) remove(d *Device) {
	r.mu.Lock()
	if r.devices[d.uid] == d {
		delete(r.devices, d.uid)
	}
	r.mu.Unlock()
}

func (r *registry) get(uid uint32) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[uid]
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
