package ipcon

import "sync"

// ResponseExpected is the per-function response policy of a device.
type ResponseExpected uint8

const (
	// ResponseExpectedInvalid marks an unknown function ID.
	ResponseExpectedInvalid ResponseExpected = iota
	// ResponseExpectedAlwaysTrue is fixed for getters.
	ResponseExpectedAlwaysTrue
	// ResponseExpectedAlwaysFalse is fixed for callbacks.
	ResponseExpectedAlwaysFalse
	// ResponseExpectedTrue is a setter the application wants acknowledged.
	ResponseExpectedTrue
	// ResponseExpectedFalse is a setter sent without waiting.
	ResponseExpectedFalse
)

func (r ResponseExpected) mutable() bool {
	return r == ResponseExpectedTrue || r == ResponseExpectedFalse
}

func (r ResponseExpected) expected() bool {
	return r == ResponseExpectedAlwaysTrue || r == ResponseExpectedTrue
}

// responseTable is indexed by function ID.
type responseTable struct {
	mu    sync.RWMutex
	flags [256]ResponseExpected
}

func (t *responseTable) get(fid uint8) ResponseExpected {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flags[fid]
}

func (t *responseTable) define(fid uint8, r ResponseExpected) {
	t.mu.Lock()
	t.flags[fid] = r
	t.mu.Unlock()
}

// set changes a mutable entry. ok is false for fixed or unknown entries.
func (t *responseTable) set(fid uint8, expected bool) (current ResponseExpected, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current = t.flags[fid]
	if !current.mutable() {
		return current, false
	}
	if expected {
		t.flags[fid] = ResponseExpectedTrue
	} else {
		t.flags[fid] = ResponseExpectedFalse
	}
	return current, true
}

func (t *responseTable) setAll(expected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.flags {
		if !f.mutable() {
			continue
		}
		if expected {
			t.flags[i] = ResponseExpectedTrue
		} else {
			t.flags[i] = ResponseExpectedFalse
		}
	}
}
