package log

import "time"

// MaxFrameData limits the raw bytes stored in a FrameEvent. A full packet
// always fits; larger transport reads are truncated.
const MaxFrameData = 80

// Capture stamps events with the fields shared by one socket generation
// and forwards them to a Logger. A nil Capture or a nil Logger discards
// everything, so callers don't need to guard each call site.
type Capture struct {
	Logger       Logger
	ConnectionID string
	LocalRole    Role
	RemoteAddr   string

	now func() time.Time
}

// NewCapture returns a Capture for one connection.
func NewCapture(logger Logger, connID string, role Role, remote string) *Capture {
	return &Capture{
		Logger:       logger,
		ConnectionID: connID,
		LocalRole:    role,
		RemoteAddr:   remote,
		now:          time.Now,
	}
}

// Enabled reports whether events are forwarded anywhere.
func (c *Capture) Enabled() bool {
	if c == nil || c.Logger == nil {
		return false
	}
	_, noop := c.Logger.(NoopLogger)
	return !noop
}

func (c *Capture) emit(e Event) {
	if !c.Enabled() {
		return
	}
	if c.now != nil {
		e.Timestamp = c.now()
	} else {
		e.Timestamp = time.Now()
	}
	e.ConnectionID = c.ConnectionID
	e.LocalRole = c.LocalRole
	e.RemoteAddr = c.RemoteAddr
	c.Logger.Log(e)
}

// Frame records raw bytes crossing the socket.
func (c *Capture) Frame(dir Direction, data []byte) {
	if !c.Enabled() {
		return
	}
	fe := &FrameEvent{Size: len(data)}
	n := len(data)
	if n > MaxFrameData {
		n = MaxFrameData
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), data[:n]...)
	c.emit(Event{
		Direction: dir,
		Layer:     LayerTransport,
		Category:  CategoryMessage,
		Frame:     fe,
	})
}

// Packet records a decoded packet header.
func (c *Capture) Packet(dir Direction, uid string, pe PacketEvent) {
	c.emit(Event{
		Direction: dir,
		Layer:     LayerWire,
		Category:  CategoryMessage,
		DeviceUID: uid,
		Packet:    &pe,
	})
}

// Control records a probe or enumerate broadcast.
func (c *Capture) Control(dir Direction, t ControlMsgType) {
	c.emit(Event{
		Direction:  dir,
		Layer:      LayerWire,
		Category:   CategoryControl,
		ControlMsg: &ControlMsgEvent{Type: t},
	})
}

// State records a lifecycle transition.
func (c *Capture) State(entity StateEntity, oldState, newState, reason string) {
	c.emit(Event{
		Layer:    LayerConnection,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error records a failure at the given layer.
func (c *Capture) Error(layer Layer, err error, context string) {
	if err == nil {
		return
	}
	c.emit(Event{
		Layer:    layer,
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
