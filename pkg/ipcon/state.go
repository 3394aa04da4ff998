package ipcon

// State is the connection state reported by Connection.State.
type State uint8

const (
	// StateDisconnected means no socket and no reconnect in progress.
	StateDisconnected State = 0
	// StateConnected means a live socket.
	StateConnected State = 1
	// StateReconnectPending means auto-reconnect is retrying.
	StateReconnectPending State = 2
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateReconnectPending:
		return "RECONNECT_PENDING"
	default:
		return "UNKNOWN"
	}
}

// ConnectReason tells why a Connected event was delivered.
type ConnectReason uint8

const (
	// ConnectReasonRequest follows an explicit Connect.
	ConnectReasonRequest ConnectReason = 0
	// ConnectReasonAutoReconnect follows a successful reconnect attempt.
	ConnectReasonAutoReconnect ConnectReason = 1
)

// String returns the reason name.
func (r ConnectReason) String() string {
	switch r {
	case ConnectReasonRequest:
		return "REQUEST"
	case ConnectReasonAutoReconnect:
		return "AUTO_RECONNECT"
	default:
		return "UNKNOWN"
	}
}

// DisconnectReason tells why a Disconnected event was delivered.
type DisconnectReason uint8

const (
	// DisconnectReasonRequest follows an explicit Disconnect.
	DisconnectReasonRequest DisconnectReason = 0
	// DisconnectReasonError follows an I/O error, a failed probe or a
	// protocol violation.
	DisconnectReasonError DisconnectReason = 1
	// DisconnectReasonShutdown means the peer closed the socket.
	DisconnectReasonShutdown DisconnectReason = 2
)

// String returns the reason name.
func (r DisconnectReason) String() string {
	switch r {
	case DisconnectReasonRequest:
		return "REQUEST"
	case DisconnectReasonError:
		return "ERROR"
	case DisconnectReasonShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}
