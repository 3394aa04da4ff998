package transport

// Receiver performs blocking reads. PacketReader.ReadFrom drains one.
type Receiver interface {
	Receive(buf []byte) (int, error)
}

var _ Receiver = (*Session)(nil)
