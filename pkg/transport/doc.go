// Package transport provides the TFP socket layer.
//
// The transport layer handles:
//   - Dialing the brick daemon with typed failures
//   - Serialized sends on one TCP socket (Session)
//   - Reassembly of packets split across reads (PacketReader)
//   - Liveness probing when the line is idle (Heartbeat)
//   - A minimal packet server used by the simulator (Server)
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   8-byte header + payload      │
//	├────────────────────────────────┤
//	│  length-delimited packets      │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// Packets carry their own total length in header byte 4, so there is no
// separate framing prefix. A declared length outside [8, 80] means the
// stream can no longer be trusted and the session must be closed.
package transport
