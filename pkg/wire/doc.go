// Package wire defines the TFP wire format.
//
// Every packet starts with a fixed 8-byte header followed by up to 72 bytes
// of payload. All multi-byte fields are little-endian regardless of host
// byte order.
//
// # Header Layout
//
//	 0               4       5       6       7       8
//	 ┌───────────────┬───────┬───────┬───────┬───────┐
//	 │ device id u32 │  len  │  fid  │ seq/o │ err/f │
//	 └───────────────┴───────┴───────┴───────┴───────┘
//
//	seq/o: bits 7-4 sequence number, bit 3 response expected
//	err/f: bits 7-6 error code (0 ok, 1 invalid parameter, 2 not supported)
//
// # Sequence Numbers
//
// Requests carry a sequence number in the range 1..15. Sequence number 0
// marks unsolicited traffic: pushed device callbacks and enumerate replies.
//
// # Device IDs
//
// Devices are addressed by a 32-bit id that users see as a base-58 string
// (see DecodeUID and EncodeUID). Id 0 is reserved for broadcast.
package wire
