// Package log provides protocol capture for TFP connections.
//
// It is separate from operational logging (slog). Operational logs say what
// the connection decided; protocol capture records every packet, probe and
// state transition as a machine-readable trace that tfp-log can replay.
//
// # Basic Usage
//
//	// Console output during development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/tfp/session.tlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: raw packet bytes (FrameEvent)
//   - Wire: decoded headers (PacketEvent)
//   - Connection: connect/disconnect transitions (StateChangeEvent)
//
// Heartbeat probes and enumerate broadcasts are ControlMsgEvents. Errors at
// any layer are ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with a .tlog extension.
// FileLogger buffers records, so a capture is complete only after Flush or
// Close. Reader and ReadAll stream a capture back through a Filter; a record
// cut short by a crash surfaces as ErrCorruptCapture.
package log
