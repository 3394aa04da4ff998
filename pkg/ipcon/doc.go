// Package ipcon is the TFP connection manager.
//
// A Connection owns one TCP session to a brick daemon at a time. For each
// socket generation it runs a receive loop and a heartbeat probe; a single
// dispatcher goroutine lives for the whole lifetime of the Connection and
// delivers connection events, enumerate replies and device callbacks in
// arrival order. Handlers never run while a transport lock is held, so a
// handler may call back into the Connection or its Devices.
//
// Devices are bound to a Connection with NewDevice. Correlated requests on
// one Device are serialized; different Devices proceed concurrently.
//
// # Basic Usage
//
//	conn := ipcon.NewConnection(ipcon.DefaultConfig())
//	defer conn.Close()
//
//	conn.OnEnumerate(func(ev wire.EnumerateEvent) {
//	    fmt.Println(ev.UID, ev.DeviceIdentifier)
//	})
//	if err := conn.Connect(ctx, "localhost", 4223); err != nil {
//	    return err
//	}
//	_ = conn.Enumerate()
//
// # Reconnect
//
// If the peer closes the socket or a send fails, the Connection reports a
// Disconnected event and, when auto-reconnect is enabled, retries with a
// short pause until it succeeds or Disconnect is called. Device handles and
// registered handlers survive the reconnect.
package ipcon
