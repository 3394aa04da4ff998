// Package connection provides reconnect pacing for TFP sessions.
//
// After an unexpected disconnect the connection retries with a short
// constant pause (100 ms by default) until it succeeds or the application
// disconnects explicitly, which cancels the retry context. A growing
// backoff with jitter can be configured for links where hammering the
// daemon is undesirable:
//
//	actual_delay = base_delay + random(0, base_delay * jitter)
package connection
