package connection

import (
	"context"
	"errors"
	"time"
)

// ErrReconnectCancelled is returned by Retry when ctx ends first.
var ErrReconnectCancelled = errors.New("reconnect cancelled")

// AttemptFunc performs one connection attempt.
type AttemptFunc func(ctx context.Context) error

// FailureFunc observes a failed attempt. delay is the pause before the next
// attempt.
type FailureFunc func(attempt int, err error, delay time.Duration)

// Retry calls attempt until it succeeds or ctx is cancelled, pausing
// between attempts according to b. Failures are reported only through
// onFailure, which may be nil. The backoff is reset on success.
func Retry(ctx context.Context, b *Backoff, attempt AttemptFunc, onFailure FailureFunc) error {
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return ErrReconnectCancelled
		}

		err := attempt(ctx)
		if err == nil {
			b.Reset()
			return nil
		}

		if onFailure != nil {
			onFailure(n, err, b.Current())
		}
		if !b.Wait(ctx) {
			return ErrReconnectCancelled
		}
	}
}
