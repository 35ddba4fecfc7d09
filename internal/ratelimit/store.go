// Package ratelimit implements fixed-window request limiting on top of a
// pluggable counter store.  The store performs increment-and-read as one
// atomic step per key, so concurrent requests can never observe the same
// count.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable wraps failures of the counter backend.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// Counter is the state of a window immediately after an increment.
type Counter struct {
	Count   int64         // requests seen in the current window, including this one
	ResetIn time.Duration // time until the window rolls over
}

// CounterStore increments the counter of key, starting a new window of
// the given length when none is active.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
}
