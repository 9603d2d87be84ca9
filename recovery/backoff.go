// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package recovery

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// NewBackoff returns the backoff sequence used between recovery
// attempts: jittered exponential growth from a 50 millisecond base,
// capped at 1 second per wait.
//
// The returned value is stateful and must not be shared between calls;
// construct a fresh sequence per call (the engine does this through the
// Backoff option).
func NewBackoff() retry.Backoff {
	b := retry.NewExponential(50 * time.Millisecond)
	b = retry.WithJitter(25*time.Millisecond, b)
	b = retry.WithCappedDuration(1*time.Second, b)
	return b
}

// NoBackoff returns a backoff sequence whose waits are all zero, for
// tests and for callers that want recovery without delay.
func NoBackoff() retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	})
}

// Wait sleeps for the next interval in the backoff sequence, or returns
// early with the context error if ctx is done first. A sequence that
// reports it is exhausted produces no wait.
func Wait(ctx context.Context, b retry.Backoff) error {
	d, stop := b.Next()
	if stop || d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
