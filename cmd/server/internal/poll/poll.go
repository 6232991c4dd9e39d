// Package poll provides a bounded polling loop shared by clip readiness
// checks and transcription job waits.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned when fn never reported done within
// maxAttempts polls.
var ErrBudgetExhausted = errors.New("poll budget exhausted")

// Fn is one poll attempt. done stops the loop with success; a non-nil
// error stops it immediately.
type Fn func(ctx context.Context) (done bool, err error)

// Wait calls fn every interval until it reports done, fails, the context
// is cancelled, or maxAttempts is reached. The first attempt runs
// immediately, not after the first interval.
func Wait(ctx context.Context, interval time.Duration, maxAttempts int, fn Fn) error {
	if maxAttempts <= 0 {
		return ErrBudgetExhausted
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return ErrBudgetExhausted
}
