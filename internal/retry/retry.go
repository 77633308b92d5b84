// Package retry provides the bounded poll-and-verify loop used wherever the
// state of an external tool (e.g., HEAD after a checkout) has to be
// confirmed before continuing.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Until when every attempt ran and the
// predicate never held.
var ErrExhausted = errors.New("condition not met after all attempts")

// Check is evaluated once per attempt. It reports whether the condition
// holds. A non-nil error counts as a failed attempt and is remembered as
// the last error, but does not stop the loop.
type Check func(ctx context.Context, attempt int) (bool, error)

// Until runs check up to attempts times, sleeping interval between
// attempts (never after the last one). It returns nil as soon as check
// reports true.
//
// When attempts are exhausted it returns ErrExhausted joined with the last
// error check returned, if any. Context cancellation stops the loop early
// and returns the context error.
func Until(ctx context.Context, attempts int, interval time.Duration, check Check) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := check(ctx, attempt)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		if attempt == attempts {
			break
		}
		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}

	if lastErr != nil {
		return errors.Join(ErrExhausted, lastErr)
	}
	return ErrExhausted
}
