package util

import (
	"context"
	"time"
)

// RetryIf calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay, as long as retryable reports the error as worth retrying. It
// returns nil on the first successful call, the first non-retryable error, or
// the last error if all attempts fail. The function respects context
// cancellation between retries.
func RetryIf(ctx context.Context, maxAttempts int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return err
}
