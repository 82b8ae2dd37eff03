package fault

import (
	"context"
	"time"
)

// Retry runs fn up to maxAttempts times with exponential backoff
// (starting at 50ms, doubling, capped at backoffCap) whenever fn returns
// a Retryable Fault. Any non-retryable error (or a Retryable one on the
// final attempt) is returned immediately, as-is.
func Retry(ctx context.Context, maxAttempts int, backoffCap time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := 50 * time.Millisecond
	if backoff > backoffCap {
		backoff = backoffCap
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		f, ok := err.(Fault)
		if !ok || !f.Retryable() || attempt == maxAttempts {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
	return err
}
