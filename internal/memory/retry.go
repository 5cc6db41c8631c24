package memory

import (
	"context"
	"time"
)

// Retry policy for the two I/O edges (embedding provider, vector
// index) and the relational write path. Retries are whole-operation:
// the write path is not idempotent across the two stores, so a partial
// failure re-runs both writes.
const retryAttempts = 3

var retryBase = 200 * time.Millisecond

// withRetry runs fn up to attempts times with exponential backoff,
// honoring context cancellation between attempts. The last error is
// returned when all attempts fail.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	delay := retryBase
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
