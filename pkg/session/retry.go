package session

import (
	"context"
	"time"
)

// retryPolicy bounds repeated connection attempts against a remote service.
type retryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// InitialDelay is the wait after the first failure; it doubles after
	// every further failure (1s, 2s, 4s with the defaults).
	InitialDelay time.Duration
}

// defaultRetryPolicy matches the provider rate-limit guidance: three tries
// with exponential backoff starting at one second.
var defaultRetryPolicy = retryPolicy{
	Attempts:     3,
	InitialDelay: time.Second,
}

// withRetry runs fn up to p.Attempts times, sleeping between failures.
// It stops early when the error is terminal (bad credentials, not
// configured) or the context is cancelled, and returns the last error.
func withRetry(ctx context.Context, p retryPolicy, fn func(context.Context) error) error {
	delay := p.InitialDelay

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == p.Attempts {
			return err
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
