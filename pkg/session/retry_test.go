package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), retryPolicy{Attempts: 3, InitialDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RecoversAfterFailure(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), retryPolicy{Attempts: 3, InitialDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			if calls < 3 {
				return errRemoteDown
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), retryPolicy{Attempts: 3, InitialDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			return errRemoteDown
		})
	assert.ErrorIs(t, err, errRemoteDown)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_DoublesDelay(t *testing.T) {
	const initial = 20 * time.Millisecond

	start := time.Now()
	_ = withRetry(context.Background(), retryPolicy{Attempts: 3, InitialDelay: initial},
		func(context.Context) error { return errRemoteDown })
	elapsed := time.Since(start)

	// Two waits: initial and doubled.
	assert.GreaterOrEqual(t, elapsed, 3*initial)
}

func TestWithRetry_StopsOnTerminalError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), retryPolicy{Attempts: 3, InitialDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			return ErrInvalidCredentials
		})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- withRetry(ctx, retryPolicy{Attempts: 3, InitialDelay: time.Minute},
			func(context.Context) error {
				calls++
				return errRemoteDown
			})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls, "cancellation during backoff must not re-attempt")
	case <-time.After(time.Second):
		t.Fatal("withRetry did not observe cancellation")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not configured", ErrNotConfigured, KindNotConfigured},
		{"wrapped not configured", errors.Join(errors.New("ctx"), ErrNotConfigured), KindNotConfigured},
		{"invalid credentials", ErrInvalidCredentials, KindInvalidCredentials},
		{"network error", errRemoteDown, KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
