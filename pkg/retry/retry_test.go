package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "yareviews/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		Initial: 100 * time.Millisecond,
		Max:     1 * time.Second,
		Factor:  2,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInBand(t *testing.T) {
	backoff := &ExponentialBackoff{
		Initial: 100 * time.Millisecond,
		Max:     1 * time.Second,
		Factor:  2,
		Jitter:  0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	var retried []int

	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("profile locked")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent")

	err := Do(func() error {
		attempts++
		return cause
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.NotFound("page not found")))
	assert.True(t, DefaultRetryIf(errs.Transport(errors.New("tab crashed"))))
	assert.False(t, DefaultRetryIf(errs.Unexpected(errors.New("bad markup"))))
	assert.True(t, DefaultRetryIf(errs.Block("header missing")))
	assert.True(t, DefaultRetryIf(errors.New("untyped")))
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	notFound := errs.NotFound("page not found")

	err := Do(func() error {
		attempts++
		return notFound
	}, &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Millisecond}})

	assert.Same(t, notFound, err)
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("again")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
		RetryIf:     func(error) bool { return true },
		Context:     ctx,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary")
		}
		return "session-1", nil
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
	})

	require.NoError(t, err)
	assert.Equal(t, "session-1", result)
}

func TestExponentialBackoffEdges(t *testing.T) {
	assert.Zero(t, (&ExponentialBackoff{Max: time.Second, Factor: 2}).NextDelay(3))

	// factor below 1 falls back to doubling
	b := &ExponentialBackoff{Initial: 10 * time.Millisecond, Factor: 0.5}
	assert.Equal(t, 40*time.Millisecond, b.NextDelay(3))

	// uncapped growth stays finite for large attempts
	capped := &ExponentialBackoff{Initial: time.Millisecond, Max: time.Minute, Factor: 10}
	assert.Equal(t, time.Minute, capped.NextDelay(1000))
}

func TestDefaultConfigRetriesTransportFaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backoff = &ConstantBackoff{}

	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.Transport(errors.New("websocket url timeout reached"))
	}, cfg)

	require.Error(t, err)
	assert.True(t, errs.IsTransport(err))
	assert.Equal(t, 3, attempts)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), time.Millisecond))
	require.NoError(t, Wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}
