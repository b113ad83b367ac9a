package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given failed attempt
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Factor after every failed attempt,
// starting at Initial and never exceeding Max. Jitter spreads each delay by
// up to that fraction in either direction.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// DefaultExponentialBackoff doubles from half a second up to ten seconds
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial: 500 * time.Millisecond,
		Max:     10 * time.Second,
		Factor:  2,
		Jitter:  0.1,
	}
}

// NextDelay returns Initial*Factor^(attempt-1), capped at Max and jittered.
// A zero Initial disables waiting; a Factor below 1 is treated as 2.
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || b.Initial <= 0 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	delay := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		if b.Max > 0 && delay >= float64(b.Max) {
			break
		}
		delay *= factor
	}
	if b.Max > 0 {
		delay = min(delay, float64(b.Max))
	}
	if b.Jitter > 0 {
		delay *= 1 + b.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(max(delay, 0))
}

// ConstantBackoff waits the same Delay after every failure
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay or until ctx is done, whichever comes first. It
// returns ctx.Err() when ctx ended the wait, including for a zero delay on an
// already cancelled ctx.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
