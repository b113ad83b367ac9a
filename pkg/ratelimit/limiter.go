package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces page navigations
type Limiter interface {
	// Allow reports whether a navigation may start now and records it if so
	Allow() bool
	// Wait blocks until a navigation may start or ctx is done
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// New returns a limiter admitting perMinute navigations in any rolling
// minute. A non-positive rate disables limiting.
func New(perMinute int) Limiter {
	if perMinute <= 0 {
		return unlimited{}
	}
	return NewSlidingWindow(perMinute, time.Minute)
}

type unlimited struct{}

func (unlimited) Allow() bool                    { return true }
func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (unlimited) Reset()                         {}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve()
	return ok
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// reserve records a request if the window has room, otherwise it returns how
// long until the oldest request leaves the window.
func (sw *SlidingWindow) reserve() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}

	wait := sw.windowSize - now.Sub(sw.requests[0])
	if wait <= 0 {
		wait = 10 * time.Millisecond
	}
	return wait, false
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
