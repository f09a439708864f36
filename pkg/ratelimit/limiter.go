package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a slot if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets all recorded requests
	Reset()
}

// New returns a limiter allowing requestsPerMinute requests in any rolling
// minute. A non-positive rate disables limiting.
func New(requestsPerMinute int) Limiter {
	if requestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewSlidingWindow(requestsPerMinute, time.Minute)
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	_, ok := sw.tryLocked(time.Now())
	return ok
}

// Wait blocks until a request is allowed or ctx is done
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		sw.mu.Lock()
		wait, ok := sw.tryLocked(time.Now())
		sw.mu.Unlock()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// tryLocked records a request if there is room, otherwise returns how long
// until the oldest request leaves the window
func (sw *SlidingWindow) tryLocked(now time.Time) (time.Duration, bool) {
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}

	wait := sw.windowSize - now.Sub(sw.requests[0])
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		n := copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:n]
	}
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Reset() {}
