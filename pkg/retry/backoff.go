package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	errs "shopfiles/pkg/errors"
)

// BackoffStrategy computes the wait before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given (1-based) failed attempt
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff picks a delay based on the error that caused the retry
type ErrorAwareBackoff interface {
	BackoffStrategy
	NextDelayForError(attempt int, err error) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor adds randomness to avoid synchronized retries (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff waits the same delay between every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
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

// ErrorTypeBackoff selects a strategy by the classified type of the error.
// Shopify throttling needs far longer pauses than a flaky connection.
type ErrorTypeBackoff struct {
	NetworkErrorBackoff BackoffStrategy
	RateLimitBackoff    BackoffStrategy
	ServerErrorBackoff  BackoffStrategy
	DefaultBackoff      BackoffStrategy
}

// NewErrorTypeBackoff creates a new error-type based backoff
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		NetworkErrorBackoff: &ExponentialBackoff{
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RateLimitBackoff: &ExponentialBackoff{
			BaseDelay:    10 * time.Second,
			MaxDelay:     2 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		ServerErrorBackoff: &ExponentialBackoff{
			BaseDelay:    2 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		DefaultBackoff: DefaultExponentialBackoff(),
	}
}

// NextDelay uses the default strategy
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.DefaultBackoff.NextDelay(attempt)
}

// NextDelayForError uses the strategy registered for err's type
func (etb *ErrorTypeBackoff) NextDelayForError(attempt int, err error) time.Duration {
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		return etb.DefaultBackoff.NextDelay(attempt)
	}
	return etb.ForType(apiErr.Type).NextDelay(attempt)
}

// ForType returns the strategy for an error type
func (etb *ErrorTypeBackoff) ForType(t errs.ErrorType) BackoffStrategy {
	switch t {
	case errs.ErrorTypeNetwork, errs.ErrorTypeTimeout:
		return etb.NetworkErrorBackoff
	case errs.ErrorTypeRateLimit:
		return etb.RateLimitBackoff
	case errs.ErrorTypeServerError:
		return etb.ServerErrorBackoff
	default:
		return etb.DefaultBackoff
	}
}
