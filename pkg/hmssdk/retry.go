package hmssdk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy is the one backoff policy used by SDKClient for every request.
type RetryPolicy struct {
	// MaxAttempts counts the first try; 1 disables retries.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Multiplier is the exponential factor between retries.
	Multiplier float64
	// Jitter spreads each delay by ±10%.
	Jitter bool
	// IsRetryable decides whether err is worth another attempt. Nil means
	// errors.Is(err, ErrTransient).
	IsRetryable func(error) bool
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   300 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// NoRetry performs a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// RetryError is returned once every attempt failed with a retryable error.
type RetryError struct {
	Attempts  int
	LastError error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *RetryError) Unwrap() error { return e.LastError }

// Delay computes the wait after the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	d := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 {
		d = math.Min(d, float64(p.MaxDelay))
	}

	if p.Jitter {
		spread := d * 0.1
		d = d - spread + rand.Float64()*spread*2
	}

	return time.Duration(d)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.IsRetryable != nil {
		return p.IsRetryable(err)
	}
	return errors.Is(err, ErrTransient)
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempts are exhausted, or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := range attempts {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		lastErr = err

		if attempt+1 < attempts {
			timer := time.NewTimer(p.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return &RetryError{Attempts: attempts, LastError: lastErr}
}
