// Package retry re-runs operations against flaky dependencies (the Redis
// connection, notification publishes) with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int              // attempts including the first, at least 1
	InitialDelay    time.Duration    // delay before the second attempt
	MaxDelay        time.Duration    // cap on the delay between attempts
	Multiplier      float64          // backoff multiplier, at least 1
	RandomizeFactor float64          // jitter factor in [0,1]
	RetryIf         func(error) bool // nil retries everything not marked Permanent
}

// DefaultConfig returns a short backoff suited to a publish on the request path
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    50 * time.Millisecond,
		MaxDelay:        time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
	}
}

// Operation is a retryable operation
type Operation func(ctx context.Context) error

// Result contains the result of a retry operation
type Result struct {
	Attempts int
	Duration time.Duration
	Err      error
}

// Retrier runs operations under one Config
type Retrier struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrier, clamping out-of-range settings
func New(config Config) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	config.RandomizeFactor = min(max(config.RandomizeFactor, 0), 1)
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = config.InitialDelay
	}
	if config.RetryIf == nil {
		config.RetryIf = DefaultRetryIf
	}
	return &Retrier{config: config, sleep: sleepContext}
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done
func (r *Retrier) Do(ctx context.Context, op Operation) Result {
	start := time.Now()
	result := Result{}
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		result.Attempts = attempt
		if err := ctx.Err(); err != nil {
			result.Err = fmt.Errorf("context cancelled: %w", err)
			break
		}

		err := op(ctx)
		if err == nil {
			result.Err = nil
			break
		}
		result.Err = err
		if !r.config.RetryIf(err) || attempt == r.config.MaxAttempts {
			break
		}

		if serr := r.sleep(ctx, r.jitter(delay)); serr != nil {
			result.Err = fmt.Errorf("context cancelled during retry delay: %w", serr)
			break
		}
		delay = min(time.Duration(float64(delay)*r.config.Multiplier), r.config.MaxDelay)
	}

	result.Duration = time.Since(start)
	return result
}

func (r *Retrier) jitter(delay time.Duration) time.Duration {
	if r.config.RandomizeFactor == 0 || delay <= 0 {
		return delay
	}
	delta := float64(delay) * r.config.RandomizeFactor
	return time.Duration(float64(delay) - delta + rand.Float64()*2*delta)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PermanentError marks an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so DefaultRetryIf stops at it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// DefaultRetryIf retries every error except permanent ones and context ends
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Retry runs op with DefaultConfig and returns its final error
func Retry(ctx context.Context, op Operation) error {
	return New(DefaultConfig()).Do(ctx, op).Err
}
