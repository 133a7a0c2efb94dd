package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("i/o timeout")

// recordingRetrier skips real sleeps and records the requested delays
func recordingRetrier(cfg Config) (*Retrier, *[]time.Duration) {
	var delays []time.Duration
	r := New(cfg)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return r, &delays
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	r, delays := recordingRetrier(Config{MaxAttempts: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Multiplier: 2})

	calls := 0
	result := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, *delays)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	r, delays := recordingRetrier(Config{MaxAttempts: 3, InitialDelay: time.Millisecond})

	result := r.Do(context.Background(), func(context.Context) error { return errFlaky })

	assert.ErrorIs(t, result.Err, errFlaky)
	assert.Equal(t, 3, result.Attempts)
	assert.Len(t, *delays, 2)
}

func TestDo_PermanentErrorStops(t *testing.T) {
	r, delays := recordingRetrier(DefaultConfig())

	result := r.Do(context.Background(), func(context.Context) error { return Permanent(errFlaky) })

	assert.ErrorIs(t, result.Err, errFlaky)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, *delays)
}

func TestDo_CustomRetryIf(t *testing.T) {
	r, _ := recordingRetrier(Config{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return !errors.Is(err, errFlaky) },
	})

	result := r.Do(context.Background(), func(context.Context) error { return errFlaky })
	assert.Equal(t, 1, result.Attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(Config{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour})

	result := r.Do(ctx, func(context.Context) error {
		cancel()
		return errFlaky
	})

	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, result.Attempts)
}

func TestNew_ClampsConfig(t *testing.T) {
	r := New(Config{MaxAttempts: 0, Multiplier: 0.5, RandomizeFactor: 3, InitialDelay: time.Second})
	assert.Equal(t, 1, r.config.MaxAttempts)
	assert.Equal(t, 1.0, r.config.Multiplier)
	assert.Equal(t, 1.0, r.config.RandomizeFactor)
	assert.Equal(t, time.Second, r.config.MaxDelay)
	assert.NotNil(t, r.config.RetryIf)
}

func TestJitterStaysInRange(t *testing.T) {
	r := New(Config{MaxAttempts: 1, RandomizeFactor: 0.5})
	for i := 0; i < 100; i++ {
		d := r.jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.True(t, DefaultRetryIf(errFlaky))
	assert.False(t, DefaultRetryIf(Permanent(errFlaky)))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(context.DeadlineExceeded))
	assert.Nil(t, Permanent(nil))
}
