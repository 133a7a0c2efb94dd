package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPublish = errors.New("redis: connection refused")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(cfg)
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) error    { return errPublish }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errPublish)
	}
	assert.Equal(t, StateClosed, cb.State())

	// a success resets the consecutive count
	require.NoError(t, cb.Execute(ctx, succeed))
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 2, cb.Stats().ConsecutiveFailures)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	var changes []string
	cb, clock := newTestBreaker(Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
		OnStateChange: func(from, to State) {
			changes = append(changes, fmt.Sprintf("%s->%s", from, to))
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	clock.Advance(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, changes)

	stats := cb.Stats()
	assert.Equal(t, int64(4), stats.Calls)
	assert.Equal(t, int64(3), stats.Failures)
	assert.Equal(t, int64(1), stats.Rejections)
	assert.Equal(t, "closed", stats.StateName)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errPublish)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_SingleTrialWhileHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	started := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-finish
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
	close(finish)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Stats().Failures)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Execute(context.Background(), succeed))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
