package notify

import (
	"context"
	"fmt"

	"bugx/internal/circuitbreaker"
	"bugx/internal/logging"
	"bugx/internal/retry"
)

// Guarded wraps a remote sink with retries and a circuit breaker. While the
// circuit is open notifications to the sink fail fast with
// circuitbreaker.ErrOpen.
type Guarded struct {
	name    string
	next    Notifier
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
}

// GuardOption customises a Guarded notifier
type GuardOption func(*guardOptions)

type guardOptions struct {
	breaker circuitbreaker.Config
	retry   retry.Config
	logger  logging.Logger
}

// WithBreakerConfig replaces the circuit breaker configuration
func WithBreakerConfig(cfg circuitbreaker.Config) GuardOption {
	return func(o *guardOptions) { o.breaker = cfg }
}

// WithRetryConfig replaces the retry configuration
func WithRetryConfig(cfg retry.Config) GuardOption {
	return func(o *guardOptions) { o.retry = cfg }
}

// WithGuardLogger logs circuit state changes
func WithGuardLogger(logger logging.Logger) GuardOption {
	return func(o *guardOptions) { o.logger = logger }
}

// NewGuarded wraps next, naming it in errors and logs
func NewGuarded(name string, next Notifier, opts ...GuardOption) *Guarded {
	o := guardOptions{
		breaker: circuitbreaker.DefaultConfig(),
		retry:   retry.DefaultConfig(),
		logger:  logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.WithComponent("notify")
	onChange := o.breaker.OnStateChange
	o.breaker.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Notification sink circuit changed", "sink", name, "from", from.String(), "to", to.String())
		if onChange != nil {
			onChange(from, to)
		}
	}

	return &Guarded{
		name:    name,
		next:    next,
		breaker: circuitbreaker.New(o.breaker),
		retrier: retry.New(o.retry),
	}
}

// Notify delivers n through the breaker, retrying transient failures
func (g *Guarded) Notify(ctx context.Context, n Notification) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.retrier.Do(ctx, func(ctx context.Context) error {
			return g.next.Notify(ctx, n)
		}).Err
	})
	if err != nil {
		return fmt.Errorf("%s sink: %w", g.name, err)
	}
	return nil
}

// Stats reports the breaker counters
func (g *Guarded) Stats() circuitbreaker.Stats {
	return g.breaker.Stats()
}

// Check fails while the circuit is open, for use as a health probe
func (g *Guarded) Check(context.Context) error {
	if state := g.breaker.State(); state == circuitbreaker.StateOpen {
		return fmt.Errorf("%s sink: %w", g.name, circuitbreaker.ErrOpen)
	}
	return nil
}
