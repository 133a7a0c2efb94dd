// Package circuitbreaker stops calling a failing dependency for a while so a
// broken notification sink does not slow every workflow down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the dependency while the circuit is open
var ErrOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	// FailureThreshold consecutive failures open the circuit
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before one trial call
	OpenTimeout time.Duration
	// OnStateChange is called outside the lock after every transition
	OnStateChange func(from, to State)
}

// DefaultConfig returns the configuration used for notification sinks
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
}

// Stats is a snapshot of the breaker counters
type Stats struct {
	State               State     `json:"-"`
	StateName           string    `json:"state"`
	Calls               int64     `json:"calls"`
	Failures            int64     `json:"failures"`
	Rejections          int64     `json:"rejections"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

// CircuitBreaker implements the closed / open / half-open state machine
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu                   sync.Mutex
	state                State
	openedAt             time.Time
	trialInFlight        bool
	consecutiveFailures  int
	consecutiveSuccesses int
	calls                int64
	failures             int64
	rejections           int64
	lastFailure          time.Time
}

// New creates a closed circuit breaker. Zero thresholds take the defaults.
func New(config Config) *CircuitBreaker {
	defaults := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaults.OpenTimeout
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn unless the circuit is open. Context cancellation of the
// caller is not counted as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		cb.release()
		return err
	}
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) acquire() error {
	var from State
	changed := false

	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.OpenTimeout {
			cb.rejections++
			cb.mu.Unlock()
			return ErrOpen
		}
		from, changed = cb.transition(StateHalfOpen)
		cb.trialInFlight = true
	case StateHalfOpen:
		if cb.trialInFlight {
			cb.rejections++
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.trialInFlight = true
	}
	cb.calls++
	cb.mu.Unlock()

	if changed {
		cb.notify(from, StateHalfOpen)
	}
	return nil
}

// release ends a call without recording a result
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	cb.trialInFlight = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) record(err error) {
	var (
		from, to State
		changed  bool
	)

	cb.mu.Lock()
	cb.trialInFlight = false
	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		cb.consecutiveSuccesses = 0
		cb.consecutiveFailures++
		if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.config.FailureThreshold {
			to = StateOpen
			from, changed = cb.transition(StateOpen)
		}
	} else {
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.consecutiveSuccesses++
			if cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
				to = StateClosed
				from, changed = cb.transition(StateClosed)
			}
		}
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, to)
	}
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State) (State, bool) {
	from := cb.state
	if from == to {
		return from, false
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.consecutiveSuccesses = 0
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses = 0
	case StateHalfOpen:
		cb.consecutiveSuccesses = 0
	}
	return from, true
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns the current counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:               cb.state,
		StateName:           cb.state.String(),
		Calls:               cb.calls,
		Failures:            cb.failures,
		Rejections:          cb.rejections,
		ConsecutiveFailures: cb.consecutiveFailures,
		LastFailure:         cb.lastFailure,
	}
}

// Reset closes the circuit and clears the consecutive counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from, changed := cb.transition(StateClosed)
	cb.trialInFlight = false
	cb.consecutiveFailures = 0
	cb.mu.Unlock()

	if changed {
		cb.notify(from, StateClosed)
	}
}
