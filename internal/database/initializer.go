package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	bugxerrors "bugx/internal/errors"
	"bugx/internal/logging"
)

// State is the lifecycle state of an Initializer
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InitFunc performs one initialisation attempt
type InitFunc func(ctx context.Context) (Report, error)

// DefaultAttemptTimeout bounds a single attempt
const DefaultAttemptTimeout = 30 * time.Second

// attempt is one in-flight initialisation; done is closed when it finishes
type attempt struct {
	done   chan struct{}
	report Report
	err    error
}

// Status is a snapshot of an Initializer
type Status struct {
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	ReadyAt     time.Time `json:"ready_at,omitempty"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	Report      *Report   `json:"report,omitempty"`
}

// Initializer runs InitFunc at most once at a time. Concurrent callers wait
// for the attempt in flight. After a failure a new attempt is only started
// once the retry backoff has elapsed; until then callers get the last error.
type Initializer struct {
	mu       sync.Mutex
	state    State
	current  *attempt
	report   Report
	lastErr  error
	failedAt time.Time
	readyAt  time.Time
	attempts int

	init           InitFunc
	retryBackoff   time.Duration
	attemptTimeout time.Duration
	logger         logging.Logger
	now            func() time.Time
}

// InitializerOption configures an Initializer
type InitializerOption func(*Initializer)

// WithRetryBackoff sets the minimum time between a failure and the next attempt
func WithRetryBackoff(d time.Duration) InitializerOption {
	return func(i *Initializer) {
		i.retryBackoff = d
	}
}

// WithAttemptTimeout bounds a single attempt
func WithAttemptTimeout(d time.Duration) InitializerOption {
	return func(i *Initializer) {
		i.attemptTimeout = d
	}
}

// WithInitLogger sets the initializer logger
func WithInitLogger(logger logging.Logger) InitializerOption {
	return func(i *Initializer) {
		i.logger = logger
	}
}

// NewInitializer creates an initializer around fn
func NewInitializer(fn InitFunc, opts ...InitializerOption) *Initializer {
	i := &Initializer{
		init:           fn,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         logging.NewNoOpLogger(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Initialize returns once the datastore is ready, the attempt failed, or ctx
// is done. The attempt itself is not bound to ctx, so one impatient caller
// cannot fail it for the others.
func (i *Initializer) Initialize(ctx context.Context) (Report, error) {
	i.mu.Lock()
	switch i.state {
	case StateReady:
		report := i.report
		i.mu.Unlock()
		return report, nil

	case StateFailed:
		if wait := i.retryBackoff - i.now().Sub(i.failedAt); wait > 0 {
			err := i.lastErr
			i.mu.Unlock()
			return Report{}, bugxerrors.NewDependencyError("datastore", fmt.Errorf("retry in %s: %w", wait.Round(time.Millisecond), err))
		}
		i.start(ctx)

	case StateUninitialized:
		i.start(ctx)
	}
	a := i.current
	i.mu.Unlock()

	select {
	case <-a.done:
		if a.err != nil {
			return Report{}, bugxerrors.NewDependencyError("datastore", a.err)
		}
		return a.report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// start launches a new attempt; i.mu must be held
func (i *Initializer) start(ctx context.Context) {
	a := &attempt{done: make(chan struct{})}
	i.current = a
	i.state = StateInitializing
	i.attempts++
	n := i.attempts

	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.attemptTimeout)
	go func() {
		defer cancel()
		i.logger.Info("Datastore initialization started", "attempt", n)
		report, err := i.run(attemptCtx)
		i.finish(a, report, err)
	}()
}

func (i *Initializer) run(ctx context.Context) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initialization panicked: %v", r)
		}
	}()
	return i.init(ctx)
}

func (i *Initializer) finish(a *attempt, report Report, err error) {
	i.mu.Lock()
	a.report, a.err = report, err
	if err != nil {
		i.state = StateFailed
		i.lastErr = err
		i.failedAt = i.now()
	} else {
		i.state = StateReady
		i.report = report
		i.lastErr = nil
		i.readyAt = i.now()
	}
	i.current = nil
	i.mu.Unlock()

	if err != nil {
		i.logger.Error("Datastore initialization failed", "error", err)
	} else {
		i.logger.Info("Datastore initialized", "tables", report.Tables, "demo_user_created", report.DemoUserCreated)
	}
	close(a.done)
}

// State returns the current state
func (i *Initializer) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Ready reports whether initialisation has succeeded
func (i *Initializer) Ready() bool {
	return i.State() == StateReady
}

// Status returns a snapshot for health reporting
func (i *Initializer) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()

	status := Status{
		State:       i.state.String(),
		Attempts:    i.attempts,
		ReadyAt:     i.readyAt,
		LastFailure: i.failedAt,
	}
	if i.lastErr != nil {
		status.LastError = i.lastErr.Error()
	}
	if i.state == StateReady {
		report := i.report
		status.Report = &report
	}
	return status
}
