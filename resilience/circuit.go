package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/inferops/clock"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 10 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent probes allowed.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called after a transition, without the breaker lock held.
	OnStateChange func(from, to State)

	// IsFailure decides whether an error counts against the circuit.
	// Default: every non-nil error, timeouts included.
	IsFailure func(err error) bool

	// Clock drives the reset timeout. Default: clock.Real
	Clock clock.Clock
}

// CircuitBreaker stops calling a backend that keeps failing.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Rejections: calls rejected while open never reach the operation and are
//   not counted as failures.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  clock.Clock

	mu            sync.Mutex
	state         State
	failures      int
	successes     int64
	rejected      int64
	lastFailure   time.Time
	halfOpenCount int
}

type transition struct {
	from, to State
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 10 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		config: config,
		clock:  clock.OrReal(config.Clock),
		state:  StateClosed,
	}
}

// Execute runs op through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Guard(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Guard runs op through cb and returns its result. A nil cb runs op directly.
func Guard[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error)) (T, error) {
	if cb == nil {
		return op(ctx)
	}
	if err := cb.allow(); err != nil {
		var zero T
		return zero, err
	}
	v, err := op(ctx)
	cb.record(err)
	return v, err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state, tr := cb.currentStateLocked()
	cb.mu.Unlock()
	cb.notify(tr)
	return state
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var tr []transition
	if cb.state != StateClosed {
		tr = append(tr, transition{cb.state, StateClosed})
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCount = 0
	cb.mu.Unlock()
	cb.notify(tr)
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	state, tr := cb.currentStateLocked()

	var err error
	switch state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			err = ErrCircuitOpen
		} else {
			cb.halfOpenCount++
		}
	}
	if err != nil {
		cb.rejected++
	}
	cb.mu.Unlock()

	cb.notify(tr)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateClosed:
		if failed {
			cb.failures++
			cb.lastFailure = cb.clock.Now()
			if cb.failures >= cb.config.MaxFailures {
				cb.state = StateOpen
			}
		} else {
			cb.failures = 0
			cb.successes++
		}
	case StateHalfOpen:
		if failed {
			cb.lastFailure = cb.clock.Now()
			cb.state = StateOpen
		} else {
			cb.successes++
			cb.failures = 0
			cb.state = StateClosed
		}
	}
	var tr []transition
	if cb.state != from {
		tr = append(tr, transition{from, cb.state})
	}
	cb.mu.Unlock()

	cb.notify(tr)
}

// currentStateLocked moves an open circuit to half-open once the reset
// timeout has passed.
func (cb *CircuitBreaker) currentStateLocked() (State, []transition) {
	if cb.state == StateOpen && cb.clock.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		return cb.state, []transition{{StateOpen, StateHalfOpen}}
	}
	return cb.state, nil
}

func (cb *CircuitBreaker) notify(tr []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, t := range tr {
		cb.config.OnStateChange(t.from, t.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	state, tr := cb.currentStateLocked()
	m := CircuitBreakerMetrics{
		State:       state,
		Failures:    cb.failures,
		Successes:   cb.successes,
		Rejected:    cb.rejected,
		LastFailure: cb.lastFailure,
	}
	cb.mu.Unlock()
	cb.notify(tr)
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Successes   int64
	Rejected    int64
	LastFailure time.Time
}
