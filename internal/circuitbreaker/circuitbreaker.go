package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit rejects requests.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
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
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker parameters. Zero values take defaults of 5 failures,
// 2 half-open successes and a 30s open period.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// IsFailure decides which errors count against the upstream. nil counts
	// every non-nil error.
	IsFailure     func(error) bool
	OnStateChange func(from, to State)
}

// CircuitBreaker stops calling an upstream after repeated failures and lets
// probe calls through once the open period has passed.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

type transition struct{ from, to State }

// New creates a closed CircuitBreaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Call runs fn unless the circuit is open. Errors for which IsFailure is
// false are returned as-is and leave the counters untouched.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, ok := cb.allow()
	cb.notify(t)
	if !ok {
		return ErrOpen
	}
	err := fn()
	cb.notify(cb.record(err))
	return err
}

func (cb *CircuitBreaker) allow() (*transition, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return nil, true
	}
	if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
		return nil, false
	}
	return cb.setLocked(StateHalfOpen), true
}

func (cb *CircuitBreaker) record(err error) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case err != nil && cb.cfg.IsFailure(err):
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			return cb.setLocked(StateOpen)
		}
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				return cb.setLocked(StateClosed)
			}
		}
	}
	return nil
}

func (cb *CircuitBreaker) setLocked(to State) *transition {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if from == to {
		return nil
	}
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(t.from, t.to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Component returns the name the breaker was created with.
func (cb *CircuitBreaker) Component() string {
	return cb.cfg.Component
}
