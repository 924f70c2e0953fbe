// Package resilience keeps speech providers usable when a backend goes away.
//
// A [CircuitBreaker] stops calling a backend after repeated failures and
// probes it again after a cool-down. A [FallbackGroup] puts one breaker in
// front of each of several interchangeable providers and uses the first
// healthy one, so a dead cloud recognizer falls back to local whisper and a
// failing voice service falls back to a second one. [STTFallback] and
// [TTSFallback] wrap these for the two provider interfaces.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure opens it again.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker]. Zero values
// take the defaults noted on each field.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int // consecutive, while closed
	openedAt  time.Time
	probes    int // admitted while half-open
	probeWins int
}

// NewCircuitBreaker creates a [CircuitBreaker] with cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn if the breaker admits the call and records the outcome.
// A rejected call returns [ErrCircuitOpen] without running fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(probe, err == nil)
	return err
}

// admit decides whether a call may run. probe is true for half-open probes.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case ok && probe:
		cb.probeWins++
		if cb.probeWins >= cb.cfg.HalfOpenMax {
			cb.transition(StateClosed)
		}
	case ok:
		cb.failures = 0
	case probe:
		cb.openedAt = cb.cfg.Now()
		cb.transition(StateOpen)
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
			cb.openedAt = cb.cfg.Now()
			cb.transition(StateOpen)
		}
	}
}

// transition moves to state and resets its counters. Must be called with
// cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.probes, cb.probeWins = 0, 0
	if to == StateClosed {
		cb.failures = 0
	}
	if from == to {
		return
	}
	slog.Info("circuit breaker state changed", "name", cb.cfg.Name, "from", from, "to", to)
}

// State returns the breaker's state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}
