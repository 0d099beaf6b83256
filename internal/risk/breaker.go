package risk

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while calls are short-circuited.
var ErrCircuitOpen = errors.New("risk provider circuit breaker is open")

// State of a circuit breaker
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

// BreakerSettings configures the rolling failure-rate window.
type BreakerSettings struct {
	// WindowSize is the number of most recent outcomes considered.
	WindowSize int
	// MinimumCalls must be recorded before the failure rate can trip the breaker.
	MinimumCalls int
	// FailureRateThreshold is a percentage in (0, 100].
	FailureRateThreshold float64
	// OpenDuration is how long calls are rejected before trial calls resume.
	OpenDuration time.Duration
	// HalfOpenCalls trial calls must all succeed to close again.
	HalfOpenCalls int
}

// DefaultBreakerSettings mirrors the production defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		WindowSize:           10,
		MinimumCalls:         5,
		FailureRateThreshold: 50,
		OpenDuration:         10 * time.Second,
		HalfOpenCalls:        3,
	}
}

func (s BreakerSettings) normalized() BreakerSettings {
	d := DefaultBreakerSettings()
	if s.WindowSize <= 0 {
		s.WindowSize = d.WindowSize
	}
	if s.MinimumCalls <= 0 {
		s.MinimumCalls = d.MinimumCalls
	}
	if s.MinimumCalls > s.WindowSize {
		s.MinimumCalls = s.WindowSize
	}
	if s.FailureRateThreshold <= 0 || s.FailureRateThreshold > 100 {
		s.FailureRateThreshold = d.FailureRateThreshold
	}
	if s.OpenDuration <= 0 {
		s.OpenDuration = d.OpenDuration
	}
	if s.HalfOpenCalls <= 0 {
		s.HalfOpenCalls = d.HalfOpenCalls
	}
	return s
}

// BreakerSnapshot is a point-in-time view for health endpoints and logs.
type BreakerSnapshot struct {
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Calls       int     `json:"calls"`
	Failures    int     `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
}

// StateChangeFunc observes transitions. It runs outside the breaker lock.
type StateChangeFunc func(name string, from, to State)

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithStateChange registers a transition observer.
func WithStateChange(fn StateChangeFunc) BreakerOption {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// CircuitBreaker guards the risk provider. One instance is shared by every
// in-flight evaluation in the process.
type CircuitBreaker struct {
	name     string
	settings BreakerSettings

	mu       sync.Mutex
	state    State
	window   []bool // true = failure
	next     int
	filled   int
	failures int
	openedAt time.Time

	halfOpenAdmitted  int
	halfOpenSucceeded int

	now           func() time.Time
	onStateChange StateChangeFunc
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, settings BreakerSettings, opts ...BreakerOption) *CircuitBreaker {
	settings = settings.normalized()
	cb := &CircuitBreaker{
		name:     name,
		settings: settings,
		window:   make([]bool, settings.WindowSize),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow admits a call or returns ErrCircuitOpen. An open breaker whose
// cool-down has elapsed moves to half-open and admits a limited number of
// trial calls.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	from, to, changed := cb.state, cb.state, false

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.settings.OpenDuration {
		cb.toHalfOpen()
		to, changed = StateHalfOpen, true
	}

	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenAdmitted >= cb.settings.HalfOpenCalls {
			err = ErrCircuitOpen
		} else {
			cb.halfOpenAdmitted++
		}
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, to)
	}
	return err
}

// RecordSuccess registers a successful provider call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.state
	changed := false

	switch cb.state {
	case StateClosed:
		cb.push(false)
	case StateHalfOpen:
		cb.halfOpenSucceeded++
		if cb.halfOpenSucceeded >= cb.settings.HalfOpenCalls {
			cb.toClosed()
			changed = true
		}
	}
	to := cb.state
	cb.mu.Unlock()

	if changed {
		cb.notify(from, to)
	}
}

// RecordFailure registers a failed provider call and may trip the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	from := cb.state
	changed := false

	switch cb.state {
	case StateClosed:
		cb.push(true)
		if cb.filled >= cb.settings.MinimumCalls && cb.failureRate() >= cb.settings.FailureRateThreshold {
			cb.toOpen()
			changed = true
		}
	case StateHalfOpen:
		cb.toOpen()
		changed = true
	}
	to := cb.state
	cb.mu.Unlock()

	if changed {
		cb.notify(from, to)
	}
}

// State returns the current state without side effects.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns counters for observability.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Name:        cb.name,
		State:       cb.state.String(),
		Calls:       cb.filled,
		Failures:    cb.failures,
		FailureRate: cb.failureRate(),
	}
}

// Reset forces the breaker closed with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.toClosed()
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(from, StateClosed)
	}
}

func (cb *CircuitBreaker) push(failed bool) {
	if cb.filled == len(cb.window) {
		if cb.window[cb.next] {
			cb.failures--
		}
	} else {
		cb.filled++
	}
	cb.window[cb.next] = failed
	if failed {
		cb.failures++
	}
	cb.next = (cb.next + 1) % len(cb.window)
}

func (cb *CircuitBreaker) failureRate() float64 {
	if cb.filled == 0 {
		return 0
	}
	return float64(cb.failures) * 100 / float64(cb.filled)
}

func (cb *CircuitBreaker) clearWindow() {
	for i := range cb.window {
		cb.window[i] = false
	}
	cb.next, cb.filled, cb.failures = 0, 0, 0
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.halfOpenAdmitted, cb.halfOpenSucceeded = 0, 0
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.halfOpenAdmitted, cb.halfOpenSucceeded = 0, 0
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.halfOpenAdmitted, cb.halfOpenSucceeded = 0, 0
	cb.clearWindow()
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil && from != to {
		cb.onStateChange(cb.name, from, to)
	}
}
